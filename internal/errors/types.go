package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeParse     ErrorType = "parse"
	ErrorTypeDirective ErrorType = "directive"
	ErrorTypeResource  ErrorType = "resource"
	ErrorTypeCycle     ErrorType = "cycle"
	ErrorTypeData      ErrorType = "data"
	ErrorTypeVariable  ErrorType = "variable"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeTool      ErrorType = "tool"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeSecurity  ErrorType = "security"
	ErrorTypeInternal  ErrorType = "internal"
)

// WeftError is a structured error type with context.
type WeftError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *WeftError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *WeftError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *WeftError) Is(target error) bool {
	var t *WeftError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *WeftError) WithContext(key string, value interface{}) *WeftError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *WeftError) WithLocation(filePath string, line, column int) *WeftError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithFile adds the source file the error occurred in.
func (e *WeftError) WithFile(filePath string) *WeftError {
	e.FilePath = filePath

	return e
}

// Error creation functions

// NewParseError creates a tag or grammar parsing error.
func NewParseError(code, message string) *WeftError {
	return &WeftError{
		Type:        ErrorTypeParse,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewDirectiveError creates an error for an unusable directive.
func NewDirectiveError(code, message string) *WeftError {
	return &WeftError{
		Type:        ErrorTypeDirective,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewResourceError creates an error for a missing or unreadable referenced file.
func NewResourceError(code, message string, cause error) *WeftError {
	return &WeftError{
		Type:        ErrorTypeResource,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewCycleError creates a circular reference error.
func NewCycleError(code, message string) *WeftError {
	return &WeftError{
		Type:        ErrorTypeCycle,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewDataError creates an error for an unparseable data block.
func NewDataError(code, message string, cause error) *WeftError {
	return &WeftError{
		Type:        ErrorTypeData,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewVariableError creates a variable resolution error.
func NewVariableError(code, message string) *WeftError {
	return &WeftError{
		Type:        ErrorTypeVariable,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *WeftError {
	return &WeftError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewToolError creates an error for a failed external tool invocation.
func NewToolError(code, message string, cause error) *WeftError {
	return &WeftError{
		Type:        ErrorTypeTool,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *WeftError {
	return &WeftError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewSecurityError creates a security error.
func NewSecurityError(code, message string) *WeftError {
	return &WeftError{
		Type:        ErrorTypeSecurity,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *WeftError {
	return &WeftError{
		Type:        ErrorTypeInternal,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// Error classification utilities

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var we *WeftError
	if errors.As(err, &we) {
		return we.Recoverable
	}

	return false
}

// IsCycleError checks if an error is a circular reference.
func IsCycleError(err error) bool {
	var we *WeftError
	if errors.As(err, &we) {
		return we.Type == ErrorTypeCycle
	}

	return false
}

// IsResourceError checks if an error is a missing resource.
func IsResourceError(err error) bool {
	var we *WeftError
	if errors.As(err, &we) {
		return we.Type == ErrorTypeResource
	}

	return false
}

// IsSecurityError checks if an error is security-related.
func IsSecurityError(err error) bool {
	var we *WeftError
	if errors.As(err, &we) {
		return we.Type == ErrorTypeSecurity
	}

	return false
}

// Common error codes.
const (
	ErrCodeMalformedTag       = "ERR_MALFORMED_TAG"
	ErrCodeUnknownDirective   = "ERR_UNKNOWN_DIRECTIVE"
	ErrCodeMissingArgument    = "ERR_MISSING_ARGUMENT"
	ErrCodeFileNotFound       = "ERR_FILE_NOT_FOUND"
	ErrCodeCircularReference  = "ERR_CIRCULAR_REFERENCE"
	ErrCodeMalformedData      = "ERR_MALFORMED_DATA"
	ErrCodeUnresolvedVariable = "ERR_UNRESOLVED_VARIABLE"
	ErrCodeReservedVariable   = "ERR_RESERVED_VARIABLE"
	ErrCodeReadFailed         = "ERR_READ_FAILED"
	ErrCodeWriteFailed        = "ERR_WRITE_FAILED"
	ErrCodeToolFailed         = "ERR_TOOL_FAILED"
	ErrCodeCommandInjection   = "ERR_COMMAND_INJECTION"
	ErrCodeInvalidPath        = "ERR_INVALID_PATH"
	ErrCodeConfigInvalid      = "ERR_CONFIG_INVALID"
	ErrCodeInternalError      = "ERR_INTERNAL"
)

// Helper functions for common errors

// ErrUnknownDirective creates an error for an unrecognized directive keyword.
func ErrUnknownDirective(keyword string) *WeftError {
	return NewDirectiveError(
		ErrCodeUnknownDirective,
		"unknown directive: "+keyword,
	).WithContext("keyword", keyword)
}

// ErrMissingArgument creates an error for a directive lacking its argument.
func ErrMissingArgument(keyword string) *WeftError {
	return NewDirectiveError(
		ErrCodeMissingArgument,
		"directive requires an argument: "+keyword,
	).WithContext("keyword", keyword)
}

// ErrFileNotFound creates a missing resource error.
func ErrFileNotFound(path string, cause error) *WeftError {
	return NewResourceError(
		ErrCodeFileNotFound,
		"include file not found: "+path,
		cause,
	)
}

// ErrCircularReference creates a circular include error.
func ErrCircularReference(path string) *WeftError {
	return NewCycleError(
		ErrCodeCircularReference,
		"circular reference: "+path,
	).WithContext("path", path)
}

// ErrUnresolvedVariable creates an error for a token with no matching variable.
func ErrUnresolvedVariable(name, profile string) *WeftError {
	msg := "unresolved variable: " + name
	if profile != "" {
		msg += " (profile " + profile + ")"
	}

	return NewVariableError(ErrCodeUnresolvedVariable, msg).
		WithContext("name", name).
		WithContext("profile", profile)
}

// ErrReservedVariable creates an error for a data block declaring a reserved name.
func ErrReservedVariable(name string) *WeftError {
	return NewVariableError(
		ErrCodeReservedVariable,
		"variable name is reserved: "+name,
	).WithContext("name", name)
}

// ErrCommandInjection creates a command injection security error.
func ErrCommandInjection(command string) *WeftError {
	return NewSecurityError(
		ErrCodeCommandInjection,
		"command injection attempt: "+command,
	)
}

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *WeftError {
	return NewConfigError(ErrCodeInvalidPath, "invalid path: "+path)
}
