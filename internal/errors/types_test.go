package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWeftError_Error tests error message formatting
func TestWeftError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *WeftError
		expected string
	}{
		{
			name: "code and message",
			err: &WeftError{
				Code:    ErrCodeUnknownDirective,
				Message: "unknown directive: includ",
			},
			expected: "[ERR_UNKNOWN_DIRECTIVE] unknown directive: includ",
		},
		{
			name: "with file location",
			err: &WeftError{
				Code:     ErrCodeToolFailed,
				Message:  "Undefined variable.",
				FilePath: "styles/main.scss",
				Line:     3,
				Column:   10,
			},
			expected: "[ERR_TOOL_FAILED] styles/main.scss:3:10 Undefined variable.",
		},
		{
			name: "with cause",
			err: &WeftError{
				Code:    ErrCodeReadFailed,
				Message: "cannot read source",
				Cause:   errors.New("permission denied"),
			},
			expected: "[ERR_READ_FAILED] cannot read source: permission denied",
		},
		{
			name: "file without line",
			err: &WeftError{
				Code:     ErrCodeFileNotFound,
				Message:  "include file not found: partials/header.weft",
				FilePath: "pages/index.weft",
			},
			expected: "[ERR_FILE_NOT_FOUND] pages/index.weft include file not found: partials/header.weft",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

// TestWeftError_Is tests error comparison by type and code
func TestWeftError_Is(t *testing.T) {
	err := ErrUnknownDirective("frobnicate")

	assert.True(t, errors.Is(err, &WeftError{
		Type: ErrorTypeDirective,
		Code: ErrCodeUnknownDirective,
	}))
	assert.False(t, errors.Is(err, &WeftError{
		Type: ErrorTypeDirective,
		Code: ErrCodeMissingArgument,
	}))
	assert.False(t, errors.Is(err, &WeftError{
		Type: ErrorTypeParse,
		Code: ErrCodeUnknownDirective,
	}))
}

// TestWeftError_Unwrap tests cause unwrapping through error chains
func TestWeftError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewIOError(ErrCodeWriteFailed, "save failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))

	wrapped := fmt.Errorf("processing pages/index.weft: %w", err)
	var we *WeftError
	require.ErrorAs(t, wrapped, &we)
	assert.Equal(t, ErrCodeWriteFailed, we.Code)
}

// TestErrorClassification tests the error classification helpers
func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		recoverable bool
		cycle       bool
		resource    bool
		security    bool
	}{
		{
			name:        "circular reference",
			err:         ErrCircularReference("partials/_nav.weft"),
			recoverable: true,
			cycle:       true,
		},
		{
			name:        "missing include",
			err:         ErrFileNotFound("partials/_gone.weft", errors.New("no such file")),
			recoverable: true,
			resource:    true,
		},
		{
			name:     "command injection",
			err:      ErrCommandInjection("sass; rm -rf /"),
			security: true,
		},
		{
			name: "plain error",
			err:  errors.New("not structured"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
			assert.Equal(t, tt.cycle, IsCycleError(tt.err))
			assert.Equal(t, tt.resource, IsResourceError(tt.err))
			assert.Equal(t, tt.security, IsSecurityError(tt.err))
		})
	}
}

// TestWeftError_WithContext tests context attachment
func TestWeftError_WithContext(t *testing.T) {
	err := ErrUnresolvedVariable("page.title", "mobile")

	require.NotNil(t, err.Context)
	assert.Equal(t, "page.title", err.Context["name"])
	assert.Equal(t, "mobile", err.Context["profile"])
	assert.Contains(t, err.Error(), "page.title")
	assert.Contains(t, err.Error(), "mobile")
}

// TestWeftError_WithLocation tests location attachment
func TestWeftError_WithLocation(t *testing.T) {
	err := NewParseError(ErrCodeMalformedTag, "unterminated directive").
		WithLocation("pages/about.weft", 12, 3)

	assert.Equal(t, "pages/about.weft", err.FilePath)
	assert.Equal(t, 12, err.Line)
	assert.Equal(t, 3, err.Column)
}
