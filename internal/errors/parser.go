// Package errors provides structured error types and external tool output
// parsing for development-friendly error reporting.
//
// The error system classifies processing failures by type and code, carries
// file locations for editor-friendly display, and parses diagnostic output
// from the sass compiler into structured errors with severity, file, line
// and column information.
package errors

import (
	"regexp"
	"strconv"
	"strings"
)

// ErrorSeverity represents the severity of a parsed diagnostic.
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityFatal
)

// String returns the string representation of the severity.
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParsedError represents one diagnostic extracted from tool output.
type ParsedError struct {
	Severity ErrorSeverity `json:"severity"`
	File     string        `json:"file"`
	Line     int           `json:"line"`
	Column   int           `json:"column"`
	Message  string        `json:"message"`
	RawError string        `json:"raw_error"`
	Context  []string      `json:"context,omitempty"`
}

// OutputParser parses sass compiler diagnostics into structured form.
//
// The sass CLI reports an error message and its source location on separate
// lines, with a framed code excerpt in between:
//
//	Error: Undefined variable.
//	  ╷
//	3 │   color: $accent;
//	  ╵
//	  styles/main.scss 3:10  root stylesheet
//
// The parser pairs each message line with the first location line that
// follows it.
type OutputParser struct {
	messagePatterns []diagnosticPattern
	locationPattern *regexp.Regexp
}

type diagnosticPattern struct {
	regex       *regexp.Regexp
	severity    ErrorSeverity
	parseFields func(matches []string) (file string, line int, column int, message string)
}

// NewOutputParser creates a parser for sass CLI output.
func NewOutputParser() *OutputParser {
	return &OutputParser{
		messagePatterns: buildSassPatterns(),
		locationPattern: regexp.MustCompile(`^\s*(\S+\.s[ac]ss)\s+(\d+):(\d+)\s`),
	}
}

func buildSassPatterns() []diagnosticPattern {
	return []diagnosticPattern{
		{
			// Error reading styles/main.scss: no such file or directory.
			regex:    regexp.MustCompile(`^Error reading (.+?): (.+)$`),
			severity: ErrorSeverityFatal,
			parseFields: func(m []string) (string, int, int, string) {
				return m[1], 0, 0, m[2]
			},
		},
		{
			// DEPRECATION WARNING on line 5, column 7 of styles/main.scss:
			regex:    regexp.MustCompile(`^(?:DEPRECATION )?WARNING on line (\d+), column (\d+) of ([^:]+):\s*(.*)$`),
			severity: ErrorSeverityWarning,
			parseFields: func(m []string) (string, int, int, string) {
				line, _ := strconv.Atoi(m[1])
				col, _ := strconv.Atoi(m[2])
				return m[3], line, col, m[4]
			},
		},
		{
			// WARNING: 2 repetitive deprecation warnings omitted.
			regex:    regexp.MustCompile(`^(?:DEPRECATION )?WARNING: (.+)$`),
			severity: ErrorSeverityWarning,
			parseFields: func(m []string) (string, int, int, string) {
				return "", 0, 0, m[1]
			},
		},
		{
			// Error: Undefined variable.
			regex:    regexp.MustCompile(`^Error: (.+)$`),
			severity: ErrorSeverityError,
			parseFields: func(m []string) (string, int, int, string) {
				return "", 0, 0, m[1]
			},
		},
	}
}

// Parse parses tool output into structured diagnostics.
func (p *OutputParser) Parse(output string) []*ParsedError {
	var parsed []*ParsedError

	lines := strings.Split(output, "\n")

	for i, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if m := p.locationPattern.FindStringSubmatch(line); m != nil {
			// Location lines belong to the most recent diagnostic that is
			// still missing one.
			if last := lastWithoutFile(parsed); last != nil {
				last.File = m[1]
				last.Line, _ = strconv.Atoi(m[2])
				last.Column, _ = strconv.Atoi(m[3])
			}
			continue
		}

		for _, pattern := range p.messagePatterns {
			m := pattern.regex.FindStringSubmatch(trimmed)
			if m == nil {
				continue
			}

			file, lineNum, column, message := pattern.parseFields(m)
			parsed = append(parsed, &ParsedError{
				Severity: pattern.severity,
				File:     file,
				Line:     lineNum,
				Column:   column,
				Message:  message,
				RawError: trimmed,
				Context:  contextLines(lines, i, 2),
			})

			break
		}
	}

	return parsed
}

// ToError condenses tool output into a single error, or nil when the output
// contains no diagnostics at error severity or above. Warnings alone do not
// fail a compilation.
func (p *OutputParser) ToError(output, fallbackFile string) error {
	for _, d := range p.Parse(output) {
		if d.Severity < ErrorSeverityError {
			continue
		}

		file := d.File
		if file == "" {
			file = fallbackFile
		}

		return NewToolError(ErrCodeToolFailed, d.Message, nil).
			WithLocation(file, d.Line, d.Column)
	}

	return nil
}

func lastWithoutFile(parsed []*ParsedError) *ParsedError {
	for i := len(parsed) - 1; i >= 0; i-- {
		if parsed[i].File == "" {
			return parsed[i]
		}
	}

	return nil
}

func contextLines(lines []string, index, radius int) []string {
	start := index - radius
	if start < 0 {
		start = 0
	}
	end := index + radius + 1
	if end > len(lines) {
		end = len(lines)
	}

	var context []string
	for _, line := range lines[start:end] {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			context = append(context, trimmed)
		}
	}

	return context
}
