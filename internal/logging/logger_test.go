package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"fatal", LevelFatal},
		{"", LevelInfo},
		{"nonsense", LevelInfo},
		{"  Error  ", LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{
		Level:  LevelWarn,
		Format: "text",
		Output: &buf,
	})

	ctx := context.Background()
	logger.Debug(ctx, "debug line")
	logger.Info(ctx, "info line")
	logger.Warn(ctx, nil, "warn line")
	logger.Error(ctx, errors.New("boom"), "error line")

	output := buf.String()
	assert.NotContains(t, output, "debug line")
	assert.NotContains(t, output, "info line")
	assert.Contains(t, output, "warn line")
	assert.Contains(t, output, "error line")
	assert.Contains(t, output, "boom")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{
		Level:  LevelInfo,
		Format: "json",
		Output: &buf,
	})

	logger.WithComponent("scheduler").
		With("path", "pages/index.weft").
		Info(context.Background(), "regenerated", "outputs", 2)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "regenerated", record["msg"])
	assert.Equal(t, "scheduler", record["component"])
	assert.Equal(t, "pages/index.weft", record["path"])
	assert.Equal(t, float64(2), record["outputs"])
}

func TestWithIndent(t *testing.T) {
	t.Run("messages are prefixed by depth", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&LoggerConfig{
			Level:  LevelInfo,
			Format: "json",
			Output: &buf,
		})

		logger.WithIndent(2).Info(context.Background(), "cascading")

		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "    cascading", record["msg"])
	})

	t.Run("zero depth leaves message untouched", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&LoggerConfig{
			Level:  LevelInfo,
			Format: "json",
			Output: &buf,
		})

		logger.WithIndent(0).Info(context.Background(), "top level")

		var record map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "top level", record["msg"])
	})

	t.Run("negative depth is clamped", func(t *testing.T) {
		logger := NewLogger(&LoggerConfig{
			Level:  LevelInfo,
			Format: "text",
			Output: &bytes.Buffer{},
		})

		assert.NotPanics(t, func() {
			logger.WithIndent(-1).Info(context.Background(), "ok")
		})
	})
}

func TestWithFieldsInheritance(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{
		Level:  LevelInfo,
		Format: "json",
		Output: &buf,
	})

	child := logger.With("pass", 1).With("trigger", "fsnotify")
	child.Info(context.Background(), "starting")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, float64(1), record["pass"])
	assert.Equal(t, "fsnotify", record["trigger"])
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "password field",
			input:    "user password: secret123",
			expected: "[REDACTED]",
		},
		{
			name:     "token field",
			input:    "auth token abc123",
			expected: "[REDACTED]",
		},
		{
			name:     "normal text",
			input:    "normal log message",
			expected: "normal log message",
		},
		{
			name:     "long text truncation",
			input:    string(make([]byte, 1500)),
			expected: string(make([]byte, 1000)) + "...[TRUNCATED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeForLog(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestLogSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{
		Level:  LevelInfo,
		Format: "json",
		Output: &buf,
	})

	LogSecurityEvent(logger, context.Background(), "command_rejected", map[string]interface{}{
		"command": "sass; rm -rf /",
		"reason":  "not in allowlist",
	})

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "security", record["event_type"])
	assert.Equal(t, "command_rejected", record["event"])
}

func TestPerfLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{
		Level:  LevelInfo,
		Format: "json",
		Output: &buf,
	})

	perf := logger.StartOperation("generate_all")
	perf.End(context.Background())

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Operation completed", record["msg"])
	assert.Equal(t, "generate_all", record["operation"])
	assert.Contains(t, record, "duration_ms")
}

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger()
	require.NotNil(t, logger)

	// Must be safe to call at every level without output side effects.
	ctx := context.Background()
	logger.Debug(ctx, "quiet")
	logger.Info(ctx, "quiet")
	logger.Warn(ctx, nil, "quiet")
	logger.Error(ctx, errors.New("quiet"), "quiet")
}

func TestLogLevelString(t *testing.T) {
	levels := map[LogLevel]string{
		LevelDebug:   "DEBUG",
		LevelInfo:    "INFO",
		LevelWarn:    "WARN",
		LevelError:   "ERROR",
		LevelFatal:   "FATAL",
		LogLevel(99): "UNKNOWN",
	}

	for level, expected := range levels {
		assert.Equal(t, expected, level.String())
	}
}

func TestTextOutputContainsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{
		Level:  LevelInfo,
		Format: "text",
		Output: &buf,
	})

	logger.WithComponent("watcher").Info(context.Background(), "started")

	assert.True(t, strings.Contains(buf.String(), "component=watcher"))
}
