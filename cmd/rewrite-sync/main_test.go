package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

//nolint:paralleltest // uses t.Setenv
func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		prefixed string
		plain    string
		expected slog.Level
	}{
		{name: "unset", expected: slog.LevelInfo},
		{name: "prefixed debug", prefixed: "debug", expected: slog.LevelDebug},
		{name: "plain warning", plain: "warning", expected: slog.LevelWarn},
		{name: "prefixed wins", prefixed: "error", plain: "debug", expected: slog.LevelError},
		{name: "invalid", prefixed: "verbose", expected: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REWRITE_SYNC_LOG_LEVEL", tt.prefixed)
			t.Setenv("LOG_LEVEL", tt.plain)
			assert.Equal(t, tt.expected, getLogLevel())
		})
	}
}
