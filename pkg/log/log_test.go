package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{name: "debug", input: "debug", want: slog.LevelDebug},
		{name: "info", input: "info", want: slog.LevelInfo},
		{name: "warn", input: "warn", want: slog.LevelWarn},
		{name: "error", input: "error", want: slog.LevelError},
		{name: "unknown defaults to info", input: "trace", want: slog.LevelInfo},
		{name: "empty defaults to info", input: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewTagsServiceAndFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&buf, "warn")

	logger.Info("lifecycle advanced")
	assert.Empty(t, buf.String())

	logger.Warn("gate still unconfirmed", "instance_id", "wf-1")

	out := buf.String()
	assert.Contains(t, out, "service=careflow")
	assert.Contains(t, out, "gate still unconfirmed")
	assert.Contains(t, out, "instance_id=wf-1")
}
