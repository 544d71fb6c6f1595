package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLoggerWithWriter(&buf, "warn")

	log.Infof("hidden %d", 1)
	assert.Empty(t, buf.String())

	log.Warnf("visible %d", 2)
	assert.Contains(t, buf.String(), "visible 2")

	buf.Reset()
	log.Errorf(errors.New("boom"), "failed %s", "op")
	assert.Contains(t, buf.String(), "failed op")
	assert.Contains(t, buf.String(), "boom")
}

func TestSlogLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := NewSlogLoggerWithWriter(&buf, "debug").With("user_id", "C00001")

	log.Debugf("profile recomputed")
	assert.Contains(t, buf.String(), `"user_id":"C00001"`)
}
