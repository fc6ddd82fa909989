package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantErr, err != nil)
		})
	}
}

func TestDefaultLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, LevelWarn)

	l.Info("hidden %d", 1)
	assert.Empty(t, buf.String())

	l.Warn("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
	assert.Contains(t, buf.String(), "level=warning")

	buf.Reset()
	l.SetLevel(LevelDebug)
	l.Debug("now %s", "visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestOrDefault(t *testing.T) {
	noop := NewNoOpLogger()
	assert.Same(t, noop, OrDefault(noop))
	assert.Equal(t, GetDefault(), OrDefault(nil))
}
