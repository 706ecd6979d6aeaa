package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf, Service: "test"})

	l.Info("hidden")
	l.Warn("shown", "fn", "max")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "service=test")
	assert.Contains(t, out, "fn=max")
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf, JSON: true})
	l.With("session_id", "abc").Debug("stage", "to", "running")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stage", entry["msg"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, "running", entry["to"])
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, LogDir: dir, Service: "svc"})
	l.Info("to both")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "svc_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"to both"`))
	assert.Contains(t, buf.String(), "to both")
}

func TestQuietWithoutFileDiscards(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Quiet: true, Output: &buf})
	l.Error("nowhere")
	assert.Empty(t, buf.String())
}
