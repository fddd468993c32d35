package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{input: "trace", want: zerolog.TraceLevel},
		{input: "DEBUG", want: zerolog.DebugLevel},
		{input: "", want: zerolog.InfoLevel},
		{input: "warning", want: zerolog.WarnLevel},
		{input: "error", want: zerolog.ErrorLevel},
		{input: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestShortCaller(t *testing.T) {
	path := filepath.Join("root", "internal", "cache", "cache.go")
	assert.Equal(t, filepath.Join("cache", "cache.go")+":42", shortCaller(0, path, 42))
	assert.Equal(t, "main.go:7", shortCaller(0, "main.go", 7))
}

func TestInit_FileOutputWritesJSON(t *testing.T) {
	prev := zlog.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		zlog.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "logs", "server.log")
	cleanup, err := Init(Config{Output: "file", Level: "info", File: path})
	require.NoError(t, err)

	zlog.Debug().Msg("hidden")
	zlog.Info().Msgf("cache: fetched: id=%s", "abc")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "cache: fetched: id=abc", entry["message"])
	assert.Contains(t, entry, "time")
	assert.NotContains(t, entry, "caller")
}

func TestInit_FileOutputRequiresPath(t *testing.T) {
	_, err := Init(Config{Output: "file"})
	assert.Error(t, err)
}
