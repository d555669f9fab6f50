package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeCraft/internal/config"
)

func TestBuild_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := build(&buf, config.LogConfig{Level: "debug", Format: "JSON"})

	logger.Debug("hello", slog.String("k", "v"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "v", line["k"])
}

func TestBuild_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := build(&buf, config.LogConfig{Level: "warn"})

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("kept")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestLevel_UnknownIsInfo(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, level("verbose"))
	assert.Equal(t, slog.LevelError, level(" ERROR "))
}
