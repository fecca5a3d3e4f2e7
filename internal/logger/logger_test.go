package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "production", slog.LevelInfo)
	WithSession(log, "abc").Info("Game started", "difficulty", "hard")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Game started", rec["msg"])
	assert.Equal(t, "abc", rec["session_id"])
	assert.Equal(t, "hard", rec["difficulty"])
}

func TestNew_DevelopmentIsTextAndFiltered(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "development", slog.LevelWarn)
	log.Info("hidden")
	log.Warn("shown", "boss", "Carbon King")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, `boss="Carbon King"`)
}
