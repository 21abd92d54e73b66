package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerAdapter_FieldsAndLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := wrap(zap.New(core))

	l.WithField("stream_id", "s1").Info("Stream started", "history", 2)
	l.WithFields(map[string]any{"tab": 7}).Warn("Dropped")
	l.Debug("debug line")

	require.Equal(t, 3, logs.Len())
	first := logs.All()[0]
	assert.Equal(t, "Stream started", first.Message)
	assert.Equal(t, "s1", first.ContextMap()["stream_id"])
	assert.EqualValues(t, 2, first.ContextMap()["history"])
	assert.EqualValues(t, 7, logs.All()[1].ContextMap()["tab"])
}

func TestNewLoggerAdapter_WritesSessionFile(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLoggerAdapter(Config{Level: "debug", Dir: dir}, "ask https://example.com")
	require.NoError(t, err)
	l.Info("hello")
	require.NoError(t, l.Close())
}

func TestNewLoggerAdapter_BadLevel(t *testing.T) {
	_, err := NewLoggerAdapter(Config{Level: "loud"}, "x")
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "ask_https___example_com", sanitize("ask https://example.com"))
	assert.Equal(t, "session", sanitize("///"))
}
