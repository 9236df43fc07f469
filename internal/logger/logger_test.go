package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVs(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"user_id", int64(7),
		"access_token", "abc",
		"Email", "a@b.c",
		"dangling",
	})
	assert.Equal(t, []interface{}{
		"user_id", int64(7),
		"access_token", "[REDACTED]",
		"Email", "[REDACTED]",
		"dangling",
	}, out)
}

func TestLoggerRedactsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("component", "test").Info("login", "password", "hunter22", "username", "ana")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "[REDACTED]", fields["password"])
		assert.Equal(t, "ana", fields["username"])
		assert.Equal(t, "test", fields["component"])
	}
}

func TestNewFallsBackToInfoLevel(t *testing.T) {
	l, err := New("production", "loud")
	if assert.NoError(t, err) {
		assert.False(t, l.SugaredLogger.Desugar().Core().Enabled(zap.DebugLevel))
		assert.True(t, l.SugaredLogger.Desugar().Core().Enabled(zap.InfoLevel))
	}
}
