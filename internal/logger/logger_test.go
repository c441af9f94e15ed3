package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRedact(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(Redact(core)).With(zap.String("gemini_api_key", "AIza-secret"))

	log.Info("request sent",
		zap.String("video_id", "7301"),
		zap.String("Authorization", "Bearer abc"),
		zap.String("database_url", "postgres://u:p@h/db"),
	)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "7301", fields["video_id"])
	assert.Equal(t, redacted, fields["gemini_api_key"])
	assert.Equal(t, redacted, fields["Authorization"])
	assert.Equal(t, redacted, fields["database_url"])
}

func TestRedact_RespectsLevel(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(Redact(core))

	log.Info("dropped")
	log.Warn("kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
}

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		log, err := New(mode)
		require.NoError(t, err, mode)
		assert.NotNil(t, log)
	}
}
