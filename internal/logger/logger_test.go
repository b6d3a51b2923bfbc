package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggersWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	closer := InitLoggers(Options{File: path, Level: "debug"})
	require.NotNil(t, closer)

	InfoLogger.WithField("reservation_id", "r1").Info("created")
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"reservation_id":"r1"`)
	assert.Contains(t, string(b), `"msg":"created"`)
	assert.Equal(t, "debug", InfoLogger.GetLevel().String())
}

func TestInitLoggersWithoutFile(t *testing.T) {
	assert.Nil(t, InitLoggers(Options{Level: "nonsense"}))
	assert.Equal(t, "info", InfoLogger.GetLevel().String())
}
