package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel(" WARNING "))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("ERROR"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNewAndWith(t *testing.T) {
	log, err := New("production", "ERROR")
	require.NoError(t, err)
	child := log.With("component", "test")
	require.NotNil(t, child)
	child.Info("dropped below level")
	Nop().Error("discarded", "k", "v")
}
