package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("chatty"))
}

func TestInitLogger(t *testing.T) {
	assert.NoError(t, InitLogger("development", "debug"))
	assert.NotNil(t, GetLogger())
	assert.True(t, GetLogger().Core().Enabled(zapcore.DebugLevel))
}
