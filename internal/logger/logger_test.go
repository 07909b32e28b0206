package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_IsUsableBeforeInit(t *testing.T) {
	l := New()
	require.NotNil(t, l.Log)
	l.Log.Info("ignored")
}

func TestInit(t *testing.T) {
	l := New()
	require.NoError(t, l.Init("Info"))
	assert.True(t, l.Log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Log.Core().Enabled(zapcore.DebugLevel))

	err := l.Init("loud")
	assert.Error(t, err)
}

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			zl, err := NewLogger("debug", format, "covert-server")
			require.NoError(t, err)
			assert.NotNil(t, zl)
		})
	}
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "********4567", MaskPhone("+15551234567"))
	assert.Equal(t, "***", MaskPhone("123"))
	assert.Equal(t, "", MaskPhone(""))
}
