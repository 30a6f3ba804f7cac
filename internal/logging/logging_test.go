package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	for in, want := range map[string]zapcore.Level{"": zapcore.InfoLevel, "debug": zapcore.DebugLevel, "WARN": zapcore.WarnLevel} {
		l, err := New(in)
		require.NoError(t, err)
		require.True(t, l.Core().Enabled(want))
		require.False(t, l.Core().Enabled(want-1))
	}
	_, err := New("loud")
	require.Error(t, err)
}
