package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRespectsVerbose(t *testing.T) {
	t.Parallel()

	quiet, err := New(Options{})
	require.NoError(t, err)
	require.False(t, quiet.Core().Enabled(zapcore.DebugLevel))

	verbose, err := New(Options{Verbose: true, JSON: true})
	require.NoError(t, err)
	require.True(t, verbose.Core().Enabled(zapcore.DebugLevel))
}

func TestOrNop(t *testing.T) {
	t.Parallel()

	require.NotNil(t, OrNop(nil))
}
