package publicweb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestListenTCP(t *testing.T) {
	l, err := Listen(zap.NewNop(), "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	assert.Contains(t, l.Addr().String(), "127.0.0.1:")
}

func TestListenSystemdWithoutSockets(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")

	_, err := Listen(zap.NewNop(), "sd:[::]:7071")
	assert.ErrorContains(t, err, "no systemd listener for [::]:7071")
}
