package ipc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func socketPath(t *testing.T) string {
	t.Helper()
	// unix socket paths are length-limited; keep it short
	dir, err := os.MkdirTemp("", "vr")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func TestSendAndServe(t *testing.T) {
	path := socketPath(t)
	got := make(chan string, 2)

	srv, err := Listen(path, func(m ControlMessage) error {
		got <- m.Cmd
		if m.Cmd == "explode" {
			return errors.New("unknown command")
		}
		return nil
	})
	require.NoError(t, err)
	defer srv.Close()

	require.NoError(t, Send(path, CmdTrigger))
	assert.Equal(t, CmdTrigger, <-got)

	err = Send(path, "explode")
	assert.EqualError(t, err, "unknown command")
}

func TestListen_ReplacesStaleSocket(t *testing.T) {
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	srv, err := Listen(path, func(ControlMessage) error { return nil })
	require.NoError(t, err)
	defer srv.Close()

	assert.NoError(t, Send(path, CmdPing))
}

func TestSend_NoAgent(t *testing.T) {
	assert.Error(t, Send(socketPath(t), CmdTrigger))
}
