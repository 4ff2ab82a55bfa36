package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDFileLifecycle(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "beacon.pid"))

	pid, err := d.ReadPID()
	require.NoError(t, err)
	assert.Zero(t, pid)

	require.NoError(t, d.WritePID())
	pid, err = d.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	running, got, err := d.IsRunning()
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), got)

	require.NoError(t, d.RemovePID())
	require.NoError(t, d.RemovePID())
}

func TestInvalidPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beacon.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0644))

	_, err := New(path).ReadPID()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PID in file")

	var numErr *strconv.NumError
	assert.ErrorAs(t, err, &numErr)
	assert.IsType(t, &strconv.NumError{}, errors.Cause(err))
}

func TestWritePIDReportsCause(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "missing", "beacon.pid"))

	err := d.WritePID()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, os.IsNotExist(errors.Cause(err)))
}

func TestSignalWithoutDaemon(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "beacon.pid"))

	assert.ErrorIs(t, d.Locate(), ErrNotRunning)
	assert.ErrorIs(t, d.Reload(), ErrNotRunning)
	assert.ErrorIs(t, d.Stop(), ErrNotRunning)
}

func TestSignalDelivered(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "beacon.pid"))
	require.NoError(t, d.WritePID())

	// signal 0 only probes the process
	assert.NoError(t, d.Signal(syscall.Signal(0)))
}
