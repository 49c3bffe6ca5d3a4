//go:build !windows

package node

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-node")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func testSupervisor(t *testing.T, binary string) *Supervisor {
	t.Helper()
	s := NewSupervisor(binary, t.TempDir(), nil, zerolog.Nop())
	s.InterruptGrace = 2 * time.Second
	s.TerminateGrace = time.Second
	return s
}

func TestStatusNotInstalled(t *testing.T) {
	s := testSupervisor(t, filepath.Join(t.TempDir(), "missing"))
	require.Equal(t, NotInstalled, s.Status().Kind)
}

func TestStatusInstalledWithoutPidFile(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "exit 0"))
	require.Equal(t, Installed, s.Status().Kind)
}

func TestStatusStalePidIsStopped(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "exit 0"))
	require.NoError(t, s.writePID(4194300))
	s.pidAlive = func(int32) bool { return false }

	require.Equal(t, Stopped, s.Status().Kind)
}

func TestStatusLivePidIsRunning(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "exit 0"))
	require.NoError(t, s.writePID(int32(os.Getpid())))

	state := s.Status()
	require.Equal(t, Running, state.Kind)
	require.Equal(t, int32(os.Getpid()), state.PID)
}

func TestStartRefusesWhenAlreadyRunning(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "sleep 30"))
	require.NoError(t, s.writePID(int32(os.Getpid())))

	_, err := s.Start(context.Background(), false)
	var already *AlreadyRunningError
	require.ErrorAs(t, err, &already)
	require.Equal(t, int32(os.Getpid()), already.PID)
}

func TestStartForegroundCrashReportsExitCode(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "echo boom >&2; exit 7"))

	state, err := s.Start(context.Background(), true)
	require.Error(t, err)
	require.Equal(t, Crashed, state.Kind)
	require.Equal(t, 7, state.ExitCode)

	// The pid file must not survive the crash.
	require.Equal(t, Installed, s.Status().Kind)
}

func TestStartForegroundCleanExit(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "exit 0"))

	state, err := s.Start(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, Stopped, state.Kind)
}

func TestStartBackgroundAndStop(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "trap 'exit 0' INT TERM; sleep 30 & wait"))

	state, err := s.Start(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, Running, state.Kind)
	require.Equal(t, Running, s.Status().Kind)

	require.NoError(t, s.Stop(context.Background(), false))
	require.NotEqual(t, Running, s.Status().Kind)
}

func TestStartAbortedByContextKillsChild(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "sleep 30"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Start(ctx, false)
	require.ErrorIs(t, err, context.Canceled)

	// The spawned child must not linger behind the reported failure.
	require.NoFileExists(t, s.pidPath())
	require.NotEqual(t, Running, s.Status().Kind)
}

func TestStartBackgroundEarlyExitIsCrash(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "echo config rejected >&2; exit 3"))

	state, err := s.Start(context.Background(), false)
	require.Error(t, err)
	require.Equal(t, Crashed, state.Kind)
	require.Equal(t, 3, state.ExitCode)
}

func TestStopIsIdempotent(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "exit 0"))

	// No pid file at all.
	require.NoError(t, s.Stop(context.Background(), false))

	// Stale pid file: stop succeeds and cleans it up.
	require.NoError(t, s.writePID(4194300))
	s.pidAlive = func(int32) bool { return false }
	require.NoError(t, s.Stop(context.Background(), false))
	require.NoFileExists(t, s.pidPath())

	// And again, for good measure.
	require.NoError(t, s.Stop(context.Background(), false))
}

func TestStopForceKills(t *testing.T) {
	script := writeScript(t, "trap '' INT TERM; sleep 30 & wait")
	s := testSupervisor(t, script)

	cmd := exec.Command(script)
	require.NoError(t, cmd.Start())
	defer cmd.Wait()
	require.NoError(t, s.writePID(int32(cmd.Process.Pid)))

	require.NoError(t, s.Stop(context.Background(), true))
	require.NoFileExists(t, s.pidPath())
}

func TestGarbledPidFile(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "exit 0"))
	require.NoError(t, os.WriteFile(s.pidPath(), []byte("not-a-pid"), 0o644))

	// Garbled pid content reads as "no pid", so the node shows as installed
	// and stop is a no-op.
	require.Equal(t, Installed, s.Status().Kind)
	require.NoError(t, s.Stop(context.Background(), false))
}

func TestLogTail(t *testing.T) {
	s := testSupervisor(t, writeScript(t, "exit 0"))
	require.NoError(t, os.WriteFile(s.logPath(), []byte("a\nb\nc\nd\n"), 0o644))

	require.Equal(t, "c\nd", s.logTail(2))
	require.Equal(t, "a\nb\nc\nd", s.logTail(10))
}

func TestStateString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "running (pid 42)", State{Kind: Running, PID: 42}.String())
	require.Equal(t, "crashed (exit code 7)", State{Kind: Crashed, ExitCode: 7}.String())
	require.Equal(t, "stopped", State{Kind: Stopped}.String())
	require.Equal(t, "not installed", State{Kind: NotInstalled}.String())
}
