// Package node supervises the managed node process.
//
// The supervisor never trusts in-memory state: every status query re-derives
// the process state from the pid file and the live process table, so a node
// that crashed or was killed out-of-band is reported correctly.
package node

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
)

// StateKind enumerates the supervisor's view of the node.
type StateKind int

const (
	NotInstalled StateKind = iota
	Installed
	Starting
	Running
	Stopping
	Stopped
	Crashed
)

// State is the node state with its supporting detail.
type State struct {
	Kind     StateKind
	PID      int32
	ExitCode int
}

func (s State) String() string {
	switch s.Kind {
	case NotInstalled:
		return "not installed"
	case Installed:
		return "installed"
	case Starting:
		return "starting"
	case Running:
		return fmt.Sprintf("running (pid %d)", s.PID)
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Crashed:
		return fmt.Sprintf("crashed (exit code %d)", s.ExitCode)
	default:
		return "unknown"
	}
}

// AlreadyRunningError is returned when a start is refused because a live
// node owns the pid file.
type AlreadyRunningError struct {
	PID int32
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("node already running with pid %d", e.PID)
}

const (
	pidFileName = "node.pid"
	logFileName = "node.log"

	// How long a freshly spawned node gets before we believe it survived
	// startup.
	startupGrace = 2 * time.Second
)

// Supervisor starts, stops, and inspects the node process.
type Supervisor struct {
	BinaryPath string
	DataDir    string
	Args       []string
	Logger     zerolog.Logger

	// Grace periods for the stop escalation ladder.
	InterruptGrace time.Duration
	TerminateGrace time.Duration

	// pidAlive is swappable for tests.
	pidAlive func(int32) bool
}

// NewSupervisor builds a Supervisor with the default stop grace periods.
func NewSupervisor(binaryPath, dataDir string, args []string, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		BinaryPath:     binaryPath,
		DataDir:        dataDir,
		Args:           args,
		Logger:         logger,
		InterruptGrace: 30 * time.Second,
		TerminateGrace: 10 * time.Second,
		pidAlive: func(pid int32) bool {
			alive, err := process.PidExists(pid)
			return err == nil && alive
		},
	}
}

func (s *Supervisor) pidPath() string { return filepath.Join(s.DataDir, pidFileName) }
func (s *Supervisor) logPath() string { return filepath.Join(s.DataDir, logFileName) }

// Status re-derives the node state from disk and the process table.
func (s *Supervisor) Status() State {
	if _, err := os.Stat(s.BinaryPath); err != nil {
		return State{Kind: NotInstalled}
	}

	pid, err := s.readPID()
	if err != nil {
		return State{Kind: Installed}
	}
	if s.pidAlive(pid) {
		return State{Kind: Running, PID: pid}
	}
	// Dead owner: the exit code is unknowable from the process table, so
	// this is reported as stopped rather than guessed at.
	return State{Kind: Stopped}
}

// Start launches the node. A live pid refuses with AlreadyRunningError; a
// stale pid file is cleaned up first. After the startup grace period an
// already-dead node is reported as Crashed along with the tail of its log.
func (s *Supervisor) Start(ctx context.Context, foreground bool) (State, error) {
	if pid, err := s.readPID(); err == nil {
		if s.pidAlive(pid) {
			return State{}, &AlreadyRunningError{PID: pid}
		}
		s.Logger.Warn().Int32("pid", pid).Msg("removing stale pid file")
		os.Remove(s.pidPath())
	}

	if err := os.MkdirAll(s.DataDir, 0o755); err != nil {
		return State{}, fmt.Errorf("create data dir: %w", err)
	}

	logFile, err := os.OpenFile(s.logPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) // #nosec G304 -- path under the data dir
	if err != nil {
		return State{}, fmt.Errorf("open node log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(s.BinaryPath, s.Args...) // #nosec G204 -- binary path resolved by the installer
	cmd.Dir = s.DataDir
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		return State{}, fmt.Errorf("spawn node: %w", err)
	}

	pid := int32(cmd.Process.Pid)
	if err := s.writePID(pid); err != nil {
		_ = cmd.Process.Kill()
		return State{}, err
	}
	s.Logger.Info().Int32("pid", pid).Str("binary", s.BinaryPath).Msg("node started")

	if foreground {
		err := cmd.Wait()
		os.Remove(s.pidPath())
		if err != nil {
			code := exitCode(err)
			return State{Kind: Crashed, ExitCode: code}, fmt.Errorf("node exited: %w", err)
		}
		return State{Kind: Stopped}, nil
	}

	// Give the process a moment to fall over on bad config before declaring
	// success. Waiting on the channel also reaps an early-exiting child, so
	// a zombie cannot masquerade as a live node.
	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		// The caller abandoned the start, so the fresh child must not be
		// left running behind a reported failure.
		s.Logger.Warn().Int32("pid", pid).Msg("startup aborted; killing node")
		_ = cmd.Process.Kill()
		<-waitCh
		os.Remove(s.pidPath())
		return State{}, ctx.Err()
	case err := <-waitCh:
		os.Remove(s.pidPath())
		state := State{Kind: Crashed, ExitCode: 0}
		if err != nil {
			state.ExitCode = exitCode(err)
		}
		tail := s.logTail(10)
		if tail != "" {
			s.Logger.Error().Str("log", tail).Msg("node exited during startup")
		}
		return state, fmt.Errorf("node exited during startup: %s", state)
	case <-time.After(startupGrace):
	}

	// The wait goroutine keeps running and reaps the child whenever it
	// eventually exits.
	return State{Kind: Running, PID: pid}, nil
}

// Stop brings the node down gracefully, escalating SIGINT -> SIGTERM ->
// SIGKILL. Stopping an already-stopped node succeeds without doing
// anything.
func (s *Supervisor) Stop(ctx context.Context, force bool) error {
	pid, err := s.readPID()
	if err != nil {
		return nil
	}
	if !s.pidAlive(pid) {
		os.Remove(s.pidPath())
		return nil
	}

	proc, err := os.FindProcess(int(pid))
	if err != nil {
		return fmt.Errorf("find node process %d: %w", pid, err)
	}

	if force {
		s.Logger.Warn().Int32("pid", pid).Msg("force killing node")
		_ = proc.Kill()
		os.Remove(s.pidPath())
		return nil
	}

	s.Logger.Info().Int32("pid", pid).Msg("stopping node")
	if err := proc.Signal(syscall.SIGINT); err == nil {
		if s.waitExit(ctx, pid, s.InterruptGrace) {
			os.Remove(s.pidPath())
			return nil
		}
	}

	s.Logger.Warn().Int32("pid", pid).Msg("node ignored interrupt; sending terminate")
	if err := proc.Signal(syscall.SIGTERM); err == nil {
		if s.waitExit(ctx, pid, s.TerminateGrace) {
			os.Remove(s.pidPath())
			return nil
		}
	}

	s.Logger.Warn().Int32("pid", pid).Msg("node ignored terminate; killing")
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("kill node %d: %w", pid, err)
	}
	s.waitExit(ctx, pid, time.Second)
	os.Remove(s.pidPath())
	return nil
}

// waitExit polls until the pid disappears or the deadline passes.
func (s *Supervisor) waitExit(ctx context.Context, pid int32, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !s.pidAlive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(200 * time.Millisecond):
		}
	}
	return !s.pidAlive(pid)
}

// Uptime reports how long the node has been running, when it is running.
func (s *Supervisor) Uptime() (time.Duration, error) {
	pid, err := s.readPID()
	if err != nil || !s.pidAlive(pid) {
		return 0, fmt.Errorf("node is not running")
	}
	proc, err := process.NewProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("inspect node process: %w", err)
	}
	createdMillis, err := proc.CreateTime()
	if err != nil {
		return 0, fmt.Errorf("node start time: %w", err)
	}
	return time.Since(time.UnixMilli(createdMillis)), nil
}

// MemoryRSS reports the node's resident set size in bytes, when running.
func (s *Supervisor) MemoryRSS() (uint64, error) {
	pid, err := s.readPID()
	if err != nil || !s.pidAlive(pid) {
		return 0, fmt.Errorf("node is not running")
	}
	proc, err := process.NewProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("inspect node process: %w", err)
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return 0, fmt.Errorf("node memory info: %w", err)
	}
	return mem.RSS, nil
}

func (s *Supervisor) readPID() (int32, error) {
	data, err := os.ReadFile(s.pidPath()) // #nosec G304 -- path under the data dir
	if err != nil {
		return 0, err
	}
	pid, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 32)
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("garbled pid file %s", s.pidPath())
	}
	return int32(pid), nil
}

func (s *Supervisor) writePID(pid int32) error {
	if err := os.WriteFile(s.pidPath(), []byte(fmt.Sprintf("%d\n", pid)), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// logTail returns the last n lines of the node log, for crash diagnostics.
func (s *Supervisor) logTail(n int) string {
	data, err := os.ReadFile(s.logPath()) // #nosec G304 -- path under the data dir
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func exitCode(err error) int {
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
