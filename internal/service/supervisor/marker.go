package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mitchellh/go-ps"
	"github.com/shirou/gopsutil/v3/process"
	"gopkg.in/yaml.v3"

	"github.com/swzo/brassworks-updater/internal/logger"
)

const (
	// MarkerFilename records the pid of the running updater.
	MarkerFilename = "brassworks-updater.pid"

	markerPermissions = 0o600
)

// marker identifies one supervised child and the bootstrap that owns it.
type marker struct {
	// PID of the child.
	PID int `yaml:"pid"`
	// Owner is the pid of the bootstrap that started the child.
	Owner int `yaml:"owner"`
	// Started is the child's creation time in milliseconds since the epoch.
	Started int64 `yaml:"started"`
	// Command is the argv the child was started with.
	Command []string `yaml:"command"`
}

// DefaultMarkerPath is the marker location shared by every run on this machine.
func DefaultMarkerPath() string {
	return filepath.Join(os.TempDir(), MarkerFilename)
}

// describeChild builds the marker of a child this process just started.
func describeChild(ctx context.Context, pid int, command []string) marker {
	m := marker{
		PID:     pid,
		Owner:   os.Getpid(),
		Command: command,
	}

	if proc, err := process.NewProcessWithContext(ctx, int32(pid)); err == nil { //nolint:gosec // Pids fit in int32.
		m.Started, _ = proc.CreateTimeWithContext(ctx)
	}

	return m
}

// terminateStaleChild kills an updater left behind by an aborted run.
// The recorded child is only killed when its owner is gone and the process
// behind the pid still has the recorded start time and command line.
func terminateStaleChild(ctx context.Context, markerPath, executable string) error {
	recorded, err := readMarker(markerPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		logger.DebugKV(ctx, "Discarding unreadable updater marker", "error", err)
		_ = os.Remove(markerPath)

		return nil
	}

	if recorded.PID <= 0 || recorded.PID == os.Getpid() {
		_ = os.Remove(markerPath)
		return nil
	}

	if ownerAlive(recorded.Owner) {
		logger.DebugKV(ctx, "Updater is owned by a running bootstrap", "pid", recorded.PID, "owner", recorded.Owner)
		return nil
	}

	defer removeMarker(markerPath, recorded.PID)

	child, err := ps.FindProcess(recorded.PID)
	if err != nil {
		return fmt.Errorf("find process %d: %w", recorded.PID, err)
	}

	if child == nil || !sameExecutable(child.Executable(), executable) {
		return nil
	}

	proc, err := process.NewProcessWithContext(ctx, int32(recorded.PID)) //nolint:gosec // Pids fit in int32.
	if err != nil {
		return nil //nolint:nilerr // Gone since the lookup above.
	}

	if !sameProcess(ctx, proc, recorded) {
		logger.DebugKV(ctx, "Pid of a previous updater was reused", "pid", recorded.PID)
		return nil
	}

	logger.WarnKV(ctx, "Terminating updater left over from an aborted run", "pid", recorded.PID)

	return proc.KillWithContext(ctx)
}

// ownerAlive reports whether the bootstrap that wrote a marker still runs.
func ownerAlive(owner int) bool {
	if owner <= 0 {
		return false
	}

	if owner == os.Getpid() {
		return true
	}

	found, err := ps.FindProcess(owner)

	return err != nil || found != nil
}

// sameProcess compares a live process against the identity recorded in a marker.
func sameProcess(ctx context.Context, proc *process.Process, recorded marker) bool {
	started, err := proc.CreateTimeWithContext(ctx)
	if err != nil || recorded.Started == 0 || started != recorded.Started {
		return false
	}

	cmdline, err := proc.CmdlineSliceWithContext(ctx)
	if err != nil {
		return true
	}

	// Interpreters and launchers may prepend their own arguments.
	var args []string
	if len(recorded.Command) > 1 {
		args = recorded.Command[1:]
	}

	if len(cmdline) < len(args) {
		return false
	}

	return slices.Equal(cmdline[len(cmdline)-len(args):], args)
}

func readMarker(path string) (marker, error) {
	var m marker

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return m, err
	}

	if err = yaml.Unmarshal(contents, &m); err != nil {
		return m, fmt.Errorf("parse marker: %w", err)
	}

	return m, nil
}

func writeMarker(path string, m marker) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal marker: %w", err)
	}

	return os.WriteFile(filepath.Clean(path), data, markerPermissions)
}

// removeMarker deletes the marker only while it still describes pid.
func removeMarker(path string, pid int) {
	if path == "" {
		return
	}

	recorded, err := readMarker(path)
	if err != nil || recorded.PID != pid {
		return
	}

	_ = os.Remove(path)
}

// sameExecutable compares a process name against a command path.
// Process names may be truncated by the OS (15 bytes on Linux).
func sameExecutable(processName, command string) bool {
	name := strings.ToLower(strings.TrimSuffix(processName, ".exe"))
	want := strings.ToLower(strings.TrimSuffix(filepath.Base(command), ".exe"))

	if name == "" || want == "" {
		return false
	}

	return name == want || (len(name) >= 15 && strings.HasPrefix(want, name))
}
