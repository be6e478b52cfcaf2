// Package spawn launches the sink executable as a detached child process,
// the Go equivalent of the Python prototype's
// subprocess.Popen(..., creationflags=DETACHED_PROCESS) in
// push_pull_handshake_spawner_POPEN.py.
package spawn

import (
	"os/exec"
	"strconv"

	"github.com/pkg/errors"

	"github.com/astafan8/Qcodes/internal/portalloc"
)

// ErrLaunchFailed wraps any failure to launch the sink executable itself
// (missing binary, fork failure); it surfaces synchronously per
// spec.md §4.4. The higher-level SpawnFailed error kind from spec.md §7
// (a spawned sink that never answers) lives in internal/measurer, since it
// additionally depends on the follow-up liveness probe.
var ErrLaunchFailed = errors.New("spawn: failed to launch sink")

// ChildHandle exposes just enough of the spawned process for diagnostics
// and tests; SpawnSupervisor does not itself confirm sink readiness.
type ChildHandle struct {
	cmd *exec.Cmd
}

// Pid returns the spawned process id.
func (h *ChildHandle) Pid() int {
	return h.cmd.Process.Pid
}

// Wait blocks until the child exits and returns the result of exec's own
// Wait, used by tests that need to observe the sink's exit code. It takes
// no timeout and blocks for as long as the child runs.
func (h *ChildHandle) Wait() error {
	return h.cmd.Wait()
}

// Kill forcibly terminates the child; tests use this to simulate a crash.
func (h *ChildHandle) Kill() error {
	return h.cmd.Process.Kill()
}

// Supervisor launches the sink binary at ExePath.
type Supervisor struct {
	// ExePath is the sink executable to launch (cmd/writer's built binary).
	ExePath string
}

// NewSupervisor targets exePath.
func NewSupervisor(exePath string) *Supervisor {
	return &Supervisor{ExePath: exePath}
}

// Spawn launches the sink with the fixed positional argv contract from
// spec.md §6: <push_port> <req_port> <format_name>. It does not wait for
// the child nor confirm it is answering liveness probes; the caller's own
// follow-up probe (internal/measurer) is what establishes readiness.
func (s *Supervisor) Spawn(ports portalloc.PortPair, formatName string) (*ChildHandle, error) {
	cmd := exec.Command(
		s.ExePath,
		strconv.Itoa(ports.PushPort),
		strconv.Itoa(ports.ReqPort),
		formatName,
	)
	// Leave the child's stdio unconnected (nil is the null device) so it
	// does not share the measurer's terminal streams. The child is not
	// moved to a new process group or session; it stays in the measurer's.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(ErrLaunchFailed, err.Error())
	}
	return &ChildHandle{cmd: cmd}, nil
}
