package target

import (
	"fmt"
	"strconv"

	"golang.org/x/sys/unix"
)

// StopKind classifies why a wait on the tracee returned.
type StopKind int

const (
	// StopTrap is a SIGTRAP stop: a breakpoint, a finished single-step or the
	// stop right after exec.
	StopTrap StopKind = iota
	// StopFault is a stop for any other signal, e.g. SIGSEGV. The tracee is
	// still alive and stopped.
	StopFault
	// StopExited means the tracee exited normally.
	StopExited
	// StopKilled means the tracee was terminated by an uncaught signal.
	StopKilled
)

func (k StopKind) String() string {
	switch k {
	case StopTrap:
		return "stopped-by-trap"
	case StopFault:
		return "stopped-by-fault"
	case StopExited:
		return "exited"
	case StopKilled:
		return "killed"
	default:
		return "StopKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// StopEvent is the classified result of one wait.
type StopEvent struct {
	Kind     StopKind
	ExitCode int
	Signal   unix.Signal
}

// Terminal reports whether the tracee is gone.
func (e StopEvent) Terminal() bool {
	return e.Kind == StopExited || e.Kind == StopKilled
}

func (e StopEvent) String() string {
	switch e.Kind {
	case StopExited:
		return "exited: " + strconv.Itoa(e.ExitCode)
	case StopKilled:
		return "killed: " + e.Signal.String()
	default:
		return "stopped: " + e.Signal.String()
	}
}

// classify maps a wait status onto exactly one StopKind.
func classify(status unix.WaitStatus) (StopEvent, error) {
	switch {
	case status.Exited():
		return StopEvent{Kind: StopExited, ExitCode: status.ExitStatus()}, nil
	case status.Signaled():
		return StopEvent{Kind: StopKilled, Signal: status.Signal()}, nil
	case status.Stopped():
		sig := status.StopSignal()
		if sig == unix.SIGTRAP {
			return StopEvent{Kind: StopTrap, Signal: sig}, nil
		}
		return StopEvent{Kind: StopFault, Signal: sig}, nil
	default:
		return StopEvent{}, fmt.Errorf("unexpected wait status %#x", uint32(status))
	}
}

var signalNotes = map[unix.Signal]string{
	unix.SIGTRAP: "SIGTRAP: Breakpoint hit or single-step completed",
	unix.SIGSEGV: "SIGSEGV: Segmentation fault - invalid memory access",
	unix.SIGBUS:  "SIGBUS: Bus error - invalid address alignment or nonexistent memory",
	unix.SIGFPE:  "SIGFPE: Arithmetic exception",
	unix.SIGILL:  "SIGILL: Illegal instruction",
}
