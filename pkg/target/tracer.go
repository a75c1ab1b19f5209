package target

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

// Tracer is the kernel boundary of the debugger. Implementations return the
// raw errno; callers wrap it into a PtraceError naming the request.
//
// ptrace binds a tracee to the thread that attached to it, so every method of
// a Tracer must end up on the same OS thread.
type Tracer interface {
	// Start starts cmd as a tracee and returns its pid. cmd must request
	// trace consent through SysProcAttr.
	Start(cmd *exec.Cmd) (int, error)
	Attach(pid int) error
	Detach(pid int) error

	PeekWord(pid int, addr uintptr) (uint64, error)
	PokeWord(pid int, addr uintptr, word uint64) error
	GetRegs(pid int, regs *unix.PtraceRegs) error
	SetRegs(pid int, regs *unix.PtraceRegs) error

	Cont(pid int, sig int) error
	SingleStep(pid int) error
	Wait(pid int) (unix.WaitStatus, error)
	Kill(pid int) error

	// Close releases the tracer thread. No method may be called afterwards.
	Close()
}
