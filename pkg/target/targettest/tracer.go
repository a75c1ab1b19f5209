// Package targettest provides an in-memory Tracer for exercising the debugger
// without a kernel.
package targettest

import (
	"encoding/binary"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Tracer simulates one tracee: byte addressed memory, a register file and a
// queue of wait statuses. Every request is recorded in Calls.
type Tracer struct {
	Pid      int
	Mem      map[uintptr]byte
	Regs     unix.PtraceRegs
	Statuses []unix.WaitStatus

	// Errs fails the named request ("start", "peek", "poke", "getregs",
	// "setregs", "cont", "step", "wait", "attach", "detach", "kill").
	Errs map[string]error

	// OnStep and OnCont run before the next status is reported, e.g. to move
	// the instruction pointer.
	OnStep func(t *Tracer)
	OnCont func(t *Tracer, sig int)

	Calls   []string
	Started *exec.Cmd
	Closed  bool
}

// New returns a tracer for a tracee with the given pid whose first wait
// reports the post-exec SIGTRAP stop.
func New(pid int) *Tracer {
	return &Tracer{
		Pid:      pid,
		Mem:      map[uintptr]byte{},
		Statuses: []unix.WaitStatus{Stopped(unix.SIGTRAP)},
		Errs:     map[string]error{},
	}
}

// Exited builds the wait status of a normal exit.
func Exited(code int) unix.WaitStatus {
	return unix.WaitStatus(uint32(code&0xff) << 8)
}

// Stopped builds the wait status of a signal stop.
func Stopped(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(0x7f | uint32(sig)<<8)
}

// Signaled builds the wait status of a death by signal.
func Signaled(sig unix.Signal) unix.WaitStatus {
	return unix.WaitStatus(uint32(sig) & 0x7f)
}

// SetWord stores word at addr in little endian order.
func (t *Tracer) SetWord(addr uintptr, word uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	for i, b := range buf {
		t.Mem[addr+uintptr(i)] = b
	}
}

// Word returns the word at addr and whether all of its bytes are mapped.
func (t *Tracer) Word(addr uintptr) (uint64, bool) {
	var buf [8]byte
	for i := range buf {
		b, ok := t.Mem[addr+uintptr(i)]
		if !ok {
			return 0, false
		}
		buf[i] = b
	}
	return binary.LittleEndian.Uint64(buf[:]), true
}

// Count returns how many times the named request was issued.
func (t *Tracer) Count(name string) int {
	n := 0
	for _, c := range t.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (t *Tracer) call(name string) error {
	t.Calls = append(t.Calls, name)
	return t.Errs[name]
}

func (t *Tracer) Start(cmd *exec.Cmd) (int, error) {
	if err := t.call("start"); err != nil {
		return 0, err
	}
	t.Started = cmd
	return t.Pid, nil
}

func (t *Tracer) Attach(pid int) error { return t.call("attach") }

func (t *Tracer) Detach(pid int) error { return t.call("detach") }

func (t *Tracer) PeekWord(pid int, addr uintptr) (uint64, error) {
	if err := t.call("peek"); err != nil {
		return 0, err
	}
	word, ok := t.Word(addr)
	if !ok {
		return 0, unix.EIO
	}
	return word, nil
}

func (t *Tracer) PokeWord(pid int, addr uintptr, word uint64) error {
	if err := t.call("poke"); err != nil {
		return err
	}
	if _, ok := t.Word(addr); !ok {
		return unix.EIO
	}
	t.SetWord(addr, word)
	return nil
}

func (t *Tracer) GetRegs(pid int, regs *unix.PtraceRegs) error {
	if err := t.call("getregs"); err != nil {
		return err
	}
	*regs = t.Regs
	return nil
}

func (t *Tracer) SetRegs(pid int, regs *unix.PtraceRegs) error {
	if err := t.call("setregs"); err != nil {
		return err
	}
	t.Regs = *regs
	return nil
}

func (t *Tracer) Cont(pid int, sig int) error {
	if err := t.call("cont"); err != nil {
		return err
	}
	if t.OnCont != nil {
		t.OnCont(t, sig)
	}
	return nil
}

func (t *Tracer) SingleStep(pid int) error {
	if err := t.call("step"); err != nil {
		return err
	}
	if t.OnStep != nil {
		t.OnStep(t)
	}
	return nil
}

func (t *Tracer) Wait(pid int) (unix.WaitStatus, error) {
	if err := t.call("wait"); err != nil {
		return 0, err
	}
	if len(t.Statuses) == 0 {
		return 0, unix.ECHILD
	}
	s := t.Statuses[0]
	t.Statuses = t.Statuses[1:]
	return s, nil
}

func (t *Tracer) Kill(pid int) error {
	if err := t.call("kill"); err != nil {
		return err
	}
	t.Statuses = append([]unix.WaitStatus{Signaled(unix.SIGKILL)}, t.Statuses...)
	return nil
}

func (t *Tracer) Close() { t.Closed = true }
