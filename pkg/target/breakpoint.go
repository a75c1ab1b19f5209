package target

import (
	"fmt"

	"go.uber.org/atomic"
)

var (
	bpSeqNo = atomic.NewUint64(0)
)

// Breakpoint 断点信息
//
// A software breakpoint: the byte at Addr is replaced by the trap
// instruction while enabled. Orig is only meaningful while enabled.
type Breakpoint struct {
	ID   uint64  // 断点编号
	Addr uintptr // 断点地址
	Orig byte    // 原内存数据

	enabled bool
	proc    *Process
}

// NewBreakpoint creates a detached, disabled breakpoint for p.
func (p *Process) NewBreakpoint() *Breakpoint {
	return &Breakpoint{
		ID:   bpSeqNo.Inc(),
		proc: p,
	}
}

// Enabled reports whether the trap is currently written into the tracee.
func (b *Breakpoint) Enabled() bool {
	return b != nil && b.enabled
}

// Pid returns the pid of the owning tracee.
func (b *Breakpoint) Pid() int {
	return b.proc.Pid()
}

// Enable writes the trap instruction over the byte at addr. Only that byte of
// the word changes. Enabling again at the same address is a no-op, so the
// saved byte is never overwritten with the trap itself.
func (b *Breakpoint) Enable(addr uintptr) error {
	if b == nil || b.proc == nil {
		return ErrNilComponent
	}
	if b.enabled {
		if b.Addr == addr {
			return nil
		}
		return fmt.Errorf("%w: %#x", ErrBreakpointActive, b.Addr)
	}
	if err := b.proc.checkStopped(); err != nil {
		return err
	}

	arch := b.proc.arch
	pid := b.proc.pid

	word, err := b.proc.tracer.PeekWord(pid, addr)
	if err != nil {
		return &PtraceError{Op: "PTRACE_PEEKDATA", Addr: addr, Err: err}
	}

	buf := arch.wordBytes(word)
	orig := buf[0]
	buf[0] = arch.BreakpointInstruction[0]

	if err := b.proc.tracer.PokeWord(pid, addr, arch.bytesWord(buf)); err != nil {
		return &PtraceError{Op: "PTRACE_POKEDATA", Addr: addr, Err: err}
	}

	b.Addr = addr
	b.Orig = orig
	b.enabled = true
	b.proc.log.Debugf("breakpoint %d enabled at %#x, word %#016x", b.ID, addr, word)

	fmt.Fprintf(b.proc.out, "Breakpoint set at 0x%016x (original byte: 0x%02x)\n", addr, orig)
	return nil
}

// Disable restores the saved byte. The rest of the word is re-read so that
// other changes made to it meanwhile are kept. Disabling a disabled
// breakpoint succeeds without touching the tracee.
func (b *Breakpoint) Disable() error {
	if b == nil || b.proc == nil {
		return ErrNilComponent
	}
	if !b.enabled {
		fmt.Fprintln(b.proc.out, "Breakpoint is not currently enabled")
		return nil
	}
	if err := b.proc.checkStopped(); err != nil {
		return err
	}

	arch := b.proc.arch
	pid := b.proc.pid

	word, err := b.proc.tracer.PeekWord(pid, b.Addr)
	if err != nil {
		return &PtraceError{Op: "PTRACE_PEEKDATA", Addr: b.Addr, Err: err}
	}

	buf := arch.wordBytes(word)
	buf[0] = b.Orig

	if err := b.proc.tracer.PokeWord(pid, b.Addr, arch.bytesWord(buf)); err != nil {
		return &PtraceError{Op: "PTRACE_POKEDATA", Addr: b.Addr, Err: err}
	}

	b.enabled = false
	b.proc.log.Debugf("breakpoint %d disabled at %#x", b.ID, b.Addr)

	fmt.Fprintf(b.proc.out, "Breakpoint removed from 0x%016x (restored byte: 0x%02x)\n", b.Addr, b.Orig)
	return nil
}

// Close disables a still enabled breakpoint so the tracee's code is left as
// it was. A tracee that is already gone has no code to restore.
func (b *Breakpoint) Close() error {
	if !b.Enabled() {
		return nil
	}
	if b.proc.Exited() {
		b.enabled = false
		return nil
	}
	return b.Disable()
}

// Hit reports whether a trap stop with the instruction pointer at pc was
// caused by this breakpoint.
func (b *Breakpoint) Hit(pc uint64) bool {
	if !b.Enabled() {
		return false
	}
	return pc-b.proc.arch.TrapWidth == uint64(b.Addr)
}
