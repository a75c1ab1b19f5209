package target

import (
	"fmt"
	"reflect"
	"strings"

	"golang.org/x/sys/unix"
)

// Registers caches the tracee's general purpose register file. The cache is
// only replaced by Fetch; PC never goes back to the kernel.
type Registers struct {
	proc  *Process
	regs  unix.PtraceRegs
	stops uint64 // Process.stops at the time of the last successful fetch
	valid bool
}

// Registers returns a register accessor for p. Call Fetch before trusting it.
func (p *Process) Registers() *Registers {
	return &Registers{proc: p}
}

// Fetch replaces the cached snapshot with the tracee's current registers. On
// failure the previous snapshot is kept.
func (r *Registers) Fetch() error {
	if r == nil || r.proc == nil {
		return ErrNilComponent
	}
	if err := r.proc.checkStopped(); err != nil {
		return err
	}

	var regs unix.PtraceRegs
	if err := r.proc.tracer.GetRegs(r.proc.pid, &regs); err != nil {
		return &PtraceError{Op: "PTRACE_GETREGS", Err: err}
	}
	r.regs = regs
	r.stops = r.proc.stops
	r.valid = true
	return nil
}

// Dump fetches and prints the register table.
func (r *Registers) Dump() error {
	if err := r.Fetch(); err != nil {
		return err
	}
	g := &r.regs
	out := r.proc.out
	fmt.Fprintf(out, "\n=== CPU Registers ===\n")
	fmt.Fprintf(out, "RIP: 0x%016x    RSP: 0x%016x\n", g.Rip, g.Rsp)
	fmt.Fprintf(out, "RAX: 0x%016x    RBX: 0x%016x\n", g.Rax, g.Rbx)
	fmt.Fprintf(out, "RCX: 0x%016x    RDX: 0x%016x\n", g.Rcx, g.Rdx)
	fmt.Fprintf(out, "RSI: 0x%016x    RDI: 0x%016x\n", g.Rsi, g.Rdi)
	fmt.Fprintf(out, "RBP: 0x%016x    R8:  0x%016x\n", g.Rbp, g.R8)
	fmt.Fprintf(out, "R9:  0x%016x    R10: 0x%016x\n", g.R9, g.R10)
	fmt.Fprintf(out, "R11: 0x%016x    R12: 0x%016x\n", g.R11, g.R12)
	fmt.Fprintf(out, "R13: 0x%016x    R14: 0x%016x\n", g.R13, g.R14)
	fmt.Fprintf(out, "R15: 0x%016x    RFLAGS: 0x%08x\n", g.R15, g.Eflags)
	fmt.Fprintf(out, "=====================\n")
	return nil
}

// PC returns the cached instruction pointer.
func (r *Registers) PC() uint64 {
	if r == nil {
		return 0
	}
	return r.regs.PC()
}

// SetPC changes the instruction pointer. ptrace only writes whole register
// files, so the entire cached snapshot goes back to the tracee.
func (r *Registers) SetPC(pc uint64) error {
	return r.update(func(regs *unix.PtraceRegs) error {
		regs.SetPC(pc)
		return nil
	})
}

// Set changes the register called name, e.g. "rax", "rip" or "pc".
func (r *Registers) Set(name string, value uint64) error {
	return r.update(func(regs *unix.PtraceRegs) error {
		field, err := registerField(regs, name)
		if err != nil {
			return err
		}
		field.SetUint(value)
		return nil
	})
}

// Snapshot returns a copy of the cached register file.
func (r *Registers) Snapshot() unix.PtraceRegs {
	return r.regs
}

// update edits a copy of the cache and writes it back. The cache only takes
// the new values once the kernel accepted them.
func (r *Registers) update(edit func(*unix.PtraceRegs) error) error {
	if r == nil || r.proc == nil {
		return ErrNilComponent
	}
	if err := r.proc.checkStopped(); err != nil {
		return err
	}
	if !r.valid || r.stops != r.proc.stops {
		return ErrRegistersNotFetched
	}

	regs := r.regs
	if err := edit(&regs); err != nil {
		return err
	}
	if err := r.proc.tracer.SetRegs(r.proc.pid, &regs); err != nil {
		return &PtraceError{Op: "PTRACE_SETREGS", Err: err}
	}
	r.regs = regs
	return nil
}

var registerAliases = map[string]string{
	"pc":     "rip",
	"sp":     "rsp",
	"fp":     "rbp",
	"rflags": "eflags",
}

// registerField finds the PtraceRegs field for name, case insensitive.
func registerField(regs *unix.PtraceRegs, name string) (reflect.Value, error) {
	name = strings.ToLower(name)
	if alias, ok := registerAliases[name]; ok {
		name = alias
	}

	rv := reflect.ValueOf(regs).Elem()
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		if strings.ToLower(rt.Field(i).Name) == name {
			return rv.Field(i), nil
		}
	}
	return reflect.Value{}, fmt.Errorf("%w: %s", ErrUnknownRegister, name)
}
