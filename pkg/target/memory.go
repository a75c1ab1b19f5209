package target

import (
	"bytes"
	"fmt"
)

// Memory reads the tracee's address space one word at a time. Nothing is
// cached between calls.
type Memory struct {
	proc     *Process
	lastAddr uintptr
}

// Memory returns a memory accessor for p.
func (p *Process) Memory() *Memory {
	return &Memory{proc: p}
}

// LastAddr is where the previous read ended, used to continue a dump.
func (m *Memory) LastAddr() uintptr {
	if m == nil {
		return 0
	}
	return m.lastAddr
}

// ReadWord reads the word at addr. A word of all ones is valid data, failure
// is only ever reported through the error.
func (m *Memory) ReadWord(addr uintptr) (uint64, error) {
	if m == nil || m.proc == nil {
		return 0, ErrNilComponent
	}
	if err := m.proc.checkStopped(); err != nil {
		return 0, err
	}

	word, err := m.proc.tracer.PeekWord(m.proc.pid, addr)
	if err != nil {
		return 0, &PtraceError{Op: "PTRACE_PEEKDATA", Addr: addr, Err: err}
	}
	m.lastAddr = addr
	return word, nil
}

// Dump prints length bytes starting at addr as rows of one word: address,
// hex bytes and printable ASCII. Bytes past addr+length are read as part of
// the last word but never shown. The dump stops at the first unreadable word.
func (m *Memory) Dump(addr uintptr, length int) error {
	if m == nil || m.proc == nil {
		return ErrNilComponent
	}
	if length < 0 {
		return fmt.Errorf("invalid dump length %d", length)
	}

	out := m.proc.out
	arch := m.proc.arch
	wordSize := arch.WordSize
	words := (length + wordSize - 1) / wordSize

	fmt.Fprintf(out, "\n=== Memory Dump: 0x%016x (%d bytes) ===\n", addr, length)

	var failed error
	for i := 0; i < words; i++ {
		cur := addr + uintptr(i*wordSize)

		word, err := m.ReadWord(cur)
		if err != nil {
			fmt.Fprintf(out, "  [Failed to read at address 0x%016x]\n", cur)
			failed = err
			break
		}

		n := wordSize
		if rest := length - i*wordSize; rest < n {
			n = rest
		}
		fmt.Fprintln(out, formatRow(cur, arch.wordBytes(word)[:n], wordSize))
	}

	fmt.Fprintln(out, "=================================")
	if failed != nil {
		return failed
	}
	m.lastAddr = addr + uintptr(length)
	return nil
}

// formatRow renders one dump line for the shown bytes of a word, padding the
// hex column to width bytes.
func formatRow(addr uintptr, shown []byte, width int) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "0x%016x: ", addr)
	for _, c := range shown {
		fmt.Fprintf(&buf, "%02x ", c)
	}
	for i := len(shown); i < width; i++ {
		buf.WriteString("   ")
	}

	buf.WriteString(" |")
	for _, c := range shown {
		if c >= 32 && c <= 126 {
			buf.WriteByte(c)
		} else {
			buf.WriteByte('.')
		}
	}
	buf.WriteString("|")
	return buf.String()
}

// PokeByte writes b at addr and keeps the other bytes of the word.
func (m *Memory) PokeByte(addr uintptr, b byte) error {
	word, err := m.ReadWord(addr)
	if err != nil {
		return err
	}

	arch := m.proc.arch
	buf := arch.wordBytes(word)
	old := buf[0]
	buf[0] = b

	if err := m.proc.tracer.PokeWord(m.proc.pid, addr, arch.bytesWord(buf)); err != nil {
		return &PtraceError{Op: "PTRACE_POKEDATA", Addr: addr, Err: err}
	}
	fmt.Fprintf(m.proc.out, "Memory at 0x%016x changed from 0x%02x to 0x%02x\n", addr, old, b)
	return nil
}
