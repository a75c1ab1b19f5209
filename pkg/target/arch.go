package target

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// Arch describes the parameters of the tracee's architecture that the
// breakpoint and memory code depend on.
type Arch struct {
	Name      string
	WordSize  int
	ByteOrder binary.ByteOrder

	// BreakpointInstruction is written over the first byte(s) at a breakpoint address.
	BreakpointInstruction []byte
	// TrapWidth is how far the instruction pointer has advanced past the
	// breakpoint address when the trap is reported.
	TrapWidth uint64
}

var amd64Arch = mustArch(newAMD64Arch())

// AMD64Arch returns the parameters for linux/amd64 tracees.
func AMD64Arch() *Arch {
	return amd64Arch
}

func newAMD64Arch() (*Arch, error) {
	instr := []byte{0xCC}

	// int3 is a trap, the cpu reports it with rip pointing past the instruction
	inst, err := x86asm.Decode(instr, 64)
	if err != nil {
		return nil, fmt.Errorf("decode breakpoint instruction % x: %v", instr, err)
	}
	if inst.Len != len(instr) {
		return nil, fmt.Errorf("breakpoint instruction % x decodes to %d bytes", instr, inst.Len)
	}

	return &Arch{
		Name:                  "amd64",
		WordSize:              8,
		ByteOrder:             binary.LittleEndian,
		BreakpointInstruction: instr,
		TrapWidth:             uint64(inst.Len),
	}, nil
}

func mustArch(a *Arch, err error) *Arch {
	if err != nil {
		panic(err)
	}
	return a
}

// wordBytes splits word into the bytes it occupies in tracee memory,
// lowest address first.
func (a *Arch) wordBytes(word uint64) []byte {
	buf := make([]byte, 8)
	a.ByteOrder.PutUint64(buf, word)
	return buf[:a.WordSize]
}

// bytesWord is the inverse of wordBytes.
func (a *Arch) bytesWord(buf []byte) uint64 {
	full := make([]byte, 8)
	copy(full, buf)
	return a.ByteOrder.Uint64(full)
}
