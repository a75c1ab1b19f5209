package debug

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/peterh/liner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/hitzhangjie/bdbg/pkg/config"
	"github.com/hitzhangjie/bdbg/pkg/target"
	"github.com/hitzhangjie/bdbg/pkg/target/targettest"
)

const (
	bpAddr = 0x401000
	nops   = 0x9090909090909090
)

// scriptReader feeds a fixed list of command lines.
type scriptReader struct {
	lines   []string
	history []string
	closed  bool
}

func (r *scriptReader) Prompt(string) (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptReader) AppendHistory(item string) { r.history = append(r.history, item) }

func (r *scriptReader) Close() error {
	r.closed = true
	return nil
}

type fixture struct {
	s      *DebugSession
	tr     *targettest.Tracer
	reader *scriptReader
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

// newFixture builds a session around a launched fake tracee stopped at
// 0x400ff0, with nops at bpAddr.
func newFixture(t *testing.T, lines ...string) *fixture {
	t.Helper()

	tr := targettest.New(4242)
	tr.Regs.Rip = 0x400ff0
	tr.SetWord(bpAddr, nops)
	tr.SetWord(bpAddr+8, nops)

	out := &bytes.Buffer{}
	proc, err := target.NewProcess("/usr/local/bin/tracee", nil, target.WithTracer(tr), target.WithOutput(out))
	require.NoError(t, err)
	require.NoError(t, proc.Launch())

	f := &fixture{
		tr:     tr,
		reader: &scriptReader{lines: lines},
		out:    out,
		errOut: &bytes.Buffer{},
	}
	newLineReader = func(liner.Completer) lineReader { return f.reader }
	f.s = NewDebugSession(proc, config.Default())
	f.s.out = out
	f.s.errOut = f.errOut

	CurrentSession = f.s.AtExit(Cleanup)
	t.Cleanup(func() { CurrentSession = nil })
	return f
}

// trapAt makes the next continue stop on the breakpoint.
func (f *fixture) trapAt(addr uint64) {
	f.tr.Statuses = append(f.tr.Statuses, targettest.Stopped(unix.SIGTRAP))
	f.tr.OnCont = func(tr *targettest.Tracer, sig int) {
		tr.Regs.Rip = addr + 1
		tr.OnCont = nil
	}
}

// ptraceCalls lists the requests that change the tracee.
func (f *fixture) ptraceCalls() []string {
	var calls []string
	for _, c := range f.tr.Calls {
		switch c {
		case "poke", "setregs", "step", "cont", "kill", "detach":
			calls = append(calls, c)
		}
	}
	return calls
}

func TestSession_BreakpointHitAndRecovery(t *testing.T) {
	f := newFixture(t, "break 0x401000", "c", "")
	f.trapAt(bpAddr)

	var (
		stepPC   uint64
		stepByte byte
	)
	f.tr.OnStep = func(tr *targettest.Tracer) {
		stepPC = tr.Regs.Rip
		stepByte = tr.Mem[uintptr(tr.Regs.Rip)]
		tr.Regs.Rip++
	}
	f.tr.Statuses = append(f.tr.Statuses, targettest.Stopped(unix.SIGTRAP), targettest.Exited(0))

	f.s.Start()

	out := f.out.String()
	assert.Contains(t, out, "Breakpoint set at 0x0000000000401000 (original byte: 0x90)\n")
	assert.Contains(t, out, "hit at 0x0000000000401000\n")
	assert.Contains(t, out, "Target process exited with code: 0\n")
	assert.Contains(t, out, "Target process is no longer running, ending debug session\n")
	assert.Empty(t, f.errOut.String())

	// rewound onto the original instruction, trap restored after the step
	assert.Equal(t, uint64(bpAddr), stepPC)
	assert.Equal(t, byte(0x90), stepByte)
	assert.Equal(t, []string{"poke", "cont", "poke", "setregs", "step", "poke", "cont"}, f.ptraceCalls())

	assert.Equal(t, []string{"break 0x401000", "c"}, f.reader.history)
	assert.True(t, f.reader.closed)
}

func TestSession_DeleteAtBreakpointRewinds(t *testing.T) {
	f := newFixture(t, "b 0x401000", "continue", "delete", "exit")
	f.trapAt(bpAddr)

	f.s.Start()

	word, _ := f.tr.Word(bpAddr)
	assert.Equal(t, uint64(nops), word)
	assert.Equal(t, uint64(bpAddr), f.tr.Regs.Rip)
	assert.False(t, f.s.atBreakpoint)
	assert.Contains(t, f.out.String(), "Breakpoint removed from 0x0000000000401000 (restored byte: 0x90)\n")

	// launched by us, so killed on exit
	assert.Contains(t, f.out.String(), "tracee is run by tracer, kill it: 4242\n")
	assert.Equal(t, 1, f.tr.Count("kill"))
	assert.True(t, f.tr.Closed)
}

func TestSession_StepAtBreakpoint(t *testing.T) {
	f := newFixture(t, "break 0x401000", "c", "step", "exit")
	f.trapAt(bpAddr)
	f.tr.OnStep = func(tr *targettest.Tracer) { tr.Regs.Rip++ }
	f.tr.Statuses = append(f.tr.Statuses, targettest.Stopped(unix.SIGTRAP))

	f.s.Start()

	assert.Contains(t, f.out.String(), "single step ok, current PC: 0x401001\n")
	assert.False(t, f.s.atBreakpoint)
	assert.Equal(t, 2, strings.Count(f.out.String(), "Breakpoint set at 0x0000000000401000"))

	// cleanup restored the instruction before killing
	word, _ := f.tr.Word(bpAddr)
	assert.Equal(t, uint64(nops), word)
}

func TestSession_ContinueFromBreakpointAddress(t *testing.T) {
	// pc already on the breakpoint address, without a hit
	f := newFixture(t, "setpc 0x401000", "break 0x401000", "continue")
	f.tr.OnStep = func(tr *targettest.Tracer) { tr.Regs.Rip++ }
	f.tr.Statuses = append(f.tr.Statuses, targettest.Stopped(unix.SIGTRAP), targettest.Exited(3))

	f.s.Start()

	assert.Contains(t, f.out.String(), "PC set to 0x0000000000401000\n")
	assert.Contains(t, f.out.String(), "Target process exited with code: 3\n")
	assert.Equal(t, []string{"setregs", "poke", "poke", "step", "poke", "cont"}, f.ptraceCalls())
}

func TestSession_FailedRewindKeepsBreakpoint(t *testing.T) {
	f := newFixture(t)
	f.trapAt(bpAddr)
	require.NoError(t, f.s.execute("break 0x401000"))
	require.NoError(t, f.s.execute("c"))
	require.True(t, f.s.atBreakpoint)

	f.tr.Errs["setregs"] = unix.EIO
	assert.Error(t, f.s.execute("c"))
	assert.True(t, f.s.bp.Enabled())
	assert.True(t, f.s.atBreakpoint)
	word, _ := f.tr.Word(bpAddr)
	assert.Equal(t, byte(0xcc), byte(word))

	delete(f.tr.Errs, "setregs")
	var stepPC uint64
	f.tr.OnStep = func(tr *targettest.Tracer) {
		stepPC = tr.Regs.Rip
		tr.Regs.Rip++
	}
	f.tr.Statuses = append(f.tr.Statuses, targettest.Stopped(unix.SIGTRAP), targettest.Exited(0))
	require.NoError(t, f.s.execute("c"))

	assert.Equal(t, uint64(bpAddr), stepPC)
	assert.Contains(t, f.out.String(), "Target process exited with code: 0\n")
}

func TestSession_FailedStepKeepsBreakpoint(t *testing.T) {
	f := newFixture(t)
	f.trapAt(bpAddr)
	require.NoError(t, f.s.execute("break 0x401000"))
	require.NoError(t, f.s.execute("c"))

	f.tr.Errs["step"] = unix.ESRCH
	assert.Error(t, f.s.execute("c"))
	assert.True(t, f.s.bp.Enabled())
	// rewound, so the next continue steps from the breakpoint address
	assert.Equal(t, uint64(bpAddr), f.tr.Regs.Rip)
}

func TestSession_DeleteWithFailedRewind(t *testing.T) {
	f := newFixture(t)
	f.trapAt(bpAddr)
	require.NoError(t, f.s.execute("break 0x401000"))
	require.NoError(t, f.s.execute("c"))

	f.tr.Errs["setregs"] = unix.EIO
	assert.Error(t, f.s.execute("delete"))
	assert.True(t, f.s.bp.Enabled())
	assert.True(t, f.s.atBreakpoint)

	delete(f.tr.Errs, "setregs")
	require.NoError(t, f.s.execute("delete"))
	assert.False(t, f.s.bp.Enabled())
	assert.Equal(t, uint64(bpAddr), f.tr.Regs.Rip)
}

func TestSession_ExamineAddressZero(t *testing.T) {
	f := newFixture(t, "x 0 16", "exit")
	f.s.Start()

	out := f.out.String()
	assert.Contains(t, out, "=== Memory Dump: 0x0000000000000000 (16 bytes) ===\n")
	assert.Contains(t, out, "  [Failed to read at address 0x0000000000000000]\n")
	assert.NotContains(t, out, "Memory Dump: 0x0000000000400ff0")
}

func TestSession_MoveBreakpoint(t *testing.T) {
	f := newFixture(t, "break 0x401000", "break 0x401008", "break 0x401008", "exit")
	f.s.Start()

	first, _ := f.tr.Word(bpAddr)
	assert.Equal(t, uint64(nops), first)
	assert.Contains(t, f.out.String(), "Breakpoint already set at 0x0000000000401008\n")
	assert.Empty(t, f.errOut.String())
}

func TestSession_Errors(t *testing.T) {
	f := newFixture(t, "break", "break nowhere", "setreg xmm0 1", "x 0xdead0000 8", "frobnicate", "setmem 0x401000 0x100", "exit")
	f.s.Start()

	errs := f.errOut.String()
	assert.Contains(t, errs, "[ERROR] usage: break <addr>\n")
	assert.Contains(t, errs, "[ERROR] invalid address \"nowhere\"")
	assert.Contains(t, errs, "[ERROR] failed to write register xmm0: unknown register: xmm0\n")
	assert.Contains(t, errs, "[ERROR] PTRACE_PEEKDATA at 0xdead0000")
	assert.Contains(t, errs, "[ERROR] unknown command \"frobnicate\"")
	assert.Contains(t, errs, "[ERROR] invalid byte value: 0x100\n")
	assert.Contains(t, f.out.String(), "  [Failed to read at address 0x00000000dead0000]\n")
}

func TestSession_MemoryAndRegisters(t *testing.T) {
	f := newFixture(t, "setmem 0x401000 0x41", "x 0x401000 4", "x", "setreg rax 0x2a", "regs", "exit")
	f.s.cfg.DumpLength = 8
	f.s.Start()

	out := f.out.String()
	assert.Contains(t, out, "Memory at 0x0000000000401000 changed from 0x90 to 0x41\n")
	assert.Contains(t, out, "0x0000000000401000: 41 90 90 90 "+strings.Repeat("   ", 4)+" |A...|\n")
	// continues where the last dump ended
	assert.Contains(t, out, "=== Memory Dump: 0x0000000000401004 (8 bytes) ===\n")
	assert.Contains(t, out, "Register rax set to 0x2a\n")
	assert.Contains(t, out, "RAX: 0x000000000000002a")
	assert.Empty(t, f.errOut.String())
}

func TestSession_Status(t *testing.T) {
	f := newFixture(t, "break 0x401000", "info", "exit")
	f.s.Start()

	out := f.out.String()
	assert.Contains(t, out, "Process: 4242 (exec)\n")
	assert.Contains(t, out, "Command: /usr/local/bin/tracee\n")
	assert.Contains(t, out, "State:   stopped (stopped-by-trap")
	assert.Contains(t, out, "0x0000000000401000 (original byte: 0x90)\n")
}

func TestSession_FaultIsDelivered(t *testing.T) {
	f := newFixture(t, "c", "c")
	f.tr.Statuses = append(f.tr.Statuses, targettest.Stopped(unix.SIGSEGV), targettest.Signaled(unix.SIGSEGV))

	var sigs []int
	f.tr.OnCont = func(_ *targettest.Tracer, sig int) { sigs = append(sigs, sig) }
	f.s.Start()

	assert.Equal(t, []int{0, int(unix.SIGSEGV)}, sigs)
	assert.Contains(t, f.out.String(), "Target process killed by signal: 11\n")
}

func TestSession_EndOfInput(t *testing.T) {
	f := newFixture(t)
	f.s.Start()

	// the launched tracee does not outlive the session
	assert.Equal(t, 1, f.tr.Count("kill"))
}

func TestCompleter(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, []string{"setmem", "setpc", "setreg"}, f.s.completer("set"))
	assert.Contains(t, f.s.completer("b"), "break")
	assert.Nil(t, f.s.completer("break 0x"))
}

func TestSplitCommandLine(t *testing.T) {
	args, err := splitCommandLine(`setreg  rax   "0x10"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"setreg", "rax", "0x10"}, args)

	_, err = splitCommandLine("x | y")
	assert.Error(t, err)
}

func TestHelpMessageByGroups(t *testing.T) {
	msg := helpMessageByGroups(debugRootCmd)
	assert.Contains(t, msg, "- [breaks]\n")
	assert.Contains(t, msg, "- [execute]\n")
	assert.Contains(t, msg, "continue|c|cont")
}
