package target

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/hitzhangjie/bdbg/pkg/target/targettest"
)

func TestBreakpoint_EnableDisable(t *testing.T) {
	p, tr, out := launched(t)
	tr.SetWord(0x401000, 0x0011223344556677)

	bp := p.NewBreakpoint()
	require.NoError(t, bp.Enable(0x401000))
	assert.True(t, bp.Enabled())
	assert.Equal(t, byte(0x77), bp.Orig)
	assert.Equal(t, uintptr(0x401000), bp.Addr)

	word, _ := tr.Word(0x401000)
	assert.Equal(t, uint64(0x00112233445566cc), word)
	assert.Contains(t, out.String(), "Breakpoint set at 0x0000000000401000 (original byte: 0x77)\n")

	require.NoError(t, bp.Disable())
	assert.False(t, bp.Enabled())
	word, _ = tr.Word(0x401000)
	assert.Equal(t, uint64(0x0011223344556677), word)
	assert.Contains(t, out.String(), "Breakpoint removed from 0x0000000000401000 (restored byte: 0x77)\n")
}

func TestBreakpoint_EnableTwiceKeepsOriginal(t *testing.T) {
	p, tr, _ := launched(t)
	tr.SetWord(0x401000, 0x0011223344556677)

	bp := p.NewBreakpoint()
	require.NoError(t, bp.Enable(0x401000))
	require.NoError(t, bp.Enable(0x401000))

	assert.Equal(t, byte(0x77), bp.Orig)
	assert.Equal(t, 1, tr.Count("peek"))
	assert.Equal(t, 1, tr.Count("poke"))

	require.NoError(t, bp.Disable())
	word, _ := tr.Word(0x401000)
	assert.Equal(t, uint64(0x0011223344556677), word)
}

func TestBreakpoint_EnableElsewhere(t *testing.T) {
	p, tr, _ := launched(t)
	tr.SetWord(0x401000, 1)
	tr.SetWord(0x402000, 2)

	bp := p.NewBreakpoint()
	require.NoError(t, bp.Enable(0x401000))
	err := bp.Enable(0x402000)
	assert.True(t, errors.Is(err, ErrBreakpointActive))
	assert.Equal(t, uintptr(0x401000), bp.Addr)

	word, _ := tr.Word(0x402000)
	assert.Equal(t, uint64(2), word)
}

func TestBreakpoint_DisableNeverEnabled(t *testing.T) {
	p, tr, out := launched(t)

	bp := p.NewBreakpoint()
	require.NoError(t, bp.Disable())
	assert.Equal(t, 0, tr.Count("peek"))
	assert.Equal(t, 0, tr.Count("poke"))
	assert.Contains(t, out.String(), "Breakpoint is not currently enabled\n")
}

func TestBreakpoint_EnableFailureStaysDisabled(t *testing.T) {
	p, tr, _ := launched(t)

	bp := p.NewBreakpoint()
	err := bp.Enable(0xdead0000)
	var perr *PtraceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "PTRACE_PEEKDATA", perr.Op)
	assert.Equal(t, uintptr(0xdead0000), perr.Addr)
	assert.False(t, bp.Enabled())

	tr.SetWord(0x401000, 0x90)
	tr.Errs["poke"] = unix.EFAULT
	require.Error(t, bp.Enable(0x401000))
	assert.False(t, bp.Enabled())
	word, _ := tr.Word(0x401000)
	assert.Equal(t, uint64(0x90), word)
}

func TestBreakpoint_DisableFailureStaysEnabled(t *testing.T) {
	p, tr, _ := launched(t)
	tr.SetWord(0x401000, 0x0011223344556677)

	bp := p.NewBreakpoint()
	require.NoError(t, bp.Enable(0x401000))

	tr.Errs["poke"] = unix.EIO
	require.Error(t, bp.Disable())
	assert.True(t, bp.Enabled())

	delete(tr.Errs, "poke")
	require.NoError(t, bp.Disable())
	word, _ := tr.Word(0x401000)
	assert.Equal(t, uint64(0x0011223344556677), word)
}

func TestBreakpoint_AllOnesWord(t *testing.T) {
	p, tr, _ := launched(t)
	tr.SetWord(0x401000, ^uint64(0))

	bp := p.NewBreakpoint()
	require.NoError(t, bp.Enable(0x401000))
	assert.Equal(t, byte(0xff), bp.Orig)

	word, _ := tr.Word(0x401000)
	assert.Equal(t, uint64(0xffffffffffffffcc), word)
}

func TestBreakpoint_DisableKeepsNeighbourChanges(t *testing.T) {
	p, tr, _ := launched(t)
	tr.SetWord(0x401000, 0x0011223344556677)

	bp := p.NewBreakpoint()
	require.NoError(t, bp.Enable(0x401000))
	tr.Mem[0x401003] = 0xab

	require.NoError(t, bp.Disable())
	word, _ := tr.Word(0x401000)
	assert.Equal(t, uint64(0x00112233ab556677), word)
}

func TestBreakpoint_RoundTrip(t *testing.T) {
	p, tr, _ := launched(t)
	rnd := rand.New(rand.NewSource(1))

	for i := 0; i < 64; i++ {
		addr := uintptr(0x400000 + rnd.Intn(0x10000))
		word := rnd.Uint64()
		tr.SetWord(addr, word)

		bp := p.NewBreakpoint()
		require.NoError(t, bp.Enable(addr))
		got, _ := tr.Word(addr)
		assert.Equal(t, byte(0xcc), byte(got))
		assert.Equal(t, word>>8, got>>8)

		require.NoError(t, bp.Disable())
		got, _ = tr.Word(addr)
		assert.Equal(t, word, got, "addr %#x", addr)
	}
}

func TestBreakpoint_Close(t *testing.T) {
	p, tr, _ := launched(t)
	tr.SetWord(0x401000, 0x0011223344556677)

	bp := p.NewBreakpoint()
	require.NoError(t, bp.Enable(0x401000))
	require.NoError(t, bp.Close())
	assert.False(t, bp.Enabled())
	word, _ := tr.Word(0x401000)
	assert.Equal(t, uint64(0x0011223344556677), word)

	// nothing is left to restore in a dead tracee
	require.NoError(t, bp.Enable(0x401000))
	tr.Statuses = append(tr.Statuses, targettest.Exited(0))
	_, err := p.Continue()
	require.NoError(t, err)
	pokes := tr.Count("poke")
	require.NoError(t, bp.Close())
	assert.False(t, bp.Enabled())
	assert.Equal(t, pokes, tr.Count("poke"))
}

func TestBreakpoint_Hit(t *testing.T) {
	p, tr, _ := launched(t)
	tr.SetWord(0x401000, 0)

	bp := p.NewBreakpoint()
	assert.False(t, bp.Hit(0x401001))

	require.NoError(t, bp.Enable(0x401000))
	assert.True(t, bp.Hit(0x401001))
	assert.False(t, bp.Hit(0x401000))
	assert.False(t, bp.Hit(0x401002))
}

func TestBreakpoint_IDs(t *testing.T) {
	p, _, _ := launched(t)
	a, b := p.NewBreakpoint(), p.NewBreakpoint()
	assert.True(t, a.ID < b.ID)
	assert.Equal(t, testPid, a.Pid())
}
