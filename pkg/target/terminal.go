package target

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	isatty "github.com/mattn/go-isatty"
	"golang.org/x/sys/unix"
)

// terminal is the controlling terminal shared by the debugger and a tracee
// running in its own process group. The tracee owns it while it runs, the
// debugger while it is stopped.
type terminal struct {
	fd   int
	ours int // debugger's process group
}

// foregroundTerminal returns the terminal behind in when it is a tty and the
// debugger is its foreground group, nil otherwise. SIGTTOU and SIGTTIN are
// ignored from then on so the debugger can take the terminal back from the
// background.
func foregroundTerminal(in io.Reader) *terminal {
	f, ok := in.(*os.File)
	if !ok || f == nil || !isatty.IsTerminal(f.Fd()) {
		return nil
	}
	fd := int(f.Fd())
	fg, err := unix.IoctlGetInt(fd, unix.TIOCGPGRP)
	if err != nil || fg != unix.Getpgrp() {
		return nil
	}
	signal.Ignore(syscall.SIGTTOU, syscall.SIGTTIN)
	return &terminal{fd: fd, ours: fg}
}

// give makes pgid the foreground group.
func (t *terminal) give(pgid int) error {
	if t == nil {
		return nil
	}
	return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, pgid)
}

// reclaim makes the debugger the foreground group again.
func (t *terminal) reclaim() error {
	if t == nil {
		return nil
	}
	return unix.IoctlSetPointerInt(t.fd, unix.TIOCSPGRP, t.ours)
}
