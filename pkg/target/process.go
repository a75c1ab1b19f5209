package target

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/sys/unix"
)

// Kind is how the tracee came under our control.
type Kind int

const (
	EXEC   Kind = iota // started by the debugger
	ATTACH             // attached to a running process
)

func (k Kind) String() string {
	if k == ATTACH {
		return "attach"
	}
	return "exec"
}

// Process owns the life cycle of exactly one tracee.
type Process struct {
	pid  int
	Path string   // executable path, or /proc/<pid>/comm after attach
	Args []string // arguments, excluding the path
	Kind Kind

	running  *atomic.Bool
	exited   *atomic.Bool
	detached bool
	last     StopEvent
	stops    uint64 // bumped on every classified stop

	// signal to deliver with the next resume, set by a fault stop
	pendingSig unix.Signal

	arch   *Arch
	tracer Tracer
	log    *logrus.Entry

	stdin          io.Reader
	stdout, stderr io.Writer
	out            io.Writer // status lines

	// set when a launched tracee shares our controlling terminal
	term *terminal
}

// Option configures a Process.
type Option func(*Process)

// WithTracer replaces the ptrace backed tracer.
func WithTracer(t Tracer) Option {
	return func(p *Process) { p.tracer = t }
}

// WithLogger sets the debug logger shared by the process and its collaborators.
func WithLogger(l *logrus.Entry) Option {
	return func(p *Process) { p.log = l }
}

// WithOutput sets where status lines are printed.
func WithOutput(w io.Writer) Option {
	return func(p *Process) { p.out = w }
}

// WithStdio sets the tracee's standard streams.
func WithStdio(in io.Reader, out, err io.Writer) Option {
	return func(p *Process) {
		p.stdin, p.stdout, p.stderr = in, out, err
	}
}

// WithArch overrides the architecture parameters.
func WithArch(a *Arch) Option {
	return func(p *Process) { p.arch = a }
}

// NewProcess prepares a tracee for path. Nothing is started until Launch.
func NewProcess(path string, args []string, opts ...Option) (*Process, error) {
	if path == "" {
		return nil, errors.New("target path is empty")
	}
	p := newProcess(opts...)
	p.Path = path
	p.Args = append([]string(nil), args...)
	p.Kind = EXEC
	return p, nil
}

func newProcess(opts ...Option) *Process {
	p := &Process{
		running: atomic.NewBool(false),
		exited:  atomic.NewBool(false),
		arch:    AMD64Arch(),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tracer == nil {
		p.tracer = NewPtraceTracer()
	}
	if p.log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		p.log = logrus.NewEntry(l)
	}
	return p
}

// Pid returns the tracee's pid, 0 before launch.
func (p *Process) Pid() int { return p.pid }

// Running reports whether the tracee was resumed and has not stopped yet.
func (p *Process) Running() bool { return p.running.Load() }

// Exited reports whether the tracee is gone or detached. It never goes back
// to false.
func (p *Process) Exited() bool { return p.exited.Load() }

// Detached reports whether the tracee was released with Detach.
func (p *Process) Detached() bool { return p.detached }

// LastStop returns the classification of the most recent stop.
func (p *Process) LastStop() StopEvent { return p.last }

// Arch returns the architecture parameters of the tracee.
func (p *Process) Arch() *Arch { return p.arch }

// Launch starts the target with trace consent and blocks until the kernel
// stops it right after exec, before its first instruction.
func (p *Process) Launch() error {
	if p == nil {
		return ErrNilComponent
	}
	if p.pid != 0 {
		return ErrAlreadyLaunched
	}
	p.log.Debugf("launch %s %v", p.Path, p.Args)

	cmd := exec.Command(p.Path, p.Args...)
	cmd.Stdin = p.stdin
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	cmd.Env = os.Environ()
	p.term = foregroundTerminal(p.stdin)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Ptrace:     true, // implies PTRACE_TRACEME
		Setpgid:    true,
		Foreground: p.term != nil,
	}

	pid, err := p.tracer.Start(cmd)
	if err != nil {
		p.reclaimTerminal()
		p.log.WithError(err).Debug("exec failed")
		return &PtraceError{Op: "exec " + p.Path, Err: err}
	}
	p.pid = pid
	p.running.Store(true)

	ev, err := p.WaitForSignal()
	p.reclaimTerminal()
	if err != nil {
		return err
	}
	if ev.Terminal() {
		return fmt.Errorf("target %s did not stop after exec: %v", p.Path, ev)
	}

	fmt.Fprintf(p.out, "Target process launched and stopped (PID: %d). Ready for debugging!\n", p.pid)
	return nil
}

// Attach takes control of the running process pid and blocks until it stops.
func (p *Process) Attach(pid int) error {
	if p == nil {
		return ErrNilComponent
	}
	if p.pid != 0 {
		return ErrAlreadyLaunched
	}
	if pid <= 0 || unix.Kill(pid, 0) != nil {
		return fmt.Errorf("process %d: %w", pid, ErrProcessNotExisted)
	}
	p.log.Debugf("attach %d", pid)

	if err := p.tracer.Attach(pid); err != nil {
		return &PtraceError{Op: "PTRACE_ATTACH", Err: err}
	}
	p.pid = pid
	p.Kind = ATTACH
	p.running.Store(true)

	status, err := p.tracer.Wait(pid)
	if err != nil {
		return &WaitError{Pid: pid, Err: err}
	}
	ev, err := classify(status)
	if err != nil {
		return &WaitError{Pid: pid, Err: err}
	}
	p.apply(ev)
	if ev.Terminal() {
		p.report(ev)
		return ErrProcessExited
	}
	// the attach SIGSTOP is ours, the tracee must not see it again
	p.pendingSig = 0

	if comm, err := readProcComm(pid); err == nil {
		p.Path = comm
	}
	if args, err := readProcCommArgs(pid); err == nil {
		p.Args = args
	}
	fmt.Fprintf(p.out, "Process %d (%s) attached and stopped. Ready for debugging!\n", pid, p.Path)
	return nil
}

// Continue resumes a stopped tracee and blocks until it stops again. A fault
// signal from the previous stop is delivered on resume.
func (p *Process) Continue() (StopEvent, error) {
	if err := p.checkStopped(); err != nil {
		return StopEvent{}, err
	}
	sig := p.pendingSig
	p.log.Debugf("continue pid %d, signal %d", p.pid, sig)

	p.giveTerminal()
	defer p.reclaimTerminal()
	if err := p.tracer.Cont(p.pid, int(sig)); err != nil {
		return StopEvent{}, &PtraceError{Op: "PTRACE_CONT", Err: err}
	}
	p.pendingSig = 0
	p.running.Store(true)
	return p.WaitForSignal()
}

// SingleStep executes exactly one instruction and blocks until the tracee
// stops again.
func (p *Process) SingleStep() (StopEvent, error) {
	if err := p.checkStopped(); err != nil {
		return StopEvent{}, err
	}
	p.log.Debugf("single step pid %d", p.pid)

	p.giveTerminal()
	defer p.reclaimTerminal()
	if err := p.tracer.SingleStep(p.pid); err != nil {
		return StopEvent{}, &PtraceError{Op: "PTRACE_SINGLESTEP", Err: err}
	}
	p.running.Store(true)
	return p.WaitForSignal()
}

// WaitForSignal blocks until the tracee changes state and classifies it. A
// failed wait leaves the process state untouched.
func (p *Process) WaitForSignal() (StopEvent, error) {
	if err := p.checkLive(); err != nil {
		return StopEvent{}, err
	}

	status, err := p.tracer.Wait(p.pid)
	if err != nil {
		p.log.WithError(err).Debug("wait failed")
		return StopEvent{}, &WaitError{Pid: p.pid, Err: err}
	}
	ev, err := classify(status)
	if err != nil {
		return StopEvent{}, &WaitError{Pid: p.pid, Err: err}
	}
	p.log.Debugf("pid %d %v", p.pid, ev)

	p.apply(ev)
	p.report(ev)
	return ev, nil
}

// Kill terminates a tracee and reaps it.
func (p *Process) Kill() error {
	if err := p.checkLive(); err != nil {
		if err == ErrProcessExited {
			return nil
		}
		return err
	}
	if err := p.tracer.Kill(p.pid); err != nil {
		return &PtraceError{Op: "kill", Err: err}
	}
	for !p.Exited() {
		if _, err := p.WaitForSignal(); err != nil {
			return err
		}
	}
	return nil
}

// Detach releases a stopped tracee and lets it run freely.
func (p *Process) Detach() error {
	if err := p.checkStopped(); err != nil {
		return err
	}
	if err := p.tracer.Detach(p.pid); err != nil {
		return &PtraceError{Op: "PTRACE_DETACH", Err: err}
	}
	p.detached = true
	p.exited.Store(true)
	fmt.Fprintf(p.out, "Process %d detached\n", p.pid)
	return nil
}

// Close releases the tracer. The process must not be used afterwards.
func (p *Process) Close() {
	if p != nil && p.tracer != nil {
		p.tracer.Close()
	}
}

// giveTerminal moves the tracee's process group to the foreground so it can
// read the terminal while it runs.
func (p *Process) giveTerminal() {
	if err := p.term.give(p.pid); err != nil {
		p.log.WithError(err).Debug("give terminal")
	}
}

func (p *Process) reclaimTerminal() {
	if err := p.term.reclaim(); err != nil {
		p.log.WithError(err).Debug("reclaim terminal")
	}
}

// State returns the scheduler state letter from /proc/<pid>/stat.
func (p *Process) State() rune {
	if p.pid == 0 || p.Exited() {
		return 0
	}
	return procState(p.pid)
}

func (p *Process) apply(ev StopEvent) {
	p.last = ev
	p.stops++
	p.running.Store(false)
	switch ev.Kind {
	case StopExited, StopKilled:
		p.exited.Store(true)
		p.pendingSig = 0
	case StopFault:
		p.pendingSig = ev.Signal
	default:
		p.pendingSig = 0
	}
}

func (p *Process) report(ev StopEvent) {
	switch ev.Kind {
	case StopExited:
		fmt.Fprintf(p.out, "Target process exited with code: %d\n", ev.ExitCode)
	case StopKilled:
		fmt.Fprintf(p.out, "Target process killed by signal: %d\n", int(ev.Signal))
	default:
		fmt.Fprintf(p.out, "Target process stopped by signal: %d\n", int(ev.Signal))
		if note, ok := signalNotes[ev.Signal]; ok {
			fmt.Fprintf(p.out, "  (%s)\n", note)
		}
	}
}

// checkLive guards every request that names the pid.
func (p *Process) checkLive() error {
	switch {
	case p == nil:
		return ErrNilComponent
	case p.pid == 0:
		return ErrNotLaunched
	case p.Exited():
		return ErrProcessExited
	}
	return nil
}

// checkStopped guards requests that need a stopped tracee.
func (p *Process) checkStopped() error {
	if err := p.checkLive(); err != nil {
		return err
	}
	if p.Running() {
		return ErrNotStopped
	}
	return nil
}
