package target

import (
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ptraceTracer issues every request from one goroutine locked to its OS
// thread.
//
// issue: https://github.com/golang/go/issues/7699
type ptraceTracer struct {
	once   *sync.Once
	reqCh  chan func()
	doneCh chan struct{}
	stopCh chan struct{}
}

// NewPtraceTracer returns the Tracer backed by ptrace(2) and wait4(2).
func NewPtraceTracer() Tracer {
	return &ptraceTracer{
		once:   &sync.Once{},
		reqCh:  make(chan func()),
		doneCh: make(chan struct{}),
		stopCh: make(chan struct{}),
	}
}

// ExecPtrace runs fn on the tracer thread and blocks until it returns.
func (t *ptraceTracer) ExecPtrace(fn func()) {
	t.once.Do(func() {
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()

			for {
				select {
				case reqFn := <-t.reqCh:
					reqFn()
					t.doneCh <- struct{}{}
				case <-t.stopCh:
					return
				}
			}
		}()
	})
	t.reqCh <- fn
	<-t.doneCh
}

func (t *ptraceTracer) Close() {
	close(t.stopCh)
}

// Start forks from the tracer thread, the child becomes a tracee of that
// thread through PTRACE_TRACEME.
func (t *ptraceTracer) Start(cmd *exec.Cmd) (pid int, err error) {
	t.ExecPtrace(func() {
		if err = cmd.Start(); err != nil {
			return
		}
		pid = cmd.Process.Pid
	})
	return pid, err
}

func (t *ptraceTracer) Attach(pid int) (err error) {
	t.ExecPtrace(func() { err = unix.PtraceAttach(pid) })
	return err
}

func (t *ptraceTracer) Detach(pid int) (err error) {
	t.ExecPtrace(func() { err = unix.PtraceDetach(pid) })
	return err
}

// PeekWord issues the raw PTRACE_PEEKDATA request. The kernel stores the word
// through the data pointer and reports failure only through errno, so a word
// of all ones is never mistaken for an error.
func (t *ptraceTracer) PeekWord(pid int, addr uintptr) (word uint64, err error) {
	t.ExecPtrace(func() {
		_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_PEEKDATA, uintptr(pid), addr, uintptr(unsafe.Pointer(&word)), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return word, err
}

func (t *ptraceTracer) PokeWord(pid int, addr uintptr, word uint64) (err error) {
	t.ExecPtrace(func() {
		_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_POKEDATA, uintptr(pid), addr, uintptr(word), 0, 0)
		if errno != 0 {
			err = errno
		}
	})
	return err
}

func (t *ptraceTracer) GetRegs(pid int, regs *unix.PtraceRegs) (err error) {
	t.ExecPtrace(func() { err = unix.PtraceGetRegs(pid, regs) })
	return err
}

func (t *ptraceTracer) SetRegs(pid int, regs *unix.PtraceRegs) (err error) {
	t.ExecPtrace(func() { err = unix.PtraceSetRegs(pid, regs) })
	return err
}

func (t *ptraceTracer) Cont(pid int, sig int) (err error) {
	t.ExecPtrace(func() { err = unix.PtraceCont(pid, sig) })
	return err
}

func (t *ptraceTracer) SingleStep(pid int) (err error) {
	t.ExecPtrace(func() { err = unix.PtraceSingleStep(pid) })
	return err
}

// Wait blocks until pid changes state. There is no timeout.
func (t *ptraceTracer) Wait(pid int) (status unix.WaitStatus, err error) {
	t.ExecPtrace(func() {
		for {
			_, err = unix.Wait4(pid, &status, unix.WALL, nil)
			if err != syscall.EINTR {
				return
			}
		}
	})
	return status, err
}

// Kill sends SIGKILL from the tracer thread, ordered with the other requests.
func (t *ptraceTracer) Kill(pid int) (err error) {
	t.ExecPtrace(func() { err = unix.Kill(pid, unix.SIGKILL) })
	return err
}
