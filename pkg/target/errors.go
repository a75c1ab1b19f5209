package target

import (
	"errors"
	"fmt"
)

var (
	ErrNilComponent         = errors.New("component not initialized")
	ErrNotLaunched          = errors.New("process not launched")
	ErrAlreadyLaunched      = errors.New("process already launched")
	ErrProcessExited        = errors.New("process has exited")
	ErrNotStopped           = errors.New("process is not stopped")
	ErrProcessNotExisted    = errors.New("process not existed")
	ErrBreakpointActive     = errors.New("breakpoint already enabled at another address")
	ErrBreakpointNotEnabled = errors.New("breakpoint not enabled")
	ErrRegistersNotFetched  = errors.New("registers not fetched since the last stop")
	ErrUnknownRegister      = errors.New("unknown register")
)

// PtraceError reports a failed trace primitive. Op names the kernel request.
type PtraceError struct {
	Op   string
	Addr uintptr
	Err  error
}

func (e *PtraceError) Error() string {
	if e.Addr != 0 {
		return fmt.Sprintf("%s at %#x: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PtraceError) Unwrap() error {
	return e.Err
}

// WaitError reports a failed wait4. The stop was not classified.
type WaitError struct {
	Pid int
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("wait4 pid %d: %v", e.Pid, e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}
