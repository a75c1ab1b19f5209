package debug

import (
	"fmt"

	"github.com/hitzhangjie/bdbg/pkg/logflags"
	"github.com/hitzhangjie/bdbg/pkg/target"
)

// stepOverBreakpoint executes the instruction under the breakpoint with its
// original byte in place and arms the trap again. It does nothing unless the
// tracee is about to run the breakpoint address.
//
// When the tracee stopped on our trap the pc is one trap width past the
// address, it is rewound first.
func (s *DebugSession) stepOverBreakpoint() (stepped bool, ev target.StopEvent, err error) {
	if !s.bp.Enabled() {
		s.atBreakpoint = false
		return false, ev, nil
	}
	if err = s.regs.Fetch(); err != nil {
		return false, ev, fmt.Errorf("get regs error: %v", err)
	}

	addr := s.bp.Addr
	pc := s.regs.PC()
	if !s.atBreakpoint && pc != uint64(addr) {
		return false, ev, nil
	}
	s.log.Debugf("step over breakpoint %d at %#x, pc %#x", s.bp.ID, addr, pc)

	if err = s.bp.Disable(); err != nil {
		return false, ev, fmt.Errorf("clear breakpoint err: %v", err)
	}
	if s.atBreakpoint {
		// rewind pc by trap width
		if err = s.regs.SetPC(uint64(addr)); err != nil {
			return false, ev, s.rearm(fmt.Errorf("rewind pc error: %v", err))
		}
		s.atBreakpoint = false
	}

	ev, err = s.proc.SingleStep()
	if err != nil {
		return true, ev, s.rearm(fmt.Errorf("single step error: %v", err))
	}
	if ev.Terminal() {
		return true, ev, nil
	}
	if err = s.bp.Enable(addr); err != nil {
		return true, ev, fmt.Errorf("restore breakpoint err: %v", err)
	}
	return true, ev, nil
}

// removeBreakpoint disables the breakpoint. A tracee sitting on our trap gets
// its pc back on the breakpoint address so the original instruction runs.
func (s *DebugSession) removeBreakpoint() error {
	if !s.bp.Enabled() {
		s.atBreakpoint = false
		return s.bp.Disable()
	}
	if err := s.bp.Disable(); err != nil {
		return fmt.Errorf("clear breakpoint err: %v", err)
	}
	if !s.atBreakpoint {
		return nil
	}

	if err := s.regs.Fetch(); err != nil {
		return s.rearm(fmt.Errorf("get regs error: %v", err))
	}
	if err := s.regs.SetPC(uint64(s.bp.Addr)); err != nil {
		return s.rearm(fmt.Errorf("rewind pc error: %v", err))
	}
	s.atBreakpoint = false
	return nil
}

// rearm puts the trap back after a failed recovery so the breakpoint and the
// pending rewind survive until the next attempt.
func (s *DebugSession) rearm(cause error) error {
	if s.proc.Exited() {
		return cause
	}
	if err := s.bp.Enable(s.bp.Addr); err != nil {
		return fmt.Errorf("%v, restore breakpoint err: %v", cause, err)
	}
	return cause
}

// afterStop records whether a stop is a hit of our breakpoint and shows
// where the tracee is. Only a continue can run into the trap, a single step
// never executes it.
func (s *DebugSession) afterStop(ev target.StopEvent, continued bool) {
	s.atBreakpoint = false
	if ev.Terminal() {
		return
	}
	if err := s.regs.Fetch(); err != nil {
		fmt.Fprintf(s.errOut, "get regs error: %v\n", err)
		return
	}
	pc := s.regs.PC()
	if logflags.Session() {
		s.log.Debugf("stop %v, regs %+v", ev, s.regs.Snapshot())
	}

	if continued && ev.Kind == target.StopTrap && s.bp.Hit(pc) {
		s.atBreakpoint = true
		fmt.Fprintf(s.out, "Breakpoint %d hit at 0x%016x\n", s.bp.ID, s.bp.Addr)
		return
	}
	what := "single step"
	if continued {
		what = "continue"
	}
	fmt.Fprintf(s.out, "%s ok, current PC: %#x\n", what, pc)
}
