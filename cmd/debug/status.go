package debug

import (
	"fmt"
	"strings"

	"github.com/hitzhangjie/bdbg/pkg/target"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "显示被调试进程及断点状态",
	Aliases: []string{"info", "breaks", "bs"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}

		p := s.proc
		fmt.Fprintf(s.out, "Process: %d (%s)\n", p.Pid(), p.Kind)
		fmt.Fprintf(s.out, "Command: %s\n", strings.TrimSpace(p.Path+" "+strings.Join(p.Args, " ")))

		var state string
		switch {
		case p.Detached():
			state = "detached"
		case p.Exited():
			state = "exited (" + p.LastStop().String() + ")"
		case p.Running():
			state = "running"
		default:
			state = "stopped (" + p.LastStop().Kind.String() + ")"
			if st := p.State(); st != 0 {
				state += ", " + target.StateString(st)
			}
		}
		fmt.Fprintf(s.out, "State:   %s\n", state)

		if s.bp.Enabled() {
			hit := ""
			if s.atBreakpoint {
				hit = ", hit"
			}
			fmt.Fprintf(s.out, "Breakpoint %d: 0x%016x (original byte: 0x%02x%s)\n", s.bp.ID, s.bp.Addr, s.bp.Orig, hit)
		} else {
			fmt.Fprintln(s.out, "Breakpoint: none")
		}
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(statusCmd)
}
