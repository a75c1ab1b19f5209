package debug

import (
	"fmt"

	"github.com/hitzhangjie/bdbg/pkg/target"
	"github.com/spf13/cobra"
)

var exitCmd = &cobra.Command{
	Use:     "exit",
	Short:   "结束调试会话",
	Aliases: []string{"quit", "q"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupOthers,
	},
	Run: func(cmd *cobra.Command, args []string) {
		if CurrentSession != nil {
			CurrentSession.Stop()
		}
	},
}

func init() {
	debugRootCmd.AddCommand(exitCmd)
}

// Cleanup 清理调试会话
func Cleanup() {
	s := CurrentSession
	if s == nil || s.proc == nil {
		return
	}
	defer s.proc.Close()

	dbp := s.proc
	if dbp.Exited() {
		s.bp.Close()
		return
	}

	// 先恢复断点处的原指令，被调试进程才能继续正常执行
	if s.bp.Enabled() {
		if err := s.removeBreakpoint(); err != nil {
			fmt.Fprintf(s.errOut, "remove breakpoint, err: %v\n", err)
		}
	}

	// 根据被调试进程创建的方式，exec or attach，来决定如何做善后处理
	// - exec: kill traced process
	// - attach: detach traced process
	switch dbp.Kind {
	case target.EXEC:
		fmt.Fprintf(s.out, "tracee is run by tracer, kill it: %d\n", dbp.Pid())
		if err := dbp.Kill(); err != nil {
			fmt.Fprintf(s.errOut, "kill tracee: %d, err: %v\n", dbp.Pid(), err)
		}
	default:
		fmt.Fprintf(s.out, "tracee is an attached process, leave it running: %d\n", dbp.Pid())
		if err := dbp.Detach(); err != nil {
			fmt.Fprintf(s.errOut, "detach tracee: %d, err: %v\n", dbp.Pid(), err)
		}
	}
}
