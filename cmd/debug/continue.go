package debug

import (
	"fmt"

	"github.com/hitzhangjie/bdbg/pkg/target"
	"github.com/spf13/cobra"
)

var continueCmd = &cobra.Command{
	Use:   "continue",
	Short: "运行到下个断点",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupCtrlFlow,
	},
	Aliases: []string{"c", "cont"},
	RunE: func(cmd *cobra.Command, args []string) error {

		s, err := session()
		if err != nil {
			return err
		}

		// 断点处的原指令需要先单步执行
		stepped, ev, err := s.stepOverBreakpoint()
		if err != nil {
			return err
		}
		if stepped && ev.Kind != target.StopTrap {
			s.afterStop(ev, true)
			return nil
		}

		ev, err = s.proc.Continue()
		if err != nil {
			return fmt.Errorf("continue error: %v", err)
		}
		s.afterStop(ev, true)
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(continueCmd)
}
