package debug

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stepCmd = &cobra.Command{
	Use:     "step",
	Short:   "执行一条指令",
	Aliases: []string{"s", "stepi", "si"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupCtrlFlow,
	},
	RunE: func(cmd *cobra.Command, args []string) error {

		s, err := session()
		if err != nil {
			return err
		}

		// 停在断点处时，单步执行的就是断点处的原指令
		stepped, ev, err := s.stepOverBreakpoint()
		if err != nil {
			return err
		}
		if !stepped {
			if ev, err = s.proc.SingleStep(); err != nil {
				return fmt.Errorf("single step error: %v", err)
			}
		}
		s.afterStop(ev, false)
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(stepCmd)
}
