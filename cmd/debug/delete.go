package debug

import (
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete",
	Short:   "移除断点并恢复原指令",
	Aliases: []string{"d", "clear"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupBreakpoints,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		return s.removeBreakpoint()
	},
}

func init() {
	debugRootCmd.AddCommand(deleteCmd)
}
