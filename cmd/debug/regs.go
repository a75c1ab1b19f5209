package debug

import (
	"github.com/spf13/cobra"
)

var regsCmd = &cobra.Command{
	Use:     "regs",
	Short:   "打印通用寄存器",
	Aliases: []string{"r", "registers"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := session()
		if err != nil {
			return err
		}
		return s.regs.Dump()
	},
}

func init() {
	debugRootCmd.AddCommand(regsCmd)
}
