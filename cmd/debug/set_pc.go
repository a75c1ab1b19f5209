package debug

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var setPCCmd = &cobra.Command{
	Use:   "setpc <addr>",
	Short: "设置指令指针",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupCtrlFlow,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("usage: setpc <addr>")
		}

		s, err := session()
		if err != nil {
			return err
		}

		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		if err := s.regs.Fetch(); err != nil {
			return fmt.Errorf("failed to read registers: %v", err)
		}
		if err := s.regs.SetPC(addr); err != nil {
			return fmt.Errorf("failed to write pc: %v", err)
		}
		// the trap we stopped on no longer matters
		s.atBreakpoint = false

		fmt.Fprintf(s.out, "PC set to 0x%016x\n", addr)
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(setPCCmd)
}
