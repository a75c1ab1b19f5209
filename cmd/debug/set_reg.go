package debug

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var setRegCmd = &cobra.Command{
	Use:   "setreg <reg> <value>",
	Short: "设置寄存器值",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 检查参数数量
		if len(args) != 2 {
			return errors.New("usage: setreg <reg> <value>")
		}

		s, err := session()
		if err != nil {
			return err
		}

		regName := strings.ToLower(args[0])
		valueStr := args[1]

		// 解析值参数
		value, err := strconv.ParseUint(valueStr, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid value format: %s", valueStr)
		}

		// 读取当前寄存器状态
		if err := s.regs.Fetch(); err != nil {
			return fmt.Errorf("failed to read registers: %v", err)
		}
		pc := s.regs.PC()

		if err := s.regs.Set(regName, value); err != nil {
			return fmt.Errorf("failed to write register %s: %v", regName, err)
		}
		if s.regs.PC() != pc {
			s.atBreakpoint = false
		}

		fmt.Fprintf(s.out, "Register %s set to %#x\n", regName, value)
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(setRegCmd)
}
