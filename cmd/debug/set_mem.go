package debug

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var setMemCmd = &cobra.Command{
	Use:   "setmem <addr> <value>",
	Short: "设置指定内存位置的值",
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 检查参数数量
		if len(args) != 2 {
			return errors.New("usage: setmem <addr> <value>")
		}

		s, err := session()
		if err != nil {
			return err
		}

		// 解析地址参数
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		// 解析值参数，只写一个字节
		valueStr := args[1]
		value, err := strconv.ParseUint(valueStr, 0, 8)
		if err != nil {
			return fmt.Errorf("invalid byte value: %s", valueStr)
		}

		if s.bp.Enabled() && s.bp.Addr == uintptr(addr) {
			return fmt.Errorf("0x%x holds the breakpoint, delete it first", addr)
		}

		if err := s.mem.PokeByte(uintptr(addr), byte(value)); err != nil {
			return fmt.Errorf("failed to write memory at address 0x%x: %v", addr, err)
		}
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(setMemCmd)
}
