package debug

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var breakCmd = &cobra.Command{
	Use:   "break <addr>",
	Short: "在指令地址处添加断点",
	Long: `在指令地址处添加断点，地址支持十进制、0x十六进制、0八进制。

同一时刻只有一个断点，已有断点时会先移除旧断点再设置新断点。`,
	Aliases: []string{"b", "breakpoint"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupBreakpoints,
	},
	RunE: func(cmd *cobra.Command, args []string) error {

		if len(args) != 1 {
			return errors.New("usage: break <addr>")
		}

		s, err := session()
		if err != nil {
			return err
		}

		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		if s.bp.Enabled() {
			if s.bp.Addr == uintptr(addr) {
				fmt.Fprintf(s.out, "Breakpoint already set at 0x%016x\n", addr)
				return nil
			}
			// move breakpoint
			if err := s.removeBreakpoint(); err != nil {
				return err
			}
		}

		if err := s.bp.Enable(uintptr(addr)); err != nil {
			return fmt.Errorf("add breakpoint error: %v", err)
		}
		return nil
	},
}

func init() {
	debugRootCmd.AddCommand(breakCmd)
}

func parseAddress(locStr string) (uint64, error) {
	v, err := strconv.ParseUint(locStr, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %v", locStr, err)
	}
	return v, nil
}
