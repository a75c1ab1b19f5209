package debug

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var memoryCmd = &cobra.Command{
	Use:   "x [addr] [len]",
	Short: "以十六进制和ASCII打印内存",
	Long: `以十六进制和ASCII打印内存。

不指定地址时从上次读取结束的位置继续，首次使用时从当前PC开始。
不指定长度时使用配置项 dump-length。`,
	Aliases: []string{"mem", "examine"},
	Annotations: map[string]string{
		cmdGroupAnnotation: cmdGroupInfo,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 2 {
			return errors.New("usage: x [addr] [len]")
		}

		s, err := session()
		if err != nil {
			return err
		}

		var (
			addr   uint64
			length = s.cfg.DumpLength
		)
		switch {
		case len(args) > 0:
			if addr, err = parseAddress(args[0]); err != nil {
				return err
			}
		case s.mem.LastAddr() != 0:
			addr = uint64(s.mem.LastAddr())
		default:
			if err := s.regs.Fetch(); err != nil {
				return fmt.Errorf("failed to read registers: %v", err)
			}
			addr = s.regs.PC()
		}
		if len(args) > 1 {
			n, err := strconv.ParseUint(args[1], 0, 31)
			if err != nil {
				return fmt.Errorf("invalid length %q: %v", args[1], err)
			}
			length = int(n)
		}

		return s.mem.Dump(uintptr(addr), length)
	},
}

func init() {
	debugRootCmd.AddCommand(memoryCmd)
}
