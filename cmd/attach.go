/*
Copyright © 2020 hit.zhangjie@gmail.com

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/bdbg/cmd/debug"
	"github.com/hitzhangjie/bdbg/pkg/target"
)

// attachCmd represents the attach command
var attachCmd = &cobra.Command{
	Use:   "attach <traceePID>",
	Short: "调试运行中进程",
	Long: `调试运行中进程。

调试会话结束时会恢复断点处的原指令并detach，被调试进程继续运行。`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%s invalid traceePID", args[0])
		}

		dbp, err := target.AttachProcess(pid, targetOptions()...)
		if err != nil {
			return err
		}
		target.DBPProcess = dbp
		return nil
	},
	PostRun: func(cmd *cobra.Command, args []string) {
		// after debugger session finished, we should detach tracee because it's started by others
		debug.CurrentSession = debug.NewDebugSession(target.DBPProcess, cfg).AtExit(debug.Cleanup)
		debug.CurrentSession.Start()
	},
}

func init() {
	rootCmd.AddCommand(attachCmd)
}
