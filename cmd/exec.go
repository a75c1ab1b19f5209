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
	"github.com/spf13/cobra"

	"github.com/hitzhangjie/bdbg/cmd/debug"
	"github.com/hitzhangjie/bdbg/pkg/target"
)

// execCmd represents the exec command
var execCmd = &cobra.Command{
	Use:   "exec <prog> [args...]",
	Short: "调试可执行程序",
	Long: `调试可执行程序。

程序在执行第一条指令前停止，调试会话结束时被调试进程会被杀死。`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// start tracee and wait tracee stopped
		dbp, err := target.NewProcess(args[0], args[1:], targetOptions()...)
		if err != nil {
			return err
		}
		target.DBPProcess = dbp

		if err := dbp.Launch(); err != nil {
			dbp.Close()
			return err
		}
		return nil
	},
	PostRun: func(cmd *cobra.Command, args []string) {
		// after debugger session finished, we should kill tracee because it's started by debugger
		debug.CurrentSession = debug.NewDebugSession(target.DBPProcess, cfg).AtExit(debug.Cleanup)
		debug.CurrentSession.Start()
	},
}

func init() {
	rootCmd.AddCommand(execCmd)

	// flags after <prog> belong to the tracee
	execCmd.Flags().SetInterspersed(false)
}
