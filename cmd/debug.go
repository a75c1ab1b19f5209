/*
Copyright © 2021 hit.zhangjie@gmail.com

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
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/hitzhangjie/bdbg/cmd/debug"
	"github.com/hitzhangjie/bdbg/pkg/target"
)

const (
	BuildExecName = "./__debug_bin__"
)

// debugCmd represents the debug command
var debugCmd = &cobra.Command{
	Use:   "debug [package] [-- args...]",
	Short: "build and debug go program",
	Long: `build and debug go program.

The package is built with optimizations and inlining disabled, the binary is
removed when the session ends.`,
	RunE: func(cmd *cobra.Command, args []string) error {

		// build and run tracee
		pkg, progArgs := args, []string(nil)
		if dash := cmd.ArgsLenAtDash(); dash >= 0 {
			pkg, progArgs = args[:dash], args[dash:]
		}
		switch len(pkg) {
		case 0:
			pkg = []string{"."}
		case 1:
		default:
			return fmt.Errorf("expect one package, got %d", len(pkg))
		}

		cmdArgs := []string{"build", "-gcflags=all=-N -l", "-o", BuildExecName}
		cmdArgs = append(cmdArgs, pkg...)
		buildCmd := exec.Command("go", cmdArgs...)

		if buf, err := buildCmd.CombinedOutput(); err != nil {
			fmt.Fprintf(os.Stderr, "build error: %v\n", err)
			fmt.Fprintf(os.Stderr, "\terrmsg: %s\n", string(buf))
			return err
		}
		fmt.Printf("build ok\n")

		// start tracee and wait tracee stopped
		dbp, err := target.NewProcess(BuildExecName, progArgs, targetOptions()...)
		if err != nil {
			return err
		}
		target.DBPProcess = dbp

		if err := dbp.Launch(); err != nil {
			dbp.Close()
			os.RemoveAll(BuildExecName)
			return err
		}
		return nil
	},
	PostRun: func(cmd *cobra.Command, args []string) {
		defer os.RemoveAll(BuildExecName)

		// after debugger session finished, we should kill tracee because it's started by debugger
		debug.CurrentSession = debug.NewDebugSession(target.DBPProcess, cfg).AtExit(debug.Cleanup)
		debug.CurrentSession.Start()
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
}
