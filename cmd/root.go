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
	"os"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hitzhangjie/bdbg/pkg/config"
	"github.com/hitzhangjie/bdbg/pkg/logflags"
	"github.com/hitzhangjie/bdbg/pkg/target"
)

var (
	cfgFile string
	cfg     = config.Default()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bdbg",
	Short: "bdbg is a ptrace based debugger for linux/amd64 programs",
	Long: `bdbg launches a program under ptrace, or attaches to a running one, and
lets you set a software breakpoint, single step and inspect or change
registers and memory of the stopped process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = c
		return logflags.Setup(cfg.Log, cfg.LogOutput, os.Stderr)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	config.SetDefaults(viper.GetViper())

	d := config.Default()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.bdbg.yaml)")
	flags.Bool(config.KeyLog, d.Log, "enable debugger logging")
	flags.String(config.KeyLogOutput, d.LogOutput, "comma separated list of layers to log: target, session")
	flags.Int(config.KeyDumpLength, d.DumpLength, "bytes shown by a memory dump without a length")

	bindFlags(viper.GetViper(), flags, config.KeyLog, config.KeyLogOutput, config.KeyDumpLength)
}

// bindFlags lets flags given on the command line override the config file
// and the environment.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys ...string) {
	for _, key := range keys {
		v.BindPFlag(key, fs.Lookup(key))
	}
}

// targetOptions hands the target layer a logger when its logging is on.
func targetOptions() []target.Option {
	if !logflags.Target() {
		return nil
	}
	return []target.Option{target.WithLogger(logflags.TargetLogger())}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".bdbg" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".bdbg")
	}

	viper.SetEnvPrefix("BDBG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintf(os.Stderr, "read config %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
}
