package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mql-organizer",
	Short: "Collect MetaTrader MQL files into one deduplicated folder",
	Long: `MQL Organizer gathers MetaTrader source files from a directory tree into a
single output folder.

Features:
- walks the search directory for .mq4, .mq5 and .mqh files (optionally .ex4/.ex5)
- keeps the MQL4/MQL5 layout for files found under a terminal data folder
- skips exact duplicates by content checksum
- renames same-named files with different content to name(1).ext, name(2).ext, ...
- writes a FILE_REPORT.json manifest, optionally as Excel and SQLite too`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/mql-organizer/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-file", "", "append JSON logs to this file")
}
