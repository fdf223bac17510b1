package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/moyu-x/mql-organizer/config"
	"github.com/moyu-x/mql-organizer/internal"
	"github.com/moyu-x/mql-organizer/internal/app"
)

// flag name -> config key
var organizeFlagKeys = map[string]string{
	"search":    "search.path",
	"output":    "output.path",
	"compiled":  "search.compiled",
	"exclude":   "search.exclude",
	"excel":     "output.excel",
	"sqlite":    "output.sqlite",
	"seed":      "output.seed",
	"algorithm": "hash.algorithm",
	"workers":   "performance.workers",
	"log-level": "logging.level",
	"log-file":  "logging.file",
}

var organizeCmd = &cobra.Command{
	Use:   "organize [search-path]",
	Short: "Copy MQL files from the search path into the output folder",
	Long: `Walks the search path, copies every MQL file into the output folder and
writes FILE_REPORT.json next to them.

Files with the same content are copied once. Files that share a name but
differ in content are renamed to name(1).ext, name(2).ext, ... and listed in
the report's diff_files. Files under an MQL4/MQL5 folder keep their relative
layout; everything else goes to UNORGANIZED.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd)
	},
	RunE: runOrganize,
}

func init() {
	rootCmd.AddCommand(organizeCmd)

	f := organizeCmd.Flags()
	f.StringP("search", "s", "", "directory to search for MQL files")
	f.StringP("output", "o", internal.DefaultSavePath, "directory to save files and the report to")
	f.Bool("compiled", false, "also gather compiled .ex4 and .ex5 files")
	f.StringSlice("exclude", internal.DefaultExclude, "doublestar patterns to skip during the walk")
	f.Bool("excel", false, "also write the report as .xlsx")
	f.Bool("sqlite", false, "also write the report to a SQLite database")
	f.Bool("seed", false, "treat files already in the output folder as placed")
	f.String("algorithm", internal.DefaultHashAlgorithm, "checksum algorithm: blake2b or xxhash")
	f.IntP("workers", "w", internal.DefaultWorkers, "number of hashing workers")
	f.Bool("tui", false, "show the interactive progress screen")
}

// bindFlags puts the command line over config file and environment values.
func bindFlags(cmd *cobra.Command) error {
	for name, key := range organizeFlagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("%w: binding --%s: %w", internal.ErrConfig, name, err)
		}
	}
	return nil
}

func runOrganize(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		viper.Set("search.path", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	useTUI, _ := cmd.Flags().GetBool("tui")
	if useTUI && !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("%w: --tui needs a terminal", internal.ErrConfig)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := app.RunOrganize(ctx, app.OrganizeOptions{Config: cfg, TUI: useTUI})
	if out != nil && out.Summary != nil {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, renderSummary(out.Summary, out.Report))
		if out.Report != nil {
			fmt.Fprintf(w, "Saved to %s\n", out.Report.SavePath)
		}
	}
	return err
}
