package main

import (
	"context"
	"fmt"
	"io"

	"github.com/harunnryd/synccheck/internal/journal"
	"github.com/harunnryd/synccheck/internal/report"
	"github.com/harunnryd/synccheck/internal/scenario"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [scenario...]",
	Short: "Run convergence scenarios",
	Long: `Run one or more named scenarios against freshly provisioned sandboxes.
With no arguments the canonical upload-download scenario runs. Each scenario resets the
shared remote store, so only one harness may run per host at a time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		all, _ := cmd.Flags().GetBool("all")
		selected, err := scenario.DefaultRegistry().Select(args, all)
		if err != nil {
			return err
		}

		formatter, err := outputFormatter(cmd)
		if err != nil {
			return err
		}

		h, err := buildHarness(loadedCfg)
		if err != nil {
			return err
		}

		ctx, stop := interruptible(commandContext(cmd), cmd.ErrOrStderr())
		defer stop()

		var results []scenario.Result
		err = withRunLock(ctx, loadedCfg, lockOwner("run"), func() error {
			results = h.runner.RunAll(ctx, selected)
			return nil
		})
		if err != nil {
			return err
		}

		return printResults(ctx, cmd.OutOrStdout(), formatter, results)
	},
}

func outputFormatter(cmd *cobra.Command) (report.Formatter, error) {
	raw, _ := cmd.Flags().GetString("output")
	format, err := report.ParseOutputFormat(raw)
	if err != nil {
		return nil, err
	}
	return report.New(format)
}

func printResults(ctx context.Context, w io.Writer, formatter report.Formatter, results []scenario.Result) error {
	records := make([]journal.RunRecord, 0, len(results))
	failed := false
	for _, res := range results {
		records = append(records, res.Record())
		if !res.Passed() {
			failed = true
		}
	}

	out, err := formatter.FormatRuns(records)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	if failed {
		return errScenariosFailed
	}
	return nil
}

func init() {
	runCmd.Flags().Bool("all", false, "run every registered scenario")
	runCmd.Flags().StringP("output", "o", string(report.OutputFormatTable), "output format (table, json, yaml)")
	rootCmd.AddCommand(runCmd)
}
