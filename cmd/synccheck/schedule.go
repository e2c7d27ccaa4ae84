package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harunnryd/synccheck/internal/config"
	"github.com/harunnryd/synccheck/internal/scenario"
	"github.com/harunnryd/synccheck/internal/scheduler"

	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [scenario...]",
	Short: "Run scenarios repeatedly on a cron schedule",
	Long: `Run the selected scenarios every time the cron expression fires, journaling each run.
Runs never overlap. Use 'synccheck history' to inspect outcomes.`,
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

		spec, _ := cmd.Flags().GetString("cron")
		maxRuns, _ := cmd.Flags().GetInt("runs")

		h, err := buildHarness(loadedCfg)
		if err != nil {
			return err
		}

		sched, err := scheduler.New(spec, func(ctx context.Context) error {
			return runScheduled(ctx, loadedCfg, h, selected)
		})
		if err != nil {
			return err
		}

		if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
			for _, at := range sched.Upcoming(time.Now(), 5) {
				fmt.Fprintln(cmd.OutOrStdout(), at.Format(time.RFC3339))
			}
			return nil
		}

		ctx, stop := interruptible(commandContext(cmd), cmd.ErrOrStderr())
		defer stop()

		return sched.Run(ctx, maxRuns)
	},
}

func runScheduled(ctx context.Context, c *config.Config, h *harness, selected []scenario.Scenario) error {
	var results []scenario.Result
	err := withRunLock(ctx, c, lockOwner("schedule"), func() error {
		results = h.runner.RunAll(ctx, selected)
		return nil
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if !res.Passed() {
			failed++
		}
	}
	slog.Info("Scheduled pass complete", "scenarios", len(results), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

func init() {
	scheduleCmd.Flags().String("cron", config.DefaultScheduleSpec, "cron expression or descriptor (e.g. \"0 */6 * * *\", \"@every 6h\")")
	scheduleCmd.Flags().Bool("all", false, "run every registered scenario")
	scheduleCmd.Flags().Int("runs", 0, "stop after this many passes (0 runs until interrupted)")
	scheduleCmd.Flags().Bool("dry-run", false, "print the next fire times and exit")
	rootCmd.AddCommand(scheduleCmd)
}
