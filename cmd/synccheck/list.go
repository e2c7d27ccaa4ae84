package main

import (
	"fmt"

	"github.com/harunnryd/synccheck/internal/journal"
	"github.com/harunnryd/synccheck/internal/report"
	"github.com/harunnryd/synccheck/internal/scenario"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available scenarios",
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := outputFormatter(cmd)
		if err != nil {
			return err
		}

		infos := lo.Map(scenario.DefaultRegistry().List(), func(sc scenario.Scenario, _ int) report.ScenarioInfo {
			return report.ScenarioInfo{Name: sc.Name, Description: sc.Description}
		})
		out, err := formatter.FormatScenarios(infos)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show journaled scenario runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		formatter, err := outputFormatter(cmd)
		if err != nil {
			return err
		}

		store, err := journal.Open(loadedCfg.Journal.Dir)
		if err != nil {
			return err
		}
		records, err := store.List()
		if err != nil {
			return err
		}

		if name, _ := cmd.Flags().GetString("scenario"); name != "" {
			records = lo.Filter(records, func(rec journal.RunRecord, _ int) bool { return rec.Scenario == name })
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(records) > limit {
			records = records[len(records)-limit:]
		}

		out, err := formatter.FormatRuns(records)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	listCmd.Flags().StringP("output", "o", string(report.OutputFormatTable), "output format (table, json, yaml)")
	historyCmd.Flags().StringP("output", "o", string(report.OutputFormatTable), "output format (table, json, yaml)")
	historyCmd.Flags().Int("limit", 20, "show only the most recent runs (0 for all)")
	historyCmd.Flags().String("scenario", "", "show only runs of this scenario")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
}
