package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/harunnryd/synccheck/internal/config"
	"github.com/harunnryd/synccheck/internal/journal"
	"github.com/harunnryd/synccheck/internal/runlock"

	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove leftover sandboxes and stale locks",
	Long: `Remove every container carrying the harness label together with the sandbox
directories under sandbox.base_dir. Sandboxes kept with --sandbox.keep are removed too.
A run lock older than lock.stale_ttl is removed only with --force.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		force, _ := cmd.Flags().GetBool("force")
		staleTTL, err := config.DurationOrDefault(loadedCfg.Lock.StaleTTL, config.DefaultLockStaleTTL)
		if err != nil {
			return fmt.Errorf("lock.stale_ttl: %w", err)
		}
		if _, err := runlock.CleanupStale(loadedCfg.Lock.Dir, staleTTL, force); err != nil {
			return err
		}

		rt, err := newRuntime(loadedCfg.Runtime.DockerBin)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		return withRunLock(commandContext(cmd), loadedCfg, lockOwner("cleanup"), func() error {
			if err := removeContainers(commandContext(cmd), out, rt, loadedCfg); err != nil {
				return err
			}
			if err := removeSandboxDirs(out, loadedCfg.Sandbox.BaseDir); err != nil {
				return err
			}

			keep, _ := cmd.Flags().GetDuration("journal-keep")
			if keep > 0 {
				return pruneJournal(out, loadedCfg.Journal.Dir, keep)
			}
			return nil
		})
	},
}

type containerRemover interface {
	List(ctx context.Context, labels map[string]string) ([]string, error)
	Remove(ctx context.Context, containerID string) error
}

func removeContainers(ctx context.Context, out io.Writer, rt containerRemover, c *config.Config) error {
	ids, err := rt.List(ctx, managedLabels(c))
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := rt.Remove(ctx, id); err != nil {
			return fmt.Errorf("remove container %s: %w", id, err)
		}
		slog.Debug("Removed container", "container_id", id)
	}
	fmt.Fprintf(out, "Removed %d container(s)\n", len(ids))
	return nil
}

func removeSandboxDirs(out io.Writer, baseDir string) error {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintln(out, "Removed 0 sandbox directories")
			return nil
		}
		return err
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := os.RemoveAll(filepath.Join(baseDir, entry.Name())); err != nil {
			return err
		}
		removed++
	}
	fmt.Fprintf(out, "Removed %d sandbox directories\n", removed)
	return nil
}

func pruneJournal(out io.Writer, dir string, keep time.Duration) error {
	store, err := journal.Open(dir)
	if err != nil {
		return err
	}
	removed, err := store.Prune(time.Now().Add(-keep))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Pruned %d journal record(s)\n", removed)
	return nil
}

func init() {
	cleanupCmd.Flags().Bool("force", false, "remove a stale run lock")
	cleanupCmd.Flags().Duration("journal-keep", 0, "also prune journal records older than this (0 keeps all)")
	rootCmd.AddCommand(cleanupCmd)
}
