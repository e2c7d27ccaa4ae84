package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/harunnryd/synccheck/internal/config"
	"github.com/harunnryd/synccheck/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	cfg       *config.Config
	logCloser io.Closer
)

// errScenariosFailed reports that at least one scenario ran and failed; the table already
// says which, so Execute prints nothing more.
var errScenariosFailed = errors.New("one or more scenarios failed")

var rootCmd = &cobra.Command{
	Use:           "synccheck",
	Short:         "Acceptance harness for lyncser",
	Long:          `synccheck drives isolated lyncser clients in containers and checks that they converge on identical file contents.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cmd)
		if err != nil {
			return err
		}

		logCloser = logger.SetupWithOptions(logger.Options{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errScenariosFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.synccheck/config.yaml)")
	rootCmd.PersistentFlags().String("log.level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("runtime.image", config.DefaultImage, "container image with the subject tool installed")
	rootCmd.PersistentFlags().Bool("sandbox.keep", config.DefaultSandboxKeep, "keep containers and sandbox directories after each run")
	rootCmd.PersistentFlags().Int64("scenario.order_seed", 0, "seed for randomized client ordering (0 draws a new one)")
}
