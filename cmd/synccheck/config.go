package main

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/synccheck/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

//go:embed templates/config.yaml
var embeddedDefaultConfig []byte

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the harness configuration",
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the resolved configuration",
	Long:  `Print the configuration after defaults, the config file, SYNCCHECK_ variables and flags are layered. The shared secret is masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return renderConfig(cmd.OutOrStdout(), redactConfigSecrets(loadedCfg))
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long:  `Write the default configuration to $HOME/.synccheck/config.yaml unless a file is already there.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		path := filepath.Join(home, config.DefaultConfigDirName, config.DefaultConfigFileName)
		created, err := writeDefaultConfig(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if !created {
			fmt.Fprintf(out, "Config already exists at %s (remove it to reinitialize)\n", path)
			return nil
		}
		fmt.Fprintf(out, "✓ Initialized config at %s\n", path)
		fmt.Fprintf(out, "Export %s and %s, build the %s image, then run 'synccheck run'.\n",
			config.DefaultCredentialEnv, config.DefaultTokenEnv, config.DefaultImage)
		return nil
	},
}

// writeDefaultConfig creates path from the embedded template. An existing file is left
// untouched and reported as not created.
func writeDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("check config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	content := strings.TrimSpace(string(embeddedDefaultConfig)) + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return false, fmt.Errorf("write config to %s: %w", path, err)
	}
	return true, nil
}

func renderConfig(w io.Writer, c *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

func redactConfigSecrets(in *config.Config) *config.Config {
	if in == nil {
		return nil
	}
	out := *in
	out.Scenario.Secret = maskSecret(out.Scenario.Secret)
	return &out
}

func maskSecret(secret string) string {
	switch {
	case secret == "":
		return ""
	case len(secret) <= 4:
		return "****"
	default:
		return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
	}
}

func init() {
	configCmd.AddCommand(configViewCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
