package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Log         LogConfig         `koanf:"log" yaml:"log"`
	Runtime     RuntimeConfig     `koanf:"runtime" yaml:"runtime"`
	Sandbox     SandboxConfig     `koanf:"sandbox" yaml:"sandbox"`
	Subject     SubjectConfig     `koanf:"subject" yaml:"subject"`
	Credentials CredentialsConfig `koanf:"credentials" yaml:"credentials"`
	Scenario    ScenarioConfig    `koanf:"scenario" yaml:"scenario"`
	Journal     JournalConfig     `koanf:"journal" yaml:"journal"`
	Lock        LockConfig        `koanf:"lock" yaml:"lock"`
}

type LogConfig struct {
	Level      string `koanf:"level" yaml:"level"`
	File       string `koanf:"file" yaml:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups" yaml:"max_backups"`
}

// RuntimeConfig describes how containers are launched.
type RuntimeConfig struct {
	DockerBin string `koanf:"docker_bin" yaml:"docker_bin"`
	Image     string `koanf:"image" yaml:"image"`
	Label     string `koanf:"label" yaml:"label"`
}

// SandboxConfig describes the host directories and in-container mount points of each client.
type SandboxConfig struct {
	BaseDir       string `koanf:"base_dir" yaml:"base_dir"`
	ConfigMount   string `koanf:"config_mount" yaml:"config_mount"`
	DataMount     string `koanf:"data_mount" yaml:"data_mount"`
	DiscoveryLink string `koanf:"discovery_link" yaml:"discovery_link"`
	Keep          bool   `koanf:"keep" yaml:"keep"`
}

// SubjectConfig describes the synchronization tool under test.
type SubjectConfig struct {
	Command        string `koanf:"command" yaml:"command"`
	CommandTimeout string `koanf:"command_timeout" yaml:"command_timeout"`
}

type CredentialsConfig struct {
	CredentialEnv string `koanf:"credential_env" yaml:"credential_env"`
	TokenEnv      string `koanf:"token_env" yaml:"token_env"`
	Require       bool   `koanf:"require" yaml:"require"`
}

type ScenarioConfig struct {
	// Secret pins the shared encryption key; empty generates one per run.
	Secret string `koanf:"secret" yaml:"secret"`
	// OrderSeed pins the randomized client ordering; zero draws a fresh seed per run.
	OrderSeed int64 `koanf:"order_seed" yaml:"order_seed"`
}

type JournalConfig struct {
	Dir string `koanf:"dir" yaml:"dir"`
}

type LockConfig struct {
	Dir      string `koanf:"dir" yaml:"dir"`
	Timeout  string `koanf:"timeout" yaml:"timeout"`
	Retry    string `koanf:"retry" yaml:"retry"`
	MaxRetry int    `koanf:"max_retry" yaml:"max_retry"`
	StaleTTL string `koanf:"stale_ttl" yaml:"stale_ttl"`
}

const (
	DefaultLogLevel           = "info"
	DefaultLogMaxSizeMB       = 10
	DefaultLogMaxBackups      = 3
	DefaultDockerBin          = "docker"
	DefaultImage              = "lyncser-test"
	DefaultLabel              = "synccheck.managed=true"
	DefaultSandboxBaseDir     = "~/.synccheck/sandboxes"
	DefaultConfigMount        = "/lyncser_config"
	DefaultDataMount          = "/lyncser_data"
	DefaultDiscoveryLink      = "~/.config/lyncser"
	DefaultSandboxKeep        = false
	DefaultSubjectCommand     = "lyncser"
	DefaultSubjectTimeout     = ""
	DefaultCredentialEnv      = "LYNCSER_CREDENTIALS"
	DefaultTokenEnv           = "LYNCSER_TOKEN"
	DefaultCredentialsRequire = true
	DefaultJournalDir         = "~/.synccheck/runs"
	DefaultLockDir            = "~/.synccheck"
	DefaultLockTimeout        = "5s"
	DefaultLockRetry          = "100ms"
	DefaultLockMaxRetry       = 50
	DefaultLockStaleTTL       = "6h"
	DefaultScenarioName       = "upload-download"
	DefaultConfigFileName     = "config.yaml"
	DefaultConfigDirName      = ".synccheck"
	EnvPrefix                 = "SYNCCHECK_"
	DefaultScheduleSpec       = "@every 6h"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	// Hardcoded Defaults
	defaults := map[string]interface{}{
		"log.level":                  DefaultLogLevel,
		"log.max_size_mb":            DefaultLogMaxSizeMB,
		"log.max_backups":            DefaultLogMaxBackups,
		"runtime.docker_bin":         DefaultDockerBin,
		"runtime.image":              DefaultImage,
		"runtime.label":              DefaultLabel,
		"sandbox.base_dir":           DefaultSandboxBaseDir,
		"sandbox.config_mount":       DefaultConfigMount,
		"sandbox.data_mount":         DefaultDataMount,
		"sandbox.discovery_link":     DefaultDiscoveryLink,
		"sandbox.keep":               DefaultSandboxKeep,
		"subject.command":            DefaultSubjectCommand,
		"subject.command_timeout":    DefaultSubjectTimeout,
		"credentials.credential_env": DefaultCredentialEnv,
		"credentials.token_env":      DefaultTokenEnv,
		"credentials.require":        DefaultCredentialsRequire,
		"journal.dir":                DefaultJournalDir,
		"lock.dir":                   DefaultLockDir,
		"lock.timeout":               DefaultLockTimeout,
		"lock.retry":                 DefaultLockRetry,
		"lock.max_retry":             DefaultLockMaxRetry,
		"lock.stale_ttl":             DefaultLockStaleTTL,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	// Config file loading
	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, DefaultConfigDirName, DefaultConfigFileName)
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	// Environment Variables
	k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", -1)
	}), nil)

	// CLI Flags
	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if err := normalizePathFields(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
