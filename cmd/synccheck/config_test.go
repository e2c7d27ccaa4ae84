package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/synccheck/internal/config"

	"github.com/spf13/cobra"
)

func TestConfigInitCmd(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)

	if err := configInitCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("Config init failed: %v", err)
	}

	configPath := filepath.Join(tmpDir, ".synccheck", "config.yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Config file not created at %s: %v", configPath, err)
	}
	if !strings.Contains(string(data), "image: lyncser-test") {
		t.Errorf("Template missing default image:\n%s", data)
	}
	if !strings.Contains(out.String(), "Initialized config") {
		t.Errorf("Unexpected output: %s", out.String())
	}

	out.Reset()
	if err := configInitCmd.RunE(cmd, nil); err != nil {
		t.Errorf("Config init should succeed when config exists: %v", err)
	}
	if !strings.Contains(out.String(), "already exists") {
		t.Errorf("Expected existing-config notice, got: %s", out.String())
	}
}

func TestEmbeddedTemplateMatchesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, embeddedDefaultConfig, 0644); err != nil {
		t.Fatalf("Failed to write template: %v", err)
	}

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "")
	if err := cmd.Flags().Set("config", configPath); err != nil {
		t.Fatalf("Failed to set config flag: %v", err)
	}

	fromTemplate, err := config.Load(cmd)
	if err != nil {
		t.Fatalf("Template does not load: %v", err)
	}
	defaults, err := config.Load(nil)
	if err != nil {
		t.Fatalf("Defaults do not load: %v", err)
	}

	if *fromTemplate != *defaults {
		t.Errorf("Template drifted from defaults:\ntemplate=%+v\ndefaults=%+v", *fromTemplate, *defaults)
	}
}

func TestConfigViewRedactsSecret(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SYNCCHECK_SCENARIO_SECRET", "166d8e96ae29d01dd155f840ac61657acfaa63bc24d15457183e9da03d33ef56")

	previous := cfg
	cfg = nil
	t.Cleanup(func() { cfg = previous })

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	if err := configViewCmd.RunE(cmd, nil); err != nil {
		t.Fatalf("Config view failed: %v", err)
	}

	view := out.String()
	if strings.Contains(view, "166d8e96ae29d01dd155f840ac61657acfaa63bc24d15457183e9da03d33ef56") {
		t.Error("Secret leaked in config view")
	}
	if !strings.Contains(view, "secret: 16****") {
		t.Errorf("Expected masked secret in view:\n%s", view)
	}
	if !strings.Contains(view, "docker_bin: docker") {
		t.Errorf("Expected snake_case keys in view:\n%s", view)
	}
}

func TestRedactConfigSecrets(t *testing.T) {
	original := &config.Config{Scenario: config.ScenarioConfig{Secret: "abcdef123456", OrderSeed: 9}}

	redacted := redactConfigSecrets(original)
	if redacted.Scenario.Secret != "ab********56" {
		t.Errorf("Unexpected masked secret %q", redacted.Scenario.Secret)
	}
	if redacted.Scenario.OrderSeed != 9 {
		t.Error("Expected non-secret fields to be preserved")
	}
	if original.Scenario.Secret != "abcdef123456" {
		t.Error("Expected original config to be untouched")
	}
	if redactConfigSecrets(nil) != nil {
		t.Error("Expected nil for nil config")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "abc", want: "****"},
		{in: "abcd", want: "****"},
		{in: "abcde", want: "ab*de"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
