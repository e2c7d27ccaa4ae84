// Package subject describes the host-visible surface of the synchronization tool under test:
// the files it reads from its configuration directory and the commands it accepts.
package subject

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Configuration directory file names.
const (
	EncryptionKeyFile   = "encryption.key"
	GlobalConfigFile    = "globalConfig.yaml"
	LocalConfigFile     = "localConfig.yaml"
	CredentialsFile     = "credentials.json"
	TokenFile           = "token.json"
	DefaultGroup        = "all"
	CommandSync         = "sync"
	CommandDeleteRemote = "deleteAllRemoteFiles"
	FlagAssumeYes       = "-y"
)

// PathSelection is the global config document: for each group (tag), the absolute
// in-sandbox paths the tool must manage.
type PathSelection struct {
	Paths map[string][]string `yaml:"paths"`
}

func NewPathSelection() *PathSelection {
	return &PathSelection{Paths: make(map[string][]string)}
}

// Add appends absolute paths under group, skipping duplicates.
func (p *PathSelection) Add(group string, paths ...string) *PathSelection {
	if p.Paths == nil {
		p.Paths = make(map[string][]string)
	}
	for _, candidate := range paths {
		if !slices.Contains(p.Paths[group], candidate) {
			p.Paths[group] = append(p.Paths[group], candidate)
		}
	}
	return p
}

// Validate rejects empty group names and relative paths.
func (p *PathSelection) Validate() error {
	if p == nil || len(p.Paths) == 0 {
		return fmt.Errorf("path selection declares no groups")
	}
	for group, paths := range p.Paths {
		if strings.TrimSpace(group) == "" {
			return fmt.Errorf("path selection has an empty group name")
		}
		for _, candidate := range paths {
			if !path.IsAbs(candidate) {
				return fmt.Errorf("group %s: path %q is not absolute", group, candidate)
			}
		}
	}
	return nil
}

// Managed reports the paths selected for any of the given groups.
func (p *PathSelection) Managed(groups ...string) []string {
	var out []string
	for _, group := range groups {
		for _, candidate := range p.Paths[group] {
			if !slices.Contains(out, candidate) {
				out = append(out, candidate)
			}
		}
	}
	return out
}

func (p *PathSelection) Marshal() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	return encode(p)
}

func ParsePathSelection(content string) (*PathSelection, error) {
	var sel PathSelection
	if err := yaml.Unmarshal([]byte(content), &sel); err != nil {
		return nil, fmt.Errorf("decode path selection: %w", err)
	}
	if sel.Paths == nil {
		sel.Paths = make(map[string][]string)
	}
	return &sel, nil
}

// LocalConfig declares which groups this machine belongs to.
type LocalConfig struct {
	Tags []string `yaml:"tags"`
}

func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{Tags: []string{DefaultGroup}}
}

func (l *LocalConfig) Marshal() (string, error) {
	return encode(l)
}

func ParseLocalConfig(content string) (*LocalConfig, error) {
	var local LocalConfig
	if err := yaml.Unmarshal([]byte(content), &local); err != nil {
		return nil, fmt.Errorf("decode local config: %w", err)
	}
	return &local, nil
}

func encode(v interface{}) (string, error) {
	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode %T: %w", v, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode %T: %w", v, err)
	}
	return buf.String(), nil
}

// ContainerPath joins a data file name onto the in-sandbox data mount.
func ContainerPath(mount, name string) string {
	return path.Join(mount, name)
}
