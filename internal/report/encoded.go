package report

import (
	"encoding/json"
	"strings"

	"github.com/harunnryd/synccheck/internal/journal"

	"gopkg.in/yaml.v3"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatRuns(records []journal.RunRecord) (string, error) {
	return marshalJSON(nonNil(records))
}

func (f *JSONFormatter) FormatScenarios(scenarios []ScenarioInfo) (string, error) {
	return marshalJSON(nonNil(scenarios))
}

func marshalJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatRuns(records []journal.RunRecord) (string, error) {
	return marshalYAML(nonNil(records))
}

func (f *YAMLFormatter) FormatScenarios(scenarios []ScenarioInfo) (string, error) {
	return marshalYAML(nonNil(scenarios))
}

func marshalYAML(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
