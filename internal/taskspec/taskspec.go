// Package taskspec parses the YAML task files the CLI dispatches from.
package taskspec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TaskSpec defines the YAML specification of one dispatchable task.
type TaskSpec struct {
	// API version for future compatibility.
	APIVersion string `yaml:"apiVersion,omitempty"`
	// Kind is always "Task" when set.
	Kind string `yaml:"kind,omitempty"`

	// Task is the registered task name to dispatch.
	Task string `yaml:"task"`

	// Arguments.
	Args   []any          `yaml:"args,omitempty"`
	Kwargs map[string]any `yaml:"kwargs,omitempty"`

	// DispatchID pins the invocation namespace; generated when empty.
	DispatchID string `yaml:"dispatchId,omitempty"`
	TaskID     string `yaml:"taskId,omitempty"`
}

// Load reads and validates a task spec file.
func Load(path string) (*TaskSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task spec: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates task spec bytes.
func Parse(data []byte) (*TaskSpec, error) {
	var spec TaskSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parse task spec: %w", err)
	}
	if spec.Kind != "" && spec.Kind != "Task" {
		return nil, fmt.Errorf("unexpected kind %q, want Task", spec.Kind)
	}
	if spec.Task == "" {
		return nil, fmt.Errorf("task spec missing task name")
	}
	return &spec, nil
}
