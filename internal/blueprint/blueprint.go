// Package blueprint loads YAML descriptions of runs.
//
// A blueprint names a command to launch, its working directory and
// environment, and output conventions. It is pure data loading: validation
// happens when the blueprint is converted to a run spec.
package blueprint

import (
	"fmt"
	"os"

	"github.com/kballard/go-shellquote"
	"gopkg.in/yaml.v3"

	"github.com/seastar-sci/seastar/internal/run"
)

// Blueprint describes one run.
type Blueprint struct {
	Name         string            `yaml:"name"`
	Command      Command           `yaml:"command"`
	WorkingDir   string            `yaml:"working_dir"`
	Environment  map[string]string `yaml:"environment"`
	OutputPrefix string            `yaml:"output_prefix"`
	TTY          bool              `yaml:"tty"`
}

// Command is an argv. In YAML it may be written either as a single
// shell-quoted string or as a list of words.
type Command []string

func (c *Command) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var s string
		if err := value.Decode(&s); err != nil {
			return err
		}
		words, err := shellquote.Split(s)
		if err != nil {
			return fmt.Errorf("splitting command %q: %w", s, err)
		}
		*c = words
		return nil
	case yaml.SequenceNode:
		var words []string
		if err := value.Decode(&words); err != nil {
			return err
		}
		*c = words
		return nil
	default:
		return fmt.Errorf("command must be a string or a list of words")
	}
}

// Load reads and parses a blueprint file. Unknown fields are rejected so
// typos surface instead of silently vanishing.
func Load(path string) (*Blueprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading blueprint: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var bp Blueprint
	if err := dec.Decode(&bp); err != nil {
		return nil, fmt.Errorf("parsing blueprint %s: %w", path, err)
	}
	return &bp, nil
}

// Spec validates the blueprint and converts it into a launchable run spec.
func (b *Blueprint) Spec() (run.Spec, error) {
	if len(b.Command) == 0 {
		return run.Spec{}, fmt.Errorf("blueprint %q: command is required", b.Name)
	}
	for k := range b.Environment {
		if k == "" {
			return run.Spec{}, fmt.Errorf("blueprint %q: empty environment variable name", b.Name)
		}
	}

	prefix := b.OutputPrefix
	if prefix == "" {
		prefix = b.Name
	}
	return run.Spec{
		Command:      b.Command,
		Dir:          b.WorkingDir,
		Env:          b.Environment,
		OutputPrefix: prefix,
		TTY:          b.TTY,
	}, nil
}
