package simulation

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mercator-hq/arbiter/pkg/codec"
	"mercator-hq/arbiter/pkg/model"
)

// Suite is a set of test cases bound to the workflow or rules file they run
// against.
type Suite struct {
	Name     string     `yaml:"name"`
	Workflow string     `yaml:"workflow,omitempty"`
	Rules    string     `yaml:"rules,omitempty"`
	Cases    []TestCase `yaml:"cases"`

	// Target is loaded from Workflow or Rules by LoadSuite.
	Target Target `yaml:"-"`
}

// LoadSuite reads a suite file and loads its target. Relative definition
// paths are resolved against the suite file's directory.
func LoadSuite(path string) (*Suite, error) {
	// #nosec G304 - reading a user-supplied suite file is the point.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}

	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("failed to parse suite %s: %w", path, err)
	}
	if suite.Name == "" {
		suite.Name = filepath.Base(path)
	}

	dir := filepath.Dir(path)
	switch {
	case suite.Workflow != "" && suite.Rules != "":
		return nil, errors.New("suite must name either a workflow or rules, not both")
	case suite.Workflow != "":
		def, err := codec.ReadWorkflowFile(resolve(dir, suite.Workflow))
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow: %w", err)
		}
		suite.Target = WorkflowTarget(def)
	case suite.Rules != "":
		rules, err := codec.ReadRulesFile(resolve(dir, suite.Rules))
		if err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
		if rules == nil {
			rules = []model.Rule{}
		}
		suite.Target = RulesTarget(rules)
	default:
		return nil, errors.New("suite must name a workflow or rules file")
	}

	for i := range suite.Cases {
		if suite.Cases[i].ID == "" {
			suite.Cases[i].ID = fmt.Sprintf("case-%d", i+1)
		}
	}
	return &suite, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
