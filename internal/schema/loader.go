package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/formflow/internal/model"
	ffyaml "github.com/msageha/formflow/internal/yaml"
)

// Loader loads rule-table override files from a rules directory and merges them
// over the built-in table.
type Loader struct {
	rulesDir string
}

// ruleFile is the on-disk shape of one rule override file.
type ruleFile struct {
	SchemaVersion int                          `yaml:"schema_version"`
	FileType      string                       `yaml:"file_type"`
	Rules         map[model.Field]ruleOverride `yaml:"rules"`
}

// ruleOverride uses a pointer for required_when_active so an omitted key keeps
// the default (true) instead of collapsing to false.
type ruleOverride struct {
	MinLength          int   `yaml:"min_length"`
	MaxLength          int   `yaml:"max_length"`
	RequiredWhenActive *bool `yaml:"required_when_active"`
}

// NewLoader creates a loader for the given rules directory.
func NewLoader(rulesDir string) *Loader {
	return &Loader{rulesDir: rulesDir}
}

// Load returns the effective rule table: built-in defaults with every override
// file in the rules directory merged in. A missing directory yields the
// defaults. Two files overriding the same field is an error.
func (l *Loader) Load() (RuleTable, error) {
	table := DefaultRuleTable()

	if _, err := os.Stat(l.rulesDir); os.IsNotExist(err) {
		return table, nil
	}

	seen := make(map[model.Field]string)

	err := filepath.Walk(l.rulesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !hasYAMLExtension(path) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		overrides, err := l.LoadFromBytes(content)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}

		for f, rule := range overrides {
			if prev, dup := seen[f]; dup {
				return fmt.Errorf("field %q overridden by both %s and %s", f, prev, path)
			}
			seen[f] = path
			table[f] = rule
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return table, nil
}

// LoadFromBytes parses and validates one rule override file.
func (l *Loader) LoadFromBytes(content []byte) (map[model.Field]Rule, error) {
	if err := ffyaml.ValidateSchemaHeaderFromBytes(content, "rule_table"); err != nil {
		return nil, err
	}

	var file ruleFile
	if err := yamlv3.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rule file has no rules")
	}

	out := make(map[model.Field]Rule, len(file.Rules))
	for f, override := range file.Rules {
		if !model.IsRecognized(f) {
			return nil, fmt.Errorf("unrecognized field: %q", f)
		}
		if override.MinLength < 1 {
			return nil, fmt.Errorf("field %q: min_length must be >= 1", f)
		}
		if override.MaxLength < override.MinLength {
			return nil, fmt.Errorf("field %q: max_length must be >= min_length", f)
		}

		// Default required_when_active to true
		required := true
		if override.RequiredWhenActive != nil {
			required = *override.RequiredWhenActive
		}

		out[f] = Rule{
			MinLength:          override.MinLength,
			MaxLength:          override.MaxLength,
			RequiredWhenActive: required,
		}
	}

	return out, nil
}

func hasYAMLExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
