// Package schema compiles field configurations into validation schemas and
// applies them to form snapshots.
package schema

import (
	"fmt"

	"github.com/msageha/formflow/internal/model"
)

// Mode is the compiled disposition of one field: required-with-bounds, or
// optional pass-through normalizing to the empty string.
type Mode string

const (
	ModeRequired Mode = "required"
	ModeOptional Mode = "optional"
)

// Rule is the static constraint for one field. Lengths are measured in runes on
// the raw value; whitespace counts as content.
type Rule struct {
	MinLength          int  `yaml:"min_length"`
	MaxLength          int  `yaml:"max_length"`
	RequiredWhenActive bool `yaml:"required_when_active"`
}

// RuleTable maps each recognized field to its rule. Iteration order for
// validation comes from model.Fields(), not from the map.
type RuleTable map[model.Field]Rule

// DefaultRuleTable returns the built-in rule table. Rule files loaded from the
// rules directory override individual entries.
func DefaultRuleTable() RuleTable {
	return RuleTable{
		model.FieldTask:        {MinLength: 1, MaxLength: 500, RequiredWhenActive: true},
		model.FieldName:        {MinLength: 1, MaxLength: 50, RequiredWhenActive: true},
		model.FieldDescription: {MinLength: 1, MaxLength: 500, RequiredWhenActive: true},
		model.FieldNames:       {MinLength: 1, MaxLength: 50, RequiredWhenActive: true},
		model.FieldAssignments: {MinLength: 1, MaxLength: 100, RequiredWhenActive: true},
	}
}

// Clone returns a copy of the table.
func (t RuleTable) Clone() RuleTable {
	out := make(RuleTable, len(t))
	for f, r := range t {
		out[f] = r
	}
	return out
}

func requiredMessage(f model.Field) string {
	return fmt.Sprintf("%s is required", model.Label(f))
}

func tooShortMessage(min int) string {
	return fmt.Sprintf("must be at least %d %s", min, characters(min))
}

func tooLongMessage(max int) string {
	return fmt.Sprintf("must be less than %d characters", max)
}

func characters(n int) string {
	if n == 1 {
		return "character"
	}
	return "characters"
}
