package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/msageha/formflow/internal/model"
)

// ErrUnknownField is returned when a FieldConfiguration references a field name
// the rule table does not recognize. This is a caller bug, not user input.
var ErrUnknownField = errors.New("unknown field in configuration")

// fieldValidator is the compiled per-field validator.
type fieldValidator struct {
	field model.Field
	spec  model.FieldSpec
	rule  Rule
	mode  Mode
}

// Schema is the compiled, read-only validation artifact for one configuration.
// It is never mutated after compilation; a configuration change produces a
// fresh Schema.
type Schema struct {
	fields      []fieldValidator
	config      model.FieldConfiguration
	fingerprint string
}

// Config returns the configuration this schema was compiled from.
func (s *Schema) Config() model.FieldConfiguration {
	return s.config
}

// Fingerprint identifies the (table, configuration) pair the schema was built
// from. Equal fingerprints imply behaviorally identical schemas.
func (s *Schema) Fingerprint() string {
	return s.fingerprint
}

// Compiler turns field configurations into schemas against its current rule
// table. Compilation is a pure function of (table, configuration); the compiler
// caches compiled schemas by fingerprint and collapses concurrent identical
// compiles, which is behaviorally invisible to callers.
type Compiler struct {
	mu            sync.RWMutex
	table         RuleTable
	tableChecksum string
	cache         *schemaCache
	group         singleflight.Group
}

// NewCompiler creates a compiler over the built-in rule table.
func NewCompiler() *Compiler {
	c := &Compiler{
		cache: newSchemaCache(256, 5*time.Minute),
	}
	c.SetTable(DefaultRuleTable())
	return c
}

// SetTable swaps the rule table. The schema cache is cleared so stale schemas
// can never be served after a reload.
func (c *Compiler) SetTable(table RuleTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = table.Clone()
	c.tableChecksum = checksumTable(c.table)
	c.cache.Clear()
}

// Table returns a copy of the current rule table.
func (c *Compiler) Table() RuleTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.Clone()
}

// Compile produces the schema for a configuration. Every recognized field ends
// up with a validator: configured-active and unconfigured fields get their
// required rule, configured-inactive fields get the optional pass-through.
func (c *Compiler) Compile(config model.FieldConfiguration) (*Schema, error) {
	for _, f := range config.Fields() {
		if !model.IsRecognized(f) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, f)
		}
	}

	c.mu.RLock()
	table := c.table
	checksum := c.tableChecksum
	c.mu.RUnlock()

	fingerprint := checksum + ":" + fingerprintConfig(config)

	if cached := c.cache.Get(fingerprint); cached != nil {
		return cached, nil
	}

	result, err, _ := c.group.Do(fingerprint, func() (interface{}, error) {
		return build(table, config, fingerprint)
	})
	if err != nil {
		return nil, err
	}

	compiled := result.(*Schema)
	c.cache.Set(fingerprint, compiled)
	return compiled, nil
}

// build constructs the schema. Pure: identical inputs always yield behaviorally
// identical schemas.
func build(table RuleTable, config model.FieldConfiguration, fingerprint string) (*Schema, error) {
	schema := &Schema{
		fields:      make([]fieldValidator, 0, len(table)),
		config:      config,
		fingerprint: fingerprint,
	}

	for _, f := range model.Fields() {
		rule, ok := table[f]
		if !ok {
			return nil, fmt.Errorf("rule table has no entry for field %q", f)
		}
		spec, _ := model.Spec(f)

		mode := ModeRequired
		if active, present := config.Lookup(f); present && !active {
			// Inactive fields keep their stored value but are exempt from
			// all checks and normalize to "".
			mode = ModeOptional
		} else if present && !rule.RequiredWhenActive {
			mode = ModeOptional
		}

		schema.fields = append(schema.fields, fieldValidator{
			field: f,
			spec:  spec,
			rule:  rule,
			mode:  mode,
		})
	}

	return schema, nil
}

func fingerprintConfig(config model.FieldConfiguration) string {
	parts := make([]string, 0)
	for _, f := range config.Fields() {
		active, _ := config.Lookup(f)
		parts = append(parts, fmt.Sprintf("%s=%t", f, active))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

func checksumTable(table RuleTable) string {
	fields := make([]string, 0, len(table))
	for f := range table {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		r := table[model.Field(f)]
		parts = append(parts, fmt.Sprintf("%s:%d:%d:%t", f, r.MinLength, r.MaxLength, r.RequiredWhenActive))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
