package model

import "sort"

// FieldConfiguration is an immutable snapshot of which optional fields are
// currently active. Fields absent from the configuration always validate with
// their required rule. Two configurations with equal flags are interchangeable.
type FieldConfiguration struct {
	flags map[Field]bool
}

// NewFieldConfiguration builds a configuration from a flag map. The map is
// copied; later mutation of the argument does not affect the configuration.
func NewFieldConfiguration(flags map[Field]bool) FieldConfiguration {
	copied := make(map[Field]bool, len(flags))
	for f, active := range flags {
		copied[f] = active
	}
	return FieldConfiguration{flags: copied}
}

// DefaultFieldConfiguration returns the configuration a fresh form starts with:
// the toggleable scalar fields present but inactive.
func DefaultFieldConfiguration() FieldConfiguration {
	return NewFieldConfiguration(map[Field]bool{
		FieldName:        false,
		FieldDescription: false,
	})
}

// WithField returns a new configuration with f set to active. The receiver is
// left unchanged.
func (c FieldConfiguration) WithField(f Field, active bool) FieldConfiguration {
	copied := make(map[Field]bool, len(c.flags)+1)
	for k, v := range c.flags {
		copied[k] = v
	}
	copied[f] = active
	return FieldConfiguration{flags: copied}
}

// Lookup reports the flag for f and whether f is present in the configuration.
func (c FieldConfiguration) Lookup(f Field) (active, present bool) {
	active, present = c.flags[f]
	return active, present
}

// Active reports whether f is present and toggled on.
func (c FieldConfiguration) Active(f Field) bool {
	return c.flags[f]
}

// Fields returns the configured field names in lexical order.
func (c FieldConfiguration) Fields() []Field {
	out := make([]Field, 0, len(c.flags))
	for f := range c.flags {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Equal reports whether two configurations carry identical flags.
func (c FieldConfiguration) Equal(other FieldConfiguration) bool {
	if len(c.flags) != len(other.flags) {
		return false
	}
	for f, active := range c.flags {
		if o, ok := other.flags[f]; !ok || o != active {
			return false
		}
	}
	return true
}
