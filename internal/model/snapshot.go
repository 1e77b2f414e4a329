package model

// FormSnapshot is the materialized current form values: scalar field values plus
// the ordered entry values of each repeatable field. Produced on every mutation
// and consumed whole by the validator.
type FormSnapshot struct {
	Scalars map[Field]string   `yaml:"scalars"`
	Lists   map[Field][]string `yaml:"lists"`
}

// NewFormSnapshot returns an empty snapshot with initialized maps.
func NewFormSnapshot() FormSnapshot {
	return FormSnapshot{
		Scalars: make(map[Field]string),
		Lists:   make(map[Field][]string),
	}
}

// Scalar returns the value of a scalar field ("" when unset).
func (s FormSnapshot) Scalar(f Field) string {
	return s.Scalars[f]
}

// List returns the entry values of a list field (nil when unset).
func (s FormSnapshot) List(f Field) []string {
	return s.Lists[f]
}

// Clone returns a deep copy. Validation operates on clones so a result can never
// alias state mutated by a later edit.
func (s FormSnapshot) Clone() FormSnapshot {
	out := NewFormSnapshot()
	for f, v := range s.Scalars {
		out.Scalars[f] = v
	}
	for f, entries := range s.Lists {
		copied := make([]string, len(entries))
		copy(copied, entries)
		out.Lists[f] = copied
	}
	return out
}
