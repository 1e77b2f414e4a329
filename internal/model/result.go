package model

import "fmt"

// ScalarIndex is the FieldPath index used for non-list fields.
const ScalarIndex = -1

// FieldPath addresses one validated value: a scalar field, or one entry of a
// repeatable field by its current position. Positions shift on removal, so paths
// are only meaningful against the result they were reported in.
type FieldPath struct {
	Field Field
	Index int
}

func ScalarPath(f Field) FieldPath {
	return FieldPath{Field: f, Index: ScalarIndex}
}

func EntryPath(f Field, index int) FieldPath {
	return FieldPath{Field: f, Index: index}
}

func (p FieldPath) String() string {
	if p.Index == ScalarIndex {
		return string(p.Field)
	}
	return fmt.Sprintf("%s[%d]", p.Field, p.Index)
}

// FieldError carries the messages for one failing field path. At most one
// message is produced per path today; the slice keeps the contract extensible.
type FieldError struct {
	Path     FieldPath
	Messages []string
}

// ValidationResult is the verdict for one snapshot against one schema.
// Errors are ordered by declared field order, then entry index. Scalars and
// Lists are the normalized output: every recognized field is present, inactive
// fields as "".
type ValidationResult struct {
	Valid   bool
	Dirty   bool
	Errors  []FieldError
	Scalars map[Field]string
	Lists   map[Field][]string
}

// ErrorsAt returns the messages reported for a path (nil when the path passed).
func (r ValidationResult) ErrorsAt(p FieldPath) []string {
	for _, fe := range r.Errors {
		if fe.Path == p {
			return fe.Messages
		}
	}
	return nil
}

// ErrorCount returns the total number of messages across all paths.
func (r ValidationResult) ErrorCount() int {
	n := 0
	for _, fe := range r.Errors {
		n += len(fe.Messages)
	}
	return n
}
