// Package model defines the data structures for formflow's fields, configuration,
// snapshots, and validation results.
package model

type Field string

const (
	FieldTask        Field = "task"
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldNames       Field = "names"
	FieldAssignments Field = "assignments"
)

type Kind string

const (
	KindScalar Kind = "scalar"
	KindList   Kind = "list"
)

// FieldSpec describes one recognized form field.
type FieldSpec struct {
	Name  Field
	Kind  Kind
	Label string
}

// fieldOrder is the declared field order. Validation errors are reported in this
// order, then by entry index for list fields.
var fieldOrder = []Field{
	FieldTask,
	FieldName,
	FieldDescription,
	FieldNames,
	FieldAssignments,
}

var fieldSpecs = map[Field]FieldSpec{
	FieldTask:        {Name: FieldTask, Kind: KindScalar, Label: "Task"},
	FieldName:        {Name: FieldName, Kind: KindScalar, Label: "Name"},
	FieldDescription: {Name: FieldDescription, Kind: KindScalar, Label: "Description"},
	FieldNames:       {Name: FieldNames, Kind: KindList, Label: "Name"},
	FieldAssignments: {Name: FieldAssignments, Kind: KindList, Label: "Assignment"},
}

// Fields returns all recognized fields in declared order.
func Fields() []Field {
	out := make([]Field, len(fieldOrder))
	copy(out, fieldOrder)
	return out
}

// Spec returns the FieldSpec for a field.
func Spec(f Field) (FieldSpec, bool) {
	spec, ok := fieldSpecs[f]
	return spec, ok
}

// IsRecognized reports whether f names a known form field.
func IsRecognized(f Field) bool {
	_, ok := fieldSpecs[f]
	return ok
}

// Label returns the user-facing label for a field ("" for unrecognized fields).
func Label(f Field) string {
	return fieldSpecs[f].Label
}

// IsList reports whether f is a repeatable-entry field.
func IsList(f Field) bool {
	return fieldSpecs[f].Kind == KindList
}
