package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/formflow/internal/model"
)

func compile(t *testing.T, flags map[model.Field]bool) *Schema {
	t.Helper()
	s, err := NewCompiler().Compile(model.NewFieldConfiguration(flags))
	require.NoError(t, err)
	return s
}

// baseSnapshot returns a snapshot that passes validation for every field so
// individual tests can break exactly one thing.
func baseSnapshot() model.FormSnapshot {
	snap := model.NewFormSnapshot()
	snap.Scalars[model.FieldTask] = "ship the release"
	snap.Scalars[model.FieldName] = "alice"
	snap.Scalars[model.FieldDescription] = "quarterly release"
	snap.Lists[model.FieldNames] = []string{"alice"}
	snap.Lists[model.FieldAssignments] = []string{"review the changelog"}
	return snap
}

func TestValidate_AllFieldsValid(t *testing.T) {
	s := compile(t, map[model.Field]bool{
		model.FieldName:        true,
		model.FieldDescription: true,
	})

	result := s.Validate(baseSnapshot())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
}

func TestValidate_RequiredScalarEmpty(t *testing.T) {
	s := compile(t, map[model.Field]bool{
		model.FieldName:        true,
		model.FieldDescription: true,
	})

	snap := baseSnapshot()
	snap.Scalars[model.FieldName] = ""
	snap.Scalars[model.FieldDescription] = "ok desc"

	result := s.Validate(snap)
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, model.ScalarPath(model.FieldName), result.Errors[0].Path)
	assert.Equal(t, []string{"Name is required"}, result.Errors[0].Messages)
}

func TestValidate_InactiveFieldSkippedAndNormalized(t *testing.T) {
	s := compile(t, map[model.Field]bool{
		model.FieldName:        true,
		model.FieldDescription: false,
	})

	snap := baseSnapshot()
	snap.Scalars[model.FieldDescription] = ""

	result := s.Validate(snap)
	assert.True(t, result.Valid)
	assert.Empty(t, result.ErrorsAt(model.ScalarPath(model.FieldDescription)))

	// Inactive fields still appear in the normalized output, as "".
	normalized, ok := result.Scalars[model.FieldDescription]
	require.True(t, ok)
	assert.Equal(t, "", normalized)
}

func TestValidate_InactiveFieldStaleValueNotValidated(t *testing.T) {
	s := compile(t, map[model.Field]bool{model.FieldDescription: false})

	// The snapshot may retain a value for an inactive field; it must not be
	// validated and must not leak into the normalized output.
	snap := baseSnapshot()
	snap.Scalars[model.FieldDescription] = strings.Repeat("x", 501)

	result := s.Validate(snap)
	assert.True(t, result.Valid)
	assert.Equal(t, "", result.Scalars[model.FieldDescription])
}

func TestValidate_UnconfiguredFieldTreatedAsRequired(t *testing.T) {
	s := compile(t, nil)

	snap := baseSnapshot()
	snap.Scalars[model.FieldTask] = ""

	result := s.Validate(snap)
	require.False(t, result.Valid)
	assert.Equal(t, []string{"Task is required"}, result.ErrorsAt(model.ScalarPath(model.FieldTask)))
}

func TestValidate_MaxLengthExceeded(t *testing.T) {
	s := compile(t, nil)

	snap := baseSnapshot()
	snap.Scalars[model.FieldTask] = strings.Repeat("a", 501)

	result := s.Validate(snap)
	require.False(t, result.Valid)
	assert.Equal(t, []string{"must be less than 500 characters"}, result.ErrorsAt(model.ScalarPath(model.FieldTask)))

	// 500 is still within bounds.
	snap.Scalars[model.FieldTask] = strings.Repeat("a", 500)
	assert.True(t, s.Validate(snap).Valid)
}

func TestValidate_NoTrimming(t *testing.T) {
	s := compile(t, map[model.Field]bool{model.FieldName: true})

	// Whitespace counts as content: three spaces satisfy the required rule
	// and measure three characters.
	snap := baseSnapshot()
	snap.Scalars[model.FieldName] = "   "

	result := s.Validate(snap)
	assert.True(t, result.Valid)
	assert.Equal(t, "   ", result.Scalars[model.FieldName])
}

func TestValidate_LengthsMeasuredInRunes(t *testing.T) {
	s := compile(t, map[model.Field]bool{model.FieldName: true})

	// 50 multi-byte runes are within the 50-character bound even though the
	// byte length is far larger.
	snap := baseSnapshot()
	snap.Scalars[model.FieldName] = strings.Repeat("日", 50)
	assert.True(t, s.Validate(snap).Valid)

	snap.Scalars[model.FieldName] = strings.Repeat("日", 51)
	assert.False(t, s.Validate(snap).Valid)
}

func TestValidate_ListEntriesIndependent(t *testing.T) {
	s := compile(t, nil)

	snap := baseSnapshot()
	snap.Lists[model.FieldNames] = []string{"alice", "", "carol"}

	result := s.Validate(snap)
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, model.EntryPath(model.FieldNames, 1), result.Errors[0].Path)
	assert.Equal(t, []string{"Name is required"}, result.Errors[0].Messages)
}

func TestValidate_ErrorOrdering(t *testing.T) {
	s := compile(t, map[model.Field]bool{
		model.FieldName:        true,
		model.FieldDescription: true,
	})

	snap := model.NewFormSnapshot()
	snap.Lists[model.FieldNames] = []string{"", ""}
	snap.Lists[model.FieldAssignments] = []string{""}

	result := s.Validate(snap)
	require.False(t, result.Valid)

	var paths []string
	for _, fe := range result.Errors {
		paths = append(paths, fe.Path.String())
	}
	assert.Equal(t, []string{
		"task",
		"name",
		"description",
		"names[0]",
		"names[1]",
		"assignments[0]",
	}, paths)
}

func TestValidate_AtMostOneMessagePerPath(t *testing.T) {
	s := compile(t, nil)

	// An empty value violates required, min-length, and implicitly the form,
	// but only the required message is reported.
	snap := baseSnapshot()
	snap.Scalars[model.FieldTask] = ""

	result := s.Validate(snap)
	for _, fe := range result.Errors {
		assert.Len(t, fe.Messages, 1, "path %s", fe.Path)
	}
}

func TestValidate_FullCoverageResult(t *testing.T) {
	s := compile(t, map[model.Field]bool{model.FieldDescription: false})

	result := s.Validate(model.NewFormSnapshot())
	for _, f := range model.Fields() {
		if model.IsList(f) {
			_, ok := result.Lists[f]
			assert.True(t, ok, "list field %s missing from result", f)
		} else {
			_, ok := result.Scalars[f]
			assert.True(t, ok, "scalar field %s missing from result", f)
		}
	}
}

func TestValidate_MonotonicActivation(t *testing.T) {
	snap := model.NewFormSnapshot()
	snap.Scalars[model.FieldTask] = ""
	snap.Lists[model.FieldNames] = []string{""}

	inactive := compile(t, map[model.Field]bool{model.FieldName: false})
	active := compile(t, map[model.Field]bool{model.FieldName: true})

	before := inactive.Validate(snap)
	after := active.Validate(snap)

	// Activating a field can only add error paths, never remove existing ones.
	seen := make(map[string]bool)
	for _, fe := range after.Errors {
		seen[fe.Path.String()] = true
	}
	for _, fe := range before.Errors {
		assert.True(t, seen[fe.Path.String()], "error at %s disappeared after activation", fe.Path)
	}
	assert.Greater(t, len(after.Errors), len(before.Errors))
}

func TestValidate_DeterministicForSameInputs(t *testing.T) {
	s := compile(t, map[model.Field]bool{model.FieldName: true})

	snap := baseSnapshot()
	snap.Scalars[model.FieldName] = ""

	first := s.Validate(snap)
	second := s.Validate(snap)
	assert.Equal(t, first, second)
}
