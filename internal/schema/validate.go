package schema

import (
	"unicode/utf8"

	"github.com/msageha/formflow/internal/model"
)

// Validate applies every compiled field validator to the snapshot. The whole
// snapshot is re-validated on every call; no incremental state is kept, so the
// result can never be stale relative to its inputs.
//
// Errors are reported in declared field order, then entry order for list
// fields. Every recognized field appears in the normalized output: inactive
// fields as "", never absent.
func (s *Schema) Validate(snapshot model.FormSnapshot) model.ValidationResult {
	result := model.ValidationResult{
		Valid:   true,
		Scalars: make(map[model.Field]string),
		Lists:   make(map[model.Field][]string),
	}

	for _, fv := range s.fields {
		if fv.spec.Kind == model.KindList {
			s.validateList(fv, snapshot, &result)
		} else {
			s.validateScalar(fv, snapshot, &result)
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (s *Schema) validateScalar(fv fieldValidator, snapshot model.FormSnapshot, result *model.ValidationResult) {
	if fv.mode == ModeOptional {
		result.Scalars[fv.field] = ""
		return
	}

	value := snapshot.Scalar(fv.field)
	result.Scalars[fv.field] = value

	if msg, ok := checkValue(fv, value); !ok {
		result.Errors = append(result.Errors, model.FieldError{
			Path:     model.ScalarPath(fv.field),
			Messages: []string{msg},
		})
	}
}

// validateList checks every entry independently: one failing entry marks its
// own path invalid without aborting the remaining entries.
func (s *Schema) validateList(fv fieldValidator, snapshot model.FormSnapshot, result *model.ValidationResult) {
	entries := snapshot.List(fv.field)
	normalized := make([]string, len(entries))

	if fv.mode == ModeOptional {
		result.Lists[fv.field] = normalized
		return
	}

	copy(normalized, entries)
	result.Lists[fv.field] = normalized

	for i, value := range entries {
		if msg, ok := checkValue(fv, value); !ok {
			result.Errors = append(result.Errors, model.FieldError{
				Path:     model.EntryPath(fv.field, i),
				Messages: []string{msg},
			})
		}
	}
}

// checkValue applies the required/length rules to one raw value. No trimming:
// whitespace-only input counts as content for length checks. By construction at
// most one message applies per value.
func checkValue(fv fieldValidator, value string) (string, bool) {
	if value == "" {
		return requiredMessage(fv.field), false
	}

	length := utf8.RuneCountInString(value)
	if length < fv.rule.MinLength {
		return tooShortMessage(fv.rule.MinLength), false
	}
	if length > fv.rule.MaxLength {
		return tooLongMessage(fv.rule.MaxLength), false
	}
	return "", true
}
