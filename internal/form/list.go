// Package form owns the mutable state of one form session: scalar values, the
// repeatable entry lists, and the active field configuration.
package form

import (
	"errors"
	"fmt"

	"github.com/msageha/formflow/internal/model"
)

// ErrLastEntry is returned when a caller tries to remove the last remaining
// entry of a repeatable field. The operation is refused and the list is left
// unchanged; the list never drops below one entry.
var ErrLastEntry = errors.New("cannot remove the last remaining entry")

// EntryList is the ordered collection of repeatable entries for one array
// field. Entries are addressed by their current position; removal shifts later
// indices down, so indices must never be cached across mutations.
//
// EntryList is not safe for concurrent use; the owning Session serializes
// access.
type EntryList struct {
	field  model.Field
	values []string
}

// NewEntryList creates a list holding a single empty entry.
func NewEntryList(field model.Field) *EntryList {
	return &EntryList{
		field:  field,
		values: []string{""},
	}
}

// Field returns the array field this list belongs to.
func (l *EntryList) Field() model.Field {
	return l.field
}

// Len returns the current entry count. Always >= 1.
func (l *EntryList) Len() int {
	return len(l.values)
}

// Append inserts a new empty entry at the end and returns its index.
func (l *EntryList) Append() int {
	l.values = append(l.values, "")
	return len(l.values) - 1
}

// RemoveAt removes the entry at index. Removing the last remaining entry is
// refused with ErrLastEntry.
func (l *EntryList) RemoveAt(index int) error {
	if index < 0 || index >= len(l.values) {
		return fmt.Errorf("entry index %d out of range [0,%d)", index, len(l.values))
	}
	if len(l.values) == 1 {
		return fmt.Errorf("%w: %s", ErrLastEntry, l.field)
	}
	l.values = append(l.values[:index], l.values[index+1:]...)
	return nil
}

// SetValue replaces the value at index in place. Order and length are
// unchanged.
func (l *EntryList) SetValue(index int, value string) error {
	if index < 0 || index >= len(l.values) {
		return fmt.Errorf("entry index %d out of range [0,%d)", index, len(l.values))
	}
	l.values[index] = value
	return nil
}

// Values returns a copy of all entry values in order.
func (l *EntryList) Values() []string {
	out := make([]string, len(l.values))
	copy(out, l.values)
	return out
}

// Reset reinitializes the list to a single empty entry.
func (l *EntryList) Reset() {
	l.values = []string{""}
}
