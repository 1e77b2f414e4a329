package form

import (
	"errors"
	"fmt"
	"sync"

	"github.com/msageha/formflow/internal/events"
	"github.com/msageha/formflow/internal/model"
	"github.com/msageha/formflow/internal/schema"
)

// ErrNotValid is returned by Submit when the form fails its final validation.
var ErrNotValid = errors.New("form is not valid")

// SubmitHandler receives an accepted snapshot. What it does with it (log,
// persist, transmit) is outside the core's contract.
type SubmitHandler interface {
	HandleSubmission(submissionID string, snapshot model.FormSnapshot) error
}

// Session is the single logical owner of one form's state. Every mutation is
// serialized on an internal mutex, synchronously recompiles and revalidates,
// publishes the fresh verdict, and returns it before the next event is
// processed, so validation state is never stale relative to current input.
type Session struct {
	mu       sync.Mutex
	id       string
	compiler *schema.Compiler
	bus      *events.Bus

	config  model.FieldConfiguration
	scalars map[model.Field]string
	lists   map[model.Field]*EntryList
	dirty   bool
}

// NewSession creates a fresh session over the default configuration: one empty
// entry per repeatable field, empty scalars, optional fields inactive. The bus
// may be nil.
func NewSession(compiler *schema.Compiler, bus *events.Bus) (*Session, error) {
	id, err := model.GenerateID(model.IDTypeSession)
	if err != nil {
		return nil, fmt.Errorf("generate session ID: %w", err)
	}

	s := &Session{
		id:       id,
		compiler: compiler,
		bus:      bus,
	}
	s.initState()

	// Fail fast if the compiler cannot serve the default configuration.
	if _, err := compiler.Compile(s.config); err != nil {
		return nil, fmt.Errorf("compile default configuration: %w", err)
	}
	return s, nil
}

func (s *Session) initState() {
	s.config = model.DefaultFieldConfiguration()
	s.scalars = make(map[model.Field]string)
	s.lists = make(map[model.Field]*EntryList)
	for _, f := range model.Fields() {
		if model.IsList(f) {
			s.lists[f] = NewEntryList(f)
		}
	}
	s.dirty = false
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Config returns the current field configuration.
func (s *Session) Config() model.FieldConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Snapshot materializes the current form values.
func (s *Session) Snapshot() model.FormSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() model.FormSnapshot {
	snap := model.NewFormSnapshot()
	for f, v := range s.scalars {
		snap.Scalars[f] = v
	}
	for f, l := range s.lists {
		snap.Lists[f] = l.Values()
	}
	return snap
}

// SetScalar records a keystroke-level value for a scalar field and revalidates.
func (s *Session) SetScalar(f model.Field, value string) (model.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !model.IsRecognized(f) {
		return model.ValidationResult{}, fmt.Errorf("unrecognized field: %q", f)
	}
	if model.IsList(f) {
		return model.ValidationResult{}, fmt.Errorf("field %q is a repeatable field, use SetEntry", f)
	}

	s.scalars[f] = value
	s.dirty = true
	return s.revalidateLocked()
}

// ToggleField switches an optional field active or inactive. The field's stored
// value is retained either way, so re-activating restores prior input.
func (s *Session) ToggleField(f model.Field, active bool) (model.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !model.IsRecognized(f) {
		return model.ValidationResult{}, fmt.Errorf("unrecognized field: %q", f)
	}

	s.config = s.config.WithField(f, active)
	s.dirty = true

	result, err := s.revalidateLocked()
	if err != nil {
		return result, err
	}
	s.publish(events.EventFieldToggled, map[string]interface{}{
		"field":  string(f),
		"active": active,
	})
	return result, nil
}

// AppendEntry adds a fresh empty entry to a repeatable field and returns its
// index alongside the new verdict.
func (s *Session) AppendEntry(f model.Field) (int, model.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.listLocked(f)
	if err != nil {
		return 0, model.ValidationResult{}, err
	}

	index := list.Append()
	s.dirty = true

	result, err := s.revalidateLocked()
	if err != nil {
		return index, result, err
	}
	s.publish(events.EventEntryAppended, map[string]interface{}{
		"field": string(f),
		"index": index,
	})
	return index, result, nil
}

// RemoveEntry removes the entry at index. Removing the last remaining entry is
// refused with ErrLastEntry and the form state is unchanged.
func (s *Session) RemoveEntry(f model.Field, index int) (model.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.listLocked(f)
	if err != nil {
		return model.ValidationResult{}, err
	}

	if err := list.RemoveAt(index); err != nil {
		return model.ValidationResult{}, err
	}
	s.dirty = true

	result, err := s.revalidateLocked()
	if err != nil {
		return result, err
	}
	s.publish(events.EventEntryRemoved, map[string]interface{}{
		"field": string(f),
		"index": index,
	})
	return result, nil
}

// SetEntry records a keystroke-level value for one entry of a repeatable field.
func (s *Session) SetEntry(f model.Field, index int, value string) (model.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.listLocked(f)
	if err != nil {
		return model.ValidationResult{}, err
	}

	if err := list.SetValue(index, value); err != nil {
		return model.ValidationResult{}, err
	}
	s.dirty = true
	return s.revalidateLocked()
}

// Entries returns the current values of a repeatable field in order.
func (s *Session) Entries(f model.Field) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.listLocked(f)
	if err != nil {
		return nil, err
	}
	return list.Values(), nil
}

// Validate recompiles against the current configuration and validates the
// current snapshot without mutating anything.
func (s *Session) Validate() (model.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validateLocked()
}

// Reset reinitializes every repeatable field to one empty entry, clears scalar
// values, and restores the default configuration.
func (s *Session) Reset() (model.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initState()

	result, err := s.revalidateLocked()
	if err != nil {
		return result, err
	}
	s.publish(events.EventFormReset, map[string]interface{}{})
	return result, nil
}

// Submit runs one final validation and, only when the form is valid, hands the
// snapshot to the handler under a fresh submission ID.
func (s *Session) Submit(handler SubmitHandler) (model.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.validateLocked()
	if err != nil {
		return result, err
	}
	if !result.Valid {
		return result, ErrNotValid
	}

	submissionID, err := model.GenerateID(model.IDTypeSubmission)
	if err != nil {
		return result, fmt.Errorf("generate submission ID: %w", err)
	}

	if err := handler.HandleSubmission(submissionID, s.snapshotLocked()); err != nil {
		return result, fmt.Errorf("submission handler: %w", err)
	}

	s.publish(events.EventFormSubmitted, map[string]interface{}{
		"submission_id": submissionID,
	})
	return result, nil
}

func (s *Session) listLocked(f model.Field) (*EntryList, error) {
	if !model.IsRecognized(f) {
		return nil, fmt.Errorf("unrecognized field: %q", f)
	}
	list, ok := s.lists[f]
	if !ok {
		return nil, fmt.Errorf("field %q is not a repeatable field", f)
	}
	return list, nil
}

// validateLocked is the read-only compile+validate path.
func (s *Session) validateLocked() (model.ValidationResult, error) {
	compiled, err := s.compiler.Compile(s.config)
	if err != nil {
		return model.ValidationResult{}, err
	}
	result := compiled.Validate(s.snapshotLocked())
	result.Dirty = s.dirty
	return result, nil
}

// revalidateLocked runs after every mutation and mirrors the verdict onto the
// bus before returning it.
func (s *Session) revalidateLocked() (model.ValidationResult, error) {
	result, err := s.validateLocked()
	if err != nil {
		return result, err
	}
	s.publish(events.EventValidationChanged, map[string]interface{}{
		"valid":  result.Valid,
		"dirty":  result.Dirty,
		"errors": result.ErrorCount(),
	})
	return result, nil
}

func (s *Session) publish(eventType events.EventType, data map[string]interface{}) {
	if s.bus == nil {
		return
	}
	data["session_id"] = s.id
	s.bus.Publish(eventType, data)
}
