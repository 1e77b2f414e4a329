package form

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msageha/formflow/internal/events"
	"github.com/msageha/formflow/internal/model"
	"github.com/msageha/formflow/internal/schema"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(schema.NewCompiler(), nil)
	require.NoError(t, err)
	return s
}

// fillValid brings a default-configuration session to a valid state.
func fillValid(t *testing.T, s *Session) {
	t.Helper()
	_, err := s.SetScalar(model.FieldTask, "ship the release")
	require.NoError(t, err)
	_, err = s.SetEntry(model.FieldNames, 0, "alice")
	require.NoError(t, err)
	_, err = s.SetEntry(model.FieldAssignments, 0, "review the changelog")
	require.NoError(t, err)
}

type captureHandler struct {
	submissionID string
	snapshot     model.FormSnapshot
	calls        int
	err          error
}

func (h *captureHandler) HandleSubmission(submissionID string, snapshot model.FormSnapshot) error {
	h.calls++
	if h.err != nil {
		return h.err
	}
	h.submissionID = submissionID
	h.snapshot = snapshot
	return nil
}

func TestSession_InitialState(t *testing.T) {
	s := newTestSession(t)

	assert.True(t, model.ValidateID(s.ID()))
	idType, err := model.ParseIDType(s.ID())
	require.NoError(t, err)
	assert.Equal(t, model.IDTypeSession, idType)

	result, err := s.Validate()
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.False(t, result.Dirty)

	// One empty entry per repeatable field.
	for _, f := range []model.Field{model.FieldNames, model.FieldAssignments} {
		entries, err := s.Entries(f)
		require.NoError(t, err)
		assert.Equal(t, []string{""}, entries)
	}

	// Optional fields start inactive, so only required input is missing.
	assert.Empty(t, result.ErrorsAt(model.ScalarPath(model.FieldName)))
	assert.NotEmpty(t, result.ErrorsAt(model.ScalarPath(model.FieldTask)))
}

func TestSession_SetScalarRevalidates(t *testing.T) {
	s := newTestSession(t)

	result, err := s.SetScalar(model.FieldTask, "ship it")
	require.NoError(t, err)
	assert.True(t, result.Dirty)
	assert.Empty(t, result.ErrorsAt(model.ScalarPath(model.FieldTask)))

	result, err = s.SetScalar(model.FieldTask, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Task is required"}, result.ErrorsAt(model.ScalarPath(model.FieldTask)))
}

func TestSession_SetScalarRejectsListField(t *testing.T) {
	s := newTestSession(t)

	_, err := s.SetScalar(model.FieldNames, "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeatable")

	_, err = s.SetScalar("nickname", "x")
	require.Error(t, err)
}

func TestSession_ToggleActivatesValidation(t *testing.T) {
	s := newTestSession(t)
	fillValid(t, s)

	result, err := s.Validate()
	require.NoError(t, err)
	require.True(t, result.Valid)

	// Activating an empty optional field makes the form invalid.
	result, err = s.ToggleField(model.FieldName, true)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"Name is required"}, result.ErrorsAt(model.ScalarPath(model.FieldName)))

	// Deactivating restores validity without touching other fields.
	result, err = s.ToggleField(model.FieldName, false)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestSession_ToggleRetainsValue(t *testing.T) {
	s := newTestSession(t)

	_, err := s.ToggleField(model.FieldName, true)
	require.NoError(t, err)
	_, err = s.SetScalar(model.FieldName, "alice")
	require.NoError(t, err)

	_, err = s.ToggleField(model.FieldName, false)
	require.NoError(t, err)

	// Re-activating brings the prior value back into validation scope.
	result, err := s.ToggleField(model.FieldName, true)
	require.NoError(t, err)
	assert.Empty(t, result.ErrorsAt(model.ScalarPath(model.FieldName)))
	assert.Equal(t, "alice", s.Snapshot().Scalar(model.FieldName))
}

func TestSession_AppendEntry(t *testing.T) {
	s := newTestSession(t)

	index, result, err := s.AppendEntry(model.FieldNames)
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.True(t, result.Dirty)

	// The fresh entry is empty and immediately validated.
	assert.Equal(t, []string{"Name is required"}, result.ErrorsAt(model.EntryPath(model.FieldNames, 1)))

	entries, err := s.Entries(model.FieldNames)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSession_RemoveEntryShiftsErrors(t *testing.T) {
	s := newTestSession(t)
	fillValid(t, s)

	_, _, err := s.AppendEntry(model.FieldNames)
	require.NoError(t, err)
	_, _, err = s.AppendEntry(model.FieldNames)
	require.NoError(t, err)
	_, err = s.SetEntry(model.FieldNames, 2, "carol")
	require.NoError(t, err)

	// Entries are now ["alice", "", "carol"]; the hole sits at index 1.
	result, err := s.Validate()
	require.NoError(t, err)
	require.NotEmpty(t, result.ErrorsAt(model.EntryPath(model.FieldNames, 1)))

	result, err = s.RemoveEntry(model.FieldNames, 1)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	entries, err := s.Entries(model.FieldNames)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, entries)
}

func TestSession_RemoveLastEntryRefused(t *testing.T) {
	s := newTestSession(t)
	before, err := s.Entries(model.FieldNames)
	require.NoError(t, err)

	_, err = s.RemoveEntry(model.FieldNames, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLastEntry))

	after, err := s.Entries(model.FieldNames)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSession_EntryOpsRejectScalarField(t *testing.T) {
	s := newTestSession(t)

	_, _, err := s.AppendEntry(model.FieldTask)
	require.Error(t, err)
	_, err = s.SetEntry(model.FieldTask, 0, "x")
	require.Error(t, err)
	_, err = s.Entries(model.FieldTask)
	require.Error(t, err)
}

func TestSession_Reset(t *testing.T) {
	s := newTestSession(t)
	fillValid(t, s)
	_, err := s.ToggleField(model.FieldDescription, true)
	require.NoError(t, err)
	_, _, err = s.AppendEntry(model.FieldNames)
	require.NoError(t, err)

	result, err := s.Reset()
	require.NoError(t, err)
	assert.False(t, result.Dirty)

	entries, err := s.Entries(model.FieldNames)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, entries)
	assert.Equal(t, "", s.Snapshot().Scalar(model.FieldTask))
	assert.True(t, s.Config().Equal(model.DefaultFieldConfiguration()))
}

func TestSession_SubmitValidForm(t *testing.T) {
	s := newTestSession(t)
	fillValid(t, s)

	h := &captureHandler{}
	result, err := s.Submit(h)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 1, h.calls)
	idType, err := model.ParseIDType(h.submissionID)
	require.NoError(t, err)
	assert.Equal(t, model.IDTypeSubmission, idType)
	assert.Equal(t, "ship the release", h.snapshot.Scalar(model.FieldTask))
	assert.Equal(t, []string{"alice"}, h.snapshot.List(model.FieldNames))
}

func TestSession_SubmitInvalidFormRefused(t *testing.T) {
	s := newTestSession(t)

	h := &captureHandler{}
	result, err := s.Submit(h)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotValid))
	assert.False(t, result.Valid)
	assert.Zero(t, h.calls, "handler must not run for an invalid form")
}

func TestSession_SubmitHandlerErrorPropagates(t *testing.T) {
	s := newTestSession(t)
	fillValid(t, s)

	h := &captureHandler{err: fmt.Errorf("disk full")}
	_, err := s.Submit(h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSession_PublishesValidationEvents(t *testing.T) {
	bus := events.NewBus(10)
	defer bus.Close()

	received := make(chan events.Event, 10)
	unsub := bus.Subscribe(events.EventValidationChanged, func(e events.Event) {
		received <- e
	})
	defer unsub()

	s, err := NewSession(schema.NewCompiler(), bus)
	require.NoError(t, err)

	_, err = s.SetScalar(model.FieldTask, "ship it")
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, events.EventValidationChanged, e.Type)
		assert.Equal(t, s.ID(), e.Data["session_id"])
		assert.Equal(t, true, e.Data["dirty"])
	case <-time.After(2 * time.Second):
		t.Fatal("no validation event published for the mutation")
	}
}

func TestSession_DirtyOnlyAfterMutation(t *testing.T) {
	s := newTestSession(t)

	result, err := s.Validate()
	require.NoError(t, err)
	assert.False(t, result.Dirty)

	_, err = s.SetScalar(model.FieldTask, "x")
	require.NoError(t, err)

	result, err = s.Validate()
	require.NoError(t, err)
	assert.True(t, result.Dirty)
}
