// Package submit implements submission handlers for accepted forms: a YAML
// sink and an append-only JSONL journal. The core hands a snapshot over and
// does not care what happens next.
package submit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/msageha/formflow/internal/model"
	ffyaml "github.com/msageha/formflow/internal/yaml"
)

// SubmissionFile is the on-disk shape of the submissions YAML file.
type SubmissionFile struct {
	SchemaVersion int      `yaml:"schema_version"`
	FileType      string   `yaml:"file_type"`
	Submissions   []Record `yaml:"submissions"`
}

// Record is one accepted submission.
type Record struct {
	ID          string   `yaml:"id"`
	Task        string   `yaml:"task"`
	Name        string   `yaml:"name,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Names       []string `yaml:"names"`
	Assignments []string `yaml:"assignments"`
	SubmittedAt string   `yaml:"submitted_at"`
}

// YAMLSink appends accepted submissions to one YAML file. Writes go through
// the atomic writer and are guarded by a flock so concurrent processes cannot
// interleave read-modify-write cycles.
type YAMLSink struct {
	mu   sync.Mutex
	path string
}

// NewYAMLSink creates a sink writing to path. The parent directory is created
// on first use.
func NewYAMLSink(path string) *YAMLSink {
	return &YAMLSink{path: path}
}

// HandleSubmission implements form.SubmitHandler.
func (s *YAMLSink) HandleSubmission(submissionID string, snapshot model.FormSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("ensure submissions dir: %w", err)
	}

	unlock, err := flockPath(s.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	file, err := s.load()
	if err != nil {
		return err
	}

	file.Submissions = append(file.Submissions, Record{
		ID:          submissionID,
		Task:        snapshot.Scalar(model.FieldTask),
		Name:        snapshot.Scalar(model.FieldName),
		Description: snapshot.Scalar(model.FieldDescription),
		Names:       snapshot.List(model.FieldNames),
		Assignments: snapshot.List(model.FieldAssignments),
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})

	if err := ffyaml.AtomicWrite(s.path, file); err != nil {
		return fmt.Errorf("write submissions: %w", err)
	}
	return nil
}

// Load returns the current submissions file (empty when absent).
func (s *YAMLSink) Load() (*SubmissionFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *YAMLSink) load() (*SubmissionFile, error) {
	content, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &SubmissionFile{
			SchemaVersion: ffyaml.CurrentSchemaVersion,
			FileType:      "form_submissions",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read submissions: %w", err)
	}

	if err := ffyaml.ValidateSchemaHeaderFromBytes(content, "form_submissions"); err != nil {
		return nil, fmt.Errorf("submissions file: %w", err)
	}

	var file SubmissionFile
	if err := yamlv3.Unmarshal(content, &file); err != nil {
		return nil, fmt.Errorf("parse submissions: %w", err)
	}
	return &file, nil
}

// flockPath takes an exclusive flock on path and returns the release function.
func flockPath(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	return func() {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		_ = f.Close()
	}, nil
}
