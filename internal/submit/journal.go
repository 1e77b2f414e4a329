package submit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/msageha/formflow/internal/model"
)

const (
	// DefaultMaxJournalSize caps one journal file at 10MB before rotation.
	DefaultMaxJournalSize = 10 * 1024 * 1024
	journalExtension      = ".jsonl"
	archiveDir            = "archive"
)

// JournalEntry is one line of the submission journal.
type JournalEntry struct {
	Timestamp    time.Time         `json:"timestamp"`
	SubmissionID string            `json:"submission_id"`
	Task         string            `json:"task"`
	Names        []string          `json:"names"`
	Assignments  []string          `json:"assignments"`
	Scalars      map[string]string `json:"scalars,omitempty"`
	Checksum     string            `json:"checksum,omitempty"`
}

// Journal is an append-only JSONL record of accepted submissions with
// size-based rotation and optional per-line checksums.
type Journal struct {
	mu              sync.Mutex
	file            *os.File
	currentSize     int64
	maxSize         int64
	path            string
	enableChecksum  bool
	rotationCounter int
}

// NewJournal opens (or creates) the journal at path.
func NewJournal(path string, maxSize int64) (*Journal, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxJournalSize
	}

	j := &Journal{
		path:    path,
		maxSize: maxSize,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	if err := j.openFile(); err != nil {
		return nil, err
	}
	return j, nil
}

// EnableChecksum turns on per-line checksums.
func (j *Journal) EnableChecksum(enable bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.enableChecksum = enable
}

// HandleSubmission implements form.SubmitHandler.
func (j *Journal) HandleSubmission(submissionID string, snapshot model.FormSnapshot) error {
	entry := JournalEntry{
		Timestamp:    time.Now().UTC(),
		SubmissionID: submissionID,
		Task:         snapshot.Scalar(model.FieldTask),
		Names:        snapshot.List(model.FieldNames),
		Assignments:  snapshot.List(model.FieldAssignments),
	}

	scalars := make(map[string]string)
	for _, f := range []model.Field{model.FieldName, model.FieldDescription} {
		if v := snapshot.Scalar(f); v != "" {
			scalars[string(f)] = v
		}
	}
	if len(scalars) > 0 {
		entry.Scalars = scalars
	}

	return j.WriteEntry(&entry)
}

// WriteEntry appends one entry, rotating first when the file would exceed the
// size cap.
func (j *Journal) WriteEntry(entry *JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.enableChecksum {
		entry.Checksum = checksumEntry(entry)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	data = append(data, '\n')

	if j.currentSize+int64(len(data)) > j.maxSize {
		if err := j.rotate(); err != nil {
			return fmt.Errorf("failed to rotate journal: %w", err)
		}
	}

	n, err := j.file.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write journal entry: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal: %w", err)
	}

	j.currentSize += int64(n)
	return nil
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func (j *Journal) openFile() error {
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat journal: %w", err)
	}

	j.file = file
	j.currentSize = stat.Size()
	return nil
}

func (j *Journal) rotate() error {
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close current journal: %w", err)
	}

	dir := filepath.Join(filepath.Dir(j.path), archiveDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	j.rotationCounter++
	baseName := filepath.Base(j.path)
	archiveName := fmt.Sprintf("%s.%s.%d%s",
		baseName[:len(baseName)-len(journalExtension)],
		timestamp,
		j.rotationCounter,
		journalExtension)

	if err := os.Rename(j.path, filepath.Join(dir, archiveName)); err != nil {
		return fmt.Errorf("failed to archive journal: %w", err)
	}

	return j.openFile()
}

// checksumEntry hashes the entry with its checksum field blanked.
func checksumEntry(entry *JournalEntry) string {
	entryCopy := *entry
	entryCopy.Checksum = ""

	data, err := json.Marshal(entryCopy)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%x", djbHash(data))
}

func djbHash(data []byte) uint64 {
	var hash uint64 = 5381
	for _, b := range data {
		hash = ((hash << 5) + hash) + uint64(b)
	}
	return hash
}

// Multi fans a submission out to several handlers in order, stopping at the
// first failure.
type Multi struct {
	handlers []Handler
}

// Handler mirrors form.SubmitHandler without importing the form package.
type Handler interface {
	HandleSubmission(submissionID string, snapshot model.FormSnapshot) error
}

// NewMulti builds a fan-out handler.
func NewMulti(handlers ...Handler) *Multi {
	return &Multi{handlers: handlers}
}

// HandleSubmission implements form.SubmitHandler.
func (m *Multi) HandleSubmission(submissionID string, snapshot model.FormSnapshot) error {
	for _, h := range m.handlers {
		if err := h.HandleSubmission(submissionID, snapshot); err != nil {
			return err
		}
	}
	return nil
}
