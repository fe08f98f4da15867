package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// record is the on-disk form of an [Entry], one JSON object per line.
type record struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Utterance string    `json:"utterance"`
	Response  string    `json:"response"`
}

// File persists entries as JSON lines in a local file. The file is created
// on first append.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a File journal writing to path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Append implements [Journal].
func (f *File) Append(_ context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	data, err := json.Marshal(record{
		ID:        e.ID,
		Timestamp: e.At.UTC(),
		Utterance: e.Utterance,
		Response:  e.Response,
	})
	if err != nil {
		return fmt.Errorf("journal: marshal: %w", err)
	}
	data = append(data, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("journal: open file: %w", err)
	}
	defer fh.Close()

	if _, err := fh.Write(data); err != nil {
		return fmt.Errorf("journal: write: %w", err)
	}
	return nil
}

// Recent implements [Journal]. Malformed lines are skipped. A missing file
// yields no entries.
func (f *File) Recent(_ context.Context, limit int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fh, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: open file: %w", err)
	}
	defer fh.Close()

	entries := []Entry{}
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var r record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		entries = append(entries, Entry{ID: r.ID, Utterance: r.Utterance, Response: r.Response, At: r.Timestamp})
		if limit > 0 && len(entries) > limit {
			entries = entries[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("journal: read file: %w", err)
	}
	return entries, nil
}

var _ Journal = (*File)(nil)
