// Package memory is an in-process RecordAppender for development and tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"materials/internal/core"
)

type Store struct {
	mu      sync.Mutex
	rows    []core.MaterialRecord
	failErr error
}

func New() *Store {
	return &Store{}
}

// AppendRecord stores the record and returns a synthetic row reference.
func (s *Store) AppendRecord(_ context.Context, rec core.MaterialRecord) (string, error) {
	if rec.ID <= 0 {
		return "", errors.New("append record: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return "", s.failErr
	}
	s.rows = append(s.rows, rec)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// FailWith makes subsequent appends return err; nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

// Rows returns a copy of the appended records in order.
func (s *Store) Rows() []core.MaterialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.MaterialRecord(nil), s.rows...)
}
