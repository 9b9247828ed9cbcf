package memory

import (
	"context"
	"errors"
	"testing"

	"materials/internal/core"
)

func TestAppendRecord(t *testing.T) {
	s := New()
	ctx := context.Background()

	ref, err := s.AppendRecord(ctx, core.MaterialRecord{ID: 1, MaterialName: "Cement"})
	if err != nil {
		t.Fatalf("AppendRecord() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}
	if _, err := s.AppendRecord(ctx, core.MaterialRecord{}); err == nil {
		t.Error("expected error for record without id")
	}

	rows := s.Rows()
	if len(rows) != 1 || rows[0].MaterialName != "Cement" {
		t.Errorf("Rows() = %+v", rows)
	}
}

func TestFailWith(t *testing.T) {
	s := New()
	boom := errors.New("quota exceeded")
	s.FailWith(boom)

	if _, err := s.AppendRecord(context.Background(), core.MaterialRecord{ID: 1}); !errors.Is(err, boom) {
		t.Errorf("AppendRecord() error = %v, want %v", err, boom)
	}

	s.FailWith(nil)
	if _, err := s.AppendRecord(context.Background(), core.MaterialRecord{ID: 1}); err != nil {
		t.Errorf("AppendRecord() error = %v after reset", err)
	}
	if len(s.Rows()) != 1 {
		t.Errorf("Rows() = %d, want 1", len(s.Rows()))
	}
}
