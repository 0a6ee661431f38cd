package storage

import (
	"testing"
	"time"
)

func TestParseListFilterEmpty(t *testing.T) {
	cond, err := ParseListFilter("")
	if err != nil {
		t.Fatalf("parse empty: %v", err)
	}
	if cond.Clause != "" || len(cond.Params) != 0 {
		t.Fatalf("empty filter produced %+v", cond)
	}
}

func TestParseListFilterEquality(t *testing.T) {
	cond, err := ParseListFilter(`name = "expire"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "name = ?" {
		t.Fatalf("clause = %q, want name = ?", cond.Clause)
	}
	if len(cond.Params) != 1 || cond.Params[0] != "expire" {
		t.Fatalf("params = %v, want [expire]", cond.Params)
	}
}

func TestParseListFilterConjunction(t *testing.T) {
	cond, err := ParseListFilter(`name = "expire" AND entity_type = "timer"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "(name = ? AND entity_type = ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if len(cond.Params) != 2 {
		t.Fatalf("params = %v, want 2 values", cond.Params)
	}
}

func TestParseListFilterTimestamp(t *testing.T) {
	cond, err := ParseListFilter(`due <= timestamp("2026-03-01T12:00:00Z")`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "due_ms <= ?" {
		t.Fatalf("clause = %q, want due_ms <= ?", cond.Clause)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	if len(cond.Params) != 1 || cond.Params[0] != want {
		t.Fatalf("params = %v, want [%d]", cond.Params, want)
	}
}

func TestParseListFilterUnknownField(t *testing.T) {
	if _, err := ParseListFilter(`payload = "x"`); err == nil {
		t.Fatal("expected unknown field error")
	}
}
