package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/docsmith/dbopen"

	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	return New(db, nil)
}

func rec(name string) Record {
	return Record{
		Name:      name,
		Format:    "odt",
		Scheme:    "mustache",
		Path:      "/var/lib/docsmith/templates/" + name + ".odt",
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestInsertGet(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	in := rec("invoice")
	in.Description = "Monthly invoice letter"
	in.Category = "billing"
	in.Placeholders = []Placeholder{{Name: "CLIENT_NAME", Marker: "Acme Corp", Occurrences: 2}, {Name: "TOTAL", Occurrences: 1}}
	if err := s.Insert(ctx, in); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "invoice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != in.Description || got.Category != in.Category {
		t.Fatalf("got %+v", got)
	}
	if len(got.Placeholders) != 2 || got.Placeholders[0].Name != "CLIENT_NAME" || got.Placeholders[0].Occurrences != 2 {
		t.Fatalf("placeholders: %+v", got.Placeholders)
	}
	if got.Placeholders[0].Marker != "Acme Corp" {
		t.Fatalf("marker: %+v", got.Placeholders[0])
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("created_at: got %v, want %v", got.CreatedAt, in.CreatedAt)
	}
}

func TestInsertDuplicate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, rec("invoice")); err != nil {
		t.Fatal(err)
	}
	err := s.Insert(ctx, rec("invoice"))
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("got %v, want ErrDuplicateName", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, rec("temp")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "temp"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "temp"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSelect(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	seed := []Record{rec("welcome-letter"), rec("invoice"), rec("contract")}
	seed[0].Description = "Welcome new clients"
	seed[0].Category = "onboarding"
	seed[1].Category = "billing"
	seed[2].Category = "legal"
	seed[2].Format = "ott"
	for _, r := range seed {
		if err := s.Insert(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name  string
		q     Query
		wants []string
	}{
		{"all ordered by name", Query{}, []string{"contract", "invoice", "welcome-letter"}},
		{"term matches name", Query{Term: "inv"}, []string{"invoice"}},
		{"term matches description", Query{Term: "clients"}, []string{"welcome-letter"}},
		{"term is case-insensitive", Query{Term: "WELCOME"}, []string{"welcome-letter"}},
		{"term matches category", Query{Term: "onboard"}, []string{"welcome-letter"}},
		{"category filter", Query{Category: "legal"}, []string{"contract"}},
		{"format filter", Query{Format: "odt"}, []string{"invoice", "welcome-letter"}},
		{"combined", Query{Term: "o", Category: "billing"}, []string{"invoice"}},
		{"no match", Query{Term: "zzz"}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.Select(ctx, tc.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tc.wants) {
				t.Fatalf("got %d records, want %d: %+v", len(got), len(tc.wants), got)
			}
			for i, w := range tc.wants {
				if got[i].Name != w {
					t.Fatalf("record %d: got %q, want %q", i, got[i].Name, w)
				}
			}
		})
	}
}

// WHAT: a row with unreadable placeholder JSON is skipped, not fatal.
// WHY: one corrupt row must not take down every listing.
func TestSelectSkipsCorruptRow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Insert(ctx, rec("good")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO templates (name, format, scheme, path, placeholders, created_at)
		VALUES ('bad', 'odt', 'mustache', '/x', 'not json', '2026-03-01T00:00:00Z')`); err != nil {
		t.Fatal(err)
	}

	got, err := s.Select(ctx, Query{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "good" {
		t.Fatalf("got %+v, want only the good row", got)
	}
}
