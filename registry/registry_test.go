package registry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	_ "modernc.org/sqlite"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := New(Config{
		DBPath: filepath.Join(t.TempDir(), "registry.db"),
		Root:   t.TempDir(),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRegisterAndGet(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	tpl := Template{
		Name:         "invoice",
		Format:       "odt",
		Scheme:       "mustache",
		Path:         r.DocumentPath("invoice", "odt"),
		Placeholders: []Placeholder{{Name: "TOTAL", Occurrences: 1}},
	}
	if err := r.Register(ctx, tpl); err != nil {
		t.Fatal(err)
	}

	got, err := r.Get(ctx, "invoice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "invoice" || len(got.Placeholders) != 1 {
		t.Fatalf("got %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not stamped")
	}
}

func TestRegisterDuplicateLeavesOriginal(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	first := Template{Name: "invoice", Format: "odt", Scheme: "mustache", Path: "/a", Description: "original"}
	if err := r.Register(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := first
	second.Description = "usurper"
	if err := r.Register(ctx, second); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("got %v, want ErrDuplicateName", err)
	}

	got, err := r.Get(ctx, "invoice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Description != "original" {
		t.Fatalf("existing record was overwritten: %+v", got)
	}
}

func TestValidateName(t *testing.T) {
	ok := []string{"invoice", "welcome-letter", "Q3 report", "a.b_c-1"}
	for _, n := range ok {
		if err := ValidateName(n); err != nil {
			t.Errorf("ValidateName(%q): %v", n, err)
		}
	}
	bad := []string{"", ".hidden", "-dash-first", "a/b", "..", "name\x00"}
	for _, n := range bad {
		if err := ValidateName(n); err == nil {
			t.Errorf("ValidateName(%q) accepted", n)
		}
	}
}

func TestConcurrentRegisterSameName(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.Register(ctx, Template{Name: "contested", Format: "odt", Scheme: "mustache", Path: "/x"})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrDuplicateName):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("%d registrations won, want exactly 1", wins)
	}
}

func TestSearchOrdering(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	for _, n := range []string{"zeta", "alpha", "mid"} {
		if err := r.Register(ctx, Template{Name: n, Format: "odt", Scheme: "mustache", Path: "/" + n}); err != nil {
			t.Fatal(err)
		}
	}
	got, err := r.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, w := range want {
		if got[i].Name != w {
			t.Fatalf("position %d: got %q, want %q", i, got[i].Name, w)
		}
	}
}

func TestDelete(t *testing.T) {
	r := testRegistry(t)
	ctx := context.Background()

	if err := r.Register(ctx, Template{Name: "gone", Format: "odt", Scheme: "mustache", Path: "/g"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Delete(ctx, "gone"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Get(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
