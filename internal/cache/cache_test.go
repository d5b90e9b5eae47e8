package cache

import (
	"errors"
	"testing"

	"github.com/kalambet/bizpulse/internal/storage"
)

func newCache(t *testing.T) (*Cache, *storage.Store) {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestRoundTrip(t *testing.T) {
	c, _ := newCache(t)

	text := "Social Impact\n1. Community Benefits"
	if err := c.Store("featureAnalysis", "Acme Robotics", text); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, ok, err := c.Lookup("featureAnalysis", "Acme Robotics")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok {
		t.Fatal("Lookup missed after Store")
	}
	if got != text {
		t.Errorf("Lookup = %q, want %q", got, text)
	}
}

func TestMiss(t *testing.T) {
	c, _ := newCache(t)

	got, ok, err := c.Lookup("featureAnalysis", "never stored")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok || got != "" {
		t.Errorf("Lookup = (%q, %v), want miss", got, ok)
	}
}

func TestKeyLayout(t *testing.T) {
	c, s := newCache(t)

	if err := c.Store("journeyMapping", "Acme Robotics", "map"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	got, err := s.Get("journeyMapping_Acme Robotics")
	if err != nil {
		t.Fatalf("raw Get: %v", err)
	}
	if got != "map" {
		t.Errorf("raw value = %q, want %q", got, "map")
	}
}

// TestNoCollisions verifies distinct inputs and distinct namespaces never share a record.
func TestNoCollisions(t *testing.T) {
	c, _ := newCache(t)

	records := []struct{ ns, input, text string }{
		{"featureAnalysis", "Acme", "f-acme"},
		{"featureAnalysis", "Acme ", "f-acme-space"},
		{"featureAnalysis", "acme", "f-acme-lower"},
		{"feedbackAnalysis", "Acme", "fb-acme"},
		{"marketStatement", "Acme", "m-acme"},
	}
	for _, r := range records {
		if err := c.Store(r.ns, r.input, r.text); err != nil {
			t.Fatalf("Store(%s, %q): %v", r.ns, r.input, err)
		}
	}
	for _, r := range records {
		got, ok, err := c.Lookup(r.ns, r.input)
		if err != nil || !ok {
			t.Fatalf("Lookup(%s, %q) = %v, %v", r.ns, r.input, ok, err)
		}
		if got != r.text {
			t.Errorf("Lookup(%s, %q) = %q, want %q", r.ns, r.input, got, r.text)
		}
	}
}

func TestOverwrite(t *testing.T) {
	c, _ := newCache(t)

	c.Store("featureAnalysis", "Acme", "old")
	c.Store("featureAnalysis", "Acme", "new")
	got, _, _ := c.Lookup("featureAnalysis", "Acme")
	if got != "new" {
		t.Errorf("Lookup = %q, want %q", got, "new")
	}
}

type failingKV struct{ err error }

func (f failingKV) Get(string) (string, error) { return "", f.err }
func (f failingKV) Set(string, string) error   { return f.err }

func TestStoreErrors(t *testing.T) {
	boom := errors.New("disk full")
	c := New(failingKV{err: boom})

	if _, _, err := c.Lookup("featureAnalysis", "x"); !errors.Is(err, boom) {
		t.Errorf("Lookup error = %v, want %v", err, boom)
	}
	if err := c.Store("featureAnalysis", "x", "y"); !errors.Is(err, boom) {
		t.Errorf("Store error = %v, want %v", err, boom)
	}
}

func TestKey(t *testing.T) {
	if got := Key("featureAnalysis", "Acme Robotics"); got != "featureAnalysis_Acme Robotics" {
		t.Errorf("Key = %q", got)
	}
}
