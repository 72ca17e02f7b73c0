package objstore

import (
	"context"
	"testing"
)

func TestKeysForDeterministic(t *testing.T) {
	a := KeysFor("job-1")
	b := KeysFor("job-1")
	if a != b {
		t.Errorf("key derivation is not deterministic: %+v vs %+v", a, b)
	}

	if a.Input != "func-job-1.payload" {
		t.Errorf("unexpected input key: %s", a.Input)
	}
	if a.Result != "result-job-1.payload" {
		t.Errorf("unexpected result key: %s", a.Result)
	}
	if a.Exception != "exception-job-1.json" {
		t.Errorf("unexpected exception key: %s", a.Exception)
	}
}

func TestKeysForDisjointAcrossInvocations(t *testing.T) {
	a := KeysFor("job-1")
	b := KeysFor("job-2")

	seen := map[string]bool{a.Input: true, a.Result: true, a.Exception: true}
	for _, k := range []string{b.Input, b.Result, b.Exception} {
		if seen[k] {
			t.Errorf("key %s collides across invocations", k)
		}
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, found, err := s.TryGet(ctx, "missing")
	if err != nil {
		t.Fatalf("TryGet on missing key errored: %v", err)
	}
	if found {
		t.Fatal("TryGet reported a missing key as found")
	}

	if err := s.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	data, found, err := s.TryGet(ctx, "k")
	if err != nil || !found {
		t.Fatalf("TryGet after Put: found=%v err=%v", found, err)
	}
	if string(data) != "v" {
		t.Errorf("expected v, got %q", data)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	_, found, _ = s.TryGet(ctx, "k")
	if found {
		t.Error("key still present after Delete")
	}

	// Deleting an absent key is not an error.
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete on missing key errored: %v", err)
	}
}

func TestMemoryStoreCopiesData(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte("original")
	if err := s.Put(ctx, "k", buf); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	buf[0] = 'X'

	data, _, _ := s.TryGet(ctx, "k")
	if string(data) != "original" {
		t.Errorf("stored data aliased caller buffer: %q", data)
	}
}

func TestNewUnknownType(t *testing.T) {
	if _, err := New(context.Background(), Config{Type: "carrier-pigeon"}); err == nil {
		t.Error("expected error for unknown store type")
	}
}

func TestNewMemory(t *testing.T) {
	s, err := New(context.Background(), Config{Type: "memory"})
	if err != nil {
		t.Fatalf("New memory store failed: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", s)
	}
}
