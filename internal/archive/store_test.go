package archive

import (
	"errors"
	"path/filepath"
	"testing"

	"example.com/sorgate/internal/sor"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testDocument() *sor.Document {
	return &sor.Document{
		FileSize: 64,
		General:  &sor.GeneralParameters{CableID: "CAB-001", FiberID: "F-12", WavelengthNM: 1550},
		Events: &sor.KeyEvents{Events: []sor.KeyEvent{
			{Number: 1, Class: sor.EventClass{Origin: sor.OriginEndOfFiber}},
		}},
		Checksum: sor.ChecksumRecord{Present: true, Match: true},
		Summary:  sor.LinkBudget{FiberLengthM: 25000, FiberLengthKnown: true},
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	raw := []byte("synthetic trace bytes")

	entry, err := s.Put(raw, "span-01.sor", testDocument())
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if entry.Hash != HashOf(raw) {
		t.Fatalf("entry hash %s != HashOf %s", entry.Hash, HashOf(raw))
	}
	if entry.CableID != "CAB-001" || entry.EventCount != 1 || !entry.ChecksumOK {
		t.Fatalf("entry = %+v", entry)
	}

	doc, got, err := s.Get(entry.Hash)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if doc.General == nil || doc.General.FiberID != "F-12" {
		t.Fatalf("document lost fields: %+v", doc.General)
	}
	if got.FileName != "span-01.sor" || got.Size != len(raw) {
		t.Fatalf("catalog entry = %+v", got)
	}
}

func TestGetUnknownHash(t *testing.T) {
	s := openTestStore(t)
	if _, _, err := s.Get("no-such-hash"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutIdenticalBytesOverwrites(t *testing.T) {
	s := openTestStore(t)
	raw := []byte("same bytes twice")

	if _, err := s.Put(raw, "first.sor", testDocument()); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if _, err := s.Put(raw, "second.sor", testDocument()); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1 for identical bytes", len(entries))
	}
	if entries[0].FileName != "second.sor" {
		t.Fatalf("overwrite kept stale name %q", entries[0].FileName)
	}
}

func TestListMultiple(t *testing.T) {
	s := openTestStore(t)
	for _, name := range []string{"a.sor", "b.sor", "c.sor"} {
		if _, err := s.Put([]byte(name), name, testDocument()); err != nil {
			t.Fatalf("Put %s failed: %v", name, err)
		}
	}
	entries, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	raw := []byte("delete me")
	entry, err := s.Put(raw, "gone.sor", testDocument())
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Delete(entry.Hash); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, _, err := s.Get(entry.Hash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(entry.Hash); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete = %v, want ErrNotFound", err)
	}
}
