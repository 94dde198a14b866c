package sor

import (
	"errors"
	"testing"
)

func TestDecodeDirectoryV2(t *testing.T) {
	file := buildFile(t, 200,
		fixtureBlock{name: BlockGenParams, version: 200, body: genParamsBody(200)},
		fixtureBlock{name: BlockSupParams, version: 200, body: supParamsBody()},
		fixtureBlock{name: BlockChecksum, version: 200},
	)

	dir, err := DecodeDirectory(NewReader(file))
	if err != nil {
		t.Fatalf("DecodeDirectory failed: %v", err)
	}
	if dir.MapVersion != 200 {
		t.Fatalf("MapVersion = %d, want 200", dir.MapVersion)
	}
	if len(dir.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(dir.Entries))
	}
	// Offsets are cumulative from the end of the Map block.
	if dir.Entries[0].Offset != dir.MapSize {
		t.Fatalf("first offset = %d, want map size %d", dir.Entries[0].Offset, dir.MapSize)
	}
	for i := 1; i < len(dir.Entries); i++ {
		want := dir.Entries[i-1].Offset + dir.Entries[i-1].Size
		if dir.Entries[i].Offset != want {
			t.Fatalf("entry %d offset = %d, want %d", i, dir.Entries[i].Offset, want)
		}
	}
	last := dir.Entries[len(dir.Entries)-1]
	if last.Offset+last.Size != len(file) {
		t.Fatalf("directory does not cover file: %d != %d", last.Offset+last.Size, len(file))
	}
}

func TestDecodeDirectoryV1ExplicitCount(t *testing.T) {
	file := buildFile(t, 100,
		fixtureBlock{name: BlockGenParams, version: 100, body: genParamsBody(100)},
		fixtureBlock{name: BlockChecksum, version: 100},
	)
	dir, err := DecodeDirectory(NewReader(file))
	if err != nil {
		t.Fatalf("DecodeDirectory failed: %v", err)
	}
	if len(dir.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(dir.Entries))
	}
	if dir.MapVersion.IsV2() {
		t.Fatal("map version 100 classified as v2.x")
	}
}

func TestDecodeDirectoryDuplicateEntry(t *testing.T) {
	file := buildFile(t, 200,
		fixtureBlock{name: BlockGenParams, version: 200, body: genParamsBody(200)},
		fixtureBlock{name: BlockGenParams, version: 200, body: genParamsBody(200)},
	)
	_, err := DecodeDirectory(NewReader(file))
	if !errors.Is(err, ErrMalformedDirectory) {
		t.Fatalf("expected ErrMalformedDirectory, got %v", err)
	}
	var dirErr *DirectoryError
	if !errors.As(err, &dirErr) || dirErr.Entry != BlockGenParams {
		t.Fatalf("expected DirectoryError naming %s, got %v", BlockGenParams, err)
	}
}

func TestDecodeDirectoryMapListsItself(t *testing.T) {
	file := buildFile(t, 200,
		fixtureBlock{name: BlockMap, version: 200, body: nil},
	)
	if _, err := DecodeDirectory(NewReader(file)); !errors.Is(err, ErrMalformedDirectory) {
		t.Fatalf("expected ErrMalformedDirectory, got %v", err)
	}
}

func TestDecodeDirectoryBlockOverflowsFile(t *testing.T) {
	file := buildFile(t, 200,
		fixtureBlock{name: BlockGenParams, version: 200, body: genParamsBody(200)},
	)
	// Truncate the body so the declared size points beyond the file end.
	truncated := file[:len(file)-4]
	if _, err := DecodeDirectory(NewReader(truncated)); !errors.Is(err, ErrMalformedDirectory) {
		t.Fatalf("expected ErrMalformedDirectory, got %v", err)
	}
}

func TestDecodeDirectoryVendorBlockIndexed(t *testing.T) {
	file := buildFile(t, 200,
		fixtureBlock{name: BlockGenParams, version: 200, body: genParamsBody(200)},
		fixtureBlock{name: "AcmeProprietary", version: 200, body: []byte{1, 2, 3, 4}},
	)
	dir, err := DecodeDirectory(NewReader(file))
	if err != nil {
		t.Fatalf("DecodeDirectory failed: %v", err)
	}
	entry, ok := dir.Find("AcmeProprietary")
	if !ok || entry.Size != 4 {
		t.Fatalf("vendor block not indexed: %+v ok=%v", entry, ok)
	}
}
