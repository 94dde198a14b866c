package main

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"example.com/sorgate/internal/archive"
	"example.com/sorgate/internal/rules"
	"example.com/sorgate/internal/sor"
)

func le16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func cstr(s string) []byte {
	return append([]byte(s), 0)
}

func writeSyntheticTrace(t *testing.T, path string) {
	t.Helper()

	var gen []byte
	gen = append(gen, cstr("EN")...)
	gen = append(gen, cstr("CAB-001")...)
	gen = append(gen, cstr("F-12")...)
	gen = append(gen, le16(652)...)
	gen = append(gen, le16(1550)...)
	gen = append(gen, cstr("SITE-A")...)
	gen = append(gen, cstr("SITE-B")...)
	gen = append(gen, cstr("")...)
	gen = append(gen, cstr("BC")...)
	gen = append(gen, le32(0)...)
	gen = append(gen, le32(0)...)
	gen = append(gen, cstr("operator")...)
	gen = append(gen, cstr("")...)

	var fxd []byte
	fxd = append(fxd, le32(1_700_000_000)...)
	fxd = append(fxd, cstr("mt")...)
	fxd = append(fxd, le16(15500)...)
	fxd = append(fxd, le32(0)...)
	fxd = append(fxd, le32(0)...)
	fxd = append(fxd, le16(1)...)
	fxd = append(fxd, le16(30)...)
	fxd = append(fxd, le32(100)...)
	fxd = append(fxd, le32(16)...)
	fxd = append(fxd, le32(146800)...)
	fxd = append(fxd, le16(790)...)
	fxd = append(fxd, le32(1024)...)
	fxd = append(fxd, le16(120)...)
	fxd = append(fxd, le32(400000)...)
	fxd = append(fxd, le32(0)...)
	fxd = append(fxd, le32(0)...)
	fxd = append(fxd, le16(500)...)
	fxd = append(fxd, le16(1)...)
	fxd = append(fxd, le16(0)...)
	fxd = append(fxd, le16(50)...)
	fxd = append(fxd, le16(65000)...)
	fxd = append(fxd, le16(3000)...)
	fxd = append(fxd, 'S', 'T')

	var events []byte
	events = append(events, le16(1)...)
	events = append(events, le16(1)...)
	events = append(events, le32(500000000)...)
	events = append(events, le16(0)...)
	events = append(events, le16(0)...)
	events = append(events, le32(0)...)
	events = append(events, []byte("0F......")...)
	for i := 0; i < 5; i++ {
		events = append(events, le32(0)...)
	}
	events = append(events, cstr("")...)

	blocks := []struct {
		name string
		body []byte
		size int
	}{
		{name: sor.BlockGenParams, body: gen, size: len(gen)},
		{name: sor.BlockFxdParams, body: fxd, size: len(fxd)},
		{name: sor.BlockKeyEvents, body: events, size: len(events)},
		{name: sor.BlockChecksum, size: 2},
	}

	mapSize := 4 + 2 + 4
	for _, blk := range blocks {
		mapSize += len(blk.name) + 1 + 2 + 4
	}

	var file []byte
	file = append(file, 'M', 'a', 'p', 0)
	file = append(file, le16(200)...)
	file = append(file, le32(uint32(mapSize))...)
	for _, blk := range blocks {
		file = append(file, cstr(blk.name)...)
		file = append(file, le16(200)...)
		file = append(file, le32(uint32(blk.size))...)
	}
	for _, blk := range blocks {
		if blk.name == sor.BlockChecksum {
			file = append(file, le16(sor.Checksum(file))...)
			continue
		}
		file = append(file, blk.body...)
	}

	if err := os.WriteFile(path, file, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestBatchCmdGeneratesOutputs(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "inputs")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatalf("MkdirAll inputs: %v", err)
	}
	outDir := filepath.Join(root, "out")

	writeSyntheticTrace(t, filepath.Join(inputDir, "alpha.sor"))
	writeSyntheticTrace(t, filepath.Join(inputDir, "beta.sor"))

	batchCmd([]string{
		"--in", inputDir,
		"--out-dir", outDir,
		"--concurrency", "2",
	})

	check := func(name string) {
		docPath := filepath.Join(outDir, name+".json")
		if _, err := os.Stat(docPath); err != nil {
			t.Fatalf("document output missing for %s: %v", name, err)
		}
		accPath := filepath.Join(outDir, name+".acceptance.json")
		data, err := os.ReadFile(accPath)
		if err != nil {
			t.Fatalf("ReadFile acceptance %s: %v", name, err)
		}
		var rep rules.AcceptanceReport
		if err := json.Unmarshal(data, &rep); err != nil {
			t.Fatalf("Unmarshal acceptance %s: %v", name, err)
		}
		if !rep.Summary.Pass || rep.Summary.Errors != 0 {
			t.Fatalf("unexpected acceptance summary for %s: %+v", name, rep.Summary)
		}
	}

	check("alpha")
	check("beta")
}

func TestBatchCmdArchivesDecodes(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "inputs")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatalf("MkdirAll inputs: %v", err)
	}
	writeSyntheticTrace(t, filepath.Join(inputDir, "span.sor"))
	archivePath := filepath.Join(root, "archive.db")

	batchCmd([]string{
		"--in", inputDir,
		"--out-dir", filepath.Join(root, "out"),
		"--archive", archivePath,
	})

	store, err := archive.Open(archivePath)
	if err != nil {
		t.Fatalf("Open archive: %v", err)
	}
	defer store.Close()
	entries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].FileName != "span.sor" {
		t.Fatalf("archive entries = %+v", entries)
	}
}
