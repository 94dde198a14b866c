package sor

import "testing"

func TestChecksumKnownVector(t *testing.T) {
	// Standard CRC-16/CCITT-FALSE check value.
	if got := Checksum([]byte("123456789")); got != 0x29B1 {
		t.Fatalf("Checksum = 0x%04X, want 0x29B1", got)
	}
}

func TestChecksumStreamingMatchesOneShot(t *testing.T) {
	data := []byte("stream me in pieces")
	c := NewCRC16()
	c.Write(data[:7])
	c.Write(data[7:])
	if c.Sum16() != Checksum(data) {
		t.Fatalf("streaming CRC 0x%04X != one-shot 0x%04X", c.Sum16(), Checksum(data))
	}
}

func TestDecodeChecksumMatch(t *testing.T) {
	file := buildFile(t, 200,
		fixtureBlock{name: BlockGenParams, version: 200, body: genParamsBody(200)},
		fixtureBlock{name: BlockChecksum, version: 200},
	)
	dir, err := DecodeDirectory(NewReader(file))
	if err != nil {
		t.Fatalf("DecodeDirectory failed: %v", err)
	}
	entry, ok := dir.Find(BlockChecksum)
	if !ok {
		t.Fatal("Cksum entry missing")
	}
	rec, err := DecodeChecksum(NewReader(file), entry, file)
	if err != nil {
		t.Fatalf("DecodeChecksum failed: %v", err)
	}
	if !rec.Present || !rec.Match {
		t.Fatalf("checksum record = %+v, want present match", rec)
	}
	if rec.Stored != rec.Computed {
		t.Fatalf("stored 0x%04X != computed 0x%04X", rec.Stored, rec.Computed)
	}
}

func TestDecodeChecksumMismatchIsNotFatal(t *testing.T) {
	file := buildFile(t, 200,
		fixtureBlock{name: BlockGenParams, version: 200, body: genParamsBody(200)},
		fixtureBlock{name: BlockChecksum, version: 200},
	)
	file[len(file)-1] ^= 0xFF

	dir, err := DecodeDirectory(NewReader(file))
	if err != nil {
		t.Fatalf("DecodeDirectory failed: %v", err)
	}
	entry, _ := dir.Find(BlockChecksum)
	rec, err := DecodeChecksum(NewReader(file), entry, file)
	if err != nil {
		t.Fatalf("DecodeChecksum failed: %v", err)
	}
	if rec.Match {
		t.Fatal("corrupted checksum reported as matching")
	}
}
