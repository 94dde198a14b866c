package sor

import (
	"encoding/binary"
	"testing"
)

// Fixture builders assemble synthetic SOR files byte by byte so tests can
// exercise exact layouts without binary testdata.

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

type fixtureBlock struct {
	name    string
	version uint16
	body    []byte
}

// buildFile assembles a Map block followed by the given blocks. A block
// named Cksum with a nil body gets the correct CRC over the preceding bytes;
// pass an explicit body to corrupt it.
func buildFile(t *testing.T, mapVersion uint16, blocks ...fixtureBlock) []byte {
	t.Helper()

	mapSize := 2 + 4 // version + map size
	if mapVersion >= 200 {
		mapSize += 4 // leading "Map\0" marker
	} else {
		mapSize += 2 // explicit entry count
	}
	for _, blk := range blocks {
		mapSize += len(blk.name) + 1 + 2 + 4
	}

	var file []byte
	if mapVersion >= 200 {
		file = append(file, 'M', 'a', 'p', 0)
	}
	file = append(file, le16(mapVersion)...)
	file = append(file, le32(uint32(mapSize))...)
	if mapVersion < 200 {
		file = append(file, le16(uint16(len(blocks)))...)
	}
	for _, blk := range blocks {
		file = append(file, cstr(blk.name)...)
		file = append(file, le16(blk.version)...)
		size := len(blk.body)
		if blk.name == BlockChecksum && blk.body == nil {
			size = 2
		}
		file = append(file, le32(uint32(size))...)
	}

	for _, blk := range blocks {
		if blk.name == BlockChecksum && blk.body == nil {
			file = append(file, le16(Checksum(file))...)
			continue
		}
		file = append(file, blk.body...)
	}
	return file
}

func genParamsBody(version uint16) []byte {
	var b []byte
	b = append(b, cstr("EN")...)       // language
	b = append(b, cstr("CAB-001")...)  // cable id
	b = append(b, cstr("F-12")...)     // fiber id
	b = append(b, le16(652)...)        // fiber type
	b = append(b, le16(1550)...)       // wavelength nm
	b = append(b, cstr("SITE-A")...)   // location a
	b = append(b, cstr("SITE-B")...)   // location b
	b = append(b, cstr("")...)         // cable code
	b = append(b, cstr("BC")...)       // build condition
	b = append(b, le32(0)...)          // user offset
	if version >= 200 {
		b = append(b, le32(0)...) // user offset distance
	}
	b = append(b, cstr("operator")...)
	b = append(b, cstr("")...) // comment
	return b
}

func supParamsBody() []byte {
	var b []byte
	for _, s := range []string{"ACME Photonics", "AP-9000", "SN123", "OM-1550", "SN456", "2.14", ""} {
		b = append(b, cstr(s)...)
	}
	return b
}

func fxdParamsBody(version uint16, groupIndexRaw uint32) []byte {
	var b []byte
	b = append(b, le32(1_700_000_000)...) // timestamp
	b = append(b, cstr("mt")...)          // distance units
	b = append(b, le16(15500)...)         // actual wavelength, 0.1 nm
	b = append(b, le32(0)...)             // acquisition offset
	if version >= 200 {
		b = append(b, le32(0)...) // acquisition offset distance
	}
	b = append(b, le16(1)...)      // pulse width count
	b = append(b, le16(30)...)     // pulse width ns
	b = append(b, le32(100)...)    // data spacing
	b = append(b, le32(16)...)     // points per trace
	b = append(b, le32(groupIndexRaw)...)
	b = append(b, le16(790)...)    // backscatter
	b = append(b, le32(1024)...)   // averages
	b = append(b, le16(120)...)    // averaging time
	b = append(b, le32(400000)...) // range
	if version >= 200 {
		b = append(b, le32(0)...) // range distance
	}
	b = append(b, le32(0)...)    // front panel offset
	b = append(b, le16(500)...)  // noise floor
	b = append(b, le16(1)...)    // noise floor scale
	b = append(b, le16(0)...)    // power offset
	b = append(b, le16(50)...)   // loss threshold
	b = append(b, le16(65000)...) // reflectance threshold
	b = append(b, le16(3000)...) // end of fiber threshold
	if version >= 200 {
		b = append(b, 'S', 'T') // trace type
	}
	return b
}

type fixtureEvent struct {
	number  uint16
	rawTime uint32
	slope   int16
	loss    int16
	refl    int32
	code    string
	segment [5]uint32
	comment string
}

func keyEventsBody(t *testing.T, version uint16, trailer []byte, events ...fixtureEvent) []byte {
	t.Helper()
	var b []byte
	b = append(b, le16(uint16(len(events)))...)
	for _, ev := range events {
		if len(ev.code) != eventTypeLen {
			t.Fatalf("event code %q must be %d bytes", ev.code, eventTypeLen)
		}
		b = append(b, le16(ev.number)...)
		b = append(b, le32(ev.rawTime)...)
		b = append(b, le16(uint16(ev.slope))...)
		b = append(b, le16(uint16(ev.loss))...)
		b = append(b, le32(uint32(ev.refl))...)
		b = append(b, []byte(ev.code)...)
		if version >= 200 {
			for _, pos := range ev.segment {
				b = append(b, le32(pos)...)
			}
			b = append(b, cstr(ev.comment)...)
		}
	}
	return append(b, trailer...)
}

func eventsTrailerBody(version uint16, totalLoss uint32, length uint32, orl uint16, withORL bool) []byte {
	var b []byte
	b = append(b, le32(totalLoss)...)
	b = append(b, le32(0)...) // fiber start
	b = append(b, le32(length)...)
	if version >= 200 {
		b = append(b, le32(0)...) // fiber length, 0.1 m
	}
	if withORL {
		b = append(b, le16(orl)...)
	}
	return b
}

func dataPtsBody(samples []uint16) []byte {
	var b []byte
	b = append(b, le32(uint32(len(samples)))...)
	b = append(b, le16(1)...)
	for _, s := range samples {
		b = append(b, le16(s)...)
	}
	return b
}
