package sor

// CRC16 is a streaming CRC-16/CCITT calculator (polynomial 0x1021, initial
// value 0xFFFF) matching the checksum the format stores in the Cksum block.
type CRC16 struct {
	value uint16
}

func NewCRC16() *CRC16 {
	return &CRC16{value: 0xFFFF}
}

// Write updates the checksum with the provided data.
func (c *CRC16) Write(p []byte) {
	for _, b := range p {
		c.value ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if c.value&0x8000 != 0 {
				c.value = (c.value << 1) ^ 0x1021
			} else {
				c.value <<= 1
			}
		}
	}
}

// Sum16 returns the current checksum value.
func (c *CRC16) Sum16() uint16 {
	return c.value
}

// Checksum computes the CRC-16 over the given bytes in one call.
func Checksum(p []byte) uint16 {
	c := NewCRC16()
	c.Write(p)
	return c.Sum16()
}

// DecodeChecksum reads the stored checksum from the Cksum block and compares
// it with the CRC computed over every file byte preceding the block. A
// mismatch is recorded, not returned as an error: the caller decides policy.
func DecodeChecksum(r *Reader, entry DirectoryEntry, file []byte) (ChecksumRecord, error) {
	rec := ChecksumRecord{Present: true}
	r.Seek(entry.Offset)

	stored, err := r.Uint16()
	if err != nil {
		return rec, err
	}
	rec.Stored = stored

	if err := checkSize(r, entry); err != nil {
		return rec, err
	}

	if entry.Offset > len(file) {
		return rec, &BoundsError{Offset: entry.Offset, Want: 0, Len: len(file)}
	}
	rec.Computed = Checksum(file[:entry.Offset])
	rec.Match = rec.Stored == rec.Computed
	return rec, nil
}
