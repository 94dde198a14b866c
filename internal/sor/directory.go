package sor

import "bytes"

var mapMagic = []byte{'M', 'a', 'p', 0}

// DecodeDirectory reads the Map block at the current cursor position and
// returns the ordered index of every other block. Block offsets are
// cumulative from the end of the Map block. The directory is load-bearing:
// any inconsistency here aborts the parse, because a broken directory cannot
// be safely second-guessed.
func DecodeDirectory(r *Reader) (Directory, error) {
	var dir Directory
	start := r.Offset()

	// v2.x producers prefix the Map block with its own name as a file
	// identifying marker; v1.x files start directly at the revision field.
	if head, err := r.Peek(len(mapMagic)); err == nil && bytes.Equal(head, mapMagic) {
		if err := r.Skip(len(mapMagic)); err != nil {
			return dir, err
		}
	}

	version, err := r.Uint16()
	if err != nil {
		return dir, err
	}
	dir.MapVersion = Version(version)

	mapSize, err := r.Uint32()
	if err != nil {
		return dir, err
	}
	dir.MapSize = int(mapSize)
	end := start + dir.MapSize
	if end > r.Len() || dir.MapSize < r.Offset()-start {
		return dir, &DirectoryError{Offset: start, Reason: "declared map size exceeds file"}
	}

	// v1.x maps declare an explicit entry count; v2.x maps are read until
	// the declared map size is exhausted.
	declared := -1
	if !dir.MapVersion.IsV2() {
		count, err := r.Uint16()
		if err != nil {
			return dir, err
		}
		declared = int(count)
	}

	seen := make(map[string]bool)
	offset := dir.MapSize
	for r.Offset() < end {
		if declared >= 0 && len(dir.Entries) == declared {
			break
		}
		entryOffset := r.Offset()
		name := r.CString()
		if name == "" {
			return dir, &DirectoryError{Offset: entryOffset, Reason: "empty block name"}
		}
		if name == BlockMap {
			return dir, &DirectoryError{Entry: name, Offset: entryOffset, Reason: "map block listed inside its own directory"}
		}
		if seen[name] {
			return dir, &DirectoryError{Entry: name, Offset: entryOffset, Reason: "duplicate block entry"}
		}
		seen[name] = true

		ver, err := r.Uint16()
		if err != nil {
			return dir, err
		}
		size, err := r.Uint32()
		if err != nil {
			return dir, err
		}
		if offset+int(size) > r.Len() {
			return dir, &DirectoryError{Entry: name, Offset: entryOffset, Reason: "block extends beyond end of file"}
		}
		dir.Entries = append(dir.Entries, DirectoryEntry{
			Name:    name,
			Version: Version(ver),
			Size:    int(size),
			Offset:  offset,
		})
		offset += int(size)
	}

	if declared >= 0 && len(dir.Entries) != declared {
		return dir, &DirectoryError{Offset: start, Reason: "entry count disagrees with declared count"}
	}
	if r.Offset() != end {
		return dir, &DirectoryError{Offset: start, Reason: "directory does not fill its declared size"}
	}
	return dir, nil
}
