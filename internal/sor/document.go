package sor

import "fmt"

// Decode parses one complete SOR file held in buf and assembles the decoded
// document. Structural failures (bounds, directory, size mismatches) abort
// the parse with the offending block and offset attached; absent optional
// blocks and unrecognized vocabulary are tolerated; a checksum mismatch is
// surfaced as a field within the successful result.
//
// The buffer is borrowed for the duration of the call and never mutated.
func Decode(buf []byte) (*Document, error) {
	r := NewReader(buf)

	dir, err := DecodeDirectory(r)
	if err != nil {
		return nil, fmt.Errorf("decode directory: %w", err)
	}
	doc := &Document{FileSize: len(buf), Directory: dir}

	if entry, ok := dir.Find(BlockSupParams); ok {
		if doc.Supplier, err = DecodeSupParams(r, entry); err != nil {
			return nil, blockError(entry, err)
		}
	}
	if entry, ok := dir.Find(BlockGenParams); ok {
		if doc.General, err = DecodeGenParams(r, entry); err != nil {
			return nil, blockError(entry, err)
		}
	}
	if entry, ok := dir.Find(BlockFxdParams); ok {
		if doc.Acquisition, err = DecodeFxdParams(r, entry); err != nil {
			return nil, blockError(entry, err)
		}
	}

	// Distances need the acquisition group index. When FxdParams is absent
	// or carries a non-positive index, event distances stay unknown; the
	// value is never silently defaulted.
	var groupIndex float64
	if doc.Acquisition != nil {
		groupIndex = doc.Acquisition.GroupIndex
	}

	if entry, ok := dir.Find(BlockDataPts); ok {
		if doc.Trace, err = DecodeDataPts(r, entry); err != nil {
			return nil, blockError(entry, err)
		}
	}
	if entry, ok := dir.Find(BlockKeyEvents); ok {
		if doc.Events, err = DecodeKeyEvents(r, entry, groupIndex); err != nil {
			return nil, blockError(entry, err)
		}
	}
	if entry, ok := dir.Find(BlockChecksum); ok {
		if doc.Checksum, err = DecodeChecksum(r, entry, buf); err != nil {
			return nil, blockError(entry, err)
		}
	}

	doc.Summary = deriveSummary(doc)
	return doc, nil
}

func blockError(entry DirectoryEntry, err error) error {
	return fmt.Errorf("block %s at offset %d: %w", entry.Name, entry.Offset, err)
}

// deriveSummary resolves the file-level link budget. Total loss sums the
// splice losses of every event not flagged end-of-fiber; fiber length comes
// from the end-of-fiber event's distance; ORL comes from the events trailer
// when the producer stored one. Missing inputs leave the corresponding
// field unknown, never zero.
func deriveSummary(doc *Document) LinkBudget {
	var budget LinkBudget
	if doc.Events == nil {
		return budget
	}

	for _, ev := range doc.Events.Events {
		if ev.Class.Origin == OriginEndOfFiber {
			budget.EndEventNumber = ev.Number
			if ev.DistanceKnown {
				budget.FiberLengthM = ev.DistanceM
				budget.FiberLengthKnown = true
			}
			continue
		}
		budget.TotalLossDB += ev.SpliceLossDB
		budget.TotalLossKnown = true
	}

	if tr := doc.Events.Trailer; tr != nil && tr.HasORL {
		budget.ORLDB = tr.ORLDB
		budget.ORLKnown = true
	}
	return budget
}
