package sor

const (
	eventTypeLen = 8
	// v1.x events are fixed width: number u16, time u32, slope i16,
	// splice loss i16, reflectance i32, type code 8 bytes.
	eventWidthV1 = 22
	// Trailer base: total loss u32, fiber start i32, fiber length u32.
	trailerBaseWidth = 12
)

// DecodeKeyEvents decodes the KeyEvents block. The event count field is
// authoritative; for v1.x the fixed per-event width must also reconcile with
// the declared block size, which catches corrupt counts before the loop runs
// off the end. Distances are derived from the acquisition group index; a
// non-positive index leaves the distance marked unknown rather than failing
// the block.
func DecodeKeyEvents(r *Reader, entry DirectoryEntry, groupIndex float64) (*KeyEvents, error) {
	r.Seek(entry.Offset)
	blockEnd := entry.Offset + entry.Size
	ke := &KeyEvents{Version: entry.Version}

	count, err := r.Uint16()
	if err != nil {
		return nil, err
	}

	if !entry.Version.IsV2() {
		body := 2 + eventWidthV1*int(count)
		switch entry.Size - body {
		case 0, trailerBaseWidth, trailerBaseWidth + 2:
		default:
			return nil, &SizeError{Block: entry.Name, Offset: entry.Offset, Declared: entry.Size, Consumed: body}
		}
	}

	ke.Events = make([]KeyEvent, 0, count)
	for i := 0; i < int(count); i++ {
		var ev KeyEvent

		num, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		ev.Number = int(num)

		if ev.RawTime, err = r.Uint32(); err != nil {
			return nil, err
		}
		ev.TimeSeconds = TimeSeconds(ev.RawTime)
		if d, err := Distance(ev.TimeSeconds, groupIndex); err == nil {
			ev.DistanceM = d
			ev.DistanceKnown = true
		}

		slope, err := r.Int16()
		if err != nil {
			return nil, err
		}
		ev.SlopeDBKM = MilliDB(int32(slope))

		loss, err := r.Int16()
		if err != nil {
			return nil, err
		}
		ev.SpliceLossDB = MilliDB(int32(loss))

		refl, err := r.Int32()
		if err != nil {
			return nil, err
		}
		// Reflectance is physically non-positive; a positive raw value is
		// the saturation sentinel.
		if refl > 0 {
			ev.Saturated = true
		} else {
			ev.ReflectanceDB = MilliDB(refl)
		}

		code, err := r.Latin1(eventTypeLen)
		if err != nil {
			return nil, err
		}
		ev.Class = DecodeEventCode(code)
		if ev.Class.Reflection == SaturatedReflective {
			ev.Saturated = true
		}

		if entry.Version.IsV2() {
			seg := &EventSegment{}
			if seg.EndOfPrevious, err = r.Uint32(); err != nil {
				return nil, err
			}
			if seg.StartOfCurrent, err = r.Uint32(); err != nil {
				return nil, err
			}
			if seg.EndOfCurrent, err = r.Uint32(); err != nil {
				return nil, err
			}
			if seg.StartOfNext, err = r.Uint32(); err != nil {
				return nil, err
			}
			if seg.Peak, err = r.Uint32(); err != nil {
				return nil, err
			}
			ev.Segment = seg
			ev.Comment = r.CString()
		}

		ke.Events = append(ke.Events, ev)
	}

	if rem := blockEnd - r.Offset(); rem > 0 {
		if rem < trailerBaseWidth {
			return nil, &SizeError{Block: entry.Name, Offset: entry.Offset, Declared: entry.Size, Consumed: r.Offset() - entry.Offset}
		}
		tr := &EventsTrailer{}

		total, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		tr.TotalLossDB = MilliDB(int32(total))

		if tr.FiberStart, err = r.Int32(); err != nil {
			return nil, err
		}

		if tr.FiberLengthRaw, err = r.Uint32(); err != nil {
			return nil, err
		}
		if d, err := Distance(TimeSeconds(tr.FiberLengthRaw), groupIndex); err == nil {
			tr.FiberLengthM = d
			tr.FiberLengthKnown = true
		}

		if entry.Version.IsV2() && blockEnd-r.Offset() >= 4 {
			if tr.FiberLengthDM, err = r.Int32(); err != nil {
				return nil, err
			}
			tr.HasLengthDM = true
		}
		if blockEnd-r.Offset() >= 2 {
			orl, err := r.Uint16()
			if err != nil {
				return nil, err
			}
			tr.ORLDB = MilliDB(int32(orl))
			tr.HasORL = true
		}
		ke.Trailer = tr
	}

	if err := checkSize(r, entry); err != nil {
		return nil, err
	}
	return ke, nil
}
