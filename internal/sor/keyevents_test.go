package sor

import (
	"errors"
	"testing"
)

func TestDecodeKeyEventsV1(t *testing.T) {
	trailer := eventsTrailerBody(100, 350, 500000000, 28000, true)
	body := keyEventsBody(t, 100, trailer,
		fixtureEvent{number: 1, rawTime: 100000000, slope: 180, loss: 50, refl: 0, code: "0O......"},
		fixtureEvent{number: 2, rawTime: 300000000, slope: 200, loss: 300, refl: -41500, code: "1O......"},
		fixtureEvent{number: 3, rawTime: 500000000, slope: 0, loss: 0, refl: 0, code: "0F......"},
	)
	file := buildFile(t, 100, fixtureBlock{name: BlockKeyEvents, version: 100, body: body})
	r, entry := decodeSingle(t, file, BlockKeyEvents)

	ke, err := DecodeKeyEvents(r, entry, 1.468)
	if err != nil {
		t.Fatalf("DecodeKeyEvents failed: %v", err)
	}
	if len(ke.Events) != 3 {
		t.Fatalf("events = %d, want 3", len(ke.Events))
	}

	second := ke.Events[1]
	if !almost(second.SpliceLossDB, 0.3) {
		t.Fatalf("splice loss = %v, want 0.3", second.SpliceLossDB)
	}
	if !almost(second.ReflectanceDB, -41.5) || second.Saturated {
		t.Fatalf("reflectance = %v saturated=%v", second.ReflectanceDB, second.Saturated)
	}
	if second.Class.Reflection != Reflective {
		t.Fatalf("reflection class = %v", second.Class.Reflection)
	}
	wantDist := TimeSeconds(300000000) * SpeedOfLight / (2 * 1.468)
	if !second.DistanceKnown || !almost(second.DistanceM, wantDist) {
		t.Fatalf("distance = %v (known=%v), want %v", second.DistanceM, second.DistanceKnown, wantDist)
	}
	// v1.x events carry no segment positions.
	if second.Segment != nil {
		t.Fatal("v1.x event decoded segment positions")
	}

	end, ok := ke.EndOfFiber()
	if !ok || end.Number != 3 {
		t.Fatalf("end-of-fiber = %+v ok=%v", end, ok)
	}

	tr := ke.Trailer
	if tr == nil {
		t.Fatal("trailer missing")
	}
	if !almost(tr.TotalLossDB, 0.35) {
		t.Fatalf("trailer total loss = %v", tr.TotalLossDB)
	}
	if !tr.HasORL || !almost(tr.ORLDB, 28.0) {
		t.Fatalf("trailer ORL = %v (has=%v)", tr.ORLDB, tr.HasORL)
	}
	if !tr.FiberLengthKnown {
		t.Fatal("trailer fiber length unknown")
	}
}

func TestDecodeKeyEventsV2SegmentsAndComments(t *testing.T) {
	trailer := eventsTrailerBody(200, 120, 400000000, 0, false)
	body := keyEventsBody(t, 200, trailer,
		fixtureEvent{
			number: 1, rawTime: 200000000, loss: 120, refl: -14200, code: "1O....L.",
			segment: [5]uint32{0, 10, 20, 30, 15},
			comment: "patch panel",
		},
		fixtureEvent{number: 2, rawTime: 400000000, code: "0F......"},
	)
	file := buildFile(t, 200, fixtureBlock{name: BlockKeyEvents, version: 200, body: body})
	r, entry := decodeSingle(t, file, BlockKeyEvents)

	ke, err := DecodeKeyEvents(r, entry, 1.468)
	if err != nil {
		t.Fatalf("DecodeKeyEvents failed: %v", err)
	}
	first := ke.Events[0]
	if first.Segment == nil {
		t.Fatal("v2.x event missing segment positions")
	}
	if first.Segment.StartOfCurrent != 10 || first.Segment.Peak != 15 {
		t.Fatalf("segment = %+v", first.Segment)
	}
	if first.Comment != "patch panel" {
		t.Fatalf("comment = %q", first.Comment)
	}
	if first.Class.Marker != MarkerLaunch {
		t.Fatalf("marker = %v", first.Class.Marker)
	}
	if ke.Trailer == nil || ke.Trailer.HasORL {
		t.Fatalf("trailer = %+v, want present without ORL", ke.Trailer)
	}
	if !ke.Trailer.HasLengthDM {
		t.Fatal("v2.x trailer missing distance field")
	}
}

func TestDecodeKeyEventsSaturatedSentinel(t *testing.T) {
	body := keyEventsBody(t, 100, nil,
		fixtureEvent{number: 1, rawTime: 1000, refl: 500, code: "2O......"},
	)
	file := buildFile(t, 100, fixtureBlock{name: BlockKeyEvents, version: 100, body: body})
	r, entry := decodeSingle(t, file, BlockKeyEvents)

	ke, err := DecodeKeyEvents(r, entry, 1.468)
	if err != nil {
		t.Fatalf("DecodeKeyEvents failed: %v", err)
	}
	ev := ke.Events[0]
	if !ev.Saturated {
		t.Fatal("positive raw reflectance not flagged saturated")
	}
	if ev.ReflectanceDB != 0 {
		t.Fatalf("saturated event carries reflectance %v", ev.ReflectanceDB)
	}
	if ev.Class.Reflection != SaturatedReflective {
		t.Fatalf("reflection class = %v", ev.Class.Reflection)
	}
}

func TestDecodeKeyEventsInvalidGroupIndexRecoversLocally(t *testing.T) {
	body := keyEventsBody(t, 100, nil,
		fixtureEvent{number: 1, rawTime: 100000000, loss: 50, code: "0O......"},
	)
	file := buildFile(t, 100, fixtureBlock{name: BlockKeyEvents, version: 100, body: body})
	r, entry := decodeSingle(t, file, BlockKeyEvents)

	ke, err := DecodeKeyEvents(r, entry, 0)
	if err != nil {
		t.Fatalf("DecodeKeyEvents failed: %v", err)
	}
	ev := ke.Events[0]
	if ev.DistanceKnown || ev.DistanceM != 0 {
		t.Fatalf("distance = %v known=%v, want unknown", ev.DistanceM, ev.DistanceKnown)
	}
	// The rest of the event still decodes.
	if !almost(ev.SpliceLossDB, 0.05) {
		t.Fatalf("splice loss = %v", ev.SpliceLossDB)
	}
}

func TestDecodeKeyEventsV1WidthMismatch(t *testing.T) {
	body := keyEventsBody(t, 100, nil,
		fixtureEvent{number: 1, rawTime: 1000, code: "0O......"},
	)
	body = append(body, 0xEE) // one stray byte breaks width x count
	file := buildFile(t, 100, fixtureBlock{name: BlockKeyEvents, version: 100, body: body})
	r, entry := decodeSingle(t, file, BlockKeyEvents)

	if _, err := DecodeKeyEvents(r, entry, 1.468); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
}
