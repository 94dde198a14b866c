package sor

import (
	"fmt"
	"time"
)

// Block names defined by SR-4731 / GR-196. Any other name in the directory
// belongs to a vendor extension; such blocks are located but not decoded.
const (
	BlockMap       = "Map"
	BlockGenParams = "GenParams"
	BlockSupParams = "SupParams"
	BlockFxdParams = "FxdParams"
	BlockDataPts   = "DataPts"
	BlockKeyEvents = "KeyEvents"
	BlockChecksum  = "Cksum"
)

// Version is a block format revision stored as an integer scaled by 100,
// so 200 reads as "2.00". Each block declares its own version; the layout
// split the decoders care about is v1.x versus v2.x.
type Version uint16

const v2Threshold Version = 200

// IsV2 reports whether the version selects the v2.x field layout.
func (v Version) IsV2() bool { return v >= v2Threshold }

func (v Version) String() string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}

// DirectoryEntry locates one block within the file.
type DirectoryEntry struct {
	Name    string  `json:"name"`
	Version Version `json:"version"`
	Size    int     `json:"size"`
	Offset  int     `json:"offset"`
}

// Directory is the decoded Map block: an ordered index of every other block.
type Directory struct {
	MapVersion Version          `json:"mapVersion"`
	MapSize    int              `json:"mapSize"`
	Entries    []DirectoryEntry `json:"entries"`
}

// Find returns the entry for the named block.
func (d Directory) Find(name string) (DirectoryEntry, bool) {
	for _, e := range d.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return DirectoryEntry{}, false
}

// Names returns the block names in on-disk order.
func (d Directory) Names() []string {
	out := make([]string, len(d.Entries))
	for i, e := range d.Entries {
		out[i] = e.Name
	}
	return out
}

// FiberType is the ITU-T G.65x fiber classification code from GenParams.
type FiberType uint16

var fiberTypeNames = map[FiberType]string{
	651: "multimode",
	652: "standard SM",
	653: "dispersion-shifted",
	654: "cut-off shifted",
	655: "NZ-DSF",
	656: "wideband NZ-DSF",
	657: "bend-insensitive",
}

// Known reports whether the code is one of the documented G.65x values.
func (ft FiberType) Known() bool {
	_, ok := fiberTypeNames[ft]
	return ok
}

// Designation returns the ITU designation such as "G.652", or "" for an
// unrecognized code.
func (ft FiberType) Designation() string {
	if !ft.Known() {
		return ""
	}
	return fmt.Sprintf("G.%d", uint16(ft))
}

func (ft FiberType) String() string {
	name, ok := fiberTypeNames[ft]
	if !ok {
		return fmt.Sprintf("unknown (%d)", uint16(ft))
	}
	return fmt.Sprintf("G.%d (%s)", uint16(ft), name)
}

// BuildCondition is the two-letter fiber build state code from GenParams.
type BuildCondition string

var buildConditionNames = map[BuildCondition]string{
	"BC": "as-built",
	"CC": "as-current",
	"RC": "as-repaired",
	"OT": "other",
}

func (bc BuildCondition) Description() string {
	if name, ok := buildConditionNames[bc]; ok {
		return name
	}
	return string(bc)
}

// TraceType is the two-letter acquisition trace tag carried by v2.x FxdParams.
type TraceType string

var traceTypeNames = map[TraceType]string{
	"ST": "standard",
	"RT": "reverse",
	"DT": "difference",
	"RF": "reference",
}

func (tt TraceType) Description() string {
	if name, ok := traceTypeNames[tt]; ok {
		return name
	}
	return string(tt)
}

// GeneralParameters is the decoded GenParams block: cable and fiber identity
// plus the test setup description.
type GeneralParameters struct {
	Version        Version        `json:"version"`
	Language       string         `json:"language,omitempty"`
	CableID        string         `json:"cableId"`
	FiberID        string         `json:"fiberId"`
	FiberType      FiberType      `json:"fiberType"`
	WavelengthNM   int            `json:"wavelengthNm"`
	LocationA      string         `json:"locationA"`
	LocationB      string         `json:"locationB"`
	CableCode      string         `json:"cableCode,omitempty"`
	BuildCondition BuildCondition `json:"buildCondition"`
	UserOffset     int32          `json:"userOffset"`
	UserOffsetDM   int32          `json:"userOffsetDm,omitempty"`
	HasOffsetDM    bool           `json:"-"`
	Operator       string         `json:"operator"`
	Comment        string         `json:"comment,omitempty"`
}

// SupplierParameters is the decoded SupParams block: OTDR equipment identity.
type SupplierParameters struct {
	Version          Version `json:"version"`
	SupplierName     string  `json:"supplierName"`
	MainframeID      string  `json:"mainframeId"`
	MainframeSN      string  `json:"mainframeSn"`
	ModuleID         string  `json:"moduleId"`
	ModuleSN         string  `json:"moduleSn"`
	SoftwareRevision string  `json:"softwareRevision"`
	Other            string  `json:"other,omitempty"`
}

// AcquisitionParameters is the decoded FxdParams block.
type AcquisitionParameters struct {
	Version             Version   `json:"version"`
	Timestamp           uint32    `json:"timestamp"`
	DateTime            time.Time `json:"dateTime,omitempty"`
	DistanceUnits       string    `json:"distanceUnits"`
	ActualWavelengthNM  float64   `json:"actualWavelengthNm"`
	AcquisitionOffset   int32     `json:"acquisitionOffset"`
	AcquisitionOffsetDM int32     `json:"acquisitionOffsetDm,omitempty"`
	HasOffsetDM         bool      `json:"-"`
	PulseWidthsNS       []int     `json:"pulseWidthsNs"`
	DataSpacing         []uint32  `json:"dataSpacing"`
	PointsPerTrace      []uint32  `json:"pointsPerTrace"`
	GroupIndex          float64   `json:"groupIndex"`
	BackscatterDB       float64   `json:"backscatterDb"`
	Averages            uint32    `json:"averages"`
	AveragingTimeS      int       `json:"averagingTimeS"`
	Range               uint32    `json:"range"`
	RangeDM             int32     `json:"rangeDm,omitempty"`
	HasRangeDM          bool      `json:"-"`
	FrontPanelOffset    int32     `json:"frontPanelOffset"`
	NoiseFloor          uint16    `json:"noiseFloor"`
	NoiseFloorScale     uint16    `json:"noiseFloorScale"`
	PowerOffset         uint16    `json:"powerOffset"`
	LossThresholdDB     float64   `json:"lossThresholdDb"`
	ReflectanceThreshDB float64   `json:"reflectanceThresholdDb"`
	EndOfFiberThreshDB  float64   `json:"endOfFiberThresholdDb"`
	TraceType           TraceType `json:"traceType,omitempty"`
	HasTraceType        bool      `json:"-"`
}

// TraceData summarizes the DataPts block. The raw sample span is kept as a
// view into the input buffer; per-sample decoding is deferred to callers
// that need the full curve.
type TraceData struct {
	Version     Version `json:"version"`
	TotalPoints uint32  `json:"totalPoints"`
	TraceCount  int     `json:"traceCount"`
	RawBytes    int     `json:"rawBytes"`
	raw         []byte
}

// Samples decodes the raw span as 16-bit amplitudes scaled to dB. Values are
// stored as attenuation counts; amplitude dB = -raw/1000.
func (t *TraceData) Samples() []float64 {
	n := len(t.raw) / 2
	if uint32(n) > t.TotalPoints {
		n = int(t.TotalPoints)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		raw := uint16(t.raw[2*i]) | uint16(t.raw[2*i+1])<<8
		out[i] = -float64(raw) / 1000
	}
	return out
}

// ReflectionClass is the decoded first character of an event-type code.
type ReflectionClass int

const (
	ReflectionUnknown ReflectionClass = iota
	NonReflective
	Reflective
	SaturatedReflective
)

func (c ReflectionClass) String() string {
	switch c {
	case NonReflective:
		return "non-reflective"
	case Reflective:
		return "reflective"
	case SaturatedReflective:
		return "saturated reflective"
	default:
		return "unknown"
	}
}

// EventOrigin is the decoded second character of an event-type code.
type EventOrigin int

const (
	OriginUnknown EventOrigin = iota
	OriginEndOfFiber
	OriginUserAdded
	OriginOTDRFound
	OriginUserMoved
)

func (o EventOrigin) String() string {
	switch o {
	case OriginEndOfFiber:
		return "end-of-fiber"
	case OriginUserAdded:
		return "added-by-user"
	case OriginOTDRFound:
		return "found-by-OTDR"
	case OriginUserMoved:
		return "moved-by-user"
	default:
		return "unknown"
	}
}

// FiberMarker is the decoded seventh character of an event-type code.
type FiberMarker int

const (
	MarkerNone FiberMarker = iota
	MarkerLaunch
	MarkerTail
)

func (m FiberMarker) String() string {
	switch m {
	case MarkerLaunch:
		return "launch-fiber"
	case MarkerTail:
		return "tail-fiber"
	default:
		return "none"
	}
}

// EventClass is the component-wise decode of the fixed 8-character event
// type code.
type EventClass struct {
	Code       string          `json:"code"`
	Reflection ReflectionClass `json:"reflection"`
	Origin     EventOrigin     `json:"origin"`
	Marker     FiberMarker     `json:"marker"`
}

// EventSegment carries the v2.x sample positions bracketing an event.
type EventSegment struct {
	EndOfPrevious  uint32 `json:"endOfPrevious"`
	StartOfCurrent uint32 `json:"startOfCurrent"`
	EndOfCurrent   uint32 `json:"endOfCurrent"`
	StartOfNext    uint32 `json:"startOfNext"`
	Peak           uint32 `json:"peak"`
}

// KeyEvent is one detected fiber feature: splice, connector, bend, or the
// end of the fiber.
type KeyEvent struct {
	Number        int           `json:"number"`
	RawTime       uint32        `json:"rawTime"`
	TimeSeconds   float64       `json:"timeSeconds"`
	DistanceM     float64       `json:"distanceM"`
	DistanceKnown bool          `json:"distanceKnown"`
	SlopeDBKM     float64       `json:"slopeDbKm"`
	SpliceLossDB  float64       `json:"spliceLossDb"`
	ReflectanceDB float64       `json:"reflectanceDb"`
	Saturated     bool          `json:"saturated,omitempty"`
	Class         EventClass    `json:"class"`
	Segment       *EventSegment `json:"segment,omitempty"`
	Comment       string        `json:"comment,omitempty"`
}

// EventsTrailer carries the link summary fields stored after the event list.
type EventsTrailer struct {
	TotalLossDB      float64 `json:"totalLossDb"`
	FiberStart       int32   `json:"fiberStart"`
	FiberLengthRaw   uint32  `json:"fiberLengthRaw"`
	FiberLengthM     float64 `json:"fiberLengthM"`
	FiberLengthKnown bool    `json:"fiberLengthKnown"`
	FiberLengthDM    int32   `json:"fiberLengthDm,omitempty"`
	HasLengthDM      bool    `json:"-"`
	ORLDB            float64 `json:"orlDb,omitempty"`
	HasORL           bool    `json:"-"`
}

// KeyEvents is the decoded KeyEvents block.
type KeyEvents struct {
	Version Version        `json:"version"`
	Events  []KeyEvent     `json:"events"`
	Trailer *EventsTrailer `json:"trailer,omitempty"`
}

// EndOfFiber returns the event flagged as end-of-fiber. The decoder relies
// on the explicit origin flag, never on list position.
func (k *KeyEvents) EndOfFiber() (KeyEvent, bool) {
	if k == nil {
		return KeyEvent{}, false
	}
	for _, ev := range k.Events {
		if ev.Class.Origin == OriginEndOfFiber {
			return ev, true
		}
	}
	return KeyEvent{}, false
}

// ChecksumRecord compares the stored Cksum value against the CRC computed
// over the preceding file bytes. A mismatch is reported, never fatal.
type ChecksumRecord struct {
	Present  bool   `json:"present"`
	Stored   uint16 `json:"stored,omitempty"`
	Computed uint16 `json:"computed,omitempty"`
	Match    bool   `json:"match"`
}

// LinkBudget is the derived file-level summary.
type LinkBudget struct {
	TotalLossDB      float64 `json:"totalLossDb,omitempty"`
	TotalLossKnown   bool    `json:"totalLossKnown"`
	FiberLengthM     float64 `json:"fiberLengthM,omitempty"`
	FiberLengthKnown bool    `json:"fiberLengthKnown"`
	ORLDB            float64 `json:"orlDb,omitempty"`
	ORLKnown         bool    `json:"orlKnown"`
	EndEventNumber   int     `json:"endEventNumber,omitempty"`
}

// Document is the complete decoded SOR file. It is assembled once per parse
// call and never mutated afterwards. Block pointers are nil when the
// directory does not list the block.
type Document struct {
	FileSize    int                    `json:"fileSize"`
	Directory   Directory              `json:"directory"`
	General     *GeneralParameters     `json:"general,omitempty"`
	Supplier    *SupplierParameters    `json:"supplier,omitempty"`
	Acquisition *AcquisitionParameters `json:"acquisition,omitempty"`
	Trace       *TraceData             `json:"trace,omitempty"`
	Events      *KeyEvents             `json:"events,omitempty"`
	Checksum    ChecksumRecord         `json:"checksum"`
	Summary     LinkBudget             `json:"summary"`
}
