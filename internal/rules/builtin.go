package rules

import (
	"fmt"

	"example.com/sorgate/internal/sor"
)

func (e *Engine) RegisterBuiltins() {
	e.Register("CheckChecksumMatch", CheckChecksumMatch)
	e.Register("CheckEndOfFiber", CheckEndOfFiber)
	e.Register("CheckGroupIndex", CheckGroupIndex)
	e.Register("CheckTraceConsistency", CheckTraceConsistency)
	e.Register("CheckVocabulary", CheckVocabulary)
	e.Register("CheckSpliceLoss", CheckSpliceLoss)
	e.Register("CheckReflectance", CheckReflectance)
	e.Register("CheckSaturatedEvents", CheckSaturatedEvents)
	e.Register("CheckFiberLength", CheckFiberLength)
	e.Register("CheckORL", CheckORL)
	e.Register("CheckTotalLoss", CheckTotalLoss)
}

// CheckChecksumMatch flags a stored Cksum value that disagrees with the CRC
// computed over the file. An absent Cksum block is a lesser finding.
func CheckChecksumMatch(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	if !doc.Checksum.Present {
		return []Diagnostic{{
			Severity: WARN,
			Message:  "file carries no Cksum block",
		}}, nil
	}
	if !doc.Checksum.Match {
		return []Diagnostic{{
			Message: fmt.Sprintf("checksum mismatch: stored 0x%04X, computed 0x%04X",
				doc.Checksum.Stored, doc.Checksum.Computed),
			Value: fmt.Sprintf("0x%04X", doc.Checksum.Stored),
		}}, nil
	}
	return nil, nil
}

// CheckEndOfFiber requires exactly one event flagged end-of-fiber.
func CheckEndOfFiber(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	if doc.Events == nil {
		return []Diagnostic{{Message: "no KeyEvents block"}}, nil
	}
	count := 0
	for _, ev := range doc.Events.Events {
		if ev.Class.Origin == sor.OriginEndOfFiber {
			count++
		}
	}
	if count == 1 {
		return nil, nil
	}
	return []Diagnostic{{
		Message: fmt.Sprintf("expected one end-of-fiber event, found %d", count),
		Value:   fmt.Sprintf("%d", count),
	}}, nil
}

// CheckGroupIndex verifies the acquisition group index sits in the physically
// plausible band for silica fiber.
func CheckGroupIndex(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	if doc.Acquisition == nil {
		return []Diagnostic{{Message: "no FxdParams block; event distances cannot be computed"}}, nil
	}
	min := floatParam(rule, "minGroupIndex", 1.0)
	max := floatParam(rule, "maxGroupIndex", 2.0)
	gi := doc.Acquisition.GroupIndex
	if gi < min || gi > max {
		return []Diagnostic{{
			Message: fmt.Sprintf("group index %.5f outside [%.2f, %.2f]", gi, min, max),
			Value:   fmt.Sprintf("%.5f", gi),
		}}, nil
	}
	return nil, nil
}

// CheckTraceConsistency compares the DataPts sample span against the declared
// point count and the acquisition setup.
func CheckTraceConsistency(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	if doc.Trace == nil {
		return []Diagnostic{{Severity: WARN, Message: "no DataPts block"}}, nil
	}
	var diags []Diagnostic
	want := int(doc.Trace.TotalPoints) * 2
	if doc.Trace.RawBytes < want {
		diags = append(diags, Diagnostic{
			Message: fmt.Sprintf("trace declares %d points but carries %d bytes of samples",
				doc.Trace.TotalPoints, doc.Trace.RawBytes),
		})
	}
	if doc.Acquisition != nil {
		var declared uint32
		for _, n := range doc.Acquisition.PointsPerTrace {
			declared += n
		}
		if declared != 0 && declared != doc.Trace.TotalPoints {
			diags = append(diags, Diagnostic{
				Severity: WARN,
				Message: fmt.Sprintf("FxdParams declares %d points per trace, DataPts holds %d",
					declared, doc.Trace.TotalPoints),
			})
		}
	}
	return diags, nil
}

// CheckVocabulary surfaces fiber-type and event-type codes outside the
// documented vocabularies. These never aborted the decode; gating makes them
// visible.
func CheckVocabulary(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	var diags []Diagnostic
	if doc.General != nil && !doc.General.FiberType.Known() {
		diags = append(diags, Diagnostic{
			Severity: WARN,
			Message:  fmt.Sprintf("fiber type code %d is not a documented G.65x value", uint16(doc.General.FiberType)),
			Value:    fmt.Sprintf("%d", uint16(doc.General.FiberType)),
		})
	}
	if doc.Events != nil {
		for _, ev := range doc.Events.Events {
			if ev.Class.Reflection == sor.ReflectionUnknown || ev.Class.Origin == sor.OriginUnknown {
				diags = append(diags, Diagnostic{
					Severity:    WARN,
					Message:     fmt.Sprintf("event type code %q has unrecognized characters", ev.Class.Code),
					EventNumber: ev.Number,
					Value:       ev.Class.Code,
				})
			}
		}
	}
	return diags, nil
}

// CheckSpliceLoss flags events whose splice loss exceeds the acceptance
// threshold. The end-of-fiber event is excluded; its loss figure is the
// fiber end reflection, not a splice.
func CheckSpliceLoss(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	if doc.Events == nil {
		return nil, nil
	}
	max := floatParam(rule, "maxSpliceLossDb", 0.3)
	var diags []Diagnostic
	for _, ev := range doc.Events.Events {
		if ev.Class.Origin == sor.OriginEndOfFiber {
			continue
		}
		if ev.SpliceLossDB > max {
			diags = append(diags, Diagnostic{
				Message:     fmt.Sprintf("splice loss %.3f dB exceeds %.3f dB", ev.SpliceLossDB, max),
				EventNumber: ev.Number,
				Value:       fmt.Sprintf("%.3f", ev.SpliceLossDB),
			})
		}
	}
	return diags, nil
}

// CheckReflectance flags reflective events above the acceptance threshold.
// Reflectance is negative dB; larger values mean stronger reflections.
func CheckReflectance(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	if doc.Events == nil {
		return nil, nil
	}
	max := floatParam(rule, "maxReflectanceDb", -35.0)
	var diags []Diagnostic
	for _, ev := range doc.Events.Events {
		if ev.Saturated || ev.Class.Reflection != sor.Reflective {
			continue
		}
		if ev.ReflectanceDB > max {
			diags = append(diags, Diagnostic{
				Message:     fmt.Sprintf("reflectance %.1f dB exceeds %.1f dB", ev.ReflectanceDB, max),
				EventNumber: ev.Number,
				Value:       fmt.Sprintf("%.1f", ev.ReflectanceDB),
			})
		}
	}
	return diags, nil
}

// CheckSaturatedEvents reports events whose reflectance clipped the receiver.
func CheckSaturatedEvents(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	if doc.Events == nil {
		return nil, nil
	}
	var diags []Diagnostic
	for _, ev := range doc.Events.Events {
		if ev.Saturated {
			diags = append(diags, Diagnostic{
				Severity:    WARN,
				Message:     "reflectance saturated the receiver; the stored value is unusable",
				EventNumber: ev.Number,
			})
		}
	}
	return diags, nil
}

// CheckFiberLength verifies the measured span length against the expected
// link bounds.
func CheckFiberLength(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	if !doc.Summary.FiberLengthKnown {
		return []Diagnostic{{Severity: WARN, Message: "fiber length unknown; no end-of-fiber distance"}}, nil
	}
	min := floatParam(rule, "minLengthM", 0)
	max := floatParam(rule, "maxLengthM", 0)
	length := doc.Summary.FiberLengthM
	if min > 0 && length < min {
		return []Diagnostic{{
			Message: fmt.Sprintf("fiber length %.1f m below minimum %.1f m", length, min),
			Value:   fmt.Sprintf("%.1f", length),
		}}, nil
	}
	if max > 0 && length > max {
		return []Diagnostic{{
			Message: fmt.Sprintf("fiber length %.1f m above maximum %.1f m", length, max),
			Value:   fmt.Sprintf("%.1f", length),
		}}, nil
	}
	return nil, nil
}

// CheckORL verifies the optical return loss meets the acceptance minimum.
func CheckORL(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	if !doc.Summary.ORLKnown {
		return nil, nil
	}
	min := floatParam(rule, "minOrlDb", 27.0)
	if doc.Summary.ORLDB < min {
		return []Diagnostic{{
			Message: fmt.Sprintf("ORL %.1f dB below minimum %.1f dB", doc.Summary.ORLDB, min),
			Value:   fmt.Sprintf("%.1f", doc.Summary.ORLDB),
		}}, nil
	}
	return nil, nil
}

// CheckTotalLoss verifies the link budget total against the acceptance
// maximum.
func CheckTotalLoss(ctx *Context, rule Rule) ([]Diagnostic, error) {
	doc := ctx.Doc
	if !doc.Summary.TotalLossKnown {
		return nil, nil
	}
	max := floatParam(rule, "maxTotalLossDb", 0)
	if max > 0 && doc.Summary.TotalLossDB > max {
		return []Diagnostic{{
			Message: fmt.Sprintf("total loss %.3f dB exceeds budget %.3f dB", doc.Summary.TotalLossDB, max),
			Value:   fmt.Sprintf("%.3f", doc.Summary.TotalLossDB),
		}}, nil
	}
	return nil, nil
}

// DefaultRulePack is the built-in acceptance profile used when no pack is
// configured.
func DefaultRulePack() RulePack {
	return RulePack{
		RulePackId: "sor-default",
		Version:    "1.0.0",
		Profile:    "default",
		Rules: []Rule{
			{RuleId: "SOR-001", Name: "Checksum integrity", Stage: StageStructure, Severity: ERROR, CheckFunc: "CheckChecksumMatch", Refs: []string{"SR-4731 §6.9"}},
			{RuleId: "SOR-002", Name: "End-of-fiber event", Stage: StageEvents, Severity: ERROR, CheckFunc: "CheckEndOfFiber", Refs: []string{"SR-4731 §6.7"}},
			{RuleId: "SOR-010", Name: "Group index plausible", Stage: StageAcquisition, Severity: ERROR, CheckFunc: "CheckGroupIndex", Refs: []string{"SR-4731 §6.5"}},
			{RuleId: "SOR-011", Name: "Trace consistency", Stage: StageAcquisition, Severity: ERROR, CheckFunc: "CheckTraceConsistency", Refs: []string{"SR-4731 §6.6"}},
			{RuleId: "SOR-012", Name: "Vocabulary codes", Stage: StageStructure, Severity: WARN, CheckFunc: "CheckVocabulary", Refs: []string{"SR-4731 §6.3"}},
			{RuleId: "SOR-020", Name: "Splice loss", Stage: StageEvents, Severity: ERROR, CheckFunc: "CheckSpliceLoss", Params: map[string]any{"maxSpliceLossDb": 0.3}, Refs: []string{"ITU-T G.652"}},
			{RuleId: "SOR-021", Name: "Reflectance", Stage: StageEvents, Severity: ERROR, CheckFunc: "CheckReflectance", Params: map[string]any{"maxReflectanceDb": -35.0}, Refs: []string{"ITU-T G.652"}},
			{RuleId: "SOR-022", Name: "Saturated events", Stage: StageEvents, Severity: WARN, CheckFunc: "CheckSaturatedEvents"},
			{RuleId: "SOR-030", Name: "Fiber length bounds", Stage: StageBudget, Severity: ERROR, CheckFunc: "CheckFiberLength"},
			{RuleId: "SOR-031", Name: "Optical return loss", Stage: StageBudget, Severity: ERROR, CheckFunc: "CheckORL", Params: map[string]any{"minOrlDb": 27.0}},
			{RuleId: "SOR-032", Name: "Total loss budget", Stage: StageBudget, Severity: ERROR, CheckFunc: "CheckTotalLoss"},
		},
	}
}
