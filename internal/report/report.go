package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"example.com/sorgate/internal/rules"
	"example.com/sorgate/internal/sor"
)

func SaveAcceptanceJSON(rep rules.AcceptanceReport, out string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadAcceptanceJSON(path string) (rules.AcceptanceReport, error) {
	var rep rules.AcceptanceReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}

func SaveDocumentJSON(doc *sor.Document, out string) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

// WriteSummary renders a human-readable synopsis of a decoded trace file.
func WriteSummary(w io.Writer, doc *sor.Document, tr Translator) error {
	var b strings.Builder

	writeHeading(&b, tr.T("summary.title"))
	fmt.Fprintf(&b, "%s: %s\n", tr.T("summary.blocks"), strings.Join(doc.Directory.Names(), ", "))
	fmt.Fprintf(&b, "%s: %s (%d %s)\n", tr.T("summary.mapVersion"), doc.Directory.MapVersion, doc.FileSize, tr.T("summary.bytes"))

	if sp := doc.Supplier; sp != nil {
		writeHeading(&b, tr.T("summary.supplier"))
		fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.supplierName"), sp.SupplierName)
		fmt.Fprintf(&b, "  %s: %s / %s\n", tr.T("summary.mainframe"), sp.MainframeID, sp.MainframeSN)
		if sp.ModuleID != "" {
			fmt.Fprintf(&b, "  %s: %s / %s\n", tr.T("summary.module"), sp.ModuleID, sp.ModuleSN)
		}
		fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.software"), sp.SoftwareRevision)
	}

	if gp := doc.General; gp != nil {
		writeHeading(&b, tr.T("summary.general"))
		fmt.Fprintf(&b, "  %s: %s / %s\n", tr.T("summary.cableFiber"), gp.CableID, gp.FiberID)
		fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.fiberType"), gp.FiberType)
		fmt.Fprintf(&b, "  %s: %d nm\n", tr.T("summary.wavelength"), gp.WavelengthNM)
		fmt.Fprintf(&b, "  %s: %s -> %s\n", tr.T("summary.route"), valueOrDash(gp.LocationA), valueOrDash(gp.LocationB))
		fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.buildCondition"), gp.BuildCondition.Description())
		if gp.Operator != "" {
			fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.operator"), gp.Operator)
		}
		if gp.Comment != "" {
			fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.comment"), gp.Comment)
		}
	}

	if ap := doc.Acquisition; ap != nil {
		writeHeading(&b, tr.T("summary.acquisition"))
		if !ap.DateTime.IsZero() {
			fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.date"), ap.DateTime.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(&b, "  %s: %.1f nm\n", tr.T("summary.actualWavelength"), ap.ActualWavelengthNM)
		fmt.Fprintf(&b, "  %s: %s ns\n", tr.T("summary.pulseWidths"), joinInts(ap.PulseWidthsNS))
		fmt.Fprintf(&b, "  %s: %.5f\n", tr.T("summary.groupIndex"), ap.GroupIndex)
		fmt.Fprintf(&b, "  %s: %.1f dB\n", tr.T("summary.backscatter"), ap.BackscatterDB)
		fmt.Fprintf(&b, "  %s: %d\n", tr.T("summary.averages"), ap.Averages)
		if ap.HasTraceType {
			fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.traceType"), ap.TraceType.Description())
		}
	}

	if td := doc.Trace; td != nil {
		writeHeading(&b, tr.T("summary.trace"))
		fmt.Fprintf(&b, "  %s: %d (%d %s)\n", tr.T("summary.points"), td.TotalPoints, td.TraceCount, tr.T("summary.traces"))
	}

	if ke := doc.Events; ke != nil {
		writeHeading(&b, tr.T("summary.events"))
		fmt.Fprintf(&b, "  %-4s %-12s %-10s %-12s %s\n",
			"#", tr.T("summary.colDistance"), tr.T("summary.colLoss"), tr.T("summary.colReflectance"), tr.T("summary.colType"))
		for _, ev := range ke.Events {
			fmt.Fprintf(&b, "  %-4d %-12s %-10s %-12s %s\n",
				ev.Number,
				formatDistance(ev),
				fmt.Sprintf("%.3f dB", ev.SpliceLossDB),
				formatReflectance(ev, tr),
				describeEvent(ev, tr))
		}
	}

	writeHeading(&b, tr.T("summary.budget"))
	if doc.Summary.TotalLossKnown {
		fmt.Fprintf(&b, "  %s: %.3f dB\n", tr.T("summary.totalLoss"), doc.Summary.TotalLossDB)
	}
	if doc.Summary.FiberLengthKnown {
		fmt.Fprintf(&b, "  %s: %.1f m\n", tr.T("summary.fiberLength"), doc.Summary.FiberLengthM)
	} else {
		fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.fiberLength"), tr.T("summary.unknown"))
	}
	if doc.Summary.ORLKnown {
		fmt.Fprintf(&b, "  %s: %.1f dB\n", tr.T("summary.orl"), doc.Summary.ORLDB)
	}

	switch {
	case !doc.Checksum.Present:
		fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.checksum"), tr.T("summary.checksumAbsent"))
	case doc.Checksum.Match:
		fmt.Fprintf(&b, "  %s: %s\n", tr.T("summary.checksum"), tr.T("summary.checksumOk"))
	default:
		fmt.Fprintf(&b, "  %s: %s (0x%04X != 0x%04X)\n", tr.T("summary.checksum"), tr.T("summary.checksumBad"),
			doc.Checksum.Stored, doc.Checksum.Computed)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeHeading(b *strings.Builder, title string) {
	fmt.Fprintf(b, "%s\n", title)
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return strings.Join(parts, ", ")
}

func formatDistance(ev sor.KeyEvent) string {
	if !ev.DistanceKnown {
		return "-"
	}
	return fmt.Sprintf("%.1f m", ev.DistanceM)
}

func formatReflectance(ev sor.KeyEvent, tr Translator) string {
	if ev.Saturated {
		return tr.T("summary.saturated")
	}
	if ev.Class.Reflection == sor.NonReflective {
		return "-"
	}
	return fmt.Sprintf("%.1f dB", ev.ReflectanceDB)
}

func describeEvent(ev sor.KeyEvent, tr Translator) string {
	parts := []string{ev.Class.Reflection.String(), ev.Class.Origin.String()}
	if ev.Class.Marker != sor.MarkerNone {
		parts = append(parts, ev.Class.Marker.String())
	}
	if ev.Comment != "" {
		parts = append(parts, fmt.Sprintf("%q", ev.Comment))
	}
	return strings.Join(parts, ", ")
}
