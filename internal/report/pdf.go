package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/sorgate/internal/rules"
	"example.com/sorgate/internal/sor"
)

// SaveAcceptancePDF renders the given acceptance report into a PDF document.
func SaveAcceptancePDF(rep rules.AcceptanceReport, out string) error {
	pdf := newPDF("Acceptance Report")
	addPDFTitle(pdf, "Acceptance Report")
	addSummarySection(pdf, rep)
	addGateMatrixSection(pdf, rep.GateMatrix)
	addFindingsSection(pdf, rep.Findings)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

// SaveTracePDF renders the decoded trace alongside its acceptance verdict.
// The report section is skipped when rep is nil.
func SaveTracePDF(doc *sor.Document, rep *rules.AcceptanceReport, out string) error {
	pdf := newPDF("OTDR Trace Report")
	addPDFTitle(pdf, "OTDR Trace Report")
	addTraceSection(pdf, doc)
	addEventTableSection(pdf, doc)
	if rep != nil {
		pdf.AddPage()
		addPDFTitle(pdf, "Acceptance")
		addSummarySection(pdf, *rep)
		addGateMatrixSection(pdf, rep.GateMatrix)
		addFindingsSection(pdf, rep.Findings)
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func newPDF(title string) *gofpdf.Fpdf {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, false)
	pdf.SetAuthor("sorctl", false)
	pdf.SetCreator("sorctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()
	return pdf
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addTraceSection(pdf *gofpdf.Fpdf, doc *sor.Document) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Trace")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := make([]struct{ label, value string }, 0, 12)
	add := func(label, value string) {
		items = append(items, struct{ label, value string }{label, value})
	}
	if gp := doc.General; gp != nil {
		add("Cable / Fiber", gp.CableID+" / "+gp.FiberID)
		add("Fiber Type", gp.FiberType.String())
		add("Wavelength", fmt.Sprintf("%d nm", gp.WavelengthNM))
		add("Route", valueOrDash(gp.LocationA)+" - "+valueOrDash(gp.LocationB))
	}
	if sp := doc.Supplier; sp != nil {
		add("Instrument", strings.TrimSpace(sp.SupplierName+" "+sp.MainframeID))
	}
	if ap := doc.Acquisition; ap != nil {
		if !ap.DateTime.IsZero() {
			add("Acquired", ap.DateTime.Format("2006-01-02 15:04:05"))
		}
		add("Group Index", fmt.Sprintf("%.5f", ap.GroupIndex))
		add("Pulse Widths", joinInts(ap.PulseWidthsNS)+" ns")
	}
	if doc.Summary.FiberLengthKnown {
		add("Fiber Length", fmt.Sprintf("%.1f m", doc.Summary.FiberLengthM))
	}
	if doc.Summary.TotalLossKnown {
		add("Total Loss", fmt.Sprintf("%.3f dB", doc.Summary.TotalLossDB))
	}
	if doc.Summary.ORLKnown {
		add("ORL", fmt.Sprintf("%.1f dB", doc.Summary.ORLDB))
	}
	add("Checksum", checksumLabel(doc.Checksum))

	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addEventTableSection(pdf *gofpdf.Fpdf, doc *sor.Document) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Key Events")
	pdf.Ln(9)

	if doc.Events == nil || len(doc.Events.Events) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No events recorded.", "", "L", false)
		return
	}

	headers := []string{"#", "Distance", "Loss", "Reflectance", "Type"}
	widths := []float64{12, 34, 26, 30, 88}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, ev := range doc.Events.Events {
		refl := "-"
		if ev.Saturated {
			refl = "saturated"
		} else if ev.Class.Reflection != sor.NonReflective {
			refl = fmt.Sprintf("%.1f dB", ev.ReflectanceDB)
		}
		values := []string{
			strconv.Itoa(ev.Number),
			formatDistance(ev),
			fmt.Sprintf("%.3f dB", ev.SpliceLossDB),
			refl,
			ev.Class.Reflection.String() + ", " + ev.Class.Origin.String(),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addSummarySection(pdf *gofpdf.Fpdf, rep rules.AcceptanceReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Total Findings", value: strconv.Itoa(rep.Summary.Total)},
		{label: "Errors", value: strconv.Itoa(rep.Summary.Errors)},
		{label: "Warnings", value: strconv.Itoa(rep.Summary.Warnings)},
		{label: "Overall", value: passLabel(rep.Summary.Pass)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addGateMatrixSection(pdf *gofpdf.Fpdf, rows []rules.GateResult) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Gate Matrix")
	pdf.Ln(9)

	headers := []string{"Stage", "Severity", "Rule", "Name", "Pass", "Findings"}
	widths := []float64{28, 22, 36, 68, 18, 18}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	lineHeight := 5.0
	for _, row := range rows {
		values := []string{
			stageLabel(row.Stage),
			severityLabel(row.Severity),
			row.RuleId,
			emptyFallback(row.Name, "-"),
			passLabel(row.Pass),
			strconv.Itoa(row.Findings),
		}
		renderTableRow(pdf, widths, values, lineHeight)
	}
	pdf.Ln(4)
}

func addFindingsSection(pdf *gofpdf.Fpdf, findings []rules.Diagnostic) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Findings")
	pdf.Ln(9)

	if len(findings) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No findings recorded.", "", "L", false)
		return
	}

	for i, d := range findings {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("%d. %s (%s)", i+1, d.RuleId, severityLabel(d.Severity))
		pdf.MultiCell(0, 5, header, "", "L", false)

		if msg := strings.TrimSpace(d.Message); msg != "" {
			pdf.SetFont("Helvetica", "", 10)
			pdf.MultiCell(0, 5, msg, "", "L", false)
		}

		meta := findingMetadata(d)
		if meta != "" {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, meta, "", "L", false)
		}

		if len(d.Refs) > 0 {
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(0, 4, "Refs: "+strings.Join(d.Refs, ", "), "", "L", false)
		}

		pdf.Ln(2)
	}
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func passLabel(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

func checksumLabel(rec sor.ChecksumRecord) string {
	switch {
	case !rec.Present:
		return "not present"
	case rec.Match:
		return "verified"
	default:
		return fmt.Sprintf("MISMATCH (0x%04X != 0x%04X)", rec.Stored, rec.Computed)
	}
}

func stageLabel(stage rules.RuleStage) string {
	switch stage {
	case rules.StageStructure:
		return "Structure"
	case rules.StageAcquisition:
		return "Acquisition"
	case rules.StageEvents:
		return "Events"
	case rules.StageBudget:
		return "Budget"
	default:
		if s := strings.TrimSpace(string(stage)); s != "" {
			return s
		}
		return "-"
	}
}

func severityLabel(sev rules.Severity) string {
	if s := strings.TrimSpace(string(sev)); s != "" {
		return s
	}
	return "UNKNOWN"
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func findingMetadata(d rules.Diagnostic) string {
	parts := make([]string, 0, 4)
	if !d.Ts.IsZero() {
		parts = append(parts, d.Ts.Format(time.RFC3339))
	}
	if d.File != "" {
		parts = append(parts, d.File)
	}
	if d.EventNumber != 0 {
		parts = append(parts, fmt.Sprintf("Event %d", d.EventNumber))
	}
	if d.Value != "" {
		parts = append(parts, "Value "+d.Value)
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " | ")
}
