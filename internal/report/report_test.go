package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"example.com/sorgate/internal/rules"
	"example.com/sorgate/internal/sor"
)

func sampleDocument() *sor.Document {
	return &sor.Document{
		FileSize: 420,
		Directory: sor.Directory{
			MapVersion: 200,
			Entries: []sor.DirectoryEntry{
				{Name: sor.BlockGenParams}, {Name: sor.BlockKeyEvents}, {Name: sor.BlockChecksum},
			},
		},
		General: &sor.GeneralParameters{
			CableID: "CAB-001", FiberID: "F-12", FiberType: 652, WavelengthNM: 1550,
			LocationA: "SITE-A", LocationB: "SITE-B", BuildCondition: "BC", Operator: "tech-1",
		},
		Supplier: &sor.SupplierParameters{
			SupplierName: "ACME Photonics", MainframeID: "AP-9000", MainframeSN: "SN123",
			SoftwareRevision: "2.14",
		},
		Acquisition: &sor.AcquisitionParameters{
			DateTime: time.Date(2023, 11, 14, 9, 30, 0, 0, time.UTC), ActualWavelengthNM: 1550.0,
			PulseWidthsNS: []int{30}, GroupIndex: 1.468, BackscatterDB: -79.0, Averages: 1024,
		},
		Events: &sor.KeyEvents{
			Events: []sor.KeyEvent{
				{Number: 1, DistanceM: 10215.3, DistanceKnown: true, SpliceLossDB: 0.12,
					Class: sor.EventClass{Code: "0O......", Reflection: sor.NonReflective, Origin: sor.OriginOTDRFound}},
				{Number: 2, DistanceM: 25530.8, DistanceKnown: true, ReflectanceDB: -41.5,
					Class: sor.EventClass{Code: "1F......", Reflection: sor.Reflective, Origin: sor.OriginEndOfFiber}},
			},
		},
		Checksum: sor.ChecksumRecord{Present: true, Stored: 0xBEEF, Computed: 0xBEEF, Match: true},
		Summary: sor.LinkBudget{
			TotalLossDB: 0.12, TotalLossKnown: true,
			FiberLengthM: 25530.8, FiberLengthKnown: true,
			ORLDB: 29.5, ORLKnown: true, EndEventNumber: 2,
		},
	}
}

func TestWriteSummaryEnglish(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, sampleDocument(), NewTranslator(LangEnglish)); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"CAB-001 / F-12",
		"G.652",
		"1550 nm",
		"1.46800",
		"25530.8 m",
		"verified",
		"-41.5 dB",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSummaryTurkishUsesLocale(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, sampleDocument(), NewTranslator(LangTurkish)); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Fiber uzunluğu") {
		t.Fatalf("Turkish summary not localized:\n%s", out)
	}
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want Language
		ok   bool
	}{
		{in: "", want: LangEnglish, ok: true},
		{in: "EN", want: LangEnglish, ok: true},
		{in: "en_US.UTF-8", want: LangEnglish, ok: true},
		{in: "tr-TR", want: LangTurkish, ok: true},
		{in: "turkce", want: LangTurkish, ok: true},
		{in: "fr", want: LangEnglish, ok: false},
	}
	for _, tc := range tests {
		lang, err := ParseLanguage(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseLanguage(%q) failed: %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseLanguage(%q) should fail", tc.in)
		}
		if lang != tc.want {
			t.Fatalf("ParseLanguage(%q) = %s, want %s", tc.in, lang, tc.want)
		}
	}
}

func TestWriteSummaryChecksumMismatch(t *testing.T) {
	doc := sampleDocument()
	doc.Checksum.Computed = 0x1111
	doc.Checksum.Match = false

	var buf bytes.Buffer
	if err := WriteSummary(&buf, doc, NewTranslator(LangEnglish)); err != nil {
		t.Fatalf("WriteSummary failed: %v", err)
	}
	if !strings.Contains(buf.String(), "MISMATCH") {
		t.Fatalf("mismatch not surfaced:\n%s", buf.String())
	}
}

func TestSaveAcceptanceJSONRoundTrip(t *testing.T) {
	var rep rules.AcceptanceReport
	rep.Summary.Total = 2
	rep.Summary.Errors = 1
	rep.Summary.Warnings = 1
	rep.Findings = []rules.Diagnostic{
		{RuleId: "SOR-001", Severity: rules.ERROR, Message: "checksum mismatch"},
		{RuleId: "SOR-022", Severity: rules.WARN, Message: "saturated", EventNumber: 2},
	}

	out := filepath.Join(t.TempDir(), "acceptance.json")
	if err := SaveAcceptanceJSON(rep, out); err != nil {
		t.Fatalf("SaveAcceptanceJSON failed: %v", err)
	}
	loaded, err := LoadAcceptanceJSON(out)
	if err != nil {
		t.Fatalf("LoadAcceptanceJSON failed: %v", err)
	}
	if loaded.Summary.Errors != 1 || len(loaded.Findings) != 2 {
		t.Fatalf("round trip lost data: %+v", loaded)
	}
	if loaded.Findings[1].EventNumber != 2 {
		t.Fatalf("event number lost: %+v", loaded.Findings[1])
	}
}

func TestSaveTracePDF(t *testing.T) {
	var rep rules.AcceptanceReport
	rep.Summary.Pass = true
	rep.GateMatrix = []rules.GateResult{
		{Stage: rules.StageStructure, Severity: rules.ERROR, RuleId: "SOR-001", Name: "Checksum integrity", Pass: true},
	}

	out := filepath.Join(t.TempDir(), "trace.pdf")
	if err := SaveTracePDF(sampleDocument(), &rep, out); err != nil {
		t.Fatalf("SaveTracePDF failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("output is not a PDF (starts %q)", data[:4])
	}
}

func TestFiberLabelQR(t *testing.T) {
	png, err := FiberLabelQR(sampleDocument(), 0)
	if err != nil {
		t.Fatalf("FiberLabelQR failed: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatal("QR output is not a PNG")
	}

	if _, err := FiberLabelQR(&sor.Document{}, 128); err == nil {
		t.Fatal("expected error for document without identity")
	}
}

func TestFiberLabelPayload(t *testing.T) {
	payload := fiberLabelPayload(sampleDocument())
	for _, want := range []string{"cable=CAB-001", "fiber=F-12", "wl=1550nm", "len=25531m"} {
		if !strings.Contains(payload, want) {
			t.Fatalf("payload %q missing %q", payload, want)
		}
	}
}

func TestArchiveHashQRSanitizes(t *testing.T) {
	png, err := ArchiveHashQR(" deadBEEF-0123 ", 64)
	if err != nil {
		t.Fatalf("ArchiveHashQR failed: %v", err)
	}
	if len(png) == 0 {
		t.Fatal("empty QR output")
	}
	if _, err := ArchiveHashQR("zz--", 64); err == nil {
		t.Fatal("expected error for hash without hex digits")
	}
}
