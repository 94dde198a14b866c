package report

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"example.com/sorgate/internal/sor"
)

// FiberLabelQR creates a QR code PNG identifying the measured fiber: cable
// and fiber ids, wavelength, and the measured length when known. Splice crews
// print these onto patch panel labels.
func FiberLabelQR(doc *sor.Document, size int) ([]byte, error) {
	payload := fiberLabelPayload(doc)
	if payload == "" {
		return nil, fmt.Errorf("document carries no cable or fiber identity")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return png, nil
}

// ArchiveHashQR creates a QR code PNG encoding an archive content hash, so a
// printed report can be traced back to the stored decode.
func ArchiveHashQR(hash string, size int) ([]byte, error) {
	normalized := sanitizeHash(hash)
	if normalized == "" {
		return nil, fmt.Errorf("archive hash is empty")
	}
	if size <= 0 {
		size = 128
	}
	png, err := qrcode.Encode(normalized, qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return png, nil
}

func fiberLabelPayload(doc *sor.Document) string {
	if doc == nil || doc.General == nil {
		return ""
	}
	gp := doc.General
	if strings.TrimSpace(gp.CableID) == "" && strings.TrimSpace(gp.FiberID) == "" {
		return ""
	}
	parts := []string{
		"SOR",
		"cable=" + gp.CableID,
		"fiber=" + gp.FiberID,
		fmt.Sprintf("wl=%dnm", gp.WavelengthNM),
	}
	if doc.Summary.FiberLengthKnown {
		parts = append(parts, fmt.Sprintf("len=%.0fm", doc.Summary.FiberLengthM))
	}
	if doc.Summary.TotalLossKnown {
		parts = append(parts, fmt.Sprintf("loss=%.3fdB", doc.Summary.TotalLossDB))
	}
	return strings.Join(parts, ";")
}

func sanitizeHash(hash string) string {
	upper := strings.ToUpper(strings.TrimSpace(hash))
	if upper == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range upper {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'F':
			b.WriteRune(r)
		}
	}
	return b.String()
}
