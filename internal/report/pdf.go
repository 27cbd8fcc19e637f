package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"example.com/autellog/internal/autelfr"
)

// SaveSummaryPDF renders sum into a PDF document at out.
func SaveSummaryPDF(sum Summary, out string, lang Language) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := WriteSummaryPDF(f, sum, lang); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteSummaryPDF renders sum into w.
func WriteSummaryPDF(w io.Writer, sum Summary, lang Language) error {
	tr := NewTranslator(lang)
	pdf := gofpdf.New("P", "mm", "A4", "")
	enc := newPDFText()
	pdf.SetTitle(enc.text(tr.T("title")), false)
	pdf.SetAuthor("autelctl", false)
	pdf.SetCreator("autelctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, enc.text(tr.T("title")))
	pdf.Ln(12)

	addFlightSection(pdf, enc, tr, sum)
	addRecordsSection(pdf, enc, tr, sum)
	addMediaSection(pdf, enc, tr, sum.Media)
	if err := addIntegritySection(pdf, enc, tr, sum.SHA256); err != nil {
		return err
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.Output(w)
}

// pdfText converts UTF-8 into the cp1252 bytes the core fonts expect.
type pdfText struct {
	enc *encoding.Encoder
}

func newPDFText() pdfText {
	return pdfText{enc: encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())}
}

func (p pdfText) text(s string) string {
	out, err := p.enc.String(s)
	if err != nil {
		return s
	}
	return out
}

func sectionHeading(pdf *gofpdf.Fpdf, enc pdfText, title string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, enc.text(title))
	pdf.Ln(9)
}

func addFlightSection(pdf *gofpdf.Fpdf, enc pdfText, tr Translator, sum Summary) {
	sectionHeading(pdf, enc, tr.T("section.flight"))
	pdf.SetFont("Helvetica", "", 11)
	type row struct {
		label string
		value string
	}
	items := []row{
		{label: tr.T("label.file"), value: sum.Filename},
		{label: tr.T("label.aircraft"), value: emptyFallback(sum.AircraftSN, "-")},
		{label: tr.T("label.battery"), value: emptyFallback(sum.BatterySN, "-")},
		{label: tr.T("label.location"), value: emptyFallback(sum.Location, "-")},
		{label: tr.T("label.droneType"), value: tr.Int(int64(sum.DroneType))},
		{label: tr.T("label.flightAt"), value: formatTime(tr, sum.FlightAt)},
		{label: tr.T("label.timeZone"), value: tr.Int(int64(sum.TimeZone))},
		{label: tr.T("label.flightTime"), value: tr.Int(int64(sum.FlightTime))},
		{label: tr.T("label.distance"), value: tr.Float(sum.Distance, 1) + " m"},
		{label: tr.T("label.maxAltitude"), value: tr.Float(sum.MaxAltitude, 1) + " m"},
		{label: tr.T("label.peakAltitude"), value: tr.Float(sum.PeakAltitude, 1) + " m"},
		{label: tr.T("label.start"), value: formatPosition(tr, sum.StartLat, sum.StartLon)},
		{label: tr.T("label.firmware"), value: emptyFallback(sum.Firmware, "-")},
		{label: tr.T("label.timeline"), value: sum.Duration().String()},
		{label: tr.T("label.trackPoints"), value: tr.Int(int64(sum.TrackPoints))},
		{label: tr.T("label.pathLength"), value: tr.Float(sum.PathLength, 1) + " m"},
	}
	if sum.Bounds != nil {
		items = append(items,
			row{label: tr.T("label.boundsSW"), value: formatPosition(tr, sum.Bounds.South(), sum.Bounds.West())},
			row{label: tr.T("label.boundsNE"), value: formatPosition(tr, sum.Bounds.North(), sum.Bounds.East())},
		)
	}
	for _, item := range items {
		pdf.CellFormat(60, 6, enc.text(item.label), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, enc.text(item.value), "", 1, "L", false, 0, "")
	}
	if sum.MapURL != "" {
		pdf.CellFormat(60, 6, enc.text(tr.T("label.map")), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.CellFormat(0, 6, sum.MapURL, "", 1, "L", false, 0, sum.MapURL)
		pdf.SetFont("Helvetica", "", 11)
	}
	pdf.Ln(4)
}

func addRecordsSection(pdf *gofpdf.Fpdf, enc pdfText, tr Translator, sum Summary) {
	sectionHeading(pdf, enc, tr.T("section.records"))

	headers := []string{tr.T("col.kind"), tr.T("col.count"), tr.T("col.size")}
	widths := []float64{50, 40, 40}
	tableHeader(pdf, enc, headers, widths)

	pdf.SetFont("Helvetica", "", 10)
	for _, kind := range autelfr.BodyKinds {
		renderTableRow(pdf, widths, []string{
			string(kind),
			tr.Int(int64(sum.RecordCounts[string(kind)])),
			tr.Int(int64(autelfr.RecordSize(kind) + 1)),
		}, 6)
	}
	pdf.SetFont("Helvetica", "B", 10)
	renderTableRow(pdf, widths, []string{enc.text(tr.T("total")), tr.Int(int64(sum.TotalRecords)), ""}, 6)
	pdf.Ln(4)
}

func addMediaSection(pdf *gofpdf.Fpdf, enc pdfText, tr Translator, media []Media) {
	sectionHeading(pdf, enc, tr.T("section.media"))
	if len(media) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, enc.text(tr.T("media.none")), "", "L", false)
		pdf.Ln(4)
		return
	}

	headers := []string{tr.T("col.kind"), tr.T("col.name"), tr.T("col.time"), tr.T("col.position"), tr.T("col.duration")}
	widths := []float64{20, 45, 45, 45, 25}
	tableHeader(pdf, enc, headers, widths)

	pdf.SetFont("Helvetica", "", 9)
	for _, m := range media {
		duration := "-"
		if m.Kind == autelfr.KindVideo {
			duration = (time.Duration(m.Duration) * time.Millisecond).String()
		}
		renderTableRow(pdf, widths, []string{
			string(m.Kind),
			enc.text(m.Filename),
			formatTime(tr, m.Timestamp),
			formatPosition(tr, m.Latitude, m.Longitude),
			duration,
		}, 5)
	}
	pdf.Ln(4)
}

func addIntegritySection(pdf *gofpdf.Fpdf, enc pdfText, tr Translator, digest string) error {
	if strings.TrimSpace(digest) == "" {
		return nil
	}
	sectionHeading(pdf, enc, tr.T("section.integrity"))
	pdf.SetFont("Courier", "", 9)
	pdf.MultiCell(0, 5, tr.T("label.sha256")+": "+digest, "", "L", false)

	png, err := DigestToQR(digest, 256)
	if err != nil {
		return fmt.Errorf("digest qr: %w", err)
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("digest", opts, bytes.NewReader(png))
	pdf.ImageOptions("digest", pdf.GetX(), pdf.GetY()+2, 35, 35, true, opts, 0, "")
	return nil
}

func tableHeader(pdf *gofpdf.Fpdf, enc pdfText, headers []string, widths []float64) {
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, enc.text(h), "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)
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
		pdf.MultiCell(widths[i], lineHeight, strings.Join(lines, "\n"), "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func formatTime(tr Translator, t time.Time) string {
	if t.IsZero() {
		return tr.T("unknown")
	}
	return t.UTC().Format(time.RFC3339)
}

func formatPosition(tr Translator, lat, lon float64) string {
	return tr.Float(lat, 6) + " / " + tr.Float(lon, 6)
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
