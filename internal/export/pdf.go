package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	defaultFont = "Helvetica"
	chartName   = "chart"
)

// ExportError reports a failure to render a report.
type ExportError struct {
	Title string
	Err   error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("exporting %q: %v", e.Title, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// Exporter renders reports to PDF with fpdf's core fonts.
type Exporter struct {
	// FontFamily is a core font name; empty uses Helvetica.
	FontFamily string
}

// Export lays out r and renders it to PDF bytes. Text is translated to the
// core font code page; characters outside it are substituted.
func (e Exporter) Export(r Report) ([]byte, error) {
	family := e.FontFamily
	if family == "" {
		family = defaultFont
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(r.Title, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	measure := func(s string, size float64) float64 {
		pdf.SetFont(family, "", size)
		return pdf.GetStringWidth(tr(s))
	}
	doc := Layout(r, measure)

	if doc.Chart != nil {
		opts := fpdf.ImageOptions{ImageType: "PNG"}
		pdf.RegisterImageOptionsReader(chartName, opts, bytes.NewReader(doc.Chart.PNG))
	}

	for _, p := range doc.Pages {
		pdf.AddPage()
		for _, t := range p.Texts {
			pdf.SetFont(family, "", t.Size)
			pdf.SetTextColor(t.Color.R, t.Color.G, t.Color.B)
			pdf.Text(t.X, t.Y, tr(t.Value))
		}
		if p.Image != nil && doc.Chart != nil {
			pdf.ImageOptions(chartName, p.Image.X, p.Image.Y, p.Image.W, p.Image.H,
				false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		}
		if err := pdf.Error(); err != nil {
			return nil, &ExportError{Title: r.Title, Err: err}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &ExportError{Title: r.Title, Err: err}
	}
	return buf.Bytes(), nil
}
