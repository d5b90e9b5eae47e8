// Package export lays out an analysis report on A4 pages and renders it to
// PDF. Layout is a pure pass over a text measurer so pagination can be
// checked without a PDF engine; Exporter draws the result with fpdf.
package export

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Page geometry in millimetres, A4 portrait.
const (
	PageWidth  = 210.0
	PageHeight = 297.0
	Margin     = 15.0
	LinePitch  = 10.0

	titleSize    = 20.0
	businessSize = 12.0
	bodySize     = 11.0
	footerSize   = 8.0

	titleGap    = 15.0
	businessGap = 20.0
	footerInset = 10.0

	labelLimit = 50
)

// Color is an RGB text color.
type Color struct{ R, G, B int }

var (
	titleColor  = Color{0, 102, 204}
	bodyColor   = Color{0, 0, 0}
	footerColor = Color{128, 128, 128}
)

// Image is an encoded PNG with its pixel dimensions.
type Image struct {
	PNG    []byte
	Width  int
	Height int
}

// Report is the content of one export.
type Report struct {
	Title       string
	Business    string
	Body        string
	FooterLabel string
	// Chart, if set, is placed on its own final page.
	Chart *Image
}

// Text is one positioned string. X is the left edge and Y the baseline.
type Text struct {
	X, Y  float64
	Size  float64
	Color Color
	Value string
}

// Placement positions an image on a page.
type Placement struct {
	X, Y, W, H float64
}

// Page is the content of one laid out page.
type Page struct {
	Texts []Text
	Image *Placement
}

// Document is a laid out report ready to be drawn.
type Document struct {
	Pages []Page
	Chart *Image
}

// Measure returns the width in millimetres of s set at size points.
type Measure func(s string, size float64) float64

// TruncateLabel shortens s to 50 characters followed by "..." when longer.
func TruncateLabel(s string) string {
	if utf8.RuneCountInString(s) <= labelLimit {
		return s
	}
	r := []rune(s)
	return string(r[:labelLimit]) + "..."
}

// Layout paginates r. Body lines are wrapped to the text width and a new
// page starts whenever the next line would cross the bottom margin. Every
// page gets a "Page i of N" footer and the confidential label.
func Layout(r Report, measure Measure) Document {
	textWidth := PageWidth - 2*Margin

	doc := Document{Chart: r.Chart}
	cur := &Page{}
	newPage := func() {
		doc.Pages = append(doc.Pages, *cur)
		cur = &Page{}
	}

	y := Margin
	cur.Texts = append(cur.Texts, Text{
		X:     (PageWidth - measure(r.Title, titleSize)) / 2,
		Y:     y,
		Size:  titleSize,
		Color: titleColor,
		Value: r.Title,
	})
	y += titleGap

	cur.Texts = append(cur.Texts, Text{
		X:     Margin,
		Y:     y,
		Size:  businessSize,
		Color: bodyColor,
		Value: "Business: " + TruncateLabel(r.Business),
	})
	y += businessGap

	for _, line := range Wrap(r.Body, textWidth, bodySize, measure) {
		if y+LinePitch > PageHeight-Margin {
			newPage()
			y = Margin
		}
		if line != "" {
			cur.Texts = append(cur.Texts, Text{X: Margin, Y: y, Size: bodySize, Color: bodyColor, Value: line})
		}
		y += LinePitch
	}

	if r.Chart != nil && r.Chart.Width > 0 && r.Chart.Height > 0 {
		newPage()
		cur.Image = fitImage(r.Chart, textWidth, PageHeight-2*Margin)
	}
	doc.Pages = append(doc.Pages, *cur)

	total := len(doc.Pages)
	label := "Confidential - " + r.FooterLabel
	for i := range doc.Pages {
		num := "Page " + strconv.Itoa(i+1) + " of " + strconv.Itoa(total)
		fy := PageHeight - footerInset
		doc.Pages[i].Texts = append(doc.Pages[i].Texts,
			Text{
				X:     PageWidth - Margin - measure(num, footerSize),
				Y:     fy,
				Size:  footerSize,
				Color: footerColor,
				Value: num,
			},
			Text{
				X:     (PageWidth - measure(label, footerSize)) / 2,
				Y:     fy,
				Size:  footerSize,
				Color: footerColor,
				Value: label,
			},
		)
	}
	return doc
}

// fitImage scales img to maxW keeping its aspect ratio, shrinking further
// if the result would not fit in maxH.
func fitImage(img *Image, maxW, maxH float64) *Placement {
	w := maxW
	h := w * float64(img.Height) / float64(img.Width)
	if h > maxH {
		h = maxH
		w = h * float64(img.Width) / float64(img.Height)
	}
	return &Placement{X: Margin, Y: Margin, W: w, H: h}
}

// Wrap splits text into lines no wider than width. Explicit newlines are
// kept, words are broken only when a single word is wider than a line.
func Wrap(text string, width, size float64, measure Measure) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, w := range words {
			cand := w
			if line != "" {
				cand = line + " " + w
			}
			if measure(cand, size) <= width {
				line = cand
				continue
			}
			if line != "" {
				out = append(out, line)
				line = ""
			}
			for measure(w, size) > width {
				head, rest := splitToWidth(w, width, size, measure)
				out = append(out, head)
				w = rest
			}
			line = w
		}
		out = append(out, line)
	}
	return out
}

// splitToWidth returns the longest prefix of w (at least one rune) that fits
// in width, and the remainder.
func splitToWidth(w string, width, size float64, measure Measure) (string, string) {
	r := []rune(w)
	n := 1
	for n < len(r) && measure(string(r[:n+1]), size) <= width {
		n++
	}
	return string(r[:n]), string(r[n:])
}
