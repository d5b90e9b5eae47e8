// Package chart rasterizes market figures into a PNG that the exporter can
// place on its own report page.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/kalambet/bizpulse/internal/market"
)

const (
	defaultWidth  = 1024
	defaultHeight = 512
	barWidth      = 80
	barSpacing    = 40
	sideRoom      = 200
)

// Image is an encoded PNG with its pixel dimensions.
type Image struct {
	PNG    []byte
	Width  int
	Height int
}

// Rasterizer draws the regional distribution and market share bar charts
// stacked into one image.
type Rasterizer struct {
	// Width and Height size each chart; zero uses 1024x512.
	Width, Height int
}

// Render draws both charts for d.
func (r Rasterizer) Render(d market.Data) (*Image, error) {
	if len(d.Regions) == 0 && len(d.Shares) == 0 {
		return nil, errors.New("no market figures to chart")
	}

	var parts []image.Image
	for _, c := range []struct {
		title  string
		shares []market.Share
	}{
		{"Regional Distribution", d.Regions},
		{"Market Share Distribution", d.Shares},
	} {
		if len(c.shares) == 0 {
			continue
		}
		img, err := r.bar(c.title, c.shares)
		if err != nil {
			return nil, fmt.Errorf("rendering %s chart: %w", c.title, err)
		}
		parts = append(parts, img)
	}

	return stack(parts)
}

func (r Rasterizer) bar(title string, shares []market.Share) (image.Image, error) {
	w, h := r.Width, r.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	if need := len(shares)*(barWidth+barSpacing) + sideRoom; need > w {
		w = need
	}

	bars := make([]chart.Value, len(shares))
	for i, s := range shares {
		bars[i] = chart.Value{Label: s.Label, Value: s.Percent}
	}

	graph := chart.BarChart{
		Title:      title,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		Width:      w,
		Height:     h,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decoding chart: %w", err)
	}
	return img, nil
}

// stack places parts top to bottom on a white canvas as wide as the widest part.
func stack(parts []image.Image) (*Image, error) {
	width, height := 0, 0
	for _, p := range parts {
		b := p.Bounds()
		width = max(width, b.Dx())
		height += b.Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	y := 0
	for _, p := range parts {
		b := p.Bounds()
		draw.Draw(canvas, image.Rect(0, y, b.Dx(), y+b.Dy()), p, b.Min, draw.Over)
		y += b.Dy()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encoding chart: %w", err)
	}
	return &Image{PNG: buf.Bytes(), Width: width, Height: height}, nil
}
