// Package market extracts the chartable figures from a market assessment.
package market

import (
	"regexp"
	"strconv"
	"strings"
)

// Share is one labelled percentage.
type Share struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
}

// Data holds the figures parsed from an assessment. SizeBillions and
// GrowthPercent are zero when absent.
type Data struct {
	SizeBillions  float64 `json:"size_billions"`
	GrowthPercent float64 `json:"growth_percent"`
	Regions       []Share `json:"regions"`
	Shares        []Share `json:"shares"`
}

// DefaultRegions is used when the assessment names no region.
var DefaultRegions = []Share{
	{"North America", 35},
	{"Europe", 28},
	{"Asia Pacific", 22},
	{"Latin America", 10},
	{"Middle East & Africa", 5},
}

var (
	sizeRe   = regexp.MustCompile(`(?i)Market\s+Size\s+2024:\s*(\d+(?:\.\d+)?)\s*Billion`)
	growthRe = regexp.MustCompile(`(?i)Annual\s+Growth\s+Rate:\s*(\d+(?:\.\d+)?)\s*%`)
	regionRe = regexp.MustCompile(`(?i)(North America|Europe|Asia Pacific|Latin America|Middle East & Africa):\s*(\d+(?:\.\d+)?)\s*%`)
	shareRe  = regexp.MustCompile(`^\s*-?\s*([^:]+?):\s*(\d+(?:\.\d+)?)\s*%`)
)

const shareHeading = "market share distribution"

// Parse extracts market size, growth rate, regional distribution and market
// shares from text. It never fails: missing regions fall back to
// DefaultRegions and missing shares to a single "Others" entry.
func Parse(text string) Data {
	var d Data
	if m := sizeRe.FindStringSubmatch(text); m != nil {
		d.SizeBillions = parseFloat(m[1])
	}
	if m := growthRe.FindStringSubmatch(text); m != nil {
		d.GrowthPercent = parseFloat(m[1])
	}

	for _, m := range regionRe.FindAllStringSubmatch(text, -1) {
		d.Regions = append(d.Regions, Share{Label: canonicalRegion(m[1]), Percent: clamp(parseFloat(m[2]))})
	}
	if len(d.Regions) == 0 {
		d.Regions = append([]Share(nil), DefaultRegions...)
	}

	d.Shares = parseShares(text)
	if len(d.Shares) == 0 {
		d.Shares = []Share{{Label: "Others", Percent: 100}}
	}
	return d
}

// parseShares reads "label: N%" lines following the market share heading,
// up to the first blank line or line without a percentage.
func parseShares(text string) []Share {
	lines := strings.Split(text, "\n")
	start := -1
	for i, l := range lines {
		if strings.Contains(strings.ToLower(l), shareHeading) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	var out []Share
	for _, l := range lines[start:] {
		if strings.TrimSpace(l) == "" {
			if len(out) > 0 {
				break
			}
			continue
		}
		m := shareRe.FindStringSubmatch(l)
		if m == nil {
			break
		}
		label := strings.TrimSpace(m[1])
		if label == "" {
			continue
		}
		out = append(out, Share{Label: label, Percent: clamp(parseFloat(m[2]))})
	}
	return out
}

func canonicalRegion(s string) string {
	for _, r := range DefaultRegions {
		if strings.EqualFold(r.Label, s) {
			return r.Label
		}
	}
	return s
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func clamp(p float64) float64 {
	return max(0, min(100, p))
}
