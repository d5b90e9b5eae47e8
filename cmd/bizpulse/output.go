package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/bizpulse/internal/page"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

func stateColor(s page.State) string {
	switch s {
	case page.Ready:
		return colorGreen
	case page.Cached:
		return colorCyan
	case page.Loading:
		return colorYellow
	case page.Failed:
		return colorRed
	default:
		return colorReset
	}
}

// printSnapshot writes a page to w: a status header, then the analysis text
// or the failure message with its hint.
func printSnapshot(w io.Writer, s page.Snapshot) {
	header := fmt.Sprintf("[%s] %s", s.Kind, s.State)
	fmt.Fprintln(w, colorize(colorBold+stateColor(s.State), header))
	if s.DisplayedInput != "" && s.DisplayedInput != s.Input {
		fmt.Fprintf(w, "(showing results for %q)\n", s.DisplayedInput)
	}
	switch {
	case s.Error != "":
		fmt.Fprintln(w, colorize(colorRed, s.Error))
		if s.Hint != "" {
			fmt.Fprintln(w, s.Hint)
		}
	case s.Text != "":
		fmt.Fprintln(w, s.Text)
	case s.State == page.Idle:
		fmt.Fprintln(w, "No business input yet. Set one with: bizpulse input set \"<description>\"")
	}
}
