// Package textflow word-wraps postcard messages against a pixel budget.
package textflow

import (
	"strings"
	"unicode/utf8"
)

// MeasureFunc returns the rendered width of s in pixels.
type MeasureFunc func(s string) float64

// EstimatedGlyphWidth is the per-rune width used when no measurement
// function is available. Tuned for a 40pt body face.
const EstimatedGlyphWidth = 24.0

// Wrap splits message on user newlines first, then greedily wraps each
// segment against maxWidth. Empty user lines are preserved as "" entries so
// they still consume vertical space when drawn. A single word wider than
// maxWidth is placed on its own line; there is no hyphenation. Wrap is pure
// and unbounded; callers cap the output (the back face draws at most 20
// lines).
func Wrap(message string, maxWidth float64, measure MeasureFunc) []string {
	if measure == nil {
		measure = estimateWidth
	}

	var lines []string
	for _, segment := range strings.Split(message, "\n") {
		if strings.TrimSpace(segment) == "" {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range strings.Fields(segment) {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if measure(candidate) <= maxWidth {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
			}
			current = word
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

func estimateWidth(s string) float64 {
	return float64(utf8.RuneCountInString(s)) * EstimatedGlyphWidth
}
