// CLAUDE:SUMMARY PDF extraction quality scoring: flags scans that need OCR and text that points at missing figures.
package docpipe

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ExtractionQuality describes how usable the text pulled from a PDF is.
type ExtractionQuality struct {
	PageCount       int     `json:"page_count"`
	CharsPerPage    float64 `json:"chars_per_page"`
	PrintableRatio  float64 `json:"printable_ratio"`
	WordlikeRatio   float64 `json:"wordlike_ratio"`
	HasImageStreams bool    `json:"has_image_streams"`
	VisualRefCount  int     `json:"visual_ref_count"`
}

// NeedsOCR reports pages with no text, sparse text over images, or mostly
// unprintable glyphs.
func (q *ExtractionQuality) NeedsOCR() bool {
	switch {
	case q.PageCount > 0 && q.CharsPerPage == 0:
		return true
	case q.HasImageStreams && q.CharsPerPage < 50:
		return true
	default:
		return q.PrintableRatio < 0.85
	}
}

// HasVisualGap reports text that cites figures or tables in a PDF that
// carries images the text layer cannot show.
func (q *ExtractionQuality) HasVisualGap() bool {
	return q.HasImageStreams && q.VisualRefCount > 0
}

// printableRatio is the share of runes that render as text. Empty text
// counts as fully printable.
func printableRatio(text string) float64 {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return 1
	}
	bad := 0
	for _, r := range text {
		if garbled(r) {
			bad++
		}
	}
	return float64(total-bad) / float64(total)
}

// garbled marks runes left by fonts without a usable ToUnicode map: private
// use code points, U+FFFD, and control characters other than whitespace.
func garbled(r rune) bool {
	switch {
	case r == '\n' || r == '\r' || r == '\t':
		return false
	case r >= 0xE000 && r <= 0xF8FF, r == utf8.RuneError:
		return true
	default:
		return !unicode.IsPrint(r)
	}
}

// wordlikeRatio is the share of whitespace-separated tokens between 2 and 15
// runes long.
func wordlikeRatio(text string) float64 {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return 0
	}
	words := 0
	for _, tok := range tokens {
		if n := utf8.RuneCountInString(tok); n >= 2 && n <= 15 {
			words++
		}
	}
	return float64(words) / float64(len(tokens))
}

var visualRefRe = regexp.MustCompile(`(?i)\b(figure|fig\.|table|tableau|sch[eé]ma|diagram|diagramme|chart|graph|graphique|illustration)\s*\d+`)

// visualRefs counts numbered references to figures, tables and diagrams.
func visualRefs(text string) int {
	return len(visualRefRe.FindAllStringIndex(text, -1))
}
