package ocr

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Region is a span's bounding box in image pixels
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Span is one unit of recognized text evidence. Order is the span's position
// in the fused sequence; extraction depends on it.
type Span struct {
	Text   string
	Engine string
	Order  int

	// Set only by engines that localize text
	Region     *Region
	Confidence float64 // 0..1
}

// Engine recognizes text on an encoded image. Implementations must be safe
// for concurrent Recognize calls.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img []byte) ([]Span, error)
}

// Normalize applies NFKC folding, removes control characters, and trims
// surrounding whitespace. Whitespace-only input normalizes to "".
func Normalize(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return strings.TrimSpace(normed)
}
