/**
 * Tesseract-backed recognition engines
 *
 * Two differently configured engines feed the fusion detector: a sparse-text
 * line engine producing ranked spans with regions and confidences, and a
 * single-block engine producing an undifferentiated text block split into
 * lines. A fresh client is created per call; the underlying Tesseract
 * handle is not safe for concurrent use.
 */

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

const (
	psmSingleBlock = "6"
	psmSparseText  = "11"
)

// LineEngine emits one span per recognized text line, in the recognizer's
// ranking order, each carrying its bounding region and confidence.
type LineEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewLineEngine constructs the line-level engine for the given languages.
func NewLineEngine(languages []string) *LineEngine {
	return &LineEngine{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (e *LineEngine) Name() string { return "tesseract-line" }

// Recognize performs sparse-text recognition and returns line spans.
func (e *LineEngine) Recognize(ctx context.Context, img []byte) ([]Span, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if err := prepareClient(c, img, e.languages, psmSparseText); err != nil {
		return nil, err
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("line boxes: %w", err)
	}

	spans := make([]Span, 0, len(boxes))
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		spans = append(spans, Span{
			Text: b.Word,
			Region: &Region{
				X:      b.Box.Min.X,
				Y:      b.Box.Min.Y,
				Width:  b.Box.Dx(),
				Height: b.Box.Dy(),
			},
			Confidence: b.Confidence / 100.0,
		})
	}
	return spans, nil
}

// BlockEngine treats the image as a single uniform block and splits the
// recognized text into line spans. No regions, no confidences.
type BlockEngine struct {
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewBlockEngine constructs the block-level engine for the given languages.
func NewBlockEngine(languages []string) *BlockEngine {
	return &BlockEngine{
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (e *BlockEngine) Name() string { return "tesseract-block" }

// Recognize performs single-block recognition and returns line spans.
func (e *BlockEngine) Recognize(ctx context.Context, img []byte) ([]Span, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer c.Close()

	if err := prepareClient(c, img, e.languages, psmSingleBlock); err != nil {
		return nil, err
	}

	text, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	lines := strings.Split(text, "\n")
	spans := make([]Span, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		spans = append(spans, Span{Text: line})
	}
	return spans, nil
}

func prepareClient(c *gosseract.Client, img []byte, languages []string, psm string) error {
	if err := c.SetImageFromBytes(img); err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	if len(languages) > 0 {
		if err := c.SetLanguage(languages...); err != nil {
			return fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetVariable(gosseract.SettableVariable("tessedit_pageseg_mode"), psm); err != nil {
		return fmt.Errorf("set page segmentation: %w", err)
	}
	return nil
}
