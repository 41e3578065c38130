package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/catalogforge/paramextract/internal/logging"
)

// Detector fuses the spans of several engines into one ordered evidence
// sequence: engines in construction order, each engine's spans in its own
// output order, blank spans dropped. There is no deduplication and no
// confidence filtering; downstream matching wants recall.
type Detector struct {
	engines []Engine
	logger  *logging.Logger
}

// NewDetector creates a detector over the given engines. Engine order is the
// fusion order.
func NewDetector(logger *logging.Logger, engines ...Engine) *Detector {
	return &Detector{
		engines: engines,
		logger:  logger,
	}
}

// Detect runs every engine against the binarized image and returns the fused
// span sequence. An engine failure degrades to zero spans from that engine;
// an empty sequence is a valid result.
func (d *Detector) Detect(ctx context.Context, img *image.Gray) ([]Span, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode image for recognition: %w", err)
	}
	data := buf.Bytes()

	spans := make([]Span, 0, 16)
	for _, eng := range d.engines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := eng.Recognize(ctx, data)
		if err != nil {
			d.logger.Warn("Engine failed, continuing without its spans",
				"engine", eng.Name(), "error", err)
			continue
		}

		for _, s := range out {
			s.Text = Normalize(s.Text)
			if s.Text == "" {
				continue
			}
			s.Engine = eng.Name()
			s.Order = len(spans)
			spans = append(spans, s)
		}
	}

	return spans, nil
}
