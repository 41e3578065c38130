package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/catalogforge/paramextract/internal/logging"
)

type fakeEngine struct {
	name  string
	spans []Span
	err   error
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Recognize(ctx context.Context, img []byte) ([]Span, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.spans, nil
}

func testImage() *image.Gray {
	return image.NewGray(image.Rect(0, 0, 8, 8))
}

func testLogger() *logging.Logger {
	return logging.NewLoggerWithLevel("test", logging.LevelError)
}

func TestDetectFusesEnginesInOrder(t *testing.T) {
	line := &fakeEngine{name: "line", spans: []Span{
		{Text: "Voltage: 120V", Region: &Region{X: 4, Y: 8, Width: 90, Height: 14}, Confidence: 0.92},
		{Text: "Net Weight 2.5kg"},
	}}
	block := &fakeEngine{name: "block", spans: []Span{
		{Text: "MODEL X-200"},
	}}

	spans, err := NewDetector(testLogger(), line, block).Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	want := []struct {
		text   string
		engine string
	}{
		{"Voltage: 120V", "line"},
		{"Net Weight 2.5kg", "line"},
		{"MODEL X-200", "block"},
	}
	if len(spans) != len(want) {
		t.Fatalf("got %d spans, want %d", len(spans), len(want))
	}
	for i, w := range want {
		if spans[i].Text != w.text || spans[i].Engine != w.engine || spans[i].Order != i {
			t.Errorf("span %d = {%q %s %d}, want {%q %s %d}",
				i, spans[i].Text, spans[i].Engine, spans[i].Order, w.text, w.engine, i)
		}
	}
	if spans[0].Region == nil || spans[0].Region.Width != 90 {
		t.Error("line span lost its region")
	}
	if spans[0].Confidence != 0.92 {
		t.Errorf("line span confidence = %v, want 0.92", spans[0].Confidence)
	}
}

func TestDetectDropsBlankSpans(t *testing.T) {
	eng := &fakeEngine{name: "line", spans: []Span{
		{Text: ""},
		{Text: "   "},
		{Text: "　"},
		{Text: "real text"},
	}}

	spans, err := NewDetector(testLogger(), eng).Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(spans) != 1 || spans[0].Text != "real text" || spans[0].Order != 0 {
		t.Errorf("blank spans not dropped: %+v", spans)
	}
}

func TestDetectEngineFailureDegrades(t *testing.T) {
	broken := &fakeEngine{name: "line", err: errors.New("tesseract exploded")}
	ok := &fakeEngine{name: "block", spans: []Span{{Text: "500 ml"}}}

	spans, err := NewDetector(testLogger(), broken, ok).Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect should absorb engine errors, got %v", err)
	}
	if len(spans) != 1 || spans[0].Text != "500 ml" || spans[0].Order != 0 {
		t.Errorf("unexpected spans after engine failure: %+v", spans)
	}
}

func TestDetectAllEnginesFailing(t *testing.T) {
	spans, err := NewDetector(testLogger(),
		&fakeEngine{name: "line", err: errors.New("boom")},
		&fakeEngine{name: "block", err: errors.New("boom")},
	).Detect(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("expected empty sequence, got %+v", spans)
	}
}

func TestDetectCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDetector(testLogger(), &fakeEngine{name: "line"}).Detect(ctx, testImage())
	if err == nil {
		t.Error("expected context error")
	}
}

func TestNormalize(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  120V  ", "120V"},
		{"fullwidth folds to ascii", "１２０Ｖ", "120V"},
		{"nbsp folds to space", "2.5 kg", "2.5 kg"},
		{"newlines become spaces", "line one\nline two", "line one line two"},
		{"control characters removed", "a\x00b\x07c", "abc"},
		{"whitespace only", " \t \n ", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.input); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
