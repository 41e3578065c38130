package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
)

// PredictionsHeader is the single output column
const PredictionsHeader = "predictions"

// Writer appends predictions chunk by chunk: one output row per input row,
// in input order
type Writer struct {
	f *os.File
	w *csv.Writer
}

// CreateWriter creates the output file and writes its header
func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{PredictionsHeader}); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	return &Writer{f: f, w: w}, nil
}

// Append writes one chunk's predictions and flushes them to disk
func (w *Writer) Append(predictions []string) error {
	for _, p := range predictions {
		if err := w.w.Write([]string{p}); err != nil {
			return fmt.Errorf("write prediction: %w", err)
		}
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("flush predictions: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
