/**
 * Row pipeline for parameter extraction
 *
 * Runs one dataset row through the fixed lifecycle: acquire the image,
 * binarize it, detect text spans, match the pattern table. Every failure is
 * converted into a terminal tagged result; nothing a single row does can
 * abort a batch.
 */

package processor

import (
	"context"
	stderrors "errors"
	"fmt"
	"image"
	"strings"
	"time"

	apperrors "github.com/catalogforge/paramextract/internal/errors"
	"github.com/catalogforge/paramextract/internal/extract"
	"github.com/catalogforge/paramextract/internal/logging"
	"github.com/catalogforge/paramextract/internal/metrics"
	"github.com/catalogforge/paramextract/internal/ocr"
	"github.com/catalogforge/paramextract/internal/preprocess"
)

// NoResult is the sentinel prediction for any row that failed or matched
// nothing. The output column never carries more failure detail than this.
const NoResult = "No result"

// State is a row's position in its lifecycle
type State string

const (
	StatePending       State = "pending"
	StateAcquiring     State = "acquiring"
	StatePreprocessing State = "preprocessing"
	StateDetecting     State = "detecting"
	StateExtracting    State = "extracting"
	StateResolved      State = "resolved"
	StateNoMatch       State = "no_match"
	StateFailed        State = "failed"
)

// Fetcher acquires raw image bytes
type Fetcher interface {
	Fetch(ctx context.Context, rowID, url string) ([]byte, error)
}

// Detector produces the fused span sequence for a binarized image
type Detector interface {
	Detect(ctx context.Context, img *image.Gray) ([]ocr.Span, error)
}

// Request is one row to process
type Request struct {
	RowID    string
	ImageURL string
	Entity   string
}

// Result is a row's terminal outcome. Exactly one of Parameter or Err is
// set; the prediction string flattens both cases for the output artifact.
type Result struct {
	RowID     string
	State     State
	ParamType string
	Parameter *extract.Parameter
	Err       *apperrors.RowError
	Spans     int
	Duration  time.Duration
}

// Outcome is the label used by logs, metrics, and the results store
func (r *Result) Outcome() string {
	switch r.State {
	case StateResolved:
		return "resolved"
	case StateNoMatch:
		return "no_match"
	default:
		if r.Err != nil {
			return strings.ToLower(string(r.Err.Code))
		}
		return "failed"
	}
}

// Prediction flattens the result into the output column value
func (r *Result) Prediction() string {
	if r.State == StateResolved && r.Parameter != nil {
		return r.Parameter.String()
	}
	return NoResult
}

// Config holds processor collaborators
type Config struct {
	Store        Fetcher
	Detector     Detector
	Table        *extract.Table
	Entities     extract.EntityMapping
	MaxImageSide int
	Logger       *logging.Logger
	Metrics      *metrics.Metrics
}

// Processor runs rows through the extraction pipeline. Safe for concurrent
// Process calls: collaborators are read-only after construction.
type Processor struct {
	store    Fetcher
	detector Detector
	table    *extract.Table
	entities extract.EntityMapping
	maxSide  int
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// NewProcessor creates a row processor
func NewProcessor(cfg *Config) (*Processor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("image store is required")
	}
	if cfg.Detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if cfg.Table == nil {
		return nil, fmt.Errorf("pattern table is required")
	}

	entities := cfg.Entities
	if entities == nil {
		entities = extract.DefaultEntityMapping()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("processor")
	}
	maxSide := cfg.MaxImageSide
	if maxSide <= 0 {
		maxSide = 2048
	}

	return &Processor{
		store:    cfg.Store,
		detector: cfg.Detector,
		table:    cfg.Table,
		entities: entities,
		maxSide:  maxSide,
		logger:   logger,
		metrics:  cfg.Metrics,
	}, nil
}

// Process runs one row through the lifecycle and always returns a terminal
// result
func (p *Processor) Process(ctx context.Context, req *Request) *Result {
	start := time.Now()
	paramType := p.entities.Resolve(req.Entity)

	p.logger.Debug("Step 1: Acquiring image", "row", req.RowID, "url", req.ImageURL)
	data, err := p.store.Fetch(ctx, req.RowID, req.ImageURL)
	if err != nil {
		return p.fail(req, paramType, StateAcquiring, start, err)
	}
	p.metrics.AddFetchedBytes(len(data))

	p.logger.Debug("Step 2: Binarizing image", "row", req.RowID, "bytes", len(data))
	img, err := preprocess.Binarize(data, p.maxSide)
	if err != nil {
		return p.fail(req, paramType, StatePreprocessing, start, err)
	}

	p.logger.Debug("Step 3: Detecting text spans", "row", req.RowID)
	spans, err := p.detector.Detect(ctx, img)
	if err != nil {
		return p.fail(req, paramType, StateDetecting, start, err)
	}
	p.metrics.ObserveSpans(len(spans))

	p.logger.Debug("Step 4: Matching patterns", "row", req.RowID, "spans", len(spans), "type", paramType)
	params := p.table.Extract(spans, []string{paramType})

	res := &Result{
		RowID:     req.RowID,
		ParamType: paramType,
		Spans:     len(spans),
		Duration:  time.Since(start),
	}
	if param, ok := params[paramType]; ok {
		res.State = StateResolved
		res.Parameter = &param
		p.logger.Info("Row resolved", "row", req.RowID, "type", paramType,
			"prediction", param.String(), "duration", res.Duration)
	} else {
		res.State = StateNoMatch
		res.Err = apperrors.NewNoMatchError(req.RowID, paramType)
		p.logger.Info("Row completed without a match", "row", req.RowID,
			"type", paramType, "spans", len(spans), "duration", res.Duration)
	}

	p.metrics.ObserveRow(res.Outcome(), res.Duration.Seconds())
	return res
}

// fail converts a stage error into a terminal Failed result
func (p *Processor) fail(req *Request, paramType string, stage State, start time.Time, cause error) *Result {
	res := &Result{
		RowID:     req.RowID,
		State:     StateFailed,
		ParamType: paramType,
		Err:       p.classify(req, stage, start, cause),
		Duration:  time.Since(start),
	}

	p.logger.Warn("Row failed", "row", req.RowID, "stage", stage,
		"code", res.Err.Code, "error", cause)
	p.metrics.ObserveRow(res.Outcome(), res.Duration.Seconds())
	return res
}

// classify maps a stage error onto the taxonomy. Deadline expiry anywhere in
// the pipeline becomes a timeout regardless of stage.
func (p *Processor) classify(req *Request, stage State, start time.Time, cause error) *apperrors.RowError {
	if stderrors.Is(cause, context.DeadlineExceeded) || stderrors.Is(cause, context.Canceled) {
		return apperrors.NewProcessingTimeoutError(req.RowID, time.Since(start), cause)
	}

	switch stage {
	case StateAcquiring:
		return apperrors.NewAcquisitionError(req.RowID, req.ImageURL, cause)
	default:
		return apperrors.NewDecodeError(req.RowID, cause)
	}
}
