/**
 * Batch orchestration
 *
 * Drives a dataset through the row pipeline. Chunks are strictly
 * sequential; rows inside a chunk fan out to a fixed worker pool started
 * once per run, and results land in a slice position matching their row,
 * so the output column keeps dataset order no matter how rows interleave.
 * Row failures never abort the run.
 */

package batch

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catalogforge/paramextract/internal/dataset"
	"github.com/catalogforge/paramextract/internal/logging"
	"github.com/catalogforge/paramextract/internal/metrics"
	"github.com/catalogforge/paramextract/internal/processor"
	"github.com/catalogforge/paramextract/internal/storage"
)

// RowProcessor runs the per-row pipeline
type RowProcessor interface {
	Process(ctx context.Context, req *processor.Request) *processor.Result
}

// ResultSink persists run and row outcomes. Optional: a nil sink disables
// persistence without touching the pipeline.
type ResultSink interface {
	BeginRun(ctx context.Context, runID, source string, totalRows int) error
	SaveResults(ctx context.Context, runID string, records []storage.ResultRecord) error
	FinishRun(ctx context.Context, runID string, totalRows int) error
}

// Summary aggregates one batch run
type Summary struct {
	RunID    string
	Rows     int
	Chunks   int
	Outcomes map[string]int
	Duration time.Duration
}

// Config holds the orchestrator collaborators and tuning
type Config struct {
	Processor  RowProcessor
	Workers    int
	ChunkSize  int
	RowTimeout time.Duration
	Results    ResultSink // optional
	Logger     *logging.Logger
	Metrics    *metrics.Metrics
}

// Orchestrator runs datasets end to end
type Orchestrator struct {
	processor  RowProcessor
	workers    int
	chunkSize  int
	rowTimeout time.Duration
	results    ResultSink
	logger     *logging.Logger
	metrics    *metrics.Metrics
}

// NewOrchestrator creates an orchestrator and validates its configuration
func NewOrchestrator(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Processor == nil {
		return nil, fmt.Errorf("row processor is required")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("worker count must be positive, got %d", cfg.Workers)
	}
	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.RowTimeout <= 0 {
		return nil, fmt.Errorf("row timeout must be positive, got %s", cfg.RowTimeout)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("batch")
	}

	return &Orchestrator{
		processor:  cfg.Processor,
		workers:    cfg.Workers,
		chunkSize:  cfg.ChunkSize,
		rowTimeout: cfg.RowTimeout,
		results:    cfg.Results,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

type rowJob struct {
	index int
	item  dataset.Item
	out   []*processor.Result
	wg    *sync.WaitGroup
}

// Run streams the input dataset through the pool and appends one
// prediction per row to the output file. It returns an error only for
// dataset I/O failures or a canceled context; row failures are folded
// into the summary.
func (o *Orchestrator) Run(ctx context.Context, inputPath, outputPath string) (*Summary, error) {
	runID := uuid.New().String()
	summary := &Summary{RunID: runID, Outcomes: make(map[string]int)}

	reader, err := dataset.OpenReader(inputPath, o.chunkSize)
	if err != nil {
		return summary, err
	}
	defer reader.Close()

	writer, err := dataset.CreateWriter(outputPath)
	if err != nil {
		return summary, err
	}
	defer writer.Close()

	o.logger.Info("Starting batch run",
		"run_id", runID,
		"input", inputPath,
		"output", outputPath,
		"workers", o.workers,
		"chunk_size", o.chunkSize)

	sink := o.results
	if sink != nil {
		if err := sink.BeginRun(ctx, runID, inputPath, 0); err != nil {
			o.logger.Warn("Results store unavailable, continuing without persistence",
				"run_id", runID, "error", err)
			sink = nil
		}
	}

	// One pool for the whole run. Workers never exit between chunks, so
	// dispatch below can never block forever.
	jobs := make(chan rowJob)
	var workers sync.WaitGroup
	for w := 0; w < o.workers; w++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for j := range jobs {
				j.out[j.index] = o.processRow(ctx, j.item)
				j.wg.Done()
			}
		}()
	}
	defer func() {
		close(jobs)
		workers.Wait()
	}()

	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		chunk, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("read chunk %d: %w", summary.Chunks, err)
		}

		chunkStart := time.Now()
		results := make([]*processor.Result, len(chunk.Items))

		var wg sync.WaitGroup
		wg.Add(len(chunk.Items))
		for i := range chunk.Items {
			jobs <- rowJob{index: i, item: chunk.Items[i], out: results, wg: &wg}
		}
		wg.Wait()

		predictions := make([]string, len(results))
		for i, res := range results {
			predictions[i] = res.Prediction()
			summary.Outcomes[res.Outcome()]++
		}
		if err := writer.Append(predictions); err != nil {
			return summary, err
		}

		if sink != nil {
			if err := sink.SaveResults(ctx, runID, toRecords(chunk.Items, results)); err != nil {
				o.logger.Warn("Failed to persist chunk results",
					"run_id", runID, "chunk_start", chunk.Start, "error", err)
			}
		}

		o.metrics.IncChunks()
		summary.Chunks++
		summary.Rows += len(results)

		o.logger.Info("Chunk complete",
			"run_id", runID,
			"chunk", summary.Chunks,
			"rows", len(results),
			"total_rows", summary.Rows,
			"duration_ms", time.Since(chunkStart).Milliseconds())
	}
	summary.Duration = time.Since(start)

	if sink != nil {
		if err := sink.FinishRun(ctx, runID, summary.Rows); err != nil {
			o.logger.Warn("Failed to finish run record", "run_id", runID, "error", err)
		}
	}

	if err := writer.Close(); err != nil {
		return summary, fmt.Errorf("close output: %w", err)
	}

	o.logger.Info("Batch run complete",
		"run_id", runID,
		"rows", summary.Rows,
		"chunks", summary.Chunks,
		"resolved", summary.Outcomes["resolved"],
		"no_match", summary.Outcomes["no_match"],
		"failed", summary.Rows-summary.Outcomes["resolved"]-summary.Outcomes["no_match"],
		"duration_ms", summary.Duration.Milliseconds())

	return summary, nil
}

// processRow applies the per-row deadline around the pipeline
func (o *Orchestrator) processRow(parent context.Context, item dataset.Item) *processor.Result {
	ctx, cancel := context.WithTimeout(parent, o.rowTimeout)
	defer cancel()

	return o.processor.Process(ctx, &processor.Request{
		RowID:    "row-" + strconv.Itoa(item.Row),
		ImageURL: item.ImageURL,
		Entity:   item.Entity,
	})
}

func toRecords(items []dataset.Item, results []*processor.Result) []storage.ResultRecord {
	records := make([]storage.ResultRecord, len(results))
	for i, res := range results {
		rec := storage.ResultRecord{
			RowIndex:   items[i].Row,
			ImageURL:   items[i].ImageURL,
			Entity:     items[i].Entity,
			ParamType:  res.ParamType,
			Outcome:    res.Outcome(),
			Prediction: res.Prediction(),
			DurationMs: res.Duration.Milliseconds(),
		}
		if res.Err != nil {
			rec.ErrorCode = string(res.Err.Code)
			rec.ErrorMessage = res.Err.Message
		}
		records[i] = rec
	}
	return records
}
