/**
 * paramextract - batch extraction CLI
 *
 * Streams a CSV of product image links through the pipeline and writes a
 * single predictions column aligned with the input rows:
 * - Chunked dataset reader, fixed worker pool, per-row deadline
 * - HTTP image acquisition with local caching
 * - Otsu binarization, dual-engine Tesseract OCR, span fusion
 * - Regex pattern table keyed by requested parameter type
 * - Optional PostgreSQL results store and Prometheus endpoint
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/catalogforge/paramextract/internal/batch"
	"github.com/catalogforge/paramextract/internal/config"
	"github.com/catalogforge/paramextract/internal/extract"
	"github.com/catalogforge/paramextract/internal/logging"
	"github.com/catalogforge/paramextract/internal/metrics"
	"github.com/catalogforge/paramextract/internal/ocr"
	"github.com/catalogforge/paramextract/internal/processor"
	"github.com/catalogforge/paramextract/internal/storage"
	"github.com/catalogforge/paramextract/internal/store"
)

func main() {
	inputPath := flag.String("input", "", "input CSV with image_link and entity_name columns")
	outputPath := flag.String("output", "predictions.csv", "output CSV path")
	flag.Parse()

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: paramextract -input dataset.csv [-output predictions.csv]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLoggerWithLevel("paramextract", logging.ParseLevel(cfg.LogLevel))

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	proc, err := buildProcessor(cfg, logger, m)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}

	var sink batch.ResultSink
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to results store: %v", err)
		}
		defer pg.Close()
		sink = pg
		logger.Info("Results store connected")
	}

	orch, err := batch.NewOrchestrator(&batch.Config{
		Processor:  proc,
		Workers:    cfg.WorkerConcurrency,
		ChunkSize:  cfg.ChunkSize,
		RowTimeout: time.Duration(cfg.ProcessingTimeout) * time.Millisecond,
		Results:    sink,
		Logger:     logger.Named("batch"),
		Metrics:    m,
	})
	if err != nil {
		log.Fatalf("Failed to initialize orchestrator: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := orch.Run(ctx, *inputPath, *outputPath); err != nil {
		log.Fatalf("Batch run failed: %v", err)
	}
}

// buildProcessor wires the per-row pipeline from configuration
func buildProcessor(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics) (*processor.Processor, error) {
	table, entities, err := loadTable(cfg)
	if err != nil {
		return nil, err
	}

	imageStore, err := store.NewImageStore(logger.Named("store"), store.Options{
		FetchTimeout: time.Duration(cfg.FetchTimeout) * time.Millisecond,
		MaxBytes:     cfg.MaxImageSize,
		Dir:          cfg.ImageDir,
	})
	if err != nil {
		return nil, err
	}

	detector := ocr.NewDetector(logger.Named("ocr"),
		ocr.NewLineEngine(cfg.OCRLanguages),
		ocr.NewBlockEngine(cfg.OCRLanguages))

	return processor.NewProcessor(&processor.Config{
		Store:        imageStore,
		Detector:     detector,
		Table:        table,
		Entities:     entities,
		MaxImageSide: cfg.MaxImageSide,
		Logger:       logger.Named("processor"),
		Metrics:      m,
	})
}

// loadTable returns the built-in pattern table or a YAML override
func loadTable(cfg *config.Config) (*extract.Table, extract.EntityMapping, error) {
	if cfg.PatternsFile == "" {
		return extract.DefaultTable(), extract.DefaultEntityMapping(), nil
	}
	return extract.LoadDefinitions(cfg.PatternsFile)
}

func serveMetrics(addr string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logger.Info("Metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Metrics server stopped", "error", err)
	}
}
