/**
 * paramextract-worker - queue worker entry point
 *
 * Consumes extraction tasks from the Redis-backed queue:
 * - asynq consumer with bounded concurrency and retry backoff
 * - Dual-engine Tesseract OCR + pattern extraction per task
 * - Task status mirrored to Redis sets and pub/sub events
 * - Optional PostgreSQL persistence of task outcomes
 * - Prometheus metrics and health endpoint
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/catalogforge/paramextract/internal/config"
	"github.com/catalogforge/paramextract/internal/extract"
	"github.com/catalogforge/paramextract/internal/logging"
	"github.com/catalogforge/paramextract/internal/metrics"
	"github.com/catalogforge/paramextract/internal/ocr"
	"github.com/catalogforge/paramextract/internal/processor"
	"github.com/catalogforge/paramextract/internal/queue"
	"github.com/catalogforge/paramextract/internal/storage"
	"github.com/catalogforge/paramextract/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewLoggerWithLevel("worker", logging.ParseLevel(cfg.LogLevel))
	logger.Info("Worker starting",
		"queue", cfg.QueueName,
		"concurrency", cfg.WorkerConcurrency)

	m := metrics.New()

	proc, err := buildProcessor(cfg, logger, m)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}

	status, err := queue.NewStatusPublisher(cfg.RedisURL, cfg.QueueName, logger.Named("status"))
	if err != nil {
		log.Fatalf("Failed to connect status publisher: %v", err)
	}
	defer status.Close()

	var results queue.ResultStore
	var pg *storage.PostgresClient
	if cfg.DatabaseURL != "" {
		pg, err = storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to results store: %v", err)
		}
		defer pg.Close()
		results = pg
		logger.Info("Results store connected")
	}

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		ProcessingTimeout: time.Duration(cfg.ProcessingTimeout) * time.Millisecond,
		Processor:         proc,
		Status:            status,
		Results:           results,
		Logger:            logger.Named("queue"),
	})
	if err != nil {
		log.Fatalf("Failed to initialize queue consumer: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.Run(gctx)
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: observabilityMux(pg)}
		g.Go(func() error {
			logger.Info("Observability endpoint listening", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	logger.Info("Worker ready, waiting for tasks")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Worker stopped with error: %v", err)
	}
	logger.Info("Shutdown complete")
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

func observabilityMux(pg *storage.PostgresClient) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pg != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			if err := pg.Ping(ctx); err != nil {
				http.Error(w, fmt.Sprintf("database unreachable: %v", err), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}
