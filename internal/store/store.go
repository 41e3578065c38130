/**
 * HTTP image store
 *
 * Fetches product images by URL with retry and size limits, and optionally
 * keeps a local copy of every fetched image. Success is strictly HTTP 200;
 * any other terminal status is an acquisition failure for the caller to
 * classify.
 */

package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/catalogforge/paramextract/internal/logging"
)

const (
	maxFetchAttempts = 3
	defaultBackoff   = 500 * time.Millisecond
	maxBackoff       = 4 * time.Second
)

// Options configures an ImageStore
type Options struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	Dir          string        // empty disables local copies
	RetryBackoff time.Duration // initial backoff between attempts
}

// ImageStore fetches images over HTTP
type ImageStore struct {
	client       *http.Client
	maxBytes     int64
	dir          string
	retryBackoff time.Duration
	logger       *logging.Logger
}

// NewImageStore creates the store and its local image directory when one is
// configured
func NewImageStore(logger *logging.Logger, opts Options) (*ImageStore, error) {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 * 1024 * 1024
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultBackoff
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("create image directory: %w", err)
		}
	}

	return &ImageStore{
		client:       &http.Client{Timeout: opts.FetchTimeout},
		maxBytes:     opts.MaxBytes,
		dir:          opts.Dir,
		retryBackoff: opts.RetryBackoff,
		logger:       logger,
	}, nil
}

// Fetch downloads one image. The caller's context bounds every attempt and
// the backoff between them.
func (s *ImageStore) Fetch(ctx context.Context, rowID, rawURL string) ([]byte, error) {
	var lastErr error
	backoff := s.retryBackoff

	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		data, err := s.fetchOnce(ctx, rawURL)
		if err == nil {
			s.logger.Debug("Image fetched", "row", rowID, "bytes", len(data), "attempt", attempt)
			if s.dir != "" {
				s.save(rowID, rawURL, data)
			}
			return data, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		s.logger.Warn("Fetch attempt failed", "row", rowID, "attempt", attempt, "url", rawURL, "error", err)

		if attempt < maxFetchAttempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return nil, fmt.Errorf("failed to fetch image after %d attempts: %w", maxFetchAttempts, lastErr)
}

func (s *ImageStore) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	if resp.ContentLength > s.maxBytes {
		return nil, fmt.Errorf("image size exceeds maximum: %d > %d bytes", resp.ContentLength, s.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("image size exceeds maximum of %d bytes", s.maxBytes)
	}

	return data, nil
}

// save keeps a local copy. Failures are logged and never fail the fetch.
func (s *ImageStore) save(rowID, rawURL string, data []byte) {
	p := filepath.Join(s.dir, StoredName(rawURL))

	if _, err := os.Stat(p); err == nil {
		return
	}

	if err := os.WriteFile(p, data, 0644); err != nil {
		s.logger.Warn("Failed to keep local image copy", "row", rowID, "path", p, "error", err)
	}
}

// StoredName keys local copies by a digest of the full URL rather than the
// URL's basename; distinct URLs sharing a filename must not collide.
func StoredName(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	name := hex.EncodeToString(sum[:])

	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" && len(ext) <= 5 {
			name += ext
		}
	}
	return name
}
