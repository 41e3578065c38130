package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/catalogforge/paramextract/internal/logging"
)

func testStore(t *testing.T, opts Options) *ImageStore {
	t.Helper()
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	s, err := NewImageStore(logging.NewLoggerWithLevel("store-test", logging.LevelError), opts)
	if err != nil {
		t.Fatalf("NewImageStore: %v", err)
	}
	return s
}

func TestFetchReturnsBodyOn200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	data, err := testStore(t, Options{}).Fetch(context.Background(), "row-1", srv.URL+"/p.jpg")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("got %q", data)
	}
}

func TestFetchRejectsNon200(t *testing.T) {
	testCases := []struct {
		name   string
		status int
	}{
		{"not found", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
		{"accepted is not success", http.StatusAccepted},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			if _, err := testStore(t, Options{}).Fetch(context.Background(), "row-1", srv.URL); err == nil {
				t.Errorf("status %d should not be a successful acquisition", tc.status)
			}
		})
	}
}

func TestFetchRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("eventually"))
	}))
	defer srv.Close()

	data, err := testStore(t, Options{}).Fetch(context.Background(), "row-1", srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "eventually" {
		t.Errorf("got %q", data)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestFetchEnforcesSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	if _, err := testStore(t, Options{MaxBytes: 10}).Fetch(context.Background(), "row-1", srv.URL); err == nil {
		t.Error("oversize body should fail acquisition")
	}
}

func TestFetchHonorsCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testStore(t, Options{}).Fetch(ctx, "row-1", srv.URL); err == nil {
		t.Error("expected a context error")
	}
}

func TestFetchKeepsLocalCopy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("saved"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := testStore(t, Options{Dir: dir})
	imageURL := srv.URL + "/catalog/item.jpg"

	if _, err := s.Fetch(context.Background(), "row-1", imageURL); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	saved, err := os.ReadFile(filepath.Join(dir, StoredName(imageURL)))
	if err != nil {
		t.Fatalf("local copy missing: %v", err)
	}
	if string(saved) != "saved" {
		t.Errorf("local copy holds %q", saved)
	}

	// repeated fetches of the same URL reuse the name without error
	if _, err := s.Fetch(context.Background(), "row-2", imageURL); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
}

func TestStoredNameKeyedByFullURL(t *testing.T) {
	a := StoredName("http://cdn-a.example.com/images/front.jpg")
	b := StoredName("http://cdn-b.example.com/images/front.jpg")

	if a == b {
		t.Error("distinct URLs sharing a basename must not collide")
	}

	sum := sha256.Sum256([]byte("http://cdn-a.example.com/images/front.jpg"))
	if want := hex.EncodeToString(sum[:]) + ".jpg"; a != want {
		t.Errorf("StoredName = %q, want %q", a, want)
	}

	if got := StoredName("http://cdn.example.com/no-extension"); len(got) != 64 {
		t.Errorf("extensionless URL should name by bare digest, got %q", got)
	}
}
