/**
 * Chunked dataset input
 *
 * Streams a CSV of image references in fixed-size chunks so batch memory
 * stays bounded by one chunk. Rows keep their zero-based dataset position;
 * everything downstream is correlated by it.
 */

package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Item is one input row
type Item struct {
	Row      int
	ImageURL string
	Entity   string
}

// Chunk is a bounded run of consecutive rows
type Chunk struct {
	Start int
	Items []Item
}

// Reader streams a CSV dataset chunk by chunk
type Reader struct {
	f         *os.File
	r         *csv.Reader
	chunkSize int
	urlCol    int
	entityCol int
	next      int
}

// OpenReader opens the dataset and resolves the image and entity columns
// from the header. Extra columns are ignored.
func OpenReader(path string, chunkSize int) (*Reader, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		f.Close()
		return nil, fmt.Errorf("dataset %s is empty", path)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read header: %w", err)
	}

	urlCol := findColumn(header, "image_link", "image_url")
	if urlCol < 0 {
		f.Close()
		return nil, fmt.Errorf("dataset %s has no image_link column", path)
	}
	entityCol := findColumn(header, "entity_name", "entity")
	if entityCol < 0 {
		f.Close()
		return nil, fmt.Errorf("dataset %s has no entity_name column", path)
	}

	return &Reader{
		f:         f,
		r:         r,
		chunkSize: chunkSize,
		urlCol:    urlCol,
		entityCol: entityCol,
	}, nil
}

// Next returns the next chunk of rows, or io.EOF after the last row.
// Short trailing chunks are returned as-is.
func (r *Reader) Next() (*Chunk, error) {
	items := make([]Item, 0, r.chunkSize)

	for len(items) < r.chunkSize {
		rec, err := r.r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", r.next, err)
		}

		item := Item{Row: r.next}
		if r.urlCol < len(rec) {
			item.ImageURL = cleanCell(rec[r.urlCol])
		}
		if r.entityCol < len(rec) {
			item.Entity = cleanCell(rec[r.entityCol])
		}
		items = append(items, item)
		r.next++
	}

	if len(items) == 0 {
		return nil, io.EOF
	}
	return &Chunk{Start: items[0].Row, Items: items}, nil
}

// Rows reports how many rows have been delivered so far
func (r *Reader) Rows() int {
	return r.next
}

func (r *Reader) Close() error {
	return r.f.Close()
}

func cleanCell(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "﻿")
	return v
}

func findColumn(header []string, candidates ...string) int {
	for _, want := range candidates {
		for i, col := range header {
			if strings.EqualFold(cleanCell(col), want) {
				return i
			}
		}
	}
	return -1
}
