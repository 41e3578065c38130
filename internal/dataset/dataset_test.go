package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeDataset(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.csv")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func TestReaderResolvesColumnsFromHeader(t *testing.T) {
	path := writeDataset(t,
		"index,image_link,group_id,entity_name\n"+
			"0,http://img.example.com/a.jpg,12,item_weight\n"+
			"1,http://img.example.com/b.jpg,12,voltage\n")

	r, err := OpenReader(path, 10)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	want := []Item{
		{Row: 0, ImageURL: "http://img.example.com/a.jpg", Entity: "item_weight"},
		{Row: 1, ImageURL: "http://img.example.com/b.jpg", Entity: "voltage"},
	}
	if len(chunk.Items) != len(want) {
		t.Fatalf("got %d items, want %d", len(chunk.Items), len(want))
	}
	for i, w := range want {
		if chunk.Items[i] != w {
			t.Errorf("item %d = %+v, want %+v", i, chunk.Items[i], w)
		}
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF after last row, got %v", err)
	}
}

func TestReaderChunkBoundaries(t *testing.T) {
	body := "image_link,entity_name\n"
	for i := 0; i < 5; i++ {
		body += "http://example.com/img,voltage\n"
	}
	r, err := OpenReader(writeDataset(t, body), 2)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	var sizes []int
	var starts []int
	for {
		chunk, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		sizes = append(sizes, len(chunk.Items))
		starts = append(starts, chunk.Start)
	}

	wantSizes := []int{2, 2, 1}
	wantStarts := []int{0, 2, 4}
	if len(sizes) != len(wantSizes) {
		t.Fatalf("got %d chunks, want %d", len(sizes), len(wantSizes))
	}
	for i := range wantSizes {
		if sizes[i] != wantSizes[i] || starts[i] != wantStarts[i] {
			t.Errorf("chunk %d = (start %d, size %d), want (start %d, size %d)",
				i, starts[i], sizes[i], wantStarts[i], wantSizes[i])
		}
	}
	if r.Rows() != 5 {
		t.Errorf("Rows() = %d, want 5", r.Rows())
	}
}

func TestReaderBOMHeader(t *testing.T) {
	path := writeDataset(t, "﻿image_link,entity_name\nhttp://example.com/x.png,depth\n")

	r, err := OpenReader(path, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if chunk.Items[0].Entity != "depth" {
		t.Errorf("entity = %q", chunk.Items[0].Entity)
	}
}

func TestReaderMissingColumns(t *testing.T) {
	testCases := []struct {
		name   string
		header string
	}{
		{"no image column", "id,entity_name\n"},
		{"no entity column", "id,image_link\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := OpenReader(writeDataset(t, tc.header), 10); err == nil {
				t.Error("expected a header resolution error")
			}
		})
	}
}

func TestReaderEmptyInputs(t *testing.T) {
	if _, err := OpenReader(writeDataset(t, ""), 10); err == nil {
		t.Error("empty file should fail to open")
	}

	r, err := OpenReader(writeDataset(t, "image_link,entity_name\n"), 10)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("header-only dataset should yield io.EOF, got %v", err)
	}
}

func TestReaderShortRowsYieldEmptyFields(t *testing.T) {
	path := writeDataset(t, "image_link,entity_name\nhttp://example.com/only-url\n")

	r, err := OpenReader(path, 10)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()

	chunk, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := chunk.Items[0]; got.Entity != "" || got.ImageURL == "" {
		t.Errorf("short row = %+v, want empty entity and kept URL", got)
	}
}

func TestWriterAppendsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}
	if err := w.Append([]string{"2.5 kg", "No result"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Append([]string{"120"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	want := [][]string{{"predictions"}, {"2.5 kg"}, {"No result"}, {"120"}}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i][0] != want[i][0] {
			t.Errorf("row %d = %q, want %q", i, rows[i][0], want[i][0])
		}
	}
}
