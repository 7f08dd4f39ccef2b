package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claude/fitcourse/internal/gifdecode"
	"github.com/claude/fitcourse/internal/gifdecode/giftest"
	"github.com/disintegration/imaging"
)

func decodeSolid(t *testing.T) (*gifdecode.Image, []gifdecode.Frame) {
	t.Helper()
	img, frames, err := gifdecode.DecodeFrames(context.Background(), giftest.Solid(8, 6, 10, 0, 20), gifdecode.Options{})
	if err != nil {
		t.Fatalf("DecodeFrames: %v", err)
	}
	return img, frames
}

// TestPrintTable verifies the header line and one row per frame.
func TestPrintTable(t *testing.T) {
	img, frames := decodeSolid(t)

	var buf bytes.Buffer
	printTable(&buf, img, frames)
	out := buf.String()

	if !strings.HasPrefix(out, "size 8x6, 3 frames") {
		t.Errorf("header = %q", strings.SplitN(out, "\n", 2)[0])
	}
	// header + column titles + 3 rows
	if lines := strings.Count(out, "\n"); lines != 5 {
		t.Errorf("got %d lines, want 5:\n%s", lines, out)
	}
	if !strings.Contains(out, "cycle 400ms") {
		t.Errorf("cycle length missing, zero delay should count as 100ms:\n%s", out)
	}
}

// TestExportFrames verifies every frame is written and resized to the
// requested width.
func TestExportFrames(t *testing.T) {
	_, frames := decodeSolid(t)
	dir := filepath.Join(t.TempDir(), "frames")

	if err := exportFrames(context.Background(), dir, frames, 4); err != nil {
		t.Fatalf("exportFrames: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != len(frames) {
		t.Fatalf("wrote %d files, want %d", len(entries), len(frames))
	}

	img, err := imaging.Open(filepath.Join(dir, "frame_000.png"))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("frame size = %dx%d, want 4x3", b.Dx(), b.Dy())
	}
}

// TestReadSourceFile verifies plain paths are read from disk.
func TestReadSourceFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.gif")
	if err := os.WriteFile(path, giftest.Solid(2, 2, 10), 0644); err != nil {
		t.Fatal(err)
	}
	data, err := readSource(context.Background(), path, "")
	if err != nil {
		t.Fatalf("readSource: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("GIF8")) {
		t.Error("expected GIF magic")
	}
}
