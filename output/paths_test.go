package output

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFramePathDeterministic(t *testing.T) {
	a := FramePath("out", 7, ".hdf5")
	b := FramePath("out", 7, ".hdf5")
	if a != b {
		t.Fatalf("same inputs produced %q and %q", a, b)
	}
	if a != filepath.Join("out", "000007.hdf5") {
		t.Errorf("unexpected path %q", a)
	}
}

func TestFramePathUniquePerIndex(t *testing.T) {
	seen := make(map[string]int)
	for i := 0; i < 2000; i++ {
		p := FramePath("out", i, ".hdf5")
		if prev, dup := seen[p]; dup {
			t.Fatalf("index %d and %d map to the same path %q", prev, i, p)
		}
		seen[p] = i
	}
}

func TestChunkOf(t *testing.T) {
	for _, c := range []struct {
		frame, size, chunk, local int
	}{
		{0, 1000, 0, 0},
		{999, 1000, 0, 999},
		{1000, 1000, 1, 0},
		{2500, 1000, 2, 500},
	} {
		chunk, local := ChunkOf(c.frame, c.size)
		if chunk != c.chunk || local != c.local {
			t.Errorf("frame %d: got (%d, %d), want (%d, %d)", c.frame, chunk, local, c.chunk, c.local)
		}
	}
}

func TestNextFrameIndex(t *testing.T) {
	dir := t.TempDir()

	if next, err := NextFrameIndex(dir); err != nil || next != 0 {
		t.Fatalf("empty dir: next=%d err=%v", next, err)
	}
	if next, err := NextFrameIndex(filepath.Join(dir, "missing")); err != nil || next != 0 {
		t.Fatalf("missing dir: next=%d err=%v", next, err)
	}

	for _, name := range []string{"000000.hdf5", "000001.hdf5", "000005.hdf5", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0666); err != nil {
			t.Fatal(err)
		}
	}
	next, err := NextFrameIndex(dir)
	if err != nil {
		t.Fatal(err)
	}
	if next != 6 {
		t.Errorf("next index: got %d, want 6", next)
	}
}

func TestNextIndexesPastSixDigits(t *testing.T) {
	dir := t.TempDir()
	name := FramePath("", 1000000, ".png")
	if err := os.WriteFile(filepath.Join(dir, name), nil, 0666); err != nil {
		t.Fatal(err)
	}
	next, err := NextFrameIndex(dir)
	if err != nil {
		t.Fatal(err)
	}
	if next != 1000001 {
		t.Errorf("next index after %q: got %d, want 1000001", name, next)
	}

	ds := t.TempDir()
	rgbDir := filepath.Join(ChunkDir(ds, 1000000), "rgb")
	if err := os.MkdirAll(rgbDir, 0777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(rgbDir, "000000.png"), nil, 0666); err != nil {
		t.Fatal(err)
	}
	chunk, used, err := NextChunkState(ds, "rgb", 2)
	if err != nil {
		t.Fatal(err)
	}
	if chunk != 1000000 || used != 1 {
		t.Errorf("append point: chunk=%d used=%d, want 1000000, 1", chunk, used)
	}
}

func TestNextChunkState(t *testing.T) {
	dir := t.TempDir()

	chunk, used, err := NextChunkState(dir, "rgb", 3)
	if err != nil || chunk != 0 || used != 0 {
		t.Fatalf("empty dataset: chunk=%d used=%d err=%v", chunk, used, err)
	}

	// chunk 000000 full, chunk 000001 holding one frame
	for _, f := range []struct {
		chunk string
		names []string
	}{
		{"000000", []string{"000000.png", "000001.png", "000002.png"}},
		{"000001", []string{"000000.png"}},
	} {
		rgbDir := filepath.Join(dir, f.chunk, "rgb")
		if err := os.MkdirAll(rgbDir, 0777); err != nil {
			t.Fatal(err)
		}
		for _, name := range f.names {
			if err := os.WriteFile(filepath.Join(rgbDir, name), nil, 0666); err != nil {
				t.Fatal(err)
			}
		}
	}

	chunk, used, err = NextChunkState(dir, "rgb", 3)
	if err != nil {
		t.Fatal(err)
	}
	if chunk != 1 || used != 1 {
		t.Errorf("append point: chunk=%d used=%d, want 1, 1", chunk, used)
	}

	// filling the last chunk moves appending to a fresh one
	rgbDir := filepath.Join(dir, "000001", "rgb")
	for _, name := range []string{"000001.png", "000002.png"} {
		os.WriteFile(filepath.Join(rgbDir, name), nil, 0666)
	}
	chunk, used, err = NextChunkState(dir, "rgb", 3)
	if err != nil {
		t.Fatal(err)
	}
	if chunk != 2 || used != 0 {
		t.Errorf("full chunk: chunk=%d used=%d, want 2, 0", chunk, used)
	}

	if _, _, err := NextChunkState(dir, "rgb", 0); err == nil {
		t.Error("chunk size 0 accepted")
	}
}
