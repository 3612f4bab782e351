package generator

import (
	"encoding/binary"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestAVIWriterHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.avi")
	info := VideoInfo{Width: 32, Height: 16, FPS: 25}

	w, err := CreateAVI(path, info, 80)
	if err != nil {
		t.Fatalf("CreateAVI: %v", err)
	}
	for i := 0; i < 3; i++ {
		frame := NewSolidImage(32, 16, color.NRGBA{uint8(i * 80), 0, 0, 255})
		if err := w.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	u32 := func(off int) uint32 { return binary.LittleEndian.Uint32(data[off:]) }

	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "AVI " {
		t.Fatalf("bad RIFF header %q", data[:12])
	}
	if got := u32(offRIFFSize); int(got) != len(data)-8 {
		t.Errorf("RIFF size = %d, want %d", got, len(data)-8)
	}
	if got := u32(offAvihTotalFrames); got != 3 {
		t.Errorf("avih frames = %d", got)
	}
	if got := u32(offStrhLength); got != 3 {
		t.Errorf("strh length = %d", got)
	}
	if got := u32(32); got != 40000 {
		t.Errorf("microsec per frame = %d", got)
	}
	if got := u32(132); got != 25000 {
		t.Errorf("rate = %d", got)
	}
	if string(data[220:224]) != "movi" {
		t.Fatalf("movi list not at 220: %q", data[212:224])
	}

	moviSize := int(u32(offMoviSize))
	idx := 220 + moviSize
	if string(data[idx:idx+4]) != "idx1" {
		t.Fatalf("idx1 not after movi: %q", data[idx:idx+4])
	}
	if got := u32(idx + 4); got != 3*16 {
		t.Errorf("idx1 size = %d", got)
	}

	// Each index entry points at a "00dc" chunk holding a JPEG.
	for i := 0; i < 3; i++ {
		e := idx + 8 + i*16
		off := 220 + int(u32(e+8))
		if string(data[off:off+4]) != "00dc" {
			t.Errorf("entry %d points at %q", i, data[off:off+4])
		}
		if data[off+8] != 0xFF || data[off+9] != 0xD8 {
			t.Errorf("entry %d is not a JPEG", i)
		}
		if got := u32(off + 4); got != u32(e+12) {
			t.Errorf("entry %d size %d != chunk size %d", i, u32(e+12), got)
		}
	}
}

func TestAVIWriterRejectsWrongSize(t *testing.T) {
	w, err := CreateAVI(filepath.Join(t.TempDir(), "x.avi"), VideoInfo{Width: 8, Height: 8, FPS: 30}, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.WriteFrame(image.NewRGBA(image.Rect(0, 0, 4, 4))); err == nil {
		t.Error("expected size mismatch error")
	}
}

func TestCreateAVIInvalidInfo(t *testing.T) {
	if _, err := CreateAVI(filepath.Join(t.TempDir(), "x.avi"), VideoInfo{}, 90); err == nil {
		t.Error("expected error for empty stream info")
	}
}
