// avi.go - Pure Go AVI writer using Motion JPEG (MJPEG) video codec.
// Frames are streamed to disk as they arrive; the header sizes and the idx1
// index are finalized on Close. Video only: no audio track is written.
package generator

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/jpeg"
	"math"
	"os"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
)

// Byte offsets of header fields patched on Close.
const (
	offRIFFSize        = 4
	offAvihMaxBytes    = 36
	offAvihTotalFrames = 48
	offAvihBuffer      = 60
	offStrhLength      = 140
	offStrhBuffer      = 144
	offMoviSize        = 216
	moviDataStart      = 224

	hdrlSize = 4 + 64 + 124 // "hdrl" + avih chunk + strl list
	strlSize = 116          // "strl" + strh(64) + strf(48)
	rateUnit = 1000         // dwScale; dwRate = fps * rateUnit
)

type aviIndexEntry struct {
	offset uint32 // from the "movi" fourcc
	size   uint32
}

// AVIWriter streams MJPEG frames into an AVI file.
type AVIWriter struct {
	f       *os.File
	w       *bufio.Writer
	info    VideoInfo
	quality int

	buf      bytes.Buffer
	index    []aviIndexEntry
	moviSize uint32 // bytes written after "movi"
	maxFrame uint32
	err      error
	closed   bool
}

// CreateAVI creates path and writes a provisional AVI header for frames of
// info's size and rate.
func CreateAVI(path string, info VideoInfo, quality int) (*AVIWriter, error) {
	if info.Width <= 0 || info.Height <= 0 || info.FPS <= 0 {
		return nil, errors.Encode("generator.avi", nil, fmt.Sprintf("invalid stream %dx%d @ %g fps", info.Width, info.Height, info.FPS))
	}
	if quality <= 0 || quality > 100 {
		quality = 95
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Encode("generator.avi", err, "create output file")
	}

	a := &AVIWriter{f: f, w: bufio.NewWriterSize(f, 1<<20), info: info, quality: quality, moviSize: 4}
	a.writeHeader()
	if a.err != nil {
		f.Close()
		os.Remove(path)
		return nil, errors.Encode("generator.avi", a.err, "write header")
	}
	return a, nil
}

func (a *AVIWriter) writeFourCC(s string) {
	if a.err == nil {
		_, a.err = a.w.WriteString(s)
	}
}

func (a *AVIWriter) writeUint32(v uint32) {
	if a.err == nil {
		a.err = binary.Write(a.w, binary.LittleEndian, v)
	}
}

func (a *AVIWriter) writeUint16(v uint16) {
	if a.err == nil {
		a.err = binary.Write(a.w, binary.LittleEndian, v)
	}
}

// writeHeader writes RIFF, hdrl and the movi list opener. Frame counts and
// sizes are zero until Close patches them.
func (a *AVIWriter) writeHeader() {
	width := uint32(a.info.Width)
	height := uint32(a.info.Height)
	microSecPerFrame := uint32(math.Round(1e6 / a.info.FPS))
	rate := uint32(math.Round(a.info.FPS * rateUnit))

	// === RIFF Header ===
	a.writeFourCC("RIFF")
	a.writeUint32(0) // file size
	a.writeFourCC("AVI ")

	// === hdrl LIST ===
	a.writeFourCC("LIST")
	a.writeUint32(hdrlSize)
	a.writeFourCC("hdrl")

	// === avih (Main AVI Header) - 56 bytes + 8 header ===
	a.writeFourCC("avih")
	a.writeUint32(56)
	a.writeUint32(microSecPerFrame)
	a.writeUint32(0)    // max bytes per sec
	a.writeUint32(0)    // padding granularity
	a.writeUint32(0x10) // flags: AVIF_HASINDEX
	a.writeUint32(0)    // total frames
	a.writeUint32(0)    // initial frames
	a.writeUint32(1)    // number of streams
	a.writeUint32(0)    // suggested buffer size
	a.writeUint32(width)
	a.writeUint32(height)
	for i := 0; i < 4; i++ {
		a.writeUint32(0) // reserved
	}

	// === strl LIST (Stream List) ===
	a.writeFourCC("LIST")
	a.writeUint32(strlSize)
	a.writeFourCC("strl")

	// === strh (Stream Header) - 56 bytes + 8 header ===
	a.writeFourCC("strh")
	a.writeUint32(56)
	a.writeFourCC("vids")
	a.writeFourCC("MJPG")
	a.writeUint32(0) // flags
	a.writeUint16(0) // priority
	a.writeUint16(0) // language
	a.writeUint32(0) // initial frames
	a.writeUint32(rateUnit)
	a.writeUint32(rate)
	a.writeUint32(0) // start
	a.writeUint32(0) // length
	a.writeUint32(0) // suggested buffer size
	a.writeUint32(0) // quality
	a.writeUint32(0) // sample size
	a.writeUint16(0) // left
	a.writeUint16(0) // top
	a.writeUint16(uint16(width))
	a.writeUint16(uint16(height))

	// === strf (BITMAPINFOHEADER) - 40 bytes + 8 header ===
	a.writeFourCC("strf")
	a.writeUint32(40)
	a.writeUint32(40)
	a.writeUint32(width)
	a.writeUint32(height)
	a.writeUint16(1)  // planes
	a.writeUint16(24) // bit count
	a.writeFourCC("MJPG")
	a.writeUint32(width * height * 3)
	a.writeUint32(0)
	a.writeUint32(0)
	a.writeUint32(0)
	a.writeUint32(0)

	// === movi LIST ===
	a.writeFourCC("LIST")
	a.writeUint32(0) // movi size
	a.writeFourCC("movi")
}

// WriteFrame appends one JPEG-encoded frame.
func (a *AVIWriter) WriteFrame(img *image.RGBA) error {
	if a.closed {
		return errors.Encode("generator.avi", nil, "write after close")
	}
	if img.Rect.Dx() != a.info.Width || img.Rect.Dy() != a.info.Height {
		return errors.Encode("generator.avi", nil, fmt.Sprintf("frame %v does not match %dx%d", img.Rect, a.info.Width, a.info.Height))
	}

	a.buf.Reset()
	if err := jpeg.Encode(&a.buf, img, &jpeg.Options{Quality: a.quality}); err != nil {
		return errors.Encode("generator.avi", err, "encode JPEG")
	}
	size := uint32(a.buf.Len())

	a.index = append(a.index, aviIndexEntry{offset: a.moviSize, size: size})
	a.writeFourCC("00dc")
	a.writeUint32(size)
	if a.err == nil {
		_, a.err = a.w.Write(a.buf.Bytes())
	}
	// Pad to even boundary
	if size%2 != 0 && a.err == nil {
		a.err = a.w.WriteByte(0)
	}
	if a.err != nil {
		return errors.Encode("generator.avi", a.err, "write frame")
	}

	a.moviSize += 8 + size + size%2
	a.maxFrame = max(a.maxFrame, size)
	return nil
}

// Close writes the idx1 index, patches the header and closes the file.
func (a *AVIWriter) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	defer a.f.Close()

	frames := uint32(len(a.index))

	// === idx1 (Index) ===
	a.writeFourCC("idx1")
	a.writeUint32(frames * 16)
	for _, e := range a.index {
		a.writeFourCC("00dc")
		a.writeUint32(0x10) // flags: AVIIF_KEYFRAME
		a.writeUint32(e.offset)
		a.writeUint32(e.size)
	}
	if a.err == nil {
		a.err = a.w.Flush()
	}
	if a.err != nil {
		return errors.Encode("generator.avi", a.err, "write index")
	}

	fileSize := uint32(moviDataStart) + (a.moviSize - 4) + 8 + frames*16
	patches := []struct {
		off int64
		v   uint32
	}{
		{offRIFFSize, fileSize - 8},
		{offAvihMaxBytes, a.maxFrame * uint32(math.Ceil(a.info.FPS))},
		{offAvihTotalFrames, frames},
		{offAvihBuffer, a.maxFrame},
		{offStrhLength, frames},
		{offStrhBuffer, a.maxFrame},
		{offMoviSize, a.moviSize},
	}
	var b [4]byte
	for _, p := range patches {
		binary.LittleEndian.PutUint32(b[:], p.v)
		if _, err := a.f.WriteAt(b[:], p.off); err != nil {
			return errors.Encode("generator.avi", err, "patch header")
		}
	}

	if err := a.f.Sync(); err != nil {
		return errors.Encode("generator.avi", err, "sync")
	}
	return nil
}
