package preview

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"

	"deepdefender/internal/acquire"
)

func pngFile(t *testing.T, w, h int, extraChunks ...[]byte) *acquire.InputFile {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 0xff, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	data := buf.Bytes()
	if len(extraChunks) > 0 {
		insertAt := len(data) - 12
		out := append([]byte{}, data[:insertAt]...)
		for _, chunk := range extraChunks {
			out = append(out, chunk...)
		}
		data = append(out, data[insertAt:]...)
	}
	return &acquire.InputFile{Name: "sample.png", MediaType: "image/png", Data: data}
}

func TestCreateSkipsNonImage(t *testing.T) {
	reg := NewRegistry()
	if h := reg.Create(&acquire.InputFile{Name: "doc.pdf", MediaType: "application/pdf", Data: []byte("%PDF")}); h != nil {
		t.Fatalf("expected no handle for non-image, got %s", h.ID())
	}
	if h := reg.Create(nil); h != nil {
		t.Fatal("expected no handle for nil file")
	}
	if reg.Live() != 0 {
		t.Fatalf("expected no live handles, got %d", reg.Live())
	}
}

func TestReleaseExactlyOnce(t *testing.T) {
	reg := NewRegistry()
	h := reg.Create(pngFile(t, 2, 2))
	if h == nil {
		t.Fatal("expected handle for image")
	}
	if !strings.HasPrefix(h.URL(), URLScheme) {
		t.Fatalf("unexpected url: %s", h.URL())
	}
	if got, ok := reg.Lookup(h.ID()); !ok || got != h {
		t.Fatal("expected lookup to find live handle")
	}

	var wg sync.WaitGroup
	results := make(chan bool, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- h.Release()
		}()
	}
	wg.Wait()
	close(results)

	performed := 0
	for ok := range results {
		if ok {
			performed++
		}
	}
	if performed != 1 {
		t.Fatalf("expected exactly one effective release, got %d", performed)
	}
	if reg.Live() != 0 || reg.ReleasedCount() != 1 {
		t.Fatalf("expected 0 live / 1 released, got %d / %d", reg.Live(), reg.ReleasedCount())
	}
	if _, err := h.Bytes(); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
	if _, ok := reg.Lookup(h.ID()); ok {
		t.Fatal("released handle must not be found")
	}
}

func TestThumbnailFitsBounds(t *testing.T) {
	h := NewRegistry().Create(pngFile(t, 40, 20))

	thumb, err := h.Thumbnail(10, 10)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	if got := thumb.Bounds(); got.Dx() != 10 || got.Dy() != 5 {
		t.Fatalf("expected 10x5, got %dx%d", got.Dx(), got.Dy())
	}

	w, hgt, err := h.Dimensions()
	if err != nil {
		t.Fatalf("dimensions: %v", err)
	}
	if w != 40 || hgt != 20 {
		t.Fatalf("expected 40x20, got %dx%d", w, hgt)
	}
}

func TestThumbnailAfterRelease(t *testing.T) {
	h := NewRegistry().Create(pngFile(t, 4, 4))
	h.Release()
	if _, err := h.Thumbnail(2, 2); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
}

func TestCaptureNotesFromPNGText(t *testing.T) {
	file := pngFile(t, 1, 1,
		buildPNGChunk("tEXt", []byte("Model\x00Pixel 8")),
		buildPNGChunk("tEXt", []byte("Software\x00GIMP 2.10")),
		buildPNGChunk("tIME", []byte{0x07, 0xE8, 0x01, 0x02, 0x03, 0x04, 0x05}),
	)
	h := NewRegistry().Create(file)

	notes, err := h.CaptureNotes()
	if err != nil {
		t.Fatalf("capture notes: %v", err)
	}
	want := map[string]string{
		"Device":   "Device: Pixel 8 (smartphone)",
		"Software": "Processed with: GIMP 2.10",
		"Timeline": "Captured: 2024-01-02 03:04:05 (timezone unknown)",
	}
	for _, note := range notes {
		if expected, ok := want[note.Kind]; ok {
			if note.Message != expected {
				t.Errorf("%s: expected %q, got %q", note.Kind, expected, note.Message)
			}
			delete(want, note.Kind)
		}
	}
	if len(want) != 0 {
		t.Fatalf("missing notes: %v (got %#v)", want, notes)
	}
}

func TestCaptureNotesFromJPEGExif(t *testing.T) {
	h := NewRegistry().Create(&acquire.InputFile{Name: "cam.jpg", MediaType: "image/jpeg", Data: buildJPEGWithExif()})

	notes, err := h.CaptureNotes()
	if err != nil {
		t.Fatalf("capture notes: %v", err)
	}
	var device string
	for _, note := range notes {
		if note.Kind == "Device" {
			device = note.Message
		}
	}
	if !strings.Contains(device, "TestCam") {
		t.Fatalf("expected device note with TestCam, got %#v", notes)
	}
}

func TestCaptureNotesFromPNGExifChunk(t *testing.T) {
	h := NewRegistry().Create(pngFile(t, 1, 1, buildPNGChunk("eXIf", buildExifTIFF())))

	notes, err := h.CaptureNotes()
	if err != nil {
		t.Fatalf("capture notes: %v", err)
	}
	var device string
	for _, note := range notes {
		if note.Kind == "Device" {
			device = note.Message
		}
	}
	if !strings.Contains(device, "TestCam") {
		t.Fatalf("expected device note from eXIf chunk, got %#v", notes)
	}
}

func TestCaptureNotesWithoutMetadata(t *testing.T) {
	notes, err := NewRegistry().Create(pngFile(t, 1, 1)).CaptureNotes()
	if err != nil {
		t.Fatalf("capture notes: %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("expected no notes, got %#v", notes)
	}
}

func TestParseGPSCoordinate(t *testing.T) {
	got, ok := parseGPSCoordinate("[34/1 3/1 0/1]")
	if !ok || got != 34.05 {
		t.Fatalf("expected 34.05, got %v (%v)", got, ok)
	}
	if _, ok := parseGPSCoordinate("[a b]"); ok {
		t.Fatal("expected parse failure")
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{100, 50, 20, 20, 20, 10},
		{50, 100, 20, 20, 10, 20},
		{10, 10, 20, 20, 10, 10},
		{1000, 1, 10, 10, 10, 1},
	}
	for _, tt := range tests {
		w, h := fitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("fitWithin(%d,%d,%d,%d) = %d,%d want %d,%d", tt.w, tt.h, tt.maxW, tt.maxH, w, h, tt.wantW, tt.wantH)
		}
	}
}

func buildJPEGWithExif() []byte {
	exifData := buildExifTIFF()
	exif := append([]byte("Exif\x00\x00"), exifData...)

	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xd8})
	buf.Write([]byte{0xff, 0xe1})
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(exif)+2))
	buf.Write(exif)
	buf.Write([]byte{0xff, 0xd9})
	return buf.Bytes()
}

func buildExifTIFF() []byte {
	var tiff bytes.Buffer
	tiff.Write([]byte{0x49, 0x49, 0x2a, 0x00})
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0110))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(8))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(38))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(0x0132))
	_ = binary.Write(&tiff, binary.LittleEndian, uint16(2))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(20))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(46))
	_ = binary.Write(&tiff, binary.LittleEndian, uint32(0))
	tiff.Write([]byte("TestCam\x00"))
	tiff.Write([]byte("2024:01:02 03:04:05\x00"))
	return tiff.Bytes()
}

func buildPNGChunk(chunkType string, data []byte) []byte {
	chunkTypeBytes := []byte(chunkType)
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	crc := crc32.ChecksumIEEE(append(chunkTypeBytes, data...))
	crcBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBuf, crc)

	chunk := make([]byte, 0, 12+len(data))
	chunk = append(chunk, lenBuf...)
	chunk = append(chunk, chunkTypeBytes...)
	chunk = append(chunk, data...)
	chunk = append(chunk, crcBuf...)
	return chunk
}
