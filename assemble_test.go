package pagecapture

import (
	"archive/zip"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func TestMain(m *testing.M) {
	// Keep pdfcpu from writing its config into the user's home directory.
	api.DisableConfigDir()
	os.Exit(m.Run())
}

// isPDF checks whether data starts with the PDF magic number.
func isPDF(data []byte) bool {
	return len(data) > 4 && string(data[:5]) == "%PDF-"
}

func pngFrame(t *testing.T, seq, w, h int) Frame {
	t.Helper()
	f, err := newFrame(seq, encodePNG(w, h, color.RGBA{B: 255, A: 255}))
	if err != nil {
		t.Fatalf("newFrame: %v", err)
	}
	return f
}

func pdfPageDims(t *testing.T, data []byte) [][2]float64 {
	t.Helper()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	dims, err := api.PageDims(bytes.NewReader(data), conf)
	if err != nil {
		t.Fatalf("PageDims: %v", err)
	}
	out := make([][2]float64, len(dims))
	for i, d := range dims {
		out[i] = [2]float64{d.Width, d.Height}
	}
	return out
}

func TestAssemble_PDFPreservesPageOrderAndSize(t *testing.T) {
	frames := []Frame{
		pngFrame(t, 1, 800, 600),
		pngFrame(t, 2, 800, 550),
		pngFrame(t, 3, 800, 600),
	}
	art, err := Assemble(frames, PDF)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !isPDF(art.Bytes()) {
		t.Fatal("output is not a valid PDF")
	}
	if art.Pages() != 3 || art.Kind() != PDF {
		t.Errorf("Pages() = %d, Kind() = %v", art.Pages(), art.Kind())
	}

	got := pdfPageDims(t, art.Bytes())
	want := [][2]float64{{800, 600}, {800, 550}, {800, 600}}
	if len(got) != len(want) {
		t.Fatalf("pdf has %d pages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("page %d is %vx%v, want %vx%v", i+1, got[i][0], got[i][1], want[i][0], want[i][1])
		}
	}
}

func TestAssemble_PDFMixedEncodings(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	jf, err := newFrame(2, buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if jf.Format != JPEG {
		t.Fatalf("format = %q, want jpeg", jf.Format)
	}

	art, err := Assemble([]Frame{pngFrame(t, 1, 32, 32), jf}, PDF)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	got := pdfPageDims(t, art.Bytes())
	if len(got) != 2 || got[1] != [2]float64{64, 48} {
		t.Errorf("page dims = %v", got)
	}
}

func TestAssemble_ArchiveRoundTrip(t *testing.T) {
	frames := []Frame{
		pngFrame(t, 1, 10, 10),
		pngFrame(t, 2, 11, 12),
		pngFrame(t, 3, 12, 14),
	}
	art, err := Assemble(frames, Archive)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if art.ContentType() != "application/zip" || art.Filename("doc") != "doc.zip" {
		t.Errorf("ContentType() = %q, Filename() = %q", art.ContentType(), art.Filename("doc"))
	}

	zr, err := zip.NewReader(art.Reader(), int64(art.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != len(frames) {
		t.Fatalf("archive has %d entries, want %d", len(zr.File), len(frames))
	}
	wantNames := []string{"page_001.png", "page_002.png", "page_003.png"}
	for i, zf := range zr.File {
		if zf.Name != wantNames[i] {
			t.Errorf("entry %d = %q, want %q", i, zf.Name, wantNames[i])
		}
		rc, err := zf.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, frames[i].Data) {
			t.Errorf("entry %d content differs from frame %d", i, i+1)
		}
	}
}

func TestAssemble_ArchiveNamesSortNumerically(t *testing.T) {
	frames := make([]Frame, 1200)
	data := encodePNG(1, 1, color.Black)
	for i := range frames {
		frames[i] = Frame{Seq: i + 1, Data: data, Width: 1, Height: 1, Format: PNG}
	}
	art, err := Assemble(frames, Archive)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	zr, err := zip.NewReader(art.Reader(), int64(art.Len()))
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	prev := ""
	for _, zf := range zr.File {
		if seen[zf.Name] {
			t.Fatalf("duplicate entry %q", zf.Name)
		}
		seen[zf.Name] = true
		if zf.Name <= prev {
			t.Fatalf("entry %q does not sort after %q", zf.Name, prev)
		}
		prev = zf.Name
	}
	if zr.File[0].Name != "page_0001.png" {
		t.Errorf("first entry = %q, want page_0001.png", zr.File[0].Name)
	}
}

func TestAssemble_EmptyIsNoPagesFound(t *testing.T) {
	for _, kind := range []OutputKind{PDF, Archive} {
		art, err := Assemble(nil, kind)
		if art != nil {
			t.Errorf("%v: got an artifact for no frames", kind)
		}
		if KindOf(err) != NoPagesFound {
			t.Errorf("%v: got %v, want no pages found", kind, err)
		}
	}
}

func TestAssemble_UndecodableFrameFails(t *testing.T) {
	bad := Frame{Seq: 2, Data: []byte("not an image"), Width: 10, Height: 10, Format: PNG}
	for _, kind := range []OutputKind{PDF, Archive} {
		art, err := Assemble([]Frame{pngFrame(t, 1, 10, 10), bad}, kind)
		if art != nil {
			t.Errorf("%v: got an artifact despite a bad frame", kind)
		}
		var e *Error
		if !errors.As(err, &e) || e.Kind != AssemblyFailure || e.Page != 2 {
			t.Errorf("%v: got %v, want assembly failure on page 2", kind, err)
		}
	}
}

func TestAssemble_GapInSequenceFails(t *testing.T) {
	frames := []Frame{pngFrame(t, 1, 10, 10), pngFrame(t, 3, 10, 10)}
	_, err := Assemble(frames, PDF)
	if KindOf(err) != AssemblyFailure {
		t.Fatalf("got %v, want assembly failure", err)
	}
	if !strings.Contains(err.Error(), "out of sequence") {
		t.Errorf("error %q does not mention the sequence", err)
	}
}

func TestNormalize_FlattensAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4)) // fully transparent
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	f, err := newFrame(1, buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	out, err := normalize(f)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	dec, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, a := dec.At(1, 1).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("pixel = %d,%d,%d,%d, want opaque white", r, g, b, a)
	}
}

func TestAssemble_PDFBoundsParallelDecoding(t *testing.T) {
	limit := runtime.GOMAXPROCS(0)
	var (
		mu        sync.Mutex
		active    int
		maxActive int
	)
	orig := normalizeFrame
	normalizeFrame = func(f Frame) ([]byte, error) {
		mu.Lock()
		active++
		maxActive = max(maxActive, active)
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return orig(f)
	}
	t.Cleanup(func() { normalizeFrame = orig })

	frames := make([]Frame, 4*limit+3)
	for i := range frames {
		frames[i] = pngFrame(t, i+1, 8, 8)
	}
	art, err := Assemble(frames, PDF)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if art.Pages() != len(frames) {
		t.Errorf("Pages() = %d, want %d", art.Pages(), len(frames))
	}
	if maxActive > limit {
		t.Errorf("%d frames decoded at once, want at most %d", maxActive, limit)
	}
}

func TestAssemble_PDFEmbedsJPEGUnchanged(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		t.Fatal(err)
	}
	f, err := newFrame(1, buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	orig := normalizeFrame
	normalizeFrame = func(f Frame) ([]byte, error) {
		t.Errorf("frame %d (%s) was re-encoded", f.Seq, f.Format)
		return orig(f)
	}
	t.Cleanup(func() { normalizeFrame = orig })

	art, err := Assemble([]Frame{f}, PDF)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Contains(art.Bytes(), f.Data) {
		t.Error("pdf does not carry the original JPEG stream")
	}
	if !bytes.Contains(art.Bytes(), []byte("/DCTDecode")) {
		t.Error("pdf image is not DCT encoded")
	}
	if got := pdfPageDims(t, art.Bytes()); len(got) != 1 || got[0] != [2]float64{40, 30} {
		t.Errorf("page dims = %v, want [[40 30]]", got)
	}
}

func TestAssemble_PDFRejectsBadJPEG(t *testing.T) {
	bad := Frame{Seq: 1, Data: []byte("\xff\xd8 truncated"), Width: 10, Height: 10, Format: JPEG}
	_, err := Assemble([]Frame{bad}, PDF)
	var e *Error
	if !errors.As(err, &e) || e.Kind != AssemblyFailure || e.Page != 1 {
		t.Fatalf("got %v, want assembly failure on page 1", err)
	}
}
