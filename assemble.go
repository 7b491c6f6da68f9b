package pagecapture

import (
	"archive/zip"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"runtime"
	"strconv"

	"github.com/jung-kurt/gofpdf"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// Assemble builds one artifact of the given kind from frames.
//
// frames must be the complete output of discovery: non-empty and numbered
// 1..n in order. An empty slice yields a [NoPagesFound] error; any frame
// that cannot be decoded fails the whole assembly.
func Assemble(frames []Frame, kind OutputKind) (*Artifact, error) {
	if len(frames) == 0 {
		return nil, &Error{Kind: NoPagesFound, Err: ErrNoPages}
	}
	for i, f := range frames {
		if f.Seq != i+1 {
			return nil, assemblyError(f.Seq, fmt.Errorf("frame %d out of sequence, want %d", f.Seq, i+1))
		}
	}

	var (
		data []byte
		err  error
	)
	switch kind {
	case PDF:
		data, err = assemblePDF(frames)
	case Archive:
		data, err = assembleArchive(frames)
	default:
		return nil, assemblyError(0, fmt.Errorf("unknown output kind %d", kind))
	}
	if err != nil {
		return nil, err
	}
	return &Artifact{kind: kind, pages: len(frames), data: data}, nil
}

// normalizeFrame is the PNG conversion step of PDF assembly. Tests
// replace it.
var normalizeFrame = normalize

// pdfImage is one frame prepared for embedding.
type pdfImage struct {
	data []byte
	typ  string // gofpdf image type
}

// assemblePDF lays out one page per frame. Page size equals the frame's
// pixel size at 72 dpi, so 1px maps to 1pt. Frames are prepared on at most
// GOMAXPROCS goroutines, since each holds a fully decoded page.
func assemblePDF(frames []Frame) ([]byte, error) {
	images := make([]pdfImage, len(frames))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range frames {
		i, f := i, f
		g.Go(func() error {
			img, err := prepareImage(f)
			if err != nil {
				return assemblyError(f.Seq, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetAutoPageBreak(false, 0)
	doc.SetMargins(0, 0, 0)
	for i, f := range frames {
		name := "page" + strconv.Itoa(f.Seq)
		w, h := float64(f.Width), float64(f.Height)
		opt := gofpdf.ImageOptions{ImageType: images[i].typ}
		doc.AddPageFormat("P", gofpdf.SizeType{Wd: w, Ht: h})
		doc.RegisterImageOptionsReader(name, opt, bytes.NewReader(images[i].data))
		doc.ImageOptions(name, 0, 0, w, h, false, opt, 0, "")
		if err := doc.Error(); err != nil {
			return nil, assemblyError(f.Seq, fmt.Errorf("adding pdf page: %w", err))
		}
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, assemblyError(0, fmt.Errorf("writing pdf: %w", err))
	}
	return buf.Bytes(), nil
}

// prepareImage embeds JPEG frames as they are, since JPEG carries no alpha
// and PDF stores DCT data natively. Everything else goes through normalize.
func prepareImage(f Frame) (pdfImage, error) {
	if f.Format == JPEG {
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(f.Data))
		if err != nil {
			return pdfImage{}, fmt.Errorf("decoding frame: %w", err)
		}
		if cfg.Width != f.Width || cfg.Height != f.Height {
			return pdfImage{}, fmt.Errorf("frame is %dx%d, header said %dx%d", cfg.Width, cfg.Height, f.Width, f.Height)
		}
		return pdfImage{data: f.Data, typ: "JPG"}, nil
	}
	b, err := normalizeFrame(f)
	if err != nil {
		return pdfImage{}, err
	}
	return pdfImage{data: b, typ: "PNG"}, nil
}

// normalize decodes a frame and re-encodes it as an opaque RGB PNG, so
// every page shares one color model whatever the capture format was.
func normalize(f Frame) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(f.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	b := src.Bounds()
	if b.Dx() != f.Width || b.Dy() != f.Height {
		return nil, fmt.Errorf("frame is %dx%d, header said %dx%d", b.Dx(), b.Dy(), f.Width, f.Height)
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}

// assembleArchive writes each frame unmodified as page_<n>.<ext>, with n
// zero-padded so lexical and numeric order agree.
func assembleArchive(frames []Frame) ([]byte, error) {
	width := max(3, len(strconv.Itoa(len(frames))))

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range frames {
		if _, _, err := image.DecodeConfig(bytes.NewReader(f.Data)); err != nil {
			return nil, assemblyError(f.Seq, fmt.Errorf("decoding frame: %w", err))
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   f.Name(width),
			Method: zip.Store,
		})
		if err != nil {
			return nil, assemblyError(f.Seq, fmt.Errorf("creating entry: %w", err))
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, assemblyError(f.Seq, fmt.Errorf("writing entry: %w", err))
		}
	}
	if err := zw.Close(); err != nil {
		return nil, assemblyError(0, fmt.Errorf("closing archive: %w", err))
	}
	return buf.Bytes(), nil
}
