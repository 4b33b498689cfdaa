package normalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"mime"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"

	"github.com/clearpost/letter-clarity-service/internal/config"
	"github.com/clearpost/letter-clarity-service/internal/pdf"
	"github.com/clearpost/letter-clarity-service/internal/quality"
	"github.com/clearpost/letter-clarity-service/internal/types"
)

// Normalized images are bounded to fit a portrait letter scan. Sources
// smaller than the box are never enlarged.
const (
	maxWidth  = 1500
	maxHeight = 2000
)

const pageSeparator = "\n\n---\n\n"

var supportedTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"application/pdf": true,
	"image/heic":      true,
	"image/heif":      true,
}

// Result is either a normalized JPEG ready for recognition or, for PDFs with
// a usable text layer, the extracted text itself.
type Result struct {
	JPEG []byte
	Text string
}

// HeicDecoder decodes a HEIC/HEIF container into an image. Injectable so
// tests can simulate codec failures without HEIC fixtures.
type HeicDecoder func(r io.Reader) (image.Image, error)

type Normalizer struct {
	cfg        config.Config
	decodeHEIC HeicDecoder
}

func New(cfg config.Config) *Normalizer {
	return &Normalizer{cfg: cfg, decodeHEIC: goheif.Decode}
}

// NewWithDecoder is used by tests to swap the HEIC codec.
func NewWithDecoder(cfg config.Config, dec HeicDecoder) *Normalizer {
	return &Normalizer{cfg: cfg, decodeHEIC: dec}
}

// Normalize validates the declared mime type and produces recognition-ready
// input. No external work happens before the type check passes.
func (n *Normalizer) Normalize(ctx context.Context, data []byte, declaredType string) (Result, error) {
	mt := canonicalType(declaredType)
	if !supportedTypes[mt] {
		return Result{}, types.E(types.KindUnsupportedMediaType,
			"Unsupported file type. Please upload a PDF, PNG, JPEG, or HEIC file.", nil)
	}

	if mt == "application/pdf" {
		return n.normalizePDF(ctx, data)
	}

	if mt == "image/heic" || mt == "image/heif" {
		converted, err := n.convertHEIC(data)
		if err != nil {
			return Result{}, types.E(types.KindCodecConversion,
				"Failed to process HEIC image. Please try converting it to JPEG first.", err)
		}
		data = converted
	}

	out, err := n.pipeline(data)
	if err != nil {
		return Result{}, err
	}
	return Result{JPEG: out}, nil
}

// convertHEIC re-encodes a HEIC/HEIF image as JPEG at maximum quality; the
// lossy pass happens later in the pipeline.
func (n *Normalizer) convertHEIC(data []byte) ([]byte, error) {
	img, err := n.decodeHEIC(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("heic decode: %w", err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(100)); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// pipeline runs the fixed preprocessing chain: bounded downscale, greyscale,
// contrast stretch, sharpen, JPEG re-encode.
func (n *Normalizer) pipeline(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, types.E(types.KindCodecConversion, "Could not decode image data.", err)
	}

	fitted := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	grey := imaging.Grayscale(fitted)
	stretched := stretchContrast(grey)
	sharpened := imaging.Sharpen(stretched, 1.0)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, sharpened, imaging.JPEG, imaging.JPEGQuality(n.cfg.JPEGQuality)); err != nil {
		return nil, types.E(types.KindCodecConversion, "Could not encode image.", err)
	}
	return buf.Bytes(), nil
}

// normalizePDF tries the text layer first; scanned PDFs without one fall
// back to rasterizing page 1 through the image pipeline.
func (n *Normalizer) normalizePDF(ctx context.Context, data []byte) (Result, error) {
	if len(data) < 5 || string(data[:4]) != "%PDF" {
		return Result{}, types.E(types.KindUnsupportedMediaType,
			"Uploaded file does not look like a PDF.", nil)
	}

	path, cleanup, err := pdf.WriteTemp(data)
	if err != nil {
		return Result{}, types.E(types.KindExtractionFailed, "Could not stage PDF for processing.", err)
	}
	defer cleanup()

	infoCtx, cancel := context.WithTimeout(ctx, n.cfg.PDFInfoTimeout)
	pages, err := pdf.PageCount(infoCtx, path)
	cancel()
	if err != nil {
		return Result{}, wrapPDFErr("Could not read PDF.", err)
	}

	if pages > n.cfg.PDFMaxPages {
		pages = n.cfg.PDFMaxPages
	}

	parts := make([]string, 0, pages)
	for p := 1; p <= pages; p++ {
		textCtx, cancel := context.WithTimeout(ctx, n.cfg.PDFTextTimeout)
		raw, err := pdf.TextForPage(textCtx, path, p)
		cancel()
		if err != nil {
			break
		}
		raw = strings.TrimSpace(raw)
		if raw != "" {
			parts = append(parts, raw)
		}
	}

	joined := strings.Join(parts, pageSeparator)
	if quality.Score(joined, n.cfg.PDFMinWords).Usable {
		return Result{Text: joined}, nil
	}

	ppmCtx, cancel := context.WithTimeout(ctx, n.cfg.PDFPpmTimeout)
	rendered, err := pdf.RasterizeFirstPage(ppmCtx, path, n.cfg.PDFRasterDPI)
	cancel()
	if err != nil {
		return Result{}, wrapPDFErr("Could not render PDF page.", err)
	}

	out, err := n.pipeline(rendered)
	if err != nil {
		return Result{}, err
	}
	return Result{JPEG: out}, nil
}

func wrapPDFErr(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return types.E(types.KindUpstreamTimeout, msg, err)
	}
	return types.E(types.KindExtractionFailed, msg, err)
}

func canonicalType(declared string) string {
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(declared))
	}
	return strings.ToLower(mt)
}
