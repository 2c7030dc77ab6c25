package service

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // register GIF decoder
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"strings"

	"bazaar/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultImageMaxUploadSizeMB = 5
	PhotoMaxSize                = 1024
	AvatarSize                  = 256
	WebPQuality                 = 80
	// MaxImagePixels caps the decoded canvas; headers are checked before
	// any pixel data is allocated.
	MaxImagePixels = 40_000_000
	webpContentType             = "image/webp"
)

// UploadFile is one uploaded file as received from a multipart form.
type UploadFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ImageProcessor validates uploads and re-encodes them as WebP.
type ImageProcessor struct {
	maxUploadSizeBytes int64
}

// NewImageProcessor returns a processor accepting files up to maxBytes.
// Non-positive values fall back to DefaultImageMaxUploadSizeMB.
func NewImageProcessor(maxBytes int64) *ImageProcessor {
	if maxBytes <= 0 {
		maxBytes = DefaultImageMaxUploadSizeMB * 1024 * 1024
	}
	return &ImageProcessor{maxUploadSizeBytes: maxBytes}
}

// MaxUploadBytes is the per-file size limit.
func (p *ImageProcessor) MaxUploadBytes() int64 {
	return p.maxUploadSizeBytes
}

// FitInside scales the image down to fit a size×size box, keeping its
// aspect ratio. Smaller images are not enlarged.
func (p *ImageProcessor) FitInside(f UploadFile, size int) ([]byte, error) {
	src, err := p.decode(f)
	if err != nil {
		return nil, err
	}
	return encode(resizeToFit(src, size, size))
}

// Cover center-crops the image to the w:h aspect ratio and scales it to
// exactly w×h.
func (p *ImageProcessor) Cover(f UploadFile, w, h int) ([]byte, error) {
	src, err := p.decode(f)
	if err != nil {
		return nil, err
	}
	x, y, cw, ch := coverRect(src.Bounds().Dx(), src.Bounds().Dy(), w, h)
	cropped := cropToRect(src, src.Bounds().Min.X+x, src.Bounds().Min.Y+y, cw, ch)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), cropped, cropped.Bounds(), xdraw.Over, nil)
	return encode(dst)
}

func (p *ImageProcessor) decode(f UploadFile) (image.Image, error) {
	if len(f.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(f.Content)) > p.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", p.maxUploadSizeBytes/(1024*1024)))
	}
	if provided := normalizeContentType(f.ContentType); provided != "" && !strings.HasPrefix(provided, "image/") {
		return nil, models.NewValidationError("Only image files are allowed")
	}

	detected := http.DetectContentType(f.Content)
	if !isAllowedImageMIME(detected) {
		return nil, models.NewValidationError("Only image files are allowed")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, models.NewValidationError(fmt.Sprintf("Image dimensions too large (max %d megapixels)", MaxImagePixels/1_000_000))
	}

	decoded, format, err := image.Decode(bytes.NewReader(f.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if decodedFormatToMime(format) == "" {
		return nil, models.NewValidationError("Unsupported image format")
	}
	return decoded, nil
}

func encode(img image.Image) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: WebPQuality}); err != nil {
		return nil, models.NewInternalError(err)
	}
	return buf.Bytes(), nil
}

// coverRect returns the largest centered rectangle of srcW×srcH with the
// dstW:dstH aspect ratio.
func coverRect(srcW, srcH, dstW, dstH int) (x, y, w, h int) {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return 0, 0, srcW, srcH
	}
	if srcW*dstH > srcH*dstW {
		// Source is wider than the target: trim the sides.
		w = srcH * dstW / dstH
		h = srcH
	} else {
		w = srcW
		h = srcW * dstH / dstW
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return (srcW - w) / 2, (srcH - h) / 2, w, h
}

func cropToRect(src image.Image, x, y, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if s := float64(maxHeight) / float64(h); s < scale {
		scale = s
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return webpContentType
	default:
		return ""
	}
}
