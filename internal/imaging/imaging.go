// Package imaging decodes uploaded artwork images and prepares them for the
// embedding model and for inline attachment to generative model requests.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register decoder
	"image/jpeg"
	_ "image/png" // register decoder

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/gallery-ai/critic/internal/critiqueerrors"
)

const (
	// DefaultMaxDimension bounds both sides of images attached to generative requests.
	DefaultMaxDimension = 2048
	// DefaultJPEGQuality is the re-encoding quality for attached images.
	DefaultJPEGQuality = 85
	// JPEGMIMEType is the media type of every optimized image.
	JPEGMIMEType = "image/jpeg"
	// MaxPixels bounds the decoded size of any image (8192x8192).
	MaxPixels = 8192 * 8192
)

var (
	errEmptyImage = errors.New("image data is empty")
	errTooLarge   = errors.New("image too large")
)

// Encoded is an optimized image ready to be attached to a model request.
type Encoded struct {
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// Base64 returns the standard base64 encoding of the image bytes.
func (e Encoded) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// DataURL returns the image as a data URL.
func (e Encoded) DataURL() string {
	return "data:" + e.MIMEType + ";base64," + e.Base64()
}

// Decode decodes image bytes in any registered format. The header is checked
// first so that images over MaxPixels are rejected before any pixel buffer is
// allocated. Failures are reported as ImageDecodeError.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", critiqueerrors.NewImageDecodeError("decode image", errEmptyImage)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", critiqueerrors.NewImageDecodeError("decode image", err)
	}

	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, "", critiqueerrors.NewImageDecodeError("decode image",
			fmt.Errorf("%w: %dx%d exceeds %d pixels", errTooLarge, cfg.Width, cfg.Height, MaxPixels))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", critiqueerrors.NewImageDecodeError("decode image", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, "", critiqueerrors.NewImageDecodeError("decode image", errEmptyImage)
	}

	return img, format, nil
}

// Flatten composites img onto an opaque white canvas, dropping any alpha channel.
func Flatten(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)

	return dst
}

// FitSize returns the size of a w×h image scaled down to fit within maxW×maxH,
// preserving aspect ratio. Images that already fit are never upscaled.
func FitSize(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}

	scale := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*scale+0.5))
	nh := max(1, int(float64(h)*scale+0.5))

	return min(nw, maxW), min(nh, maxH)
}

// Fit scales img down to fit within maxW×maxH.
func Fit(img image.Image, maxW, maxH int) image.Image {
	bounds := img.Bounds()
	w, h := FitSize(bounds.Dx(), bounds.Dy(), maxW, maxH)
	if w == bounds.Dx() && h == bounds.Dy() {
		return img
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return dst
}

// ResizeAndCenterCrop scales img so its shorter side equals size, then crops
// the central size×size square.
func ResizeAndCenterCrop(img image.Image, size int) *image.RGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := float64(size) / float64(min(w, h))
	sw := max(size, int(float64(w)*scale+0.5))
	sh := max(size, int(float64(h)*scale+0.5))

	scaled := image.NewRGBA(image.Rect(0, 0, sw, sh))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Src, nil)

	x0 := (sw - size) / 2
	y0 := (sh - size) / 2
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), scaled, image.Pt(x0, y0), draw.Src)

	return dst
}

// OptimizeOptions control Optimize.
type OptimizeOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

// DefaultOptimizeOptions fits images into 2048×2048 at JPEG quality 85.
func DefaultOptimizeOptions() OptimizeOptions {
	return OptimizeOptions{
		MaxWidth:  DefaultMaxDimension,
		MaxHeight: DefaultMaxDimension,
		Quality:   DefaultJPEGQuality,
	}
}

// Optimize decodes data, fits it within the configured box, flattens alpha
// onto white and re-encodes it as JPEG.
func Optimize(data []byte, opts OptimizeOptions) (Encoded, error) {
	img, _, err := Decode(data)
	if err != nil {
		return Encoded{}, err
	}

	return OptimizeImage(img, opts)
}

// OptimizeImage is Optimize for an already decoded image.
func OptimizeImage(img image.Image, opts OptimizeOptions) (Encoded, error) {
	if opts.MaxWidth <= 0 || opts.MaxHeight <= 0 {
		opts.MaxWidth, opts.MaxHeight = DefaultMaxDimension, DefaultMaxDimension
	}

	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultJPEGQuality
	}

	flat := Flatten(Fit(img, opts.MaxWidth, opts.MaxHeight))

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return Encoded{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return Encoded{
		MIMEType: JPEGMIMEType,
		Data:     buf.Bytes(),
		Width:    flat.Bounds().Dx(),
		Height:   flat.Bounds().Dy(),
	}, nil
}
