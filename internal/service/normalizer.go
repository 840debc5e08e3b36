// Package service contains business logic for the PosterForge application.
//
// This file implements the image normalizer that turns an arbitrary
// uploaded raster image into a bounded, transport-ready payload.
package service

import (
	"bytes"
	"encoding/base64"
	"image"
	"io"

	"github.com/bananano/posterforge/internal/domain"
	"github.com/disintegration/imaging"

	// WebP uploads are accepted alongside the formats imaging registers.
	_ "golang.org/x/image/webp"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ImageNormalizer turns raw upload bytes into a NormalizedImage.
type ImageNormalizer interface {
	// Normalize decodes the input, downscales it to fit within
	// domain.MaxImageDimension (never upscaling), and re-encodes it as
	// JPEG at the fixed quality. The result carries both the base64
	// payload for transport and a data URL for display.
	Normalize(data io.Reader) (*domain.NormalizedImage, error)
}

// =============================================================================
// Implementation
// =============================================================================

// imagingNormalizer implements ImageNormalizer using the imaging library.
type imagingNormalizer struct{}

// NewImagingNormalizer creates a normalizer backed by the imaging library.
func NewImagingNormalizer() ImageNormalizer {
	return &imagingNormalizer{}
}

// Normalize decodes, downscales, and re-encodes the uploaded image.
//
// Scaling preserves the aspect ratio exactly: the limiting dimension is
// pinned to domain.MaxImageDimension and the minor axis is derived by
// rounded proportional scaling. Inputs already within the bound keep
// their dimensions. The output format is always JPEG regardless of the
// input format.
func (n *imagingNormalizer) Normalize(data io.Reader) (*domain.NormalizedImage, error) {
	const op = "normalizer.normalize"

	img, _, err := image.Decode(data)
	if err != nil {
		return nil, domain.Wrap(err, domain.EDECODE, op, "The file could not be read as an image. Please upload a PNG, JPEG, or WebP file.")
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	targetW, targetH := fitWithinBound(width, height, domain.MaxImageDimension)
	if targetW != width || targetH != height {
		img = imaging.Resize(img, targetW, targetH, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(domain.OutputJPEGQuality)); err != nil {
		return nil, domain.Wrap(err, domain.EENCODE, op, "The image could not be re-encoded for upload.")
	}

	payload := base64.StdEncoding.EncodeToString(buf.Bytes())

	return &domain.NormalizedImage{
		Payload:   payload,
		MediaType: domain.OutputMediaType,
		DataURL:   "data:" + domain.OutputMediaType + ";base64," + payload,
		Width:     targetW,
		Height:    targetH,
	}, nil
}

// fitWithinBound computes the output dimensions for an image of the
// given size. The larger axis is clamped to bound and the other axis is
// scaled proportionally with integer rounding. Images already within
// the bound are returned unchanged.
func fitWithinBound(width, height, bound int) (int, int) {
	if width <= bound && height <= bound {
		return width, height
	}
	if width > height {
		return bound, roundedScale(height, bound, width)
	}
	return roundedScale(width, bound, height), bound
}

// roundedScale returns round(minor * bound / major) using integer math.
func roundedScale(minor, bound, major int) int {
	return (minor*bound + major/2) / major
}
