package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"
)

// Longest-edge limits for the stored photo variants.
const (
	ThumbnailMaxEdge = 320
	MediumMaxEdge    = 1600
)

const jpegQuality = 85

// Fit re-encodes src as a JPEG whose longest edge is at most maxEdge,
// preserving aspect ratio. The second return is false when src already fits
// and no variant needs to be stored. Unsupported formats (e.g. webp) return
// an error; callers serve the original instead.
func Fit(src []byte, maxEdge int) ([]byte, bool, error) {
	if maxEdge <= 0 {
		return nil, false, fmt.Errorf("invalid max edge %d", maxEdge)
	}

	img, _, err := image.Decode(bytes.NewReader(src))
	if err != nil {
		return nil, false, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, false, fmt.Errorf("empty image")
	}
	if w <= maxEdge && h <= maxEdge {
		return nil, false, nil
	}

	dw, dh := fitDims(w, h, maxEdge)
	scaled := scale(img, dw, dh)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, false, fmt.Errorf("encode variant: %w", err)
	}
	return buf.Bytes(), true, nil
}

func fitDims(w, h, maxEdge int) (int, int) {
	if w >= h {
		dh := h * maxEdge / w
		if dh < 1 {
			dh = 1
		}
		return maxEdge, dh
	}
	dw := w * maxEdge / h
	if dw < 1 {
		dw = 1
	}
	return dw, maxEdge
}

// scale is a nearest-neighbor resize. Quality is secondary here; variants
// exist to keep list views and vision payloads small.
func scale(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := img.Bounds()
	for y := 0; y < h; y++ {
		sy := b.Min.Y + y*b.Dy()/h
		for x := 0; x < w; x++ {
			sx := b.Min.X + x*b.Dx()/w
			dst.Set(x, y, img.At(sx, sy))
		}
	}
	return dst
}
