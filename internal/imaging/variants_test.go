package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFit_DownscalesLandscape(t *testing.T) {
	src := pngBytes(t, 800, 400)

	out, resized, err := Fit(src, 256)
	require.NoError(t, err)
	require.True(t, resized)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 256, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())
}

func TestFit_DownscalesPortrait(t *testing.T) {
	src := pngBytes(t, 300, 900)

	out, resized, err := Fit(src, 300)
	require.NoError(t, err)
	require.True(t, resized)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestFit_SmallImageUntouched(t *testing.T) {
	src := pngBytes(t, 100, 80)

	out, resized, err := Fit(src, 256)
	require.NoError(t, err)
	assert.False(t, resized)
	assert.Nil(t, out)
}

func TestFit_GarbageBytes(t *testing.T) {
	_, _, err := Fit([]byte("not an image"), 256)
	assert.Error(t, err)
}
