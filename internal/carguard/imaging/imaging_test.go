package imaging_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/imaging"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	img, format, err := imaging.Decode(encodePNG(t, 40, 20, color.RGBA{R: 200, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, _, err := imaging.Decode([]byte("definitely not an image"))
	assert.ErrorIs(t, err, imaging.ErrDecode)

	_, _, err = imaging.Decode(nil)
	assert.ErrorIs(t, err, imaging.ErrDecode)
}

func TestResize(t *testing.T) {
	img, _, err := imaging.Decode(encodePNG(t, 640, 480, color.RGBA{G: 120, A: 255}))
	require.NoError(t, err)

	out := imaging.Resize(img, 300)
	assert.Equal(t, image.Rect(0, 0, 300, 300), out.Bounds())

	r, g, b, _ := out.At(150, 150).RGBA()
	assert.Zero(t, r>>8)
	assert.InDelta(t, 120, g>>8, 1)
	assert.Zero(t, b>>8)
}

func TestDecodeLimited_RejectsOversizeBeforeDecoding(t *testing.T) {
	data := encodePNG(t, 40, 30, color.RGBA{G: 90, A: 255})

	_, _, err := imaging.DecodeLimited(data, 40*30-1)
	assert.ErrorIs(t, err, imaging.ErrDecode)

	img, _, err := imaging.DecodeLimited(data, 40*30)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestDecode_RejectsHugeDeclaredDimensions(t *testing.T) {
	data := encodePNG(t, 1, 1, color.Black)
	// IHDR width and height follow the 8-byte signature, length and type.
	binary.BigEndian.PutUint32(data[16:], 60000)
	binary.BigEndian.PutUint32(data[20:], 60000)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))

	_, _, err := imaging.Decode(data)
	assert.ErrorIs(t, err, imaging.ErrDecode)
	assert.Contains(t, err.Error(), "exceeds")
}
