package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/puzzle"
)

var hexColor = regexp.MustCompile(`^#[0-9A-F]{6}$`)

// gridImage paints side*side solid cells of cellW x cellH pixels in row-major order.
func gridImage(side, cellW, cellH int, colors []domain.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, side*cellW, side*cellH))
	for y := 0; y < side*cellH; y++ {
		for x := 0; x < side*cellW; x++ {
			c := colors[(y/cellH)*side+x/cellW]
			img.Set(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
		}
	}
	return img
}

func distinctColors(n int) []domain.Color {
	out := make([]domain.Color, n)
	for i := range out {
		out[i] = domain.RGB(uint8(10*i+5), uint8(255-7*i), uint8(3*i))
	}
	return out
}

func solidPNG(t *testing.T, c domain.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 45))
	for y := 0; y < 45; y++ {
		for x := 0; x < 60; x++ {
			img.Set(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractRowMajorOrder(t *testing.T) {
	for side := 2; side <= 7; side++ {
		want := distinctColors(side * side)
		img := gridImage(side, 100, 100, want)
		got, err := Extract(img, side*side)
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("side %d: row-major mismatch (-want +got):\n%s", side, diff)
		}
	}
}

func TestExtractStretchesNonSquareImages(t *testing.T) {
	want := distinctColors(9)
	img := gridImage(3, 200, 60, want)
	got, err := Extract(img, 9)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExtractLengthAndFormatForScannableGeometries(t *testing.T) {
	noise := image.NewRGBA(image.Rect(0, 0, 123, 77))
	for i := range noise.Pix {
		noise.Pix[i] = uint8(i * 31)
		if i%4 == 3 {
			noise.Pix[i] = 0xFF
		}
	}
	for _, g := range puzzle.Default().All() {
		if !g.Scannable {
			continue
		}
		cs, err := Extract(noise, g.StickersPerFace)
		require.NoError(t, err, g.ID)
		require.Len(t, cs, g.StickersPerFace, g.ID)
		for _, c := range cs {
			assert.Regexp(t, hexColor, c.String())
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	img := gridImage(3, 41, 37, distinctColors(9))
	a, err := Extract(img, 9)
	require.NoError(t, err)
	b, err := Extract(img, 9)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExtractRejectsNonSquareGrid(t *testing.T) {
	_, err := Extract(image.NewRGBA(image.Rect(0, 0, 10, 10)), 11)
	assert.True(t, errors.Is(err, ErrGridGeometry))
}

func TestExtractAllSolidFaces(t *testing.T) {
	palette := domain.CubePalette()
	images := make([][]byte, len(palette))
	for i, c := range palette {
		images[i] = solidPNG(t, c)
	}
	e := NewEngine(2, nil)
	got, err := e.ExtractAll(context.Background(), images, 9)
	require.NoError(t, err)
	require.Len(t, got, 54)
	for face, c := range palette {
		for i := 0; i < 9; i++ {
			assert.Equalf(t, c, got[face*9+i], "face %d sticker %d", face, i)
		}
	}
}

func TestExtractAllFailsAtomically(t *testing.T) {
	images := [][]byte{solidPNG(t, domain.Red), []byte("not an image"), solidPNG(t, domain.Blue)}
	got, err := NewEngine(0, nil).ExtractAll(context.Background(), images, 9)
	assert.Nil(t, got)
	assert.True(t, errors.Is(err, domain.ErrImageDecode))

	var ie *ImageError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 1, ie.Index)
	assert.Contains(t, err.Error(), "image 2:")
}

func TestDecodeDataURL(t *testing.T) {
	raw := solidPNG(t, domain.Orange)
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	img, err := Decode([]byte(url))
	require.NoError(t, err)
	cs, err := Extract(img, 4)
	require.NoError(t, err)
	for _, c := range cs {
		assert.Equal(t, "#FFA500", c.String())
	}

	_, err = Decode([]byte("data:image/png,plain"))
	assert.True(t, errors.Is(err, domain.ErrImageDecode))
	_, err = Decode(nil)
	assert.True(t, errors.Is(err, domain.ErrImageDecode))
}
