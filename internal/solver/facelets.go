package solver

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

// Capture order of faces in a 3x3 colour array.
const (
	faceFront = iota
	faceBack
	faceLeft
	faceRight
	faceTop
	faceBottom
)

// faceletOrder maps the URFDLB letters to capture faces.
var faceletOrder = []struct {
	letter byte
	face   int
}{
	{'U', faceTop},
	{'R', faceRight},
	{'F', faceFront},
	{'D', faceBottom},
	{'L', faceLeft},
	{'B', faceBack},
}

// Facelets encodes a 54-sticker capture as a URFDLB facelet string. Each
// sticker is labelled with the face whose centre colour is nearest in RGB.
func Facelets(colors []domain.Color) (string, error) {
	if len(colors) != 54 {
		return "", fmt.Errorf("%w: facelets need 54 stickers, got %d", domain.ErrInvalidState, len(colors))
	}

	centres := make([][]float64, 6)
	letters := make([]byte, 6)
	for _, fo := range faceletOrder {
		c := colors[fo.face*9+4]
		centres[fo.face] = vec(c)
		letters[fo.face] = fo.letter
	}
	for i := 0; i < 6; i++ {
		for j := i + 1; j < 6; j++ {
			if floats.Equal(centres[i], centres[j]) {
				return "", fmt.Errorf("%w: faces %d and %d share centre colour %s", domain.ErrInvalidState, i, j, colors[i*9+4])
			}
		}
	}

	label := make([]byte, 54)
	counts := map[byte]int{}
	for i, c := range colors {
		v := vec(c)
		best, bestDist := 0, floats.Distance(v, centres[0], 2)
		for f := 1; f < 6; f++ {
			if d := floats.Distance(v, centres[f], 2); d < bestDist {
				best, bestDist = f, d
			}
		}
		label[i] = letters[best]
		counts[letters[best]]++
	}
	for _, fo := range faceletOrder {
		if counts[fo.letter] != 9 {
			return "", fmt.Errorf("%w: %d stickers classified as %c", domain.ErrInvalidState, counts[fo.letter], fo.letter)
		}
	}

	var sb strings.Builder
	sb.Grow(54)
	for _, fo := range faceletOrder {
		sb.Write(label[fo.face*9 : fo.face*9+9])
	}
	return sb.String(), nil
}

func vec(c domain.Color) []float64 {
	return []float64{float64(c.R), float64(c.G), float64(c.B)}
}
