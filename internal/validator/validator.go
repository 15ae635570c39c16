// Package validator reports colour-balance problems in a capture.
package validator

import (
	"context"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

// BalanceValidator checks that every colour occurs exactly StickersPerFace
// times. The result is advisory and never blocks confirmation.
type BalanceValidator struct{}

func New() *BalanceValidator { return &BalanceValidator{} }

func (v *BalanceValidator) Validate(ctx context.Context, g domain.PuzzleGeometry, colors []domain.Color) (bool, []domain.ColorCount, []int, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, nil, err
	}
	counts := make([]domain.ColorCount, 0, g.Faces)
	pos := make(map[domain.Color]int, g.Faces)
	for _, c := range colors {
		i, ok := pos[c]
		if !ok {
			i = len(counts)
			pos[c] = i
			counts = append(counts, domain.ColorCount{Color: c})
		}
		counts[i].Count++
	}

	suspect := make([]int, 0, 8)
	for i, c := range colors {
		if counts[pos[c]].Count != g.StickersPerFace {
			suspect = append(suspect, i)
		}
	}
	ok := len(colors) == g.TotalStickers() && len(counts) == g.Faces && len(suspect) == 0
	return ok, counts, suspect, nil
}
