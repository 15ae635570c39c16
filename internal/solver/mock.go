// Package solver provides ports.Solver implementations.
package solver

import (
	"context"
	"strconv"
	"time"

	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/ports"
	"github.com/cubebuddy/cubebuddy/internal/solution"
)

// MockSolver answers every request with the same layer-by-layer sequence
// after a fixed delay. It ignores the colours and works for any puzzle.
type MockSolver struct {
	Delay time.Duration
}

func NewMockSolver(delay time.Duration) *MockSolver { return &MockSolver{Delay: delay} }

func beginnerSteps() []domain.SolveStep {
	steps := []domain.SolveStep{
		solution.NewStep("R U R' U'", "Sexy move to solve first layer corners"),
		solution.NewStep("F D F'", "Solve first layer edges"),
		solution.NewStep("U2 R U' R' U' R U' R'", "Position middle layer edges"),
		solution.NewStep("R U R' U R U2 R'", "Orient last layer"),
		solution.NewStep("R U R' U R U R'", "Permute last layer corners"),
	}
	for i := range steps {
		steps[i].Title = stepTitle(i)
	}
	return steps
}

func (s *MockSolver) Solve(ctx context.Context, puzzleID string, colors []domain.Color) ([]domain.SolveStep, ports.Stats, error) {
	start := time.Now()
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ports.Stats{Duration: time.Since(start)}, ctx.Err()
		case <-t.C:
		}
	}
	steps := beginnerSteps()
	return steps, ports.Stats{Moves: totalMoves(steps), Duration: time.Since(start)}, nil
}

func totalMoves(steps []domain.SolveStep) int {
	n := 0
	for _, s := range steps {
		n += s.MoveCount
	}
	return n
}

func stepTitle(i int) string { return "Step " + strconv.Itoa(i+1) }
