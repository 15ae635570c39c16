// Package solution pages through a solver's step list.
package solution

import (
	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/notation"
)

// Navigator is a cursor over an immutable step list. The cursor is always
// within [0, Len()-1] when the list is non-empty.
type Navigator struct {
	steps []domain.SolveStep
	index int
}

// New copies steps and places the cursor on the first one.
func New(steps []domain.SolveStep) *Navigator {
	return &Navigator{steps: append([]domain.SolveStep(nil), steps...)}
}

// NewStep builds a step whose MoveCount is the token count of n.
func NewStep(n, description string) domain.SolveStep {
	return domain.SolveStep{
		Notation:    n,
		Description: description,
		MoveCount:   len(notation.Tokenize(n)),
	}
}

func (n *Navigator) Len() int   { return len(n.steps) }
func (n *Navigator) Index() int { return n.index }

// Steps returns a copy of the full list.
func (n *Navigator) Steps() []domain.SolveStep {
	return append([]domain.SolveStep(nil), n.steps...)
}

// Current returns the step under the cursor.
func (n *Navigator) Current() (domain.SolveStep, error) {
	if len(n.steps) == 0 {
		return domain.SolveStep{}, domain.ErrEmptySolution
	}
	return n.steps[n.index], nil
}

// Next advances the cursor. It is a no-op on the last step.
func (n *Navigator) Next() {
	if n.index < len(n.steps)-1 {
		n.index++
	}
}

// Previous moves the cursor back. It is a no-op on the first step.
func (n *Navigator) Previous() {
	if n.index > 0 {
		n.index--
	}
}

// Seek moves the cursor to i, clamped to the valid range.
func (n *Navigator) Seek(i int) {
	switch {
	case len(n.steps) == 0 || i < 0:
		n.index = 0
	case i >= len(n.steps):
		n.index = len(n.steps) - 1
	default:
		n.index = i
	}
}

func (n *Navigator) HasNext() bool     { return n.index < len(n.steps)-1 }
func (n *Navigator) HasPrevious() bool { return n.index > 0 }

// Explain annotates the moves of the current step.
func (n *Navigator) Explain() ([]domain.MoveToken, error) {
	cur, err := n.Current()
	if err != nil {
		return nil, err
	}
	return notation.ExplainAlgorithm(cur.Notation), nil
}
