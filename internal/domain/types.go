package domain

// PuzzleGeometry describes the sticker layout of one puzzle shape.
type PuzzleGeometry struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Category        Category `json:"category"`
	Description     string   `json:"description,omitempty"`
	Faces           int      `json:"faces"`
	StickersPerFace int      `json:"stickersPerFace"`
	Scannable       bool     `json:"scannable"`
}

// TotalStickers is the length of any valid colour array for the puzzle.
func (g PuzzleGeometry) TotalStickers() int { return g.Faces * g.StickersPerFace }

// GridSide returns the side of the sticker grid and whether StickersPerFace
// is a perfect square.
func (g PuzzleGeometry) GridSide() (int, bool) {
	return IntSqrt(g.StickersPerFace)
}

// IntSqrt returns floor(sqrt(n)) and whether n is a perfect square.
func IntSqrt(n int) (int, bool) {
	if n <= 0 {
		return 0, false
	}
	s := 0
	for (s+1)*(s+1) <= n {
		s++
	}
	return s, s*s == n
}

// SolveStep is one stage of a solution as returned by a solver.
type SolveStep struct {
	Title       string `json:"title,omitempty"`
	Notation    string `json:"notation"`
	Description string `json:"description,omitempty"`
	MoveCount   int    `json:"moves"`
}

// MoveToken is a single move with its explanation and a practice tip.
type MoveToken struct {
	Symbol      string `json:"token"`
	Explanation string `json:"explanation"`
	Tip         string `json:"tip"`
}

// ColorCount is one entry of a colour balance report.
type ColorCount struct {
	Color Color `json:"color"`
	Count int   `json:"count"`
}
