// Package puzzle holds the static catalog of supported puzzle geometries.
package puzzle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

// Registry is an immutable lookup from puzzle ID to geometry.
type Registry struct {
	byID  map[string]domain.PuzzleGeometry
	order []string
}

var catalog = []domain.PuzzleGeometry{
	cube(2, "Pocket cube, corners only"),
	cube(3, "The classic Rubik's cube"),
	cube(4, "Rubik's Revenge, no fixed centres"),
	cube(5, "Professor's cube"),
	cube(6, "V-Cube 6"),
	cube(7, "V-Cube 7"),
	{ID: "mirror-3x3", Name: "Mirror Blocks", Category: domain.CategoryShapeMods, Description: "3x3 shape mod, single colour", Faces: 6, StickersPerFace: 9, Scannable: true},
	{ID: "pyraminx", Name: "Pyraminx", Category: domain.CategoryPyramids, Description: "Tetrahedral puzzle with tips", Faces: 4, StickersPerFace: 9},
	{ID: "megaminx", Name: "Megaminx", Category: domain.CategoryMinx, Description: "Twelve-faced dodecahedron", Faces: 12, StickersPerFace: 11},
	{ID: "skewb", Name: "Skewb", Category: domain.CategoryOther, Description: "Corner-turning cube", Faces: 6, StickersPerFace: 5},
	{ID: "ivy", Name: "Ivy Cube", Category: domain.CategoryOther, Description: "Two-corner skewb variant", Faces: 6, StickersPerFace: 3},
	{ID: "square-1", Name: "Square-1", Category: domain.CategoryShapeMods, Description: "Shape-shifting cube", Faces: 6, StickersPerFace: 8},
	{ID: "fto", Name: "Face-Turning Octahedron", Category: domain.CategoryPyramids, Description: "Eight triangular faces", Faces: 8, StickersPerFace: 9},
}

func cube(n int, desc string) domain.PuzzleGeometry {
	return domain.PuzzleGeometry{
		ID:              fmt.Sprintf("%dx%d", n, n),
		Name:            fmt.Sprintf("%dx%d Cube", n, n),
		Category:        domain.CategoryCubes,
		Description:     desc,
		Faces:           6,
		StickersPerFace: n * n,
		Scannable:       true,
	}
}

var defaultRegistry = mustNew(catalog)

// Default returns the process-wide registry.
func Default() *Registry { return defaultRegistry }

// New builds a registry. Scannable geometries must have a perfect-square
// sticker count so that grid sampling applies.
func New(gs []domain.PuzzleGeometry) (*Registry, error) {
	r := &Registry{byID: make(map[string]domain.PuzzleGeometry, len(gs))}
	for _, g := range gs {
		if g.ID == "" || g.Faces <= 0 || g.StickersPerFace <= 0 {
			return nil, fmt.Errorf("invalid geometry %+v", g)
		}
		if _, dup := r.byID[g.ID]; dup {
			return nil, fmt.Errorf("duplicate puzzle id %q", g.ID)
		}
		if _, square := g.GridSide(); g.Scannable && !square {
			return nil, fmt.Errorf("scannable puzzle %q has non-square face of %d stickers", g.ID, g.StickersPerFace)
		}
		r.byID[g.ID] = g
		r.order = append(r.order, g.ID)
	}
	return r, nil
}

func mustNew(gs []domain.PuzzleGeometry) *Registry {
	r, err := New(gs)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the geometry registered under id.
func (r *Registry) Lookup(id string) (domain.PuzzleGeometry, error) {
	g, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.PuzzleGeometry{}, fmt.Errorf("%w: %q", domain.ErrUnknownPuzzle, id)
	}
	return g, nil
}

// All returns every geometry in catalog order.
func (r *Registry) All() []domain.PuzzleGeometry {
	out := make([]domain.PuzzleGeometry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Categories returns the distinct categories, sorted.
func (r *Registry) Categories() []domain.Category {
	seen := map[domain.Category]bool{}
	var out []domain.Category
	for _, g := range r.byID {
		if !seen[g.Category] {
			seen[g.Category] = true
			out = append(out, g.Category)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Search filters by category (empty matches all) and a case-insensitive
// query over name and description.
func (r *Registry) Search(category domain.Category, query string) []domain.PuzzleGeometry {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []domain.PuzzleGeometry
	for _, g := range r.All() {
		if category != "" && g.Category != category {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(g.Name), q) && !strings.Contains(strings.ToLower(g.Description), q) {
			continue
		}
		out = append(out, g)
	}
	return out
}
