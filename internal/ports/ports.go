package ports

import (
	"context"
	"image"
	"time"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

// Stats captures performance characteristics of an operation.
type Stats struct {
	Moves    int
	Duration time.Duration
}

// Solver turns a confirmed colour array into an ordered list of steps.
// It may fail with domain.ErrUnsolvable or domain.ErrInvalidState.
type Solver interface {
	Solve(ctx context.Context, puzzleID string, colors []domain.Color) ([]domain.SolveStep, Stats, error)
}

// Extractor samples one colour per sticker from face images.
type Extractor interface {
	Extract(img image.Image, stickersPerFace int) ([]domain.Color, error)
	ExtractAll(ctx context.Context, images [][]byte, stickersPerFace int) ([]domain.Color, error)
}

// Camera is an acquired video stream. Close releases it.
type Camera interface {
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// CameraProvider acquires a camera stream for a capture session.
type CameraProvider interface {
	Open(ctx context.Context) (Camera, error)
}

// HandoffStore passes solutions from the capture flow to the viewer.
// Entries are write-once and may be read many times.
type HandoffStore interface {
	Put(ctx context.Context, steps []domain.SolveStep) (string, error)
	Get(ctx context.Context, key string) ([]domain.SolveStep, error)
}

// Validator reports advisory colour-balance problems for a capture.
type Validator interface {
	Validate(ctx context.Context, g domain.PuzzleGeometry, colors []domain.Color) (ok bool, counts []domain.ColorCount, suspect []int, err error)
}
