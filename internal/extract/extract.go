// Package extract samples sticker colours from face photographs.
//
// Every image is stretched onto a fixed 100x100 canvas and the sticker grid
// is laid over it. One pixel at the centre of each cell is read, cells are
// visited row-major. The flat index therefore maps to the physical sticker
// position the solver expects, so the order must not change.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/metrics"
)

// CanvasSize is the side of the canonical sampling canvas.
const CanvasSize = 100

// ErrGridGeometry is returned for sticker counts that do not form a square grid.
var ErrGridGeometry = errors.New("stickers per face must be a perfect square")

// ImageError reports which image of a batch failed. Index is zero-based.
type ImageError struct {
	Index int
	Err   error
}

func (e *ImageError) Error() string { return fmt.Sprintf("image %d: %v", e.Index+1, e.Err) }

func (e *ImageError) Unwrap() error { return e.Err }

// Engine runs extraction over batches of encoded images.
type Engine struct {
	// Workers bounds concurrent decodes in ExtractAll. Zero means one per image.
	Workers int
	Logger  *slog.Logger
}

func NewEngine(workers int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{Workers: workers, Logger: logger}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Extract returns exactly stickersPerFace colours sampled from img.
func (e *Engine) Extract(img image.Image, stickersPerFace int) ([]domain.Color, error) {
	return Extract(img, stickersPerFace)
}

// ExtractAll decodes and samples every image and concatenates the results in
// input order. Any failure fails the whole batch.
func (e *Engine) ExtractAll(ctx context.Context, images [][]byte, stickersPerFace int) ([]domain.Color, error) {
	start := time.Now()
	if _, ok := domain.IntSqrt(stickersPerFace); !ok {
		return nil, fmt.Errorf("%w: %d", ErrGridGeometry, stickersPerFace)
	}
	perImage := make([][]domain.Color, len(images))
	g, gctx := errgroup.WithContext(ctx)
	if e.Workers > 0 {
		g.SetLimit(e.Workers)
	}
	for i, data := range images {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := Decode(data)
			if err != nil {
				return &ImageError{Index: i, Err: err}
			}
			cs, err := Extract(img, stickersPerFace)
			if err != nil {
				return &ImageError{Index: i, Err: err}
			}
			perImage[i] = cs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.ExtractionsTotal.WithLabelValues("error").Inc()
		e.logger().Warn("extraction failed", "images", len(images), "err", err)
		return nil, err
	}
	out := make([]domain.Color, 0, len(images)*stickersPerFace)
	for _, cs := range perImage {
		out = append(out, cs...)
	}
	metrics.ExtractionsTotal.WithLabelValues("ok").Inc()
	metrics.ExtractionDuration.Observe(time.Since(start).Seconds())
	e.logger().Debug("extracted", "images", len(images), "colors", len(out), "dur", time.Since(start).Round(time.Millisecond))
	return out, nil
}

// Extract is the stateless sampling routine behind Engine.Extract.
func Extract(img image.Image, stickersPerFace int) ([]domain.Color, error) {
	side, ok := domain.IntSqrt(stickersPerFace)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrGridGeometry, stickersPerFace)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", domain.ErrImageDecode)
	}
	canvas := Canvas(img)
	cell := float64(CanvasSize) / float64(side)
	out := make([]domain.Color, 0, stickersPerFace)
	for row := 0; row < side; row++ {
		for col := 0; col < side; col++ {
			x := int(math.Floor(float64(col)*cell + cell/2))
			y := int(math.Floor(float64(row)*cell + cell/2))
			out = append(out, pixel(canvas, x, y))
		}
	}
	return out, nil
}

// Canvas stretches img onto the canonical canvas. Aspect ratio is not kept.
func Canvas(img image.Image) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, CanvasSize, CanvasSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

func pixel(m *image.NRGBA, x, y int) domain.Color {
	i := m.PixOffset(x, y)
	return domain.RGB(m.Pix[i], m.Pix[i+1], m.Pix[i+2])
}
