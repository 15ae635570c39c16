package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cubebuddy/cubebuddy/internal/capture"
	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/metrics"
	"github.com/cubebuddy/cubebuddy/internal/notation"
	"github.com/cubebuddy/cubebuddy/internal/ports"
	"github.com/cubebuddy/cubebuddy/internal/puzzle"
	"github.com/cubebuddy/cubebuddy/internal/solution"
)

// Service is the application facade used by the HTTP adapter and the CLI.
type Service struct {
	Puzzles   *puzzle.Registry
	Extractor ports.Extractor
	Cameras   ports.CameraProvider
	Solver    ports.Solver
	Handoff   ports.HandoffStore
	Validator ports.Validator
	Logger    *slog.Logger

	SolverName    string
	SolverTimeout time.Duration
	ManualColor   domain.Color
	// Seed fixes placeholder fill for reproducible sessions. Zero seeds
	// from the clock.
	Seed int64

	mu       sync.Mutex
	sessions map[string]*capture.Machine
}

func NewService(reg *puzzle.Registry, ex ports.Extractor, s ports.Solver, h ports.HandoffStore, v ports.Validator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Puzzles:       reg,
		Extractor:     ex,
		Solver:        s,
		Handoff:       h,
		Validator:     v,
		Logger:        logger,
		SolverName:    "solver",
		SolverTimeout: 30 * time.Second,
		ManualColor:   domain.Red,
		sessions:      map[string]*capture.Machine{},
	}
}

var errNotConfigured = errors.New("usecase dependency not configured")

// Catalog

func (u *Service) Puzzle(id string) (domain.PuzzleGeometry, error) {
	if u.Puzzles == nil {
		return domain.PuzzleGeometry{}, errNotConfigured
	}
	return u.Puzzles.Lookup(id)
}

func (u *Service) SearchPuzzles(category, query string) ([]domain.PuzzleGeometry, error) {
	if u.Puzzles == nil {
		return nil, errNotConfigured
	}
	out := u.Puzzles.Search(domain.Category(category), query)
	if out == nil {
		out = []domain.PuzzleGeometry{}
	}
	return out, nil
}

func (u *Service) Categories() []domain.Category {
	if u.Puzzles == nil {
		return nil
	}
	return u.Puzzles.Categories()
}

// Sessions

// SessionView is a capture session plus its advisory colour balance.
type SessionView struct {
	capture.View
	Balanced *bool               `json:"balanced,omitempty"`
	Counts   []domain.ColorCount `json:"counts,omitempty"`
	Suspect  []int               `json:"suspect,omitempty"`
}

// NewSession opens a capture session for puzzleID.
func (u *Service) NewSession(puzzleID string) (SessionView, error) {
	if u.Extractor == nil {
		return SessionView{}, errNotConfigured
	}
	g, err := u.Puzzle(puzzleID)
	if err != nil {
		return SessionView{}, err
	}
	id := uuid.New().String()
	seed := u.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m := capture.NewMachine(id, g, capture.Deps{
		Extractor:   u.Extractor,
		Cameras:     u.Cameras,
		Rand:        rand.New(rand.NewSource(seed)),
		ManualColor: u.ManualColor,
		Logger:      u.Logger,
	})

	u.mu.Lock()
	u.sessions[id] = m
	u.mu.Unlock()
	u.Logger.Info("session opened", "session", id, "puzzle", g.ID)
	return u.view(context.Background(), m), nil
}

func (u *Service) session(id string) (*capture.Machine, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	m, ok := u.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return m, nil
}

// Session returns the current view of a session.
func (u *Service) Session(ctx context.Context, id string) (SessionView, error) {
	m, err := u.session(id)
	if err != nil {
		return SessionView{}, err
	}
	return u.view(ctx, m), nil
}

// CloseSession releases a session and any camera it holds.
func (u *Service) CloseSession(id string) error {
	u.mu.Lock()
	m, ok := u.sessions[id]
	delete(u.sessions, id)
	u.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	m.Close()
	return nil
}

// discard closes a session whose outcome no longer matters to the caller.
func (u *Service) discard(id string) {
	if err := u.CloseSession(id); err != nil {
		u.Logger.Debug("close session", "session", id, "err", err)
	}
}

func (u *Service) view(ctx context.Context, m *capture.Machine) SessionView {
	v := SessionView{View: m.View()}
	if u.Validator == nil || (v.Mode != domain.ModeReview && v.Mode != domain.ModeManual) {
		return v
	}
	ok, counts, suspect, err := u.Validator.Validate(ctx, m.Geometry(), v.Colors)
	if err != nil {
		u.Logger.Debug("balance check skipped", "session", v.ID, "err", err)
		return v
	}
	v.Balanced, v.Counts, v.Suspect = &ok, counts, suspect
	return v
}

// apply runs fn on the session and returns the resulting view.
func (u *Service) apply(ctx context.Context, id string, fn func(*capture.Machine) error) (SessionView, error) {
	m, err := u.session(id)
	if err != nil {
		return SessionView{}, err
	}
	if err := fn(m); err != nil {
		return SessionView{}, err
	}
	return u.view(ctx, m), nil
}

func (u *Service) Upload(ctx context.Context, id string, images [][]byte) (SessionView, error) {
	return u.apply(ctx, id, func(m *capture.Machine) error { return m.Upload(ctx, images) })
}

// StartWebcam acquires a camera for the session. A nil provider uses the
// service default.
func (u *Service) StartWebcam(ctx context.Context, id string, p ports.CameraProvider) (SessionView, error) {
	return u.apply(ctx, id, func(m *capture.Machine) error {
		if p == nil {
			return m.StartWebcam(ctx)
		}
		return m.StartWebcamFrom(ctx, p)
	})
}

func (u *Service) CaptureFrame(ctx context.Context, id string) (capture.Progress, error) {
	m, err := u.session(id)
	if err != nil {
		return capture.Progress{}, err
	}
	return m.CaptureFrame(ctx)
}

func (u *Service) CancelWebcam(ctx context.Context, id string) (SessionView, error) {
	return u.apply(ctx, id, func(m *capture.Machine) error { return m.CancelWebcam(ctx) })
}

func (u *Service) StartManual(ctx context.Context, id string) (SessionView, error) {
	return u.apply(ctx, id, func(m *capture.Machine) error { return m.StartManual(ctx) })
}

func (u *Service) EditSticker(ctx context.Context, id string, index int, c domain.Color) (SessionView, error) {
	return u.apply(ctx, id, func(m *capture.Machine) error { return m.Edit(ctx, index, c) })
}

func (u *Service) SubmitManual(ctx context.Context, id string) (SessionView, error) {
	return u.apply(ctx, id, func(m *capture.Machine) error { return m.SubmitManual(ctx) })
}

func (u *Service) Reset(ctx context.Context, id string) (SessionView, error) {
	return u.apply(ctx, id, func(m *capture.Machine) error { return m.Reset(ctx) })
}

// Solving

// Result is the outcome of confirming a capture.
type Result struct {
	Key   string             `json:"key"`
	Steps []domain.SolveStep `json:"steps"`
	Stats ports.Stats        `json:"-"`
}

// Confirm hands the session's colours to the solver and stores the steps
// for the viewer. The session is closed once the colours are emitted, so a
// solver failure requires a new capture.
func (u *Service) Confirm(ctx context.Context, id string) (Result, error) {
	if u.Solver == nil || u.Handoff == nil {
		return Result{}, errNotConfigured
	}
	m, err := u.session(id)
	if err != nil {
		return Result{}, err
	}
	colors, err := m.Confirm(ctx)
	if err != nil {
		return Result{}, err
	}
	g := m.Geometry()
	u.discard(id)

	steps, stats, err := u.Solve(ctx, g.ID, colors)
	if err != nil {
		return Result{}, err
	}
	key, err := u.Handoff.Put(ctx, steps)
	if err != nil {
		return Result{}, err
	}
	u.Logger.Info("solution stored", "session", id, "puzzle", g.ID, "key", key, "steps", len(steps), "moves", stats.Moves, "duration", stats.Duration)
	return Result{Key: key, Steps: steps, Stats: stats}, nil
}

// Solve calls the solver under the configured timeout.
func (u *Service) Solve(ctx context.Context, puzzleID string, colors []domain.Color) ([]domain.SolveStep, ports.Stats, error) {
	if u.Solver == nil {
		return nil, ports.Stats{}, errNotConfigured
	}
	g, err := u.Puzzle(puzzleID)
	if err != nil {
		return nil, ports.Stats{}, err
	}
	if len(colors) != g.TotalStickers() {
		return nil, ports.Stats{}, fmt.Errorf("%w: %d of %d stickers", domain.ErrIncompleteCapture, len(colors), g.TotalStickers())
	}
	if u.SolverTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.SolverTimeout)
		defer cancel()
	}
	steps, stats, err := u.Solver.Solve(ctx, g.ID, colors)
	result := "ok"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result = "timeout"
		err = fmt.Errorf("%w after %s", domain.ErrSolverTimeout, u.SolverTimeout)
	case errors.Is(err, domain.ErrUnsolvable), errors.Is(err, domain.ErrInvalidState):
		result = "rejected"
	case err != nil:
		result = "error"
	}
	metrics.SolverRequests.WithLabelValues(u.SolverName, result).Inc()
	if err != nil {
		u.Logger.Warn("solve failed", "puzzle", g.ID, "solver", u.SolverName, "err", err)
		return nil, stats, err
	}
	return steps, stats, nil
}

// Viewing

// SolutionView is one page of the solution viewer.
type SolutionView struct {
	Key         string             `json:"key,omitempty"`
	Index       int                `json:"index"`
	Total       int                `json:"total"`
	Step        domain.SolveStep   `json:"step"`
	Moves       []domain.MoveToken `json:"moves"`
	HasPrevious bool               `json:"hasPrevious"`
	HasNext     bool               `json:"hasNext"`
	Steps       []domain.SolveStep `json:"steps"`
}

// Solution loads a stored solution and positions the viewer at step.
func (u *Service) Solution(ctx context.Context, key string, step int) (SolutionView, error) {
	if u.Handoff == nil {
		return SolutionView{}, errNotConfigured
	}
	steps, err := u.Handoff.Get(ctx, key)
	if err != nil {
		return SolutionView{}, err
	}
	v, err := page(steps, step)
	v.Key = key
	return v, err
}

// InlineSolution decodes a step list passed directly by the client.
func (u *Service) InlineSolution(raw []byte, step int) (SolutionView, error) {
	steps, err := solution.DecodeSteps(raw)
	if err != nil {
		return SolutionView{}, fmt.Errorf("%w: %v", domain.ErrInvalidSteps, err)
	}
	if len(steps) == 0 {
		return SolutionView{}, fmt.Errorf("%w: no steps", domain.ErrInvalidSteps)
	}
	return page(steps, step)
}

func page(steps []domain.SolveStep, step int) (SolutionView, error) {
	nav := solution.New(steps)
	nav.Seek(step)
	cur, err := nav.Current()
	if err != nil {
		return SolutionView{}, err
	}
	moves, err := nav.Explain()
	if err != nil {
		return SolutionView{}, err
	}
	return SolutionView{
		Index:       nav.Index(),
		Total:       nav.Len(),
		Step:        cur,
		Moves:       moves,
		HasPrevious: nav.HasPrevious(),
		HasNext:     nav.HasNext(),
		Steps:       nav.Steps(),
	}, nil
}

// Notation

// Explanation is an explained algorithm with its inverse.
type Explanation struct {
	Algorithm string             `json:"algorithm"`
	Moves     []domain.MoveToken `json:"moves"`
	Inverse   string             `json:"inverse"`
	Notes     []string           `json:"notes,omitempty"`
}

func (u *Service) Explain(alg string) Explanation {
	return Explanation{
		Algorithm: alg,
		Moves:     notation.ExplainAlgorithm(alg),
		Inverse:   notation.Inverse(alg),
		Notes:     notation.BeginnerNotes(),
	}
}

func (u *Service) Reference() []domain.MoveToken { return notation.Reference() }
