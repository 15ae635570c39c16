package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/ports"
	"github.com/cubebuddy/cubebuddy/internal/solution"
)

// RemoteSolver calls an HTTP solving service that accepts a 3x3 facelet
// string on POST /solve and answers {"steps": [...]}.
type RemoteSolver struct {
	URL     string
	Client  *http.Client
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// NewRemoteSolver limits outgoing requests to rps with the given burst.
// rps <= 0 disables limiting.
func NewRemoteSolver(url string, rps float64, burst int, logger *slog.Logger) *RemoteSolver {
	lim := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteSolver{
		URL:     strings.TrimRight(url, "/"),
		Client:  &http.Client{},
		Limiter: lim,
		Logger:  logger,
	}
}

type solveRequest struct {
	State string `json:"state"`
}

type solveError struct {
	Error string `json:"error"`
}

func (s *RemoteSolver) Solve(ctx context.Context, puzzleID string, colors []domain.Color) ([]domain.SolveStep, ports.Stats, error) {
	start := time.Now()
	stats := func() ports.Stats { return ports.Stats{Duration: time.Since(start)} }

	if puzzleID != "3x3" {
		return nil, stats(), fmt.Errorf("%w: remote solver only handles 3x3, got %s", domain.ErrInvalidState, puzzleID)
	}
	state, err := Facelets(colors)
	if err != nil {
		return nil, stats(), err
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return nil, stats(), err
	}

	body, err := json.Marshal(solveRequest{State: state})
	if err != nil {
		return nil, stats(), err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL+"/solve", bytes.NewReader(body))
	if err != nil {
		return nil, stats(), err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, stats(), ctx.Err()
		}
		return nil, stats(), fmt.Errorf("solve request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, stats(), fmt.Errorf("solve response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest:
		return nil, stats(), fmt.Errorf("%w: %s", domain.ErrInvalidState, remoteMessage(raw))
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, stats(), fmt.Errorf("%w: %s", domain.ErrUnsolvable, remoteMessage(raw))
	default:
		return nil, stats(), fmt.Errorf("solve: unexpected status %d: %s", resp.StatusCode, remoteMessage(raw))
	}

	steps, err := solution.DecodeSteps(raw)
	if err != nil {
		return nil, stats(), err
	}
	s.Logger.Debug("remote solve", "state", state, "steps", len(steps), "duration", time.Since(start))
	st := stats()
	st.Moves = totalMoves(steps)
	return steps, st, nil
}

func remoteMessage(raw []byte) string {
	var e solveError
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(raw))
}
