// Package storage holds the solution hand-off backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/metrics"
	"github.com/cubebuddy/cubebuddy/internal/solution"
)

// KeyPrefix starts every hand-off key.
const KeyPrefix = "solution-"

// DefaultMaxBytes bounds an encoded step list when Options.MaxBytes is zero.
const DefaultMaxBytes = 256 << 10

// Options apply to every backend.
type Options struct {
	// MaxBytes bounds the encoded payload. Zero means DefaultMaxBytes.
	MaxBytes int
	// TTL expires entries. Zero keeps them forever.
	TTL    time.Duration
	Logger *slog.Logger
}

// backend stores opaque payloads under write-once keys.
type backend interface {
	name() string
	// insert fails with domain.ErrHandoffExists if key is taken.
	insert(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// lookup fails with domain.ErrHandoffNotFound for unknown or expired keys.
	lookup(ctx context.Context, key string) ([]byte, error)
}

// Handoff passes solver output from the capture flow to the solution viewer.
// Entries are written once and read any number of times.
type Handoff struct {
	b      backend
	opts   Options
	closer io.Closer
}

func newHandoff(b backend, opts Options, closer io.Closer) *Handoff {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Handoff{b: b, opts: opts, closer: closer}
}

// NewKey returns a fresh hand-off key.
func NewKey() string { return KeyPrefix + uuid.New().String() }

// ValidKey reports whether key has the hand-off key shape.
func ValidKey(key string) bool {
	id, ok := strings.CutPrefix(key, KeyPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Backend names the storage implementation.
func (h *Handoff) Backend() string { return h.b.name() }

// Put stores steps under a new key and returns the key.
func (h *Handoff) Put(ctx context.Context, steps []domain.SolveStep) (string, error) {
	key := NewKey()
	if err := h.PutKey(ctx, key, steps); err != nil {
		return "", err
	}
	return key, nil
}

// PutKey stores steps under a caller-chosen key.
func (h *Handoff) PutKey(ctx context.Context, key string, steps []domain.SolveStep) error {
	err := h.put(ctx, key, steps)
	result := "ok"
	switch {
	case errors.Is(err, domain.ErrHandoffExists):
		result = "exists"
	case errors.Is(err, domain.ErrHandoffTooLarge):
		result = "too_large"
	case err != nil:
		result = "error"
	}
	metrics.HandoffWrites.WithLabelValues(h.b.name(), result).Inc()
	if err != nil {
		h.opts.Logger.Warn("handoff write failed", "backend", h.b.name(), "key", key, "err", err)
	}
	return err
}

func (h *Handoff) put(ctx context.Context, key string, steps []domain.SolveStep) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid handoff key %q", key)
	}
	if steps == nil {
		steps = []domain.SolveStep{}
	}
	payload, err := json.Marshal(steps)
	if err != nil {
		return err
	}
	if len(payload) > h.opts.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", domain.ErrHandoffTooLarge, len(payload), h.opts.MaxBytes)
	}
	return h.b.insert(ctx, key, payload, h.opts.TTL)
}

// Get returns the steps stored under key.
func (h *Handoff) Get(ctx context.Context, key string) ([]domain.SolveStep, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: %s", domain.ErrHandoffNotFound, key)
	}
	payload, err := h.b.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	return solution.DecodeSteps(payload)
}

// Close releases the backend connection, if any.
func (h *Handoff) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}

func notFound(key string) error { return fmt.Errorf("%w: %s", domain.ErrHandoffNotFound, key) }
func exists(key string) error   { return fmt.Errorf("%w: %s", domain.ErrHandoffExists, key) }
