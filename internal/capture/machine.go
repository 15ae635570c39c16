package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/metrics"
	"github.com/cubebuddy/cubebuddy/internal/ports"
)

// Deps wires a Machine to its collaborators.
type Deps struct {
	Extractor ports.Extractor
	Cameras   ports.CameraProvider
	// Rand drives placeholder fill. Defaults to a time-seeded source.
	Rand        *rand.Rand
	ManualColor domain.Color
	Palette     []domain.Color
	Logger      *slog.Logger
}

// Machine owns one capture session. Events are serialised; while one event
// is being processed (including a pending extraction) any other event fails
// with domain.ErrBusy.
type Machine struct {
	id       string
	geometry domain.PuzzleGeometry
	deps     Deps

	mu       sync.Mutex
	state    State
	inflight bool
	closed   bool
	camera   ports.Camera
	provider ports.CameraProvider
}

// NewMachine starts a session for g in ModeSelect.
func NewMachine(id string, g domain.PuzzleGeometry, deps Deps) *Machine {
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if len(deps.Palette) == 0 {
		deps.Palette = domain.CubePalette()
	}
	if deps.ManualColor == (domain.Color{}) {
		deps.ManualColor = domain.Red
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Machine{
		id:       id,
		geometry: g,
		deps:     deps,
		state:    NewState(g),
	}
}

func (m *Machine) ID() string { return m.id }

func (m *Machine) Geometry() domain.PuzzleGeometry { return m.geometry }

// State returns a deep copy of the current session state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Busy reports whether an event is being processed.
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inflight
}

// Upload extracts colours from 1..faces face images and moves to Review.
// Missing faces are filled from the palette and reported as unverified.
func (m *Machine) Upload(ctx context.Context, images [][]byte) error {
	_, err := m.Dispatch(ctx, SelectUpload{Images: images})
	return err
}

// StartWebcam acquires the camera and enters Webcam mode.
func (m *Machine) StartWebcam(ctx context.Context) error {
	_, err := m.Dispatch(ctx, SelectWebcam{})
	return err
}

// StartWebcamFrom is StartWebcam with the camera taken from p.
func (m *Machine) StartWebcamFrom(ctx context.Context, p ports.CameraProvider) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	m.mu.Lock()
	m.provider = p
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.provider = nil
		m.mu.Unlock()
	}()
	_, err := m.step(ctx, SelectWebcam{})
	return err
}

// Progress describes the webcam sequence after a capture.
type Progress struct {
	Captured int    `json:"captured"`
	Faces    int    `json:"faces"`
	NextFace string `json:"nextFace,omitempty"`
	Complete bool   `json:"complete"`
}

// CaptureFrame reads the current frame from the camera and records it.
// The last face triggers extraction and the move to Review.
func (m *Machine) CaptureFrame(ctx context.Context) (Progress, error) {
	if err := m.begin(); err != nil {
		return Progress{}, err
	}
	defer m.end()

	m.mu.Lock()
	cam, mode := m.camera, m.state.Mode
	m.mu.Unlock()
	if mode != domain.ModeWebcam || cam == nil {
		return Progress{}, fmt.Errorf("%w: capture_frame in %s", domain.ErrInvalidTransition, mode)
	}
	frame, err := cam.Frame(ctx)
	if err != nil {
		return Progress{}, fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, err)
	}
	if _, err := m.step(ctx, CaptureFrame{Frame: frame}); err != nil {
		return Progress{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Mode == domain.ModeReview {
		return Progress{Captured: m.state.Geometry.Faces, Faces: m.state.Geometry.Faces, Complete: true}, nil
	}
	q := m.state.Webcam
	return Progress{Captured: len(q.Frames), Faces: q.Faces, NextFace: q.NextFace()}, nil
}

// CancelWebcam releases the camera and discards captured frames.
func (m *Machine) CancelWebcam(ctx context.Context) error {
	_, err := m.Dispatch(ctx, CancelWebcam{})
	return err
}

// StartManual fills every sticker with the default colour and enters Manual.
func (m *Machine) StartManual(ctx context.Context) error {
	_, err := m.Dispatch(ctx, SelectManual{Fill: m.deps.ManualColor})
	return err
}

// Edit overrides one sticker colour.
func (m *Machine) Edit(ctx context.Context, index int, c domain.Color) error {
	_, err := m.Dispatch(ctx, EditSticker{Index: index, Color: c})
	return err
}

// SubmitManual moves a manual capture to Review.
func (m *Machine) SubmitManual(ctx context.Context) error {
	_, err := m.Dispatch(ctx, SubmitManual{})
	return err
}

// Confirm returns the effective colour array and tears the session down.
func (m *Machine) Confirm(ctx context.Context) ([]domain.Color, error) {
	return m.Dispatch(ctx, Confirm{})
}

// Reset discards all session data and returns to ModeSelect.
func (m *Machine) Reset(ctx context.Context) error {
	_, err := m.Dispatch(ctx, Reset{})
	return err
}

// Close resets the session and releases any held camera. An event still in
// flight releases whatever camera it acquired instead of committing, and
// later events fail with domain.ErrSessionNotFound.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.releaseLocked()
	if !m.inflight {
		m.state = NewState(m.geometry)
	}
}

// Dispatch applies one event and returns the colours emitted by a
// confirmation, if any.
func (m *Machine) Dispatch(ctx context.Context, ev Event) ([]domain.Color, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()
	return m.step(ctx, ev)
}

func (m *Machine) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: %s is closed", domain.ErrSessionNotFound, m.id)
	}
	if m.inflight {
		return domain.ErrBusy
	}
	m.inflight = true
	return nil
}

func (m *Machine) end() {
	m.mu.Lock()
	m.inflight = false
	m.mu.Unlock()
}

// step runs ev and its effects. The caller holds the in-flight guard, so
// the state cannot change underneath. Cameras are released only after the
// new state is committed.
func (m *Machine) step(ctx context.Context, ev Event) ([]domain.Color, error) {
	m.mu.Lock()
	s0 := m.state
	m.mu.Unlock()

	next, effs, err := Transition(s0, ev)
	if err == nil {
		var out outcome
		next, out, err = m.run(ctx, next, effs)
		m.mu.Lock()
		switch {
		case m.closed:
			m.releaseLocked()
			m.state = NewState(m.geometry)
			err = fmt.Errorf("%w: %s closed during %s", domain.ErrSessionNotFound, m.id, ev.eventName())
		case err == nil:
			m.state = next
			if out.release {
				m.releaseLocked()
			}
		}
		m.mu.Unlock()
		if err == nil {
			metrics.CaptureEvents.WithLabelValues(ev.eventName(), "ok").Inc()
			m.deps.Logger.Debug("capture event", "session", m.id, "event", ev.eventName(), "from", s0.Mode, "to", next.Mode)
			return out.emitted, nil
		}
	}
	metrics.CaptureEvents.WithLabelValues(ev.eventName(), "rejected").Inc()
	m.deps.Logger.Info("capture event rejected", "session", m.id, "event", ev.eventName(), "mode", s0.Mode, "err", err)
	return nil, err
}

type outcome struct {
	emitted []domain.Color
	release bool
}

func (m *Machine) run(ctx context.Context, s State, effs []Effect) (State, outcome, error) {
	var out outcome
	for len(effs) > 0 {
		eff := effs[0]
		effs = effs[1:]

		var follow Event
		switch e := eff.(type) {
		case ExtractImages:
			colors, err := m.deps.Extractor.ExtractAll(ctx, e.Images, s.Geometry.StickersPerFace)
			if err != nil {
				return s, out, err
			}
			if s.Mode == domain.ModeUpload {
				follow = UploadExtracted{Colors: colors, Fill: m.fill(s.Geometry.TotalStickers() - len(colors))}
			} else {
				follow = FramesExtracted{Colors: colors}
			}
		case AcquireCamera:
			follow = m.acquire(ctx)
		case ReleaseCamera:
			out.release = true
		case EmitColors:
			out.emitted = e.Colors
		}

		if follow != nil {
			next, more, err := Transition(s, follow)
			if err != nil {
				return s, out, err
			}
			s = next
			effs = append(effs, more...)
		}
	}
	return s, out, nil
}

func (m *Machine) acquire(ctx context.Context) Event {
	m.mu.Lock()
	p := m.provider
	m.mu.Unlock()
	if p == nil {
		p = m.deps.Cameras
	}
	if p == nil {
		return CameraFailed{Err: errors.New("no camera provider")}
	}
	cam, err := p.Open(ctx)
	if err != nil {
		return CameraFailed{Err: err}
	}
	m.mu.Lock()
	m.releaseLocked()
	m.camera = cam
	m.mu.Unlock()
	metrics.CamerasActive.Inc()
	return CameraAcquired{}
}

func (m *Machine) releaseLocked() {
	if m.camera == nil {
		return
	}
	if err := m.camera.Close(); err != nil {
		m.deps.Logger.Warn("camera release", "session", m.id, "err", err)
	}
	m.camera = nil
	metrics.CamerasActive.Dec()
}

// CameraHeld reports whether a stream is currently acquired.
func (m *Machine) CameraHeld() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.camera != nil
}

func (m *Machine) fill(n int) []domain.Color {
	if n <= 0 {
		return nil
	}
	out := make([]domain.Color, n)
	for i := range out {
		out[i] = m.deps.Palette[m.deps.Rand.Intn(len(m.deps.Palette))]
	}
	return out
}

// View is a read-only rendering of a session for clients.
type View struct {
	ID              string               `json:"id"`
	Puzzle          string               `json:"puzzle"`
	Mode            domain.Mode          `json:"mode"`
	Faces           int                  `json:"faces"`
	StickersPerFace int                  `json:"stickersPerFace"`
	Colors          []domain.Color       `json:"colors,omitempty"`
	Overrides       map[int]domain.Color `json:"overrides,omitempty"`
	Unverified      []int                `json:"unverified,omitempty"`
	FacesCaptured   int                  `json:"facesCaptured,omitempty"`
	NextFace        string               `json:"nextFace,omitempty"`
	Busy            bool                 `json:"busy"`
}

// View snapshots the session for display.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	v := View{
		ID:              m.id,
		Puzzle:          s.Geometry.ID,
		Mode:            s.Mode,
		Faces:           s.Geometry.Faces,
		StickersPerFace: s.Geometry.StickersPerFace,
		Colors:          s.Effective(),
		Unverified:      s.Unverified(),
		Busy:            m.inflight,
	}
	if len(s.Overrides) > 0 {
		v.Overrides = make(map[int]domain.Color, len(s.Overrides))
		for k, c := range s.Overrides {
			v.Overrides[k] = c
		}
	}
	if s.Mode == domain.ModeWebcam {
		v.FacesCaptured = len(s.Webcam.Frames)
		v.NextFace = s.Webcam.NextFace()
	}
	sort.Ints(v.Unverified)
	return v
}
