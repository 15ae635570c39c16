// Package capture implements the capture session state machine.
//
// Transition is a pure function from (State, Event) to a new State plus a
// list of effects (camera acquire/release, extraction, emitting the confirmed
// colours). Machine owns one session, executes the effects and commits the
// resulting state only when every effect succeeded.
package capture

import (
	"fmt"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

// State is the value object for one capture session.
type State struct {
	Geometry  domain.PuzzleGeometry
	Mode      domain.Mode
	RawInputs [][]byte
	Detected  []domain.Color
	Overrides map[int]domain.Color
	// Placeholders is the number of trailing Detected entries that were
	// filled from the random palette rather than read from an image.
	Placeholders int
	Webcam       Sequencer
	CameraHeld   bool
}

// NewState returns the initial ModeSelect state for g.
func NewState(g domain.PuzzleGeometry) State {
	return State{Geometry: g, Mode: domain.ModeSelect, Webcam: NewSequencer(g.Faces)}
}

func (s State) clone() State {
	out := s
	out.RawInputs = append([][]byte(nil), s.RawInputs...)
	out.Detected = append([]domain.Color(nil), s.Detected...)
	if s.Overrides != nil {
		out.Overrides = make(map[int]domain.Color, len(s.Overrides))
		for k, v := range s.Overrides {
			out.Overrides[k] = v
		}
	}
	out.Webcam = s.Webcam.clone()
	return out
}

// Effective overlays the overrides onto the detected colours.
func (s State) Effective() []domain.Color {
	if len(s.Detected) == 0 {
		return nil
	}
	out := append([]domain.Color(nil), s.Detected...)
	for i, c := range s.Overrides {
		if i >= 0 && i < len(out) {
			out[i] = c
		}
	}
	return out
}

// Unverified lists placeholder-filled indices the user has not overridden.
func (s State) Unverified() []int {
	var out []int
	for i := len(s.Detected) - s.Placeholders; i < len(s.Detected); i++ {
		if _, ok := s.Overrides[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// Event is an input to Transition.
type Event interface{ eventName() string }

type (
	SelectUpload    struct{ Images [][]byte }
	UploadExtracted struct{ Colors, Fill []domain.Color }
	SelectWebcam    struct{}
	CameraAcquired  struct{}
	CameraFailed    struct{ Err error }
	CaptureFrame    struct{ Frame []byte }
	FramesExtracted struct{ Colors []domain.Color }
	CancelWebcam    struct{}
	SelectManual    struct{ Fill domain.Color }
	SubmitManual    struct{}
	Confirm         struct{}
	Reset           struct{}
)

// EditSticker overrides one sticker in Manual or Review mode.
type EditSticker struct {
	Index int
	Color domain.Color
}

func (SelectUpload) eventName() string    { return "select_upload" }
func (UploadExtracted) eventName() string { return "upload_extracted" }
func (SelectWebcam) eventName() string    { return "select_webcam" }
func (CameraAcquired) eventName() string  { return "camera_acquired" }
func (CameraFailed) eventName() string    { return "camera_failed" }
func (CaptureFrame) eventName() string    { return "capture_frame" }
func (FramesExtracted) eventName() string { return "frames_extracted" }
func (CancelWebcam) eventName() string    { return "cancel_webcam" }
func (SelectManual) eventName() string    { return "select_manual" }
func (EditSticker) eventName() string     { return "edit_sticker" }
func (SubmitManual) eventName() string    { return "submit_manual" }
func (Confirm) eventName() string         { return "confirm" }
func (Reset) eventName() string           { return "reset" }

// Effect is a side effect requested by Transition.
type Effect interface{ effectName() string }

type (
	AcquireCamera struct{}
	ReleaseCamera struct{}
	ExtractImages struct{ Images [][]byte }
)

// EmitColors hands the confirmed effective array to the solver collaborator.
type EmitColors struct {
	PuzzleID string
	Colors   []domain.Color
}

func (AcquireCamera) effectName() string { return "acquire_camera" }
func (ReleaseCamera) effectName() string { return "release_camera" }
func (ExtractImages) effectName() string { return "extract_images" }
func (EmitColors) effectName() string    { return "emit_colors" }

// Transition applies ev to s. On error the returned state is s unchanged.
// s itself is never mutated.
func Transition(s State, ev Event) (State, []Effect, error) {
	g := s.Geometry
	total := g.TotalStickers()
	invalid := func() (State, []Effect, error) {
		return s, nil, fmt.Errorf("%w: %s in %s", domain.ErrInvalidTransition, ev.eventName(), s.Mode)
	}

	switch e := ev.(type) {
	case Reset:
		var effs []Effect
		if s.CameraHeld {
			effs = append(effs, ReleaseCamera{})
		}
		return NewState(g), effs, nil

	case SelectUpload:
		if s.Mode != domain.ModeSelect {
			return invalid()
		}
		if !g.Scannable {
			return s, nil, fmt.Errorf("%w: %s", domain.ErrNotScannable, g.ID)
		}
		if len(e.Images) == 0 {
			return s, nil, domain.ErrNoImages
		}
		if len(e.Images) > g.Faces {
			return s, nil, fmt.Errorf("%w: got %d, %s has %d faces", domain.ErrTooManyImages, len(e.Images), g.ID, g.Faces)
		}
		next := s.clone()
		next.Mode = domain.ModeUpload
		next.RawInputs = append([][]byte(nil), e.Images...)
		return next, []Effect{ExtractImages{Images: next.RawInputs}}, nil

	case UploadExtracted:
		if s.Mode != domain.ModeUpload {
			return invalid()
		}
		if len(e.Colors) != len(s.RawInputs)*g.StickersPerFace || len(e.Colors)+len(e.Fill) != total {
			return s, nil, fmt.Errorf("%w: %d detected + %d fill for %d stickers", domain.ErrIncompleteCapture, len(e.Colors), len(e.Fill), total)
		}
		next := s.clone()
		next.Mode = domain.ModeReview
		next.Detected = append(append(make([]domain.Color, 0, total), e.Colors...), e.Fill...)
		next.Placeholders = len(e.Fill)
		next.Overrides = map[int]domain.Color{}
		return next, nil, nil

	case SelectWebcam:
		if s.Mode != domain.ModeSelect {
			return invalid()
		}
		if !g.Scannable {
			return s, nil, fmt.Errorf("%w: %s", domain.ErrNotScannable, g.ID)
		}
		return s, []Effect{AcquireCamera{}}, nil

	case CameraAcquired:
		if s.Mode != domain.ModeSelect {
			return invalid()
		}
		next := s.clone()
		next.Mode = domain.ModeWebcam
		next.CameraHeld = true
		next.Webcam = NewSequencer(g.Faces)
		return next, nil, nil

	case CameraFailed:
		if s.Mode != domain.ModeSelect {
			return invalid()
		}
		return s, nil, fmt.Errorf("%w: %v", domain.ErrCameraUnavailable, e.Err)

	case CaptureFrame:
		if s.Mode != domain.ModeWebcam {
			return invalid()
		}
		next := s.clone()
		if !next.Webcam.Capture(e.Frame) {
			return next, nil, nil
		}
		next.RawInputs = append([][]byte(nil), next.Webcam.Frames...)
		return next, []Effect{ExtractImages{Images: next.RawInputs}}, nil

	case FramesExtracted:
		if s.Mode != domain.ModeWebcam || !s.Webcam.Complete() {
			return invalid()
		}
		if len(e.Colors) != total {
			return s, nil, fmt.Errorf("%w: %d of %d stickers", domain.ErrIncompleteCapture, len(e.Colors), total)
		}
		next := s.clone()
		next.Mode = domain.ModeReview
		next.Detected = append([]domain.Color(nil), e.Colors...)
		next.Placeholders = 0
		next.Overrides = map[int]domain.Color{}
		next.Webcam = NewSequencer(g.Faces)
		next.CameraHeld = false
		return next, []Effect{ReleaseCamera{}}, nil

	case CancelWebcam:
		if s.Mode != domain.ModeWebcam {
			return invalid()
		}
		next := s.clone()
		next.Mode = domain.ModeSelect
		next.RawInputs = nil
		next.Webcam = NewSequencer(g.Faces)
		next.CameraHeld = false
		return next, []Effect{ReleaseCamera{}}, nil

	case SelectManual:
		if s.Mode != domain.ModeSelect {
			return invalid()
		}
		next := NewState(g)
		next.Mode = domain.ModeManual
		next.Detected = make([]domain.Color, total)
		for i := range next.Detected {
			next.Detected[i] = e.Fill
		}
		next.Overrides = map[int]domain.Color{}
		return next, nil, nil

	case EditSticker:
		if s.Mode != domain.ModeManual && s.Mode != domain.ModeReview {
			return invalid()
		}
		if e.Index < 0 || e.Index >= total {
			return s, nil, fmt.Errorf("%w: %d not in [0,%d)", domain.ErrStickerIndex, e.Index, total)
		}
		next := s.clone()
		if next.Overrides == nil {
			next.Overrides = map[int]domain.Color{}
		}
		next.Overrides[e.Index] = e.Color
		return next, nil, nil

	case SubmitManual:
		if s.Mode != domain.ModeManual {
			return invalid()
		}
		next := s.clone()
		next.Mode = domain.ModeReview
		return next, nil, nil

	case Confirm:
		if s.Mode != domain.ModeReview && s.Mode != domain.ModeManual {
			return invalid()
		}
		eff := s.Effective()
		if len(eff) != total {
			return s, nil, fmt.Errorf("%w: %d of %d stickers", domain.ErrIncompleteCapture, len(eff), total)
		}
		return NewState(g), []Effect{EmitColors{PuzzleID: g.ID, Colors: eff}}, nil
	}
	return invalid()
}
