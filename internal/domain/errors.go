package domain

import "errors"

// Capture-time errors. They block the offending transition and leave the
// session untouched.
var (
	ErrUnknownPuzzle     = errors.New("unknown puzzle")
	ErrTooManyImages     = errors.New("too many images")
	ErrNoImages          = errors.New("no images supplied")
	ErrImageDecode       = errors.New("image decode failed")
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrIncompleteCapture = errors.New("incomplete capture")
	ErrNotScannable      = errors.New("puzzle does not support optical capture")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidColor      = errors.New("invalid color")
	ErrStickerIndex      = errors.New("sticker index out of range")
	ErrBusy              = errors.New("session busy")
	ErrSessionNotFound   = errors.New("capture session not found")
)

// Solution errors.
var (
	ErrEmptySolution = errors.New("empty solution")
	ErrInvalidSteps  = errors.New("malformed solution steps")
	ErrSolverTimeout = errors.New("solver timed out")
	ErrUnsolvable    = errors.New("unsolvable")
	ErrInvalidState  = errors.New("invalid puzzle state")
)

// Hand-off store errors.
var (
	ErrHandoffNotFound = errors.New("solution not found")
	ErrHandoffExists   = errors.New("solution key already written")
	ErrHandoffTooLarge = errors.New("solution payload too large")
)
