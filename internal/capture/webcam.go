package capture

// faceNames is cycled modulo its own length. Puzzles with more than six
// faces therefore see repeated names from the seventh capture on.
var faceNames = [...]string{"Front", "Back", "Left", "Right", "Top", "Bottom"}

// FaceName returns the prompt name for the i-th captured face.
func FaceName(i int) string {
	if i < 0 {
		i = 0
	}
	return faceNames[i%len(faceNames)]
}

// Sequencer tracks sequential per-face webcam shots.
type Sequencer struct {
	Faces     int
	Frames    [][]byte
	FaceIndex int
}

func NewSequencer(faces int) Sequencer { return Sequencer{Faces: faces} }

func (q Sequencer) clone() Sequencer {
	q.Frames = append([][]byte(nil), q.Frames...)
	return q
}

// Capture appends a frame and reports whether every face has been shot.
// While incomplete, FaceIndex advances to the next face.
func (q *Sequencer) Capture(frame []byte) bool {
	if q.Complete() {
		return true
	}
	q.Frames = append(q.Frames, frame)
	if q.Complete() {
		return true
	}
	q.FaceIndex++
	return false
}

// Complete reports whether Faces frames were captured.
func (q Sequencer) Complete() bool { return q.Faces > 0 && len(q.Frames) >= q.Faces }

// NextFace names the face the user should show next.
func (q Sequencer) NextFace() string { return FaceName(q.FaceIndex) }
