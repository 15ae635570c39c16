package domain

// Mode is the state of a capture session.
type Mode string

const (
	ModeSelect Mode = "mode-select" // initial state, re-entered after every reset
	ModeUpload Mode = "upload"
	ModeWebcam Mode = "webcam"
	ModeManual Mode = "manual"
	ModeReview Mode = "review"
)

// Category groups puzzles in the catalog.
type Category string

const (
	CategoryCubes     Category = "Cubes"
	CategoryPyramids  Category = "Pyramids"
	CategoryMinx      Category = "Dodecahedra"
	CategoryShapeMods Category = "Shape Mods"
	CategoryOther     Category = "Other"
)
