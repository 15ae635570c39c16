package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/usecase"
)

// DefaultMaxUploadBytes bounds a multipart upload when Handler.MaxUploadBytes is zero.
const DefaultMaxUploadBytes = 32 << 20

type Handler struct {
	UC             *usecase.Service
	Logger         *slog.Logger
	MaxUploadBytes int64
}

func New(uc *usecase.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{UC: uc, Logger: logger, MaxUploadBytes: DefaultMaxUploadBytes}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/puzzles", h.handlePuzzles)
	mux.HandleFunc("GET /api/puzzles/{id}", h.handlePuzzle)
	mux.HandleFunc("POST /api/sessions", h.handleNewSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.handleSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.handleCloseSession)
	mux.HandleFunc("POST /api/sessions/{id}/upload", h.handleUpload)
	mux.HandleFunc("GET /api/sessions/{id}/webcam", h.handleWebcam)
	mux.HandleFunc("POST /api/sessions/{id}/manual", h.handleManual)
	mux.HandleFunc("POST /api/sessions/{id}/stickers", h.handleSticker)
	mux.HandleFunc("POST /api/sessions/{id}/review", h.handleReview)
	mux.HandleFunc("POST /api/sessions/{id}/reset", h.handleReset)
	mux.HandleFunc("POST /api/sessions/{id}/confirm", h.handleConfirm)
	mux.HandleFunc("GET /api/solutions/{key}", h.handleSolution)
	mux.HandleFunc("GET /api/solutions", h.handleInlineSolution)
	mux.HandleFunc("GET /api/notation", h.handleNotation)
}

var validate = validator.New()

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownPuzzle),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrHandoffNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTooManyImages),
		errors.Is(err, domain.ErrNoImages),
		errors.Is(err, domain.ErrImageDecode),
		errors.Is(err, domain.ErrInvalidColor),
		errors.Is(err, domain.ErrStickerIndex),
		errors.Is(err, domain.ErrNotScannable),
		errors.Is(err, domain.ErrInvalidSteps):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrIncompleteCapture),
		errors.Is(err, domain.ErrBusy),
		errors.Is(err, domain.ErrHandoffExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrHandoffTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrCameraUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrSolverTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrUnsolvable), errors.Is(err, domain.ErrInvalidState):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

type errorResp struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Warn("encode response", "err", err)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", "err", err)
	}
	h.writeJSON(w, status, errorResp{Error: err.Error()})
}

// ---- Puzzles ----

type puzzlesResp struct {
	Puzzles    []domain.PuzzleGeometry `json:"puzzles"`
	Categories []domain.Category       `json:"categories"`
}

func (h *Handler) handlePuzzles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ps, err := h.UC.SearchPuzzles(q.Get("category"), q.Get("q"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, puzzlesResp{Puzzles: ps, Categories: h.UC.Categories()})
}

func (h *Handler) handlePuzzle(w http.ResponseWriter, r *http.Request) {
	g, err := h.UC.Puzzle(r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, g)
}

// ---- Sessions ----

type newSessionReq struct {
	Puzzle string `json:"puzzle" validate:"required"`
}

func (h *Handler) handleNewSession(w http.ResponseWriter, r *http.Request) {
	var req newSessionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	s, err := h.UC.NewSession(req.Puzzle)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, s)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.UC.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.UC.CloseSession(r.PathValue("id")); err != nil {
		h.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpload reads face images from the multipart field "images" in
// capture order.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid upload: " + err.Error()})
		return
	}
	var images [][]byte
	for _, fh := range r.MultipartForm.File["images"] {
		f, err := fh.Open()
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
			return
		}
		images = append(images, data)
	}
	s, err := h.UC.Upload(r.Context(), r.PathValue("id"), images)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleManual(w http.ResponseWriter, r *http.Request) {
	s, err := h.UC.StartManual(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

type stickerReq struct {
	Index *int          `json:"index" validate:"required"`
	Color *domain.Color `json:"color" validate:"required"`
}

func (h *Handler) handleSticker(w http.ResponseWriter, r *http.Request) {
	var req stickerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	s, err := h.UC.EditSticker(r.Context(), r.PathValue("id"), *req.Index, *req.Color)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	s, err := h.UC.SubmitManual(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	s, err := h.UC.Reset(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, s)
}

type confirmResp struct {
	Key        string             `json:"key"`
	Steps      []domain.SolveStep `json:"steps"`
	Moves      int                `json:"moves"`
	DurationMs int64              `json:"durationMs"`
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	res, err := h.UC.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, confirmResp{
		Key:        res.Key,
		Steps:      res.Steps,
		Moves:      res.Stats.Moves,
		DurationMs: res.Stats.Duration.Milliseconds(),
	})
}

// ---- Solutions ----

func stepParam(r *http.Request) int {
	n, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("step")))
	if err != nil {
		return 0
	}
	return n
}

func (h *Handler) handleSolution(w http.ResponseWriter, r *http.Request) {
	v, err := h.UC.Solution(r.Context(), r.PathValue("key"), stepParam(r))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// handleInlineSolution serves ?moves=<json> when the client has no stored key.
func (h *Handler) handleInlineSolution(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("moves")
	if raw == "" {
		h.writeJSON(w, http.StatusBadRequest, errorResp{Error: "missing moves parameter"})
		return
	}
	v, err := h.UC.InlineSolution([]byte(raw), stepParam(r))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// ---- Notation ----

type notationResp struct {
	usecase.Explanation
	Reference []domain.MoveToken `json:"reference,omitempty"`
}

func (h *Handler) handleNotation(w http.ResponseWriter, r *http.Request) {
	alg := r.URL.Query().Get("alg")
	resp := notationResp{Explanation: h.UC.Explain(alg)}
	if alg == "" {
		resp.Reference = h.UC.Reference()
	}
	h.writeJSON(w, http.StatusOK, resp)
}
