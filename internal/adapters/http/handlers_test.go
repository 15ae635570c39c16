package httpadapter

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/extract"
	"github.com/cubebuddy/cubebuddy/internal/infrastructure/storage"
	"github.com/cubebuddy/cubebuddy/internal/puzzle"
	"github.com/cubebuddy/cubebuddy/internal/solver"
	"github.com/cubebuddy/cubebuddy/internal/usecase"
	"github.com/cubebuddy/cubebuddy/internal/validator"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	uc := usecase.NewService(
		puzzle.Default(),
		extract.NewEngine(2, nil),
		solver.NewMockSolver(0),
		storage.NewMemory(storage.Options{}),
		validator.New(),
		nil,
	)
	mux := http.NewServeMux()
	New(uc, nil).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func solidPNG(t *testing.T, c domain.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 24, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 24; x++ {
			img.Set(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func doJSON(t *testing.T, method, u string, body any, out any) int {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, u, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		// omitted fields must not keep values from an earlier response
		reflect.ValueOf(out).Elem().SetZero()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type sessionResp struct {
	ID         string         `json:"id"`
	Mode       domain.Mode    `json:"mode"`
	Faces      int            `json:"faces"`
	Colors     []domain.Color `json:"colors"`
	Unverified []int          `json:"unverified"`
	NextFace   string         `json:"nextFace"`
	Error      string         `json:"error"`
}

func newSession(t *testing.T, srv *httptest.Server, id string) sessionResp {
	t.Helper()
	var s sessionResp
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{"puzzle": id}, &s))
	return s
}

func TestPuzzles(t *testing.T) {
	srv := newServer(t)

	var list puzzlesResp
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/puzzles?category=Cubes", nil, &list))
	assert.Len(t, list.Puzzles, 6)
	assert.NotEmpty(t, list.Categories)

	var g domain.PuzzleGeometry
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/puzzles/megaminx", nil, &g))
	assert.Equal(t, 12, g.Faces)

	var e errorResp
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/api/puzzles/nope", nil, &e))
	assert.Contains(t, e.Error, "unknown puzzle")
}

func TestUploadConfirmSolutionFlow(t *testing.T) {
	srv := newServer(t)
	s := newSession(t, srv, "2x2")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for i, c := range domain.CubePalette()[:2] {
		fw, err := mw.CreateFormFile("images", "face"+string(rune('0'+i))+".png")
		require.NoError(t, err)
		_, err = fw.Write(solidPNG(t, c))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/sessions/"+s.ID+"/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&s))
	assert.Equal(t, domain.ModeReview, s.Mode)
	assert.Len(t, s.Colors, 24)
	assert.Equal(t, domain.Red, s.Colors[0])
	assert.Len(t, s.Unverified, 16)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+s.ID+"/stickers",
		map[string]any{"index": 8, "color": "#0000ff"}, &s))
	assert.Len(t, s.Unverified, 15)

	var c confirmResp
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+s.ID+"/confirm", nil, &c))
	require.True(t, strings.HasPrefix(c.Key, "solution-"))
	assert.Len(t, c.Steps, 5)
	assert.Equal(t, 29, c.Moves)

	var v usecase.SolutionView
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/solutions/"+c.Key+"?step=99", nil, &v))
	assert.Equal(t, 4, v.Index)
	assert.False(t, v.HasNext)
	assert.Len(t, v.Moves, 7)

	var e errorResp
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+s.ID, nil, &e))
}

func TestSessionErrors(t *testing.T) {
	srv := newServer(t)
	s := newSession(t, srv, "3x3")
	var e errorResp

	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+s.ID+"/confirm", nil, &e))
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+s.ID+"/review", nil, &e))

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+s.ID+"/manual", nil, &s))
	assert.Equal(t, domain.ModeManual, s.Mode)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+s.ID+"/stickers",
		map[string]any{"index": 54, "color": "#00FF00"}, &e))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+s.ID+"/stickers",
		map[string]any{"index": 1, "color": "green"}, &e))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+s.ID+"/stickers",
		map[string]any{"color": "#00FF00"}, &e))

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+s.ID+"/reset", nil, &s))
	assert.Equal(t, domain.ModeSelect, s.Mode)
	assert.Empty(t, s.Colors)

	assert.Equal(t, http.StatusNoContent, doJSON(t, http.MethodDelete, srv.URL+"/api/sessions/"+s.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+s.ID, nil, &e))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodPost, srv.URL+"/api/sessions", map[string]string{}, &e))
}

func TestInlineSolutionAndNotation(t *testing.T) {
	srv := newServer(t)

	moves := url.QueryEscape(`[{"notation":"R U R' U'","description":"corners"},"F2"]`)
	var v usecase.SolutionView
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/solutions?moves="+moves, nil, &v))
	assert.Equal(t, 2, v.Total)
	assert.Equal(t, 4, v.Step.MoveCount)

	var e errorResp
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, srv.URL+"/api/solutions?moves=%5B", nil, &e))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, srv.URL+"/api/solutions?moves=%5B%5D", nil, &e))

	var n notationResp
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/notation?alg="+url.QueryEscape("R U'"), nil, &n))
	assert.Len(t, n.Moves, 2)
	assert.Equal(t, "U R'", n.Inverse)
	assert.Empty(t, n.Reference)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/notation", nil, &n))
	assert.Len(t, n.Reference, 18)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrUnknownPuzzle, http.StatusNotFound},
		{domain.ErrHandoffNotFound, http.StatusNotFound},
		{domain.ErrTooManyImages, http.StatusBadRequest},
		{domain.ErrImageDecode, http.StatusBadRequest},
		{domain.ErrBusy, http.StatusConflict},
		{domain.ErrIncompleteCapture, http.StatusConflict},
		{domain.ErrCameraUnavailable, http.StatusServiceUnavailable},
		{domain.ErrSolverTimeout, http.StatusGatewayTimeout},
		{domain.ErrUnsolvable, http.StatusUnprocessableEntity},
		{domain.ErrEmptySolution, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWebcamOverWebsocket(t *testing.T) {
	srv := newServer(t)
	s := newSession(t, srv, "2x2")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + s.ID + "/webcam"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg webcamMsg
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "prompt", msg.Type)
	assert.Equal(t, "Front", msg.NextFace)
	assert.Equal(t, 6, msg.Faces)

	for i, c := range domain.CubePalette() {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, solidPNG(t, c)))
		if i == 5 {
			break
		}
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "prompt", msg.Type)
		assert.Equal(t, i+1, msg.Captured)
	}
	assert.Equal(t, "Bottom", msg.NextFace)

	_, _, err = conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+s.ID, nil, &s))
	assert.Equal(t, domain.ModeReview, s.Mode)
	assert.Equal(t, domain.White, s.Colors[23])
}

func TestWebcamCancel(t *testing.T) {
	srv := newServer(t)
	s := newSession(t, srv, "3x3")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + s.ID + "/webcam"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg webcamMsg
	require.NoError(t, conn.ReadJSON(&msg))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("cancel")))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)

	require.Eventually(t, func() bool {
		var cur sessionResp
		doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+s.ID, nil, &cur)
		return cur.Mode == domain.ModeSelect
	}, 2*time.Second, 10*time.Millisecond)
}

func dialWebcam(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/webcam"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg webcamMsg
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "prompt", msg.Type)
	return conn
}

func TestWebcamBadLastFrameCanBeRetaken(t *testing.T) {
	srv := newServer(t)
	s := newSession(t, srv, "2x2")
	conn := dialWebcam(t, srv, s.ID)

	for _, c := range domain.CubePalette()[:5] {
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, solidPNG(t, c)))
		var msg webcamMsg
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, "prompt", msg.Type)
	}
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("blurry")))
	var bad webcamMsg
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, "error", bad.Type)
	assert.Equal(t, 6, bad.BadFrame)
	assert.Equal(t, "Bottom", bad.BadFace)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, solidPNG(t, domain.White)))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseNormalClosure, ce.Code)

	var cur sessionResp
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+s.ID, nil, &cur))
	assert.Equal(t, domain.ModeReview, cur.Mode)
}

func TestWebcamBadEarlierFrameEndsSequence(t *testing.T) {
	srv := newServer(t)
	s := newSession(t, srv, "2x2")
	conn := dialWebcam(t, srv, s.ID)

	for i, c := range domain.CubePalette() {
		frame := solidPNG(t, c)
		if i == 1 {
			frame = []byte("blurry")
		}
		require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, frame))
		if i == 5 {
			break
		}
		var msg webcamMsg
		require.NoError(t, conn.ReadJSON(&msg))
		require.Equal(t, "prompt", msg.Type)
	}

	var bad webcamMsg
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, "error", bad.Type)
	assert.Equal(t, 2, bad.BadFrame)
	assert.Equal(t, "Back", bad.BadFace)

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool {
		var cur sessionResp
		doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+s.ID, nil, &cur)
		return cur.Mode == domain.ModeSelect
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFrameError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		frame  int
		face   string
		retake bool
	}{
		{"busy", domain.ErrBusy, 0, "", true},
		{"last frame", &extract.ImageError{Index: 5, Err: domain.ErrImageDecode}, 6, "Bottom", true},
		{"earlier frame", &extract.ImageError{Index: 0, Err: domain.ErrImageDecode}, 1, "Front", false},
		{"camera", domain.ErrCameraUnavailable, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, retake := frameError(tt.err, 6)
			assert.Equal(t, "error", msg.Type)
			assert.Equal(t, tt.frame, msg.BadFrame)
			assert.Equal(t, tt.face, msg.BadFace)
			assert.Equal(t, tt.retake, retake)
		})
	}
}
