package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cubebuddy/cubebuddy/internal/capture"
	"github.com/cubebuddy/cubebuddy/internal/domain"
	"github.com/cubebuddy/cubebuddy/internal/extract"
	"github.com/cubebuddy/cubebuddy/internal/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 16,
	WriteBufferSize: 1 << 12,
}

const (
	maxFrameBytes = 8 << 20
	writeWait     = 5 * time.Second
)

var errNoFrame = errors.New("no frame received yet")

// wsCamera is a client video stream carried over a websocket. The client
// pushes the frame it is showing as a binary message. Closing the camera
// closes the connection.
type wsCamera struct {
	conn *websocket.Conn

	mu     sync.Mutex
	frame  []byte
	closed bool
}

func (c *wsCamera) Open(context.Context) (ports.Camera, error) { return c, nil }

func (c *wsCamera) push(frame []byte) {
	c.mu.Lock()
	c.frame = frame
	c.mu.Unlock()
}

func (c *wsCamera) Frame(context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errors.New("camera released")
	}
	if c.frame == nil {
		return nil, errNoFrame
	}
	f := c.frame
	c.frame = nil
	return f, nil
}

func (c *wsCamera) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

func (c *wsCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "camera released")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	return c.conn.Close()
}

// webcamMsg is sent to the client after the camera is acquired and after
// every captured frame.
type webcamMsg struct {
	Type string `json:"type"`
	capture.Progress
	Error string `json:"error,omitempty"`
	// BadFrame is the 1-based frame that failed extraction, BadFace its face.
	BadFrame int    `json:"badFrame,omitempty"`
	BadFace  string `json:"badFace,omitempty"`
}

// frameError describes a failed capture. retake reports whether sending
// another frame can recover: only the newest frame is replaced by a retake.
func frameError(err error, faces int) (msg webcamMsg, retake bool) {
	msg = webcamMsg{Type: "error", Error: err.Error()}
	if errors.Is(err, domain.ErrBusy) {
		return msg, true
	}
	var ie *extract.ImageError
	if !errors.As(err, &ie) {
		return msg, false
	}
	msg.BadFrame = ie.Index + 1
	msg.BadFace = capture.FaceName(ie.Index)
	return msg, ie.Index == faces-1
}

// handleWebcam runs the webcam sequence over a websocket. Binary messages
// are frames; the text message "cancel" aborts. The server closes the
// connection once every face is captured.
func (h *Handler) handleWebcam(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.UC.Session(r.Context(), id); err != nil {
		h.writeErr(w, err)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Warn("websocket upgrade", "session", id, "err", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)
	cam := &wsCamera{conn: conn}
	ctx := r.Context()

	view, err := h.UC.StartWebcam(ctx, id, cam)
	if err != nil {
		_ = conn.WriteJSON(webcamMsg{Type: "error", Error: err.Error()})
		conn.Close()
		return
	}
	_ = cam.send(webcamMsg{Type: "prompt", Progress: capture.Progress{Faces: view.Faces, NextFace: view.NextFace}})

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if kind == websocket.TextMessage {
			if string(data) == "cancel" {
				break
			}
			continue
		}
		cam.push(data)
		p, err := h.UC.CaptureFrame(ctx, id)
		if err != nil {
			msg, retake := frameError(err, view.Faces)
			_ = cam.send(msg)
			if retake {
				continue
			}
			break
		}
		if p.Complete {
			// the machine released the camera, which closed the connection
			return
		}
		_ = cam.send(webcamMsg{Type: "prompt", Progress: p})
	}

	if s, err := h.UC.Session(context.WithoutCancel(ctx), id); err == nil && s.Mode == domain.ModeWebcam {
		if _, err := h.UC.CancelWebcam(context.WithoutCancel(ctx), id); err != nil {
			h.Logger.Warn("cancel webcam", "session", id, "err", err)
		}
	}
	cam.Close()
}
