package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamReadTimeout  = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamPingPeriod   = 30 * time.Second
)

// StreamHandler runs continuous login over a websocket: the client sends
// {"image": ...} frames and receives one login answer per frame.
type StreamHandler struct {
	auth     *AuthHandler
	upgrader websocket.Upgrader
}

// NewStreamHandler creates a streaming login handler. checkOrigin decides which
// browser origins may open the socket.
func NewStreamHandler(auth *AuthHandler, checkOrigin func(r *http.Request) bool) *StreamHandler {
	return &StreamHandler{
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 << 10,
			WriteBufferSize: 4 << 10,
			CheckOrigin:     checkOrigin,
		},
	}
}

// StreamFrame is a login answer sent over the stream, tagged with its frame number
type StreamFrame struct {
	Frame int `json:"frame"`
	FaceResponse
}

// Login upgrades the connection and answers frames until the client goes away.
// Frames are handled one at a time; a client that sends faster than the
// extractor keeps up simply waits.
func (h *StreamHandler) Login(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxRequestBody)
	conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	})

	ctx := r.Context()
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for frame := 1; ; frame++ {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) && !errors.Is(err, websocket.ErrCloseSent) {
				log.Printf("login stream closed: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))

		var resp FaceResponse
		var req LoginRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			resp = FaceResponse{Success: false, Code: codeInvalidRequest, Message: errInvalidRequestBody}
		} else {
			_, resp = h.auth.login(ctx, req)
		}
		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(StreamFrame{Frame: frame, FaceResponse: resp}); err != nil {
			return
		}
	}
}
