package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestStreamHandler_Login(t *testing.T) {
	env := newTestEnv(t)
	env.enroll("Alice", []float32{0, 0})
	alice := env.extractor.face("alice", []float32{0, 0.1})
	stranger := env.extractor.face("stranger", []float32{9, 9})

	stream := NewStreamHandler(env.handler, func(r *http.Request) bool { return true })
	server := httptest.NewServer(http.HandlerFunc(stream.Login))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("failed to dial stream: %v", err)
	}
	defer conn.Close()

	frames := []struct {
		send        any
		wantSuccess bool
		wantCode    string
	}{
		{LoginRequest{Image: stranger}, false, codeNotRecognized},
		{LoginRequest{Image: alice}, true, ""},
		{"not an object", false, codeInvalidRequest},
		{LoginRequest{Image: ""}, false, codeInvalidImage},
	}

	for i, f := range frames {
		if err := conn.WriteJSON(f.send); err != nil {
			t.Fatalf("frame %d: write failed: %v", i+1, err)
		}
		var resp StreamFrame
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("frame %d: read failed: %v", i+1, err)
		}
		if resp.Frame != i+1 {
			t.Errorf("frame number = %d, want %d", resp.Frame, i+1)
		}
		if resp.Success != f.wantSuccess || resp.Code != f.wantCode {
			t.Errorf("frame %d: got %+v, want success=%v code=%q", i+1, resp.FaceResponse, f.wantSuccess, f.wantCode)
		}
	}

	if env.logins.Len() != 1 {
		t.Errorf("login history has %d entries, want 1", env.logins.Len())
	}
}

func TestStreamHandler_RejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t)
	stream := NewStreamHandler(env.handler, func(r *http.Request) bool { return false })
	server := httptest.NewServer(http.HandlerFunc(stream.Login))
	defer server.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 response, got %v", resp)
	}
}
