package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agustinrios/cedearscan/internal/cache/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHub_HelloAndBroadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := memory.NewSignalBus()
	h := NewHub(bus, "opportunities", "serve", testLogger())
	go h.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var hello struct {
		Type    string `json:"type"`
		Payload struct {
			Mode    string `json:"mode"`
			Channel string `json:"channel"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&hello); err != nil {
		t.Fatalf("read hello: %v", err)
	}
	if hello.Type != "hello" || hello.Payload.Mode != "serve" || hello.Payload.Channel != "opportunities" {
		t.Errorf("hello = %+v", hello)
	}

	payload, _ := json.Marshal(map[string]any{"symbol": "TSLA", "deviation": 0.021})
	if err := bus.Publish(ctx, "opportunities", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var frame struct {
		Type    string `json:"type"`
		Payload struct {
			Symbol string `json:"symbol"`
		} `json:"payload"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != "opportunity" || frame.Payload.Symbol != "TSLA" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestHub_ShutdownReleasesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	h := NewHub(memory.NewSignalBus(), "opportunities", "serve", testLogger())
	runErr := make(chan error, 1)
	go func() { runErr <- h.Run(ctx) }()

	server := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read hello: %v", err)
	}

	cancel()
	select {
	case err := <-runErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// The client is told the stream is over.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
				t.Logf("close err = %v", err)
			}
			break
		}
	}

	// Closing the connection after shutdown must not wedge the read pump on
	// an unserviced unregister; a fresh connection is turned away promptly
	// for the same reason.
	conn.Close()

	late := dialHub(t, server)
	defer late.Close()
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("connection after shutdown should be closed without frames")
	}
}
