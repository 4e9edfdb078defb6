package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"nhooyr.io/websocket"
)

const wsTestSecret = "ws-test-secret"

func signTestToken(t *testing.T, subject int64, kind string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": strconv.FormatInt(subject, 10), "kind": kind}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(wsTestSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func newWSServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(NewRegistry(time.Minute), logger, time.Second)
	h := NewWSHandler(hub, wsTestSecret, nil, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/drone", h.ServeDrone)
	mux.HandleFunc("/ws/client", h.ServeClient)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialWS(t *testing.T, ctx context.Context, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := strings.Replace(srv.URL, "http", "ws", 1) + path
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	return conn
}

func writeWS(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s payload: %v", typ, err)
	}
	msg, err := json.Marshal(Envelope{Type: typ, Data: raw})
	if err != nil {
		t.Fatalf("marshal %s envelope: %v", typ, err)
	}
	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readWS(t *testing.T, ctx context.Context, conn *websocket.Conn) (string, map[string]any) {
	t.Helper()
	_, raw, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var payload map[string]any
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			t.Fatalf("decode %s payload: %v", env.Type, err)
		}
	}
	return env.Type, payload
}

func TestDroneChannelEndToEnd(t *testing.T) {
	hub, srv := newWSServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	drone := dialWS(t, ctx, srv, "/ws/drone")
	defer drone.Close(websocket.StatusNormalClosure, "")

	// Pushing before authenticating is rejected.
	writeWS(t, ctx, drone, EventTelemetry, map[string]any{"battery": 1})
	typ, _ := readWS(t, ctx, drone)
	if typ != EventError {
		t.Fatalf("pre-auth telemetry: got %s, want %s", typ, EventError)
	}

	writeWS(t, ctx, drone, EventAuthenticate, map[string]any{
		"droneId": 1, "token": signTestToken(t, 1, "drone"),
	})
	typ, payload := readWS(t, ctx, drone)
	if typ != EventAuthenticated || payload["success"] != true {
		t.Fatalf("authenticate: type %s payload %v", typ, payload)
	}
	if !hub.Registry().Online(1) {
		t.Fatalf("drone session should be online after authenticate")
	}

	// Subscribe a client, then push telemetry from the drone side.
	client := dialWS(t, ctx, srv, "/ws/client")
	defer client.Close(websocket.StatusNormalClosure, "")

	writeWS(t, ctx, client, EventAuthenticate, map[string]any{
		"userId": 10, "token": signTestToken(t, 10, "user"),
	})
	typ, payload = readWS(t, ctx, client)
	if typ != EventAuthenticated || payload["success"] != true {
		t.Fatalf("client authenticate: type %s payload %v", typ, payload)
	}

	writeWS(t, ctx, client, EventSubscribeDrone, map[string]any{"droneId": 1})
	typ, _ = readWS(t, ctx, client)
	if typ != EventDroneInitialState {
		t.Fatalf("subscribe: got %s, want %s", typ, EventDroneInitialState)
	}

	writeWS(t, ctx, drone, EventTelemetry, map[string]any{"battery": 73.5})
	typ, payload = readWS(t, ctx, client)
	if typ != EventDroneUpdate {
		t.Fatalf("update: got %s, want %s", typ, EventDroneUpdate)
	}
	if payload["battery"] != 73.5 || payload["droneId"] != float64(1) {
		t.Fatalf("update payload = %v", payload)
	}
}

func TestDroneAuthRejectsMismatchedSubject(t *testing.T) {
	_, srv := newWSServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	drone := dialWS(t, ctx, srv, "/ws/drone")
	defer drone.Close(websocket.StatusNormalClosure, "")

	// Token subject 2, claimed drone id 1: the channel refuses and closes.
	writeWS(t, ctx, drone, EventAuthenticate, map[string]any{
		"droneId": 1, "token": signTestToken(t, 2, "drone"),
	})
	typ, payload := readWS(t, ctx, drone)
	if typ != EventAuthenticated || payload["success"] != false {
		t.Fatalf("got %s %v, want failed authentication", typ, payload)
	}
	if _, _, err := drone.Read(ctx); err == nil {
		t.Fatalf("connection should be closed after failed authentication")
	}
}

func TestClientCommandRoundTrip(t *testing.T) {
	_, srv := newWSServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	drone := dialWS(t, ctx, srv, "/ws/drone")
	defer drone.Close(websocket.StatusNormalClosure, "")
	writeWS(t, ctx, drone, EventAuthenticate, map[string]any{
		"droneId": 1, "token": signTestToken(t, 1, "drone"),
	})
	readWS(t, ctx, drone) // authenticated

	client := dialWS(t, ctx, srv, "/ws/client")
	defer client.Close(websocket.StatusNormalClosure, "")
	writeWS(t, ctx, client, EventAuthenticate, map[string]any{
		"userId": 10, "token": signTestToken(t, 10, "user"),
	})
	readWS(t, ctx, client) // authenticated

	writeWS(t, ctx, client, EventSendCommand, map[string]any{
		"droneId": 1, "command": "land",
	})

	// The drone sees the forwarded command and confirms it.
	typ, payload := readWS(t, ctx, drone)
	if typ != EventCommand || payload["command"] != "land" {
		t.Fatalf("drone got %s %v, want forwarded land command", typ, payload)
	}
	writeWS(t, ctx, drone, EventCommandResult, map[string]any{
		"requestId": payload["requestId"], "success": true, "message": "landing",
	})

	typ, payload = readWS(t, ctx, client)
	if typ != EventCommandResponse {
		t.Fatalf("client got %s, want %s", typ, EventCommandResponse)
	}
	if payload["success"] != true || payload["message"] != "landing" {
		t.Fatalf("command response = %v", payload)
	}
}
