package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"droneFleetManagement/internal/auth"
)

const (
	wsReadLimit    = 32 << 10
	wsWriteTimeout = 10 * time.Second
)

// WSHandler exposes the two realtime channels over nhooyr websockets:
// a drone-side channel pushing telemetry and a client-side channel
// subscribing to it.
type WSHandler struct {
	hub     *Hub
	secret  string
	origins []string
	logger  *slog.Logger
}

// NewWSHandler creates the websocket handlers for the given hub.
func NewWSHandler(hub *Hub, secret string, origins []string, logger *slog.Logger) *WSHandler {
	return &WSHandler{hub: hub, secret: secret, origins: origins, logger: logger}
}

type droneAuthPayload struct {
	DroneID int64  `json:"droneId"`
	Token   string `json:"token"`
}

type clientAuthPayload struct {
	UserID int64  `json:"userId"`
	Token  string `json:"token"`
}

type dronePayload struct {
	DroneID int64 `json:"droneId"`
}

type commandPayload struct {
	DroneID    int64          `json:"droneId"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

type commandResultPayload struct {
	RequestID string `json:"requestId"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

func (h *WSHandler) accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	opts := &websocket.AcceptOptions{}
	if len(h.origins) > 0 {
		opts.OriginPatterns = h.origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(wsReadLimit)
	return conn, nil
}

// writePump drains a send queue onto the connection. It exits when the
// hub closes the queue (disconnect, eviction, replacement) or a write
// fails.
func writePump(conn *websocket.Conn, send <-chan []byte) {
	for msg := range send {
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		err := conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// writeDirect is used only before a session's write pump starts (auth
// replies and rejections).
func writeDirect(conn *websocket.Conn, msg []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, msg)
}

// ServeDrone handles the drone-side channel: authenticate, then
// telemetry pushes and command confirmations until disconnect.
func (h *WSHandler) ServeDrone(w http.ResponseWriter, r *http.Request) {
	conn, err := h.accept(w, r)
	if err != nil {
		h.logger.Error("ws accept", "err", err)
		return
	}

	ctx := r.Context()
	var dc *DroneConn
	defer func() {
		if dc != nil {
			h.hub.DetachDrone(dc)
		} else {
			conn.Close(websocket.StatusNormalClosure, "")
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.send(dc == nil, conn, dc, marshalEvent(EventError, map[string]string{"message": "malformed message"}))
			continue
		}

		switch env.Type {
		case EventAuthenticate:
			var p droneAuthPayload
			_ = json.Unmarshal(env.Data, &p)
			principal, err := auth.ParseToken(p.Token, h.secret)
			if err != nil || principal.Kind != auth.KindDrone || principal.Subject != p.DroneID {
				writeDirect(conn, marshalEvent(EventAuthenticated, map[string]any{"success": false}))
				conn.Close(websocket.StatusPolicyViolation, "authentication failed")
				return
			}
			if dc != nil {
				continue // already authenticated
			}
			dc = h.hub.AttachDrone(p.DroneID)
			go writePump(conn, dc.send)
			h.hub.deliverDrone(dc, marshalEvent(EventAuthenticated, map[string]any{"success": true}))

		case EventTelemetry:
			if dc == nil {
				writeDirect(conn, marshalEvent(EventError, map[string]string{"message": "drone not authenticated"}))
				continue
			}
			var fields map[string]any
			if err := json.Unmarshal(env.Data, &fields); err != nil || len(fields) == 0 {
				h.hub.deliverDrone(dc, marshalEvent(EventError, map[string]string{"message": "telemetry payload must be an object"}))
				continue
			}
			if err := h.hub.PushTelemetry(dc.DroneID, fields); err != nil {
				h.hub.deliverDrone(dc, marshalEvent(EventError, map[string]string{"message": err.Error()}))
			}

		case EventCommandResult:
			if dc == nil {
				continue
			}
			var p commandResultPayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.RequestID == "" {
				continue
			}
			h.hub.ResolveCommand(p.RequestID, CommandResult{Success: p.Success, Message: p.Message})

		default:
			h.send(dc == nil, conn, dc, marshalEvent(EventError, map[string]string{"message": "unknown event: " + env.Type}))
		}
	}
}

// ServeClient handles the client-side channel: authenticate, then
// subscriptions and command dispatch until disconnect.
func (h *WSHandler) ServeClient(w http.ResponseWriter, r *http.Request) {
	conn, err := h.accept(w, r)
	if err != nil {
		h.logger.Error("ws accept", "err", err)
		return
	}

	ctx := r.Context()
	var cs *ClientSession
	defer func() {
		if cs != nil {
			h.hub.RemoveClient(cs)
		} else {
			conn.Close(websocket.StatusNormalClosure, "")
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			if cs == nil {
				writeDirect(conn, marshalEvent(EventError, map[string]string{"message": "malformed message"}))
			} else {
				h.hub.deliver(cs, marshalEvent(EventError, map[string]string{"message": "malformed message"}))
			}
			continue
		}

		switch env.Type {
		case EventAuthenticate:
			var p clientAuthPayload
			_ = json.Unmarshal(env.Data, &p)
			principal, err := auth.ParseToken(p.Token, h.secret)
			if err != nil || principal.Kind != auth.KindUser || principal.Subject != p.UserID {
				writeDirect(conn, marshalEvent(EventAuthenticated, map[string]any{"success": false}))
				conn.Close(websocket.StatusPolicyViolation, "authentication failed")
				return
			}
			if cs != nil {
				continue
			}
			cs = h.hub.AddClient(p.UserID)
			go writePump(conn, cs.send)
			h.hub.deliver(cs, marshalEvent(EventAuthenticated, map[string]any{"success": true}))

		case EventSubscribeDrone:
			if cs == nil {
				writeDirect(conn, marshalEvent(EventError, map[string]string{"message": "client not authenticated"}))
				continue
			}
			var p dronePayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.DroneID == 0 {
				h.hub.deliver(cs, marshalEvent(EventError, map[string]string{"message": "droneId is required"}))
				continue
			}
			h.hub.Subscribe(cs, p.DroneID)

		case EventUnsubscribeDrone:
			if cs == nil {
				continue
			}
			var p dronePayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.DroneID == 0 {
				continue
			}
			h.hub.Unsubscribe(cs, p.DroneID)

		case EventSendCommand:
			if cs == nil {
				writeDirect(conn, marshalEvent(EventError, map[string]string{"message": "client not authenticated"}))
				continue
			}
			var p commandPayload
			if err := json.Unmarshal(env.Data, &p); err != nil || p.DroneID == 0 {
				h.hub.deliver(cs, marshalEvent(EventCommandResponse, CommandResult{Success: false, Message: "droneId and command are required"}))
				continue
			}
			// The confirmation wait is bounded but long; run it off
			// the read loop so other events keep flowing.
			go h.dispatchCommand(ctx, cs, p)

		default:
			if cs != nil {
				h.hub.deliver(cs, marshalEvent(EventError, map[string]string{"message": "unknown event: " + env.Type}))
			}
		}
	}
}

func (h *WSHandler) dispatchCommand(ctx context.Context, cs *ClientSession, p commandPayload) {
	res, err := h.hub.SendCommand(ctx, p.DroneID, p.Command, p.Parameters)
	if err != nil {
		h.hub.deliver(cs, marshalEvent(EventCommandResponse, CommandResult{Success: false, Message: err.Error()}))
		return
	}
	h.hub.deliver(cs, marshalEvent(EventCommandResponse, *res))
}

// send routes a frame either directly (pre-auth) or through the drone
// session queue.
func (h *WSHandler) send(direct bool, conn *websocket.Conn, dc *DroneConn, msg []byte) {
	if direct {
		writeDirect(conn, msg)
		return
	}
	h.hub.deliverDrone(dc, msg)
}
