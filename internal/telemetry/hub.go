package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"droneFleetManagement/internal/fault"
)

// Event types on the realtime channels.
const (
	EventAuthenticate      = "authenticate"
	EventAuthenticated     = "authenticated"
	EventTelemetry         = "telemetry"
	EventDroneUpdate       = "drone_update"
	EventDroneInitialState = "drone_initial_state"
	EventSubscribeDrone    = "subscribe_drone"
	EventUnsubscribeDrone  = "unsubscribe_drone"
	EventSendCommand       = "send_command"
	EventCommandResponse   = "command_response"
	EventCommand           = "command"
	EventCommandResult     = "command_result"
	EventError             = "error"
)

// Envelope is the wire frame for every realtime message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const clientSendBuffer = 64

// ClientSession is one connected dashboard client: a send queue plus
// the set of drones it subscribed to.
type ClientSession struct {
	ID     string
	UserID int64
	send   chan []byte
	subs   map[int64]struct{} // guarded by the hub mutex
}

// Receive exposes the session's outbound queue (the write pump and the
// tests read from it). The channel is closed when the hub drops the
// session.
func (c *ClientSession) Receive() <-chan []byte { return c.send }

// DroneConn is the live connection for one drone-side session.
type DroneConn struct {
	SessionID string
	DroneID   int64
	send      chan []byte
}

// Receive exposes the connection's outbound queue.
func (d *DroneConn) Receive() <-chan []byte { return d.send }

// CommandResult is the drone's correlated reply to a forwarded command.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Hub relays telemetry from drone sessions to subscribed clients and
// dispatches commands the other way. Broadcast groups are keyed by
// drone id; per-drone push order is preserved because merge and
// broadcast happen under the same critical path.
type Hub struct {
	registry   *Registry
	logger     *slog.Logger
	cmdTimeout time.Duration
	now        func() time.Time

	mu      sync.Mutex
	groups  map[int64]map[*ClientSession]struct{}
	drones  map[int64]*DroneConn
	pending map[string]chan CommandResult
}

// NewHub creates a relay hub over the given session registry.
func NewHub(registry *Registry, logger *slog.Logger, cmdTimeout time.Duration) *Hub {
	return &Hub{
		registry:   registry,
		logger:     logger,
		cmdTimeout: cmdTimeout,
		now:        time.Now,
		groups:     make(map[int64]map[*ClientSession]struct{}),
		drones:     make(map[int64]*DroneConn),
		pending:    make(map[string]chan CommandResult),
	}
}

// Registry returns the injected session registry.
func (h *Hub) Registry() *Registry { return h.registry }

// AttachDrone registers an authenticated drone-side connection and
// marks its session online. A second connection for the same drone
// replaces the first.
func (h *Hub) AttachDrone(droneID int64) *DroneConn {
	s := h.registry.Connect(droneID)
	conn := &DroneConn{SessionID: s.ID, DroneID: droneID, send: make(chan []byte, clientSendBuffer)}
	h.mu.Lock()
	if old, ok := h.drones[droneID]; ok {
		close(old.send)
	}
	h.drones[droneID] = conn
	h.mu.Unlock()
	h.logger.Info("drone session online", "drone_id", droneID, "session_id", s.ID)
	return conn
}

// DetachDrone drops a drone connection and marks its session offline.
// Stale connections (already replaced by a reconnect) are ignored.
func (h *Hub) DetachDrone(conn *DroneConn) {
	h.mu.Lock()
	current, ok := h.drones[conn.DroneID]
	if ok && current == conn {
		delete(h.drones, conn.DroneID)
		close(conn.send)
	}
	h.mu.Unlock()
	if ok && current == conn {
		h.registry.Disconnect(conn.DroneID)
		h.logger.Info("drone session offline", "drone_id", conn.DroneID)
	}
}

// PushTelemetry merges a telemetry snapshot into the drone's session
// and broadcasts the pushed fields, identity and timestamp to the
// drone's group.
func (h *Hub) PushTelemetry(droneID int64, fields map[string]any) error {
	_, ok := h.registry.Merge(droneID, fields)
	if !ok {
		return fault.NotFoundf("no session for drone %d", droneID)
	}
	payload := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		payload[k] = v
	}
	payload["droneId"] = droneID
	payload["timestamp"] = h.now().UTC()
	h.broadcast(droneID, marshalEvent(EventDroneUpdate, payload))
	return nil
}

// AddClient registers an authenticated client session.
func (h *Hub) AddClient(userID int64) *ClientSession {
	cs := &ClientSession{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan []byte, clientSendBuffer),
		subs:   make(map[int64]struct{}),
	}
	h.logger.Debug("client session connected", "user_id", userID, "session_id", cs.ID)
	return cs
}

// RemoveClient drops the session from every group and closes its send
// queue. In-flight command waits are not cancelled; their responses are
// simply dropped.
func (h *Hub) RemoveClient(cs *ClientSession) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeClientLocked(cs)
}

func (h *Hub) removeClientLocked(cs *ClientSession) {
	if cs.subs == nil {
		return // already removed
	}
	for droneID := range cs.subs {
		if group, ok := h.groups[droneID]; ok {
			delete(group, cs)
			if len(group) == 0 {
				delete(h.groups, droneID)
			}
		}
	}
	cs.subs = nil
	close(cs.send)
}

// Subscribe joins the client to a drone's broadcast group. When a
// snapshot for the drone already exists the client immediately gets a
// drone_initial_state so it does not have to wait for the next push
// (cache-then-stream). Delivery at the join boundary is best-effort
// relative to an in-flight push.
func (h *Hub) Subscribe(cs *ClientSession, droneID int64) {
	h.mu.Lock()
	if cs.subs == nil {
		h.mu.Unlock()
		return
	}
	group, ok := h.groups[droneID]
	if !ok {
		group = make(map[*ClientSession]struct{})
		h.groups[droneID] = group
	}
	group[cs] = struct{}{}
	cs.subs[droneID] = struct{}{}
	h.mu.Unlock()

	if s, ok := h.registry.Get(droneID); ok {
		payload := make(map[string]any, len(s.Snapshot)+3)
		for k, v := range s.Snapshot {
			payload[k] = v
		}
		payload["droneId"] = droneID
		if s.Online {
			payload["status"] = "online"
		} else {
			payload["status"] = "offline"
		}
		payload["lastUpdate"] = s.LastUpdate
		h.deliver(cs, marshalEvent(EventDroneInitialState, payload))
	}
}

// Unsubscribe removes the client from a drone's broadcast group.
func (h *Hub) Unsubscribe(cs *ClientSession, droneID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cs.subs == nil {
		return
	}
	delete(cs.subs, droneID)
	if group, ok := h.groups[droneID]; ok {
		delete(group, cs)
		if len(group) == 0 {
			delete(h.groups, droneID)
		}
	}
}

// SendCommand forwards a command to the drone's session and waits for
// the correlated command_result, bounded by the hub's command timeout.
// "Sent" here means confirmed by the drone, not merely queued; the
// caller gets a timeout fault when no confirmation arrives in time.
// Commands are not durable: an offline drone rejects immediately.
func (h *Hub) SendCommand(ctx context.Context, droneID int64, command string, parameters map[string]any) (*CommandResult, error) {
	if command == "" {
		return nil, fault.Validationf("command is required")
	}
	h.mu.Lock()
	conn, ok := h.drones[droneID]
	if !ok || !h.registry.Online(droneID) {
		h.mu.Unlock()
		return nil, fault.NotFoundf("drone %d is offline or not connected", droneID)
	}
	requestID := uuid.NewString()
	reply := make(chan CommandResult, 1)
	h.pending[requestID] = reply
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, requestID)
		h.mu.Unlock()
	}()

	msg := marshalEvent(EventCommand, map[string]any{
		"command":    command,
		"parameters": parameters,
		"requestId":  requestID,
		"timestamp":  h.now().UTC(),
	})
	select {
	case conn.send <- msg:
	default:
		return nil, fault.Conflictf("drone %d is not accepting commands right now", droneID)
	}

	timer := time.NewTimer(h.cmdTimeout)
	defer timer.Stop()
	select {
	case res := <-reply:
		return &res, nil
	case <-timer.C:
		return nil, fault.Timeoutf("no confirmation from drone %d within %s", droneID, h.cmdTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ResolveCommand completes a pending command wait. Unknown or already
// resolved correlation ids are dropped.
func (h *Hub) ResolveCommand(requestID string, res CommandResult) {
	h.mu.Lock()
	reply, ok := h.pending[requestID]
	if ok {
		delete(h.pending, requestID)
	}
	h.mu.Unlock()
	if ok {
		reply <- res
	}
}

// broadcast fans a frame out to every group member. Clients too slow to
// drain their queue are evicted rather than blocking the path.
func (h *Hub) broadcast(droneID int64, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.groups[droneID]
	if !ok {
		return
	}
	var slow []*ClientSession
	for cs := range group {
		select {
		case cs.send <- msg:
		default:
			slow = append(slow, cs)
		}
	}
	for _, cs := range slow {
		h.logger.Warn("evicting slow client session", "session_id", cs.ID, "user_id", cs.UserID)
		h.removeClientLocked(cs)
	}
}

// deliver sends one frame to one client, evicting it when its queue is
// full.
func (h *Hub) deliver(cs *ClientSession, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cs.subs == nil {
		return
	}
	select {
	case cs.send <- msg:
	default:
		h.logger.Warn("evicting slow client session", "session_id", cs.ID, "user_id", cs.UserID)
		h.removeClientLocked(cs)
	}
}

// deliverDrone sends one frame to a drone connection. Frames for a
// stale or saturated connection are dropped, never blocked on.
func (h *Hub) deliverDrone(dc *DroneConn, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.drones[dc.DroneID] != dc {
		return
	}
	select {
	case dc.send <- msg:
	default:
		h.logger.Warn("dropping frame for drone session", "drone_id", dc.DroneID, "session_id", dc.SessionID)
	}
}

func marshalEvent(typ string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		// Payloads are built from JSON-decoded values; this cannot
		// fail for them.
		raw = []byte("{}")
	}
	b, _ := json.Marshal(Envelope{Type: typ, Data: raw})
	return b
}
