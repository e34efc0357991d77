// Package realtime fans out server events to live WebSocket connections.
//
// The Hub is a single-goroutine actor: every mutation of its connection
// maps travels over a command channel and is applied by run(). Callers
// never touch the maps directly, so no locks guard them. Each user holds
// at most one live connection; a newer registration for the same user
// force-logs-out the older one. Staff connections additionally join their
// center's group, and any connection may watch a center to receive slot
// availability signals for it.
package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/openvax/vaxbook/internal/domain"
	"github.com/openvax/vaxbook/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

type client struct {
	userID   uuid.UUID
	staff    bool
	centerID *uuid.UUID
	conn     *websocket.Conn
	writer   *clientWriter
}

type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type cmdRegister struct {
	baseHubCmd
	userID   uuid.UUID
	staff    bool
	centerID *uuid.UUID
	conn     *websocket.Conn
	errCh    chan error
}

type cmdUnregister struct {
	baseHubCmd
	conn *websocket.Conn
}

type cmdNotify struct {
	baseHubCmd
	userID uuid.UUID
	frame  domain.Frame
}

type cmdBroadcastStaff struct {
	baseHubCmd
	centerID uuid.UUID
	frame    domain.Frame
}

type cmdBroadcastCenter struct {
	baseHubCmd
	centerID uuid.UUID
	frame    domain.Frame
}

type cmdKick struct {
	baseHubCmd
	userID uuid.UUID
}

type cmdTouch struct {
	baseHubCmd
	conn *websocket.Conn
}

type cmdCount struct {
	baseHubCmd
	replyCh chan int
}

type cmdConnected struct {
	baseHubCmd
	userID  uuid.UUID
	replyCh chan bool
}

type cmdStop struct {
	baseHubCmd
}

// Hub routes frames to live connections. It satisfies domain.Notifier and
// is handed to services as that interface.
type Hub struct {
	cmdCh chan hubCmd
	clock clockwork.Clock
	done  chan struct{}

	// Owned by run(). Never read or written outside it.
	users   map[uuid.UUID]*client
	byConn  map[*websocket.Conn]*client
	centers map[uuid.UUID]map[*client]struct{}
}

func NewHub(clock clockwork.Clock) *Hub {
	h := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		clock:   clock,
		done:    make(chan struct{}),
		users:   make(map[uuid.UUID]*client),
		byConn:  make(map[*websocket.Conn]*client),
		centers: make(map[uuid.UUID]map[*client]struct{}),
	}
	go h.run()
	return h
}

// Register attaches a connection for the user. If the user already has a
// live connection it receives force_logout and is closed: the newest login
// always wins. Staff pass their center; patients may pass a center they are
// watching for slot updates, or nil.
func (h *Hub) Register(userID uuid.UUID, staff bool, centerID *uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- cmdRegister{userID: userID, staff: staff, centerID: centerID, conn: conn, errCh: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister detaches a connection. Safe to call for connections the hub
// no longer tracks.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- cmdUnregister{conn: conn}
}

// Touch records application-level activity on a connection, deferring the
// idle cutoff.
func (h *Hub) Touch(conn *websocket.Conn) {
	h.cmdCh <- cmdTouch{conn: conn}
}

// Notify pushes a frame to the user's connection, if any.
func (h *Hub) Notify(userID uuid.UUID, frame domain.Frame) {
	h.cmdCh <- cmdNotify{userID: userID, frame: frame}
}

// BroadcastToStaff pushes a frame to every staff connection of the center.
func (h *Hub) BroadcastToStaff(centerID uuid.UUID, frame domain.Frame) {
	h.cmdCh <- cmdBroadcastStaff{centerID: centerID, frame: frame}
}

// BroadcastSlotUpdate signals everyone watching the center that slot
// availability for the date changed and should be re-queried.
func (h *Hub) BroadcastSlotUpdate(centerID uuid.UUID, date string) {
	frame := domain.Frame{
		Type: domain.FrameSlotsUpdated,
		Data: map[string]string{"centerId": centerID.String(), "date": date},
	}
	h.cmdCh <- cmdBroadcastCenter{centerID: centerID, frame: frame}
}

// Kick force-logs-out the user's connection, if any.
func (h *Hub) Kick(userID uuid.UUID) {
	h.cmdCh <- cmdKick{userID: userID}
}

// ClientCount returns the number of live connections, or -1 on timeout.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- cmdCount{replyCh: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case n := <-replyCh:
		return n
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Connected reports whether the user has a live connection.
func (h *Hub) Connected(userID uuid.UUID) bool {
	replyCh := make(chan bool, 1)
	h.cmdCh <- cmdConnected{userID: userID, replyCh: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case ok := <-replyCh:
		return ok
	case <-timer.Chan():
		return false
	}
}

// Stop closes all connections and shuts the hub down. Blocks until the
// actor goroutine exits or the stop timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- cmdStop{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.Chan():
		slog.Warn("hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			h.handleRegister(c)
		case cmdUnregister:
			h.detach(c.conn)
		case cmdTouch:
			if cl, ok := h.byConn[c.conn]; ok {
				cl.writer.touch()
			}
		case cmdNotify:
			if cl, ok := h.users[c.userID]; ok {
				h.send(cl, c.frame)
			}
		case cmdBroadcastStaff:
			for cl := range h.centers[c.centerID] {
				if cl.staff {
					h.send(cl, c.frame)
				}
			}
		case cmdBroadcastCenter:
			for cl := range h.centers[c.centerID] {
				h.send(cl, c.frame)
			}
		case cmdKick:
			if cl, ok := h.users[c.userID]; ok {
				h.forceLogout(cl)
			}
		case cmdCount:
			c.replyCh <- len(h.byConn)
		case cmdConnected:
			_, ok := h.users[c.userID]
			c.replyCh <- ok
		case cmdStop:
			h.handleStop()
			return
		default:
			slog.Warn("hub received unknown command", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) {
	if prev, ok := h.users[c.userID]; ok {
		h.forceLogout(prev)
	}

	cl := &client{
		userID:   c.userID,
		staff:    c.staff,
		centerID: c.centerID,
		conn:     c.conn,
		writer:   newClientWriter(c.conn, h.clock),
	}
	h.users[c.userID] = cl
	h.byConn[c.conn] = cl
	if c.centerID != nil {
		set, ok := h.centers[*c.centerID]
		if !ok {
			set = make(map[*client]struct{})
			h.centers[*c.centerID] = set
		}
		set[cl] = struct{}{}
	}

	metrics.WebSocketConnections.Set(float64(len(h.byConn)))
	slog.Debug("client registered", "user_id", c.userID.String(), "staff", c.staff)
	c.errCh <- nil
}

// forceLogout tells the client why it is going away, then closes it.
func (h *Hub) forceLogout(cl *client) {
	h.send(cl, domain.Frame{Type: domain.FrameForceLogout})
	metrics.ForceLogouts.Inc()
	h.remove(cl)
	go cl.writer.stopGraceful("session superseded")
}

// detach removes a connection that closed on its own (read loop ended).
func (h *Hub) detach(conn *websocket.Conn) {
	cl, ok := h.byConn[conn]
	if !ok {
		return
	}
	h.remove(cl)
	cl.writer.stop()
	slog.Debug("client unregistered", "user_id", cl.userID.String())
}

// remove deletes the client from all maps. The user entry is only cleared
// if it still points at this client, so a superseding registration is
// never clobbered by the old connection's teardown.
func (h *Hub) remove(cl *client) {
	delete(h.byConn, cl.conn)
	if cur, ok := h.users[cl.userID]; ok && cur == cl {
		delete(h.users, cl.userID)
	}
	if cl.centerID != nil {
		if set, ok := h.centers[*cl.centerID]; ok {
			delete(set, cl)
			if len(set) == 0 {
				delete(h.centers, *cl.centerID)
			}
		}
	}
	metrics.WebSocketConnections.Set(float64(len(h.byConn)))
}

// send queues a frame on the client's writer. A full buffer marks the
// client as too slow to keep and disconnects it rather than blocking the
// hub.
func (h *Hub) send(cl *client, frame domain.Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		slog.Error("failed to marshal frame", "type", frame.Type, "error", err)
		return
	}

	select {
	case cl.writer.sendCh <- data:
		metrics.FramesSent.WithLabelValues(frame.Type).Inc()
	default:
		slog.Warn("disconnecting slow client", "user_id", cl.userID.String())
		metrics.SlowClientDisconnects.Inc()
		h.remove(cl)
		go cl.writer.stop()
	}
}

func (h *Hub) handleStop() {
	n := len(h.byConn)
	for _, cl := range h.byConn {
		h.remove(cl)
		cl.writer.stopGraceful("server shutting down")
	}
	slog.Info("hub shutdown complete", "disconnected_clients", n)
}
