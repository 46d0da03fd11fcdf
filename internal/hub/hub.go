// Package hub is the realtime synchronization core: it accepts client
// websocket connections, dispatches their events through the reducer
// and the presence/lock manager, and fans accepted events out to every
// connected client on every instance.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/boardsync/boardsync/internal/board"
	"github.com/boardsync/boardsync/internal/presence"
	"github.com/boardsync/boardsync/internal/store"
)

// Options tune connection liveness. Zero values fall back to the
// defaults below.
type Options struct {
	PingInterval   time.Duration // transport keepalive ping cadence
	ReadTimeout    time.Duration // max silence before a connection is dead
	WriteTimeout   time.Duration
	SendBuffer     int      // outbound frames queued per connection
	OriginPatterns []string // allowed websocket origins
}

const (
	defaultPingInterval = 25 * time.Second
	defaultReadTimeout  = 60 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultSendBuffer   = 32
)

func (o *Options) withDefaults() {
	if o.PingInterval == 0 {
		o.PingInterval = defaultPingInterval
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = defaultReadTimeout
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.SendBuffer == 0 {
		o.SendBuffer = defaultSendBuffer
	}
}

// Hub is the connection gateway plus local fanout registry.
type Hub struct {
	store       store.Store
	manager     *presence.Manager
	broadcaster Broadcaster
	opts        Options

	mu       sync.Mutex
	sessions map[string]*session
}

// New creates a Hub wired for single-instance fanout. Call
// SetBroadcaster to switch to shared-store fanout before serving.
func New(st store.Store, mgr *presence.Manager, opts Options) *Hub {
	opts.withDefaults()
	h := &Hub{
		store:    st,
		manager:  mgr,
		opts:     opts,
		sessions: make(map[string]*session),
	}
	h.broadcaster = NewLocalBroadcaster(h.Deliver)
	return h
}

// SetBroadcaster replaces the fanout path. Must be called before the
// first connection is accepted.
func (h *Hub) SetBroadcaster(b Broadcaster) {
	h.broadcaster = b
}

// Run drives the broadcaster's receive loop until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	return h.broadcaster.Run(ctx)
}

// ServeBoard upgrades the request to a websocket and runs the
// connection until the client goes away: send the full snapshot, then
// one dispatch per inbound event, writes drained by a dedicated
// goroutine.
func (h *Hub) ServeBoard(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.opts.OriginPatterns,
	})
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	s := h.register(conn)
	defer h.unregister(s)

	writerCtx, cancelWriter := context.WithCancel(ctx)
	defer cancelWriter()
	go s.writeLoop(writerCtx, h.opts.PingInterval, h.opts.WriteTimeout)

	if err := h.sendInit(ctx, s); err != nil {
		log.Error().Err(err).Str("conn_id", s.id).Msg("send board:init")
		_ = conn.Close(websocket.StatusInternalError, "init failed")
		return
	}

	for {
		readCtx, cancelRead := context.WithTimeout(ctx, h.opts.ReadTimeout)
		_, raw, readErr := conn.Read(readCtx)
		cancelRead()
		if readErr != nil {
			log.Debug().Err(readErr).Str("conn_id", s.id).Msg("websocket closed")
			return
		}

		var ev board.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			log.Warn().Err(err).Str("conn_id", s.id).Msg("malformed event")
			continue
		}
		h.dispatch(ctx, s, ev)
	}
}

func (h *Hub) register(conn *websocket.Conn) *session {
	s := &session{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.opts.SendBuffer),
	}
	h.mu.Lock()
	h.sessions[s.id] = s
	h.mu.Unlock()
	log.Debug().Str("conn_id", s.id).Msg("connection registered")
	return s
}

// unregister removes the session and, if the client had joined,
// cascades its departure: presence removed, held locks released, and
// both broadcast to the remaining clients. The request context is gone
// by now, so cleanup runs on its own deadline.
func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	h.mu.Unlock()

	if s.user == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	released, err := h.manager.Leave(ctx, s.user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", s.user.ID).Msg("disconnect cleanup")
		return
	}
	h.announceLeave(ctx, s.id, s.user.ID, released)
}

// NotifyExpired broadcasts the departure of a user reaped by the
// presence manager. Wired as the reaper's onExpired callback.
func (h *Hub) NotifyExpired(userID string, released []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h.announceLeave(ctx, "", userID, released)
}

func (h *Hub) announceLeave(ctx context.Context, origin, userID string, released []string) {
	h.publish(ctx, origin, board.EventPresenceLeave, board.LeavePayload{UserID: userID})
	for _, cardID := range released {
		h.publish(ctx, origin, board.EventEditUnlock, board.LockPayload{CardID: cardID, UserID: userID})
	}
}

func (h *Hub) sendInit(ctx context.Context, s *session) error {
	b, err := h.store.GetBoard(ctx)
	if err != nil {
		return err
	}
	ev, err := board.NewEvent(board.EventBoardInit, b)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.enqueue(raw)
	return nil
}

// dispatch maps one inbound event to its handler. Board mutations run
// through the reducer and persist before fanout; presence and lock
// events bypass the reducer and go to the manager.
func (h *Hub) dispatch(ctx context.Context, s *session, ev board.Event) {
	switch {
	case board.IsMutation(ev.Type):
		h.handleMutation(ctx, s, ev)
	case ev.Type == board.EventPresenceJoin:
		h.handleJoin(ctx, s, ev)
	case ev.Type == board.EventPresenceHeartbeat:
		h.handleHeartbeat(ctx, s, ev)
	case ev.Type == board.EventEditLock:
		h.handleLock(ctx, s, ev)
	case ev.Type == board.EventEditUnlock:
		h.handleUnlock(ctx, s, ev)
	default:
		log.Warn().Str("type", ev.Type).Str("conn_id", s.id).Msg("unhandled event kind")
	}
}

// handleMutation is the read-modify-write pipeline: fetch the current
// snapshot, reduce, persist, then fan the event out to everyone
// including the sender, who reconciles its optimistic copy against the
// confirmed version. Store failures drop the event without broadcast;
// the client's own timeout covers the silence.
func (h *Hub) handleMutation(ctx context.Context, s *session, ev board.Event) {
	b, err := h.store.GetBoard(ctx)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("get board")
		return
	}
	next, err := board.Apply(b, ev)
	if err != nil {
		log.Warn().Err(err).Str("type", ev.Type).Str("conn_id", s.id).Msg("reject event")
		return
	}
	if err := h.store.SetBoard(ctx, next); err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("set board")
		return
	}

	// A deleted card's edit lock dies with it.
	if ev.Type == board.EventCardDelete {
		var del board.DeletePayload
		if err := json.Unmarshal(ev.Payload, &del); err == nil {
			if err := h.manager.CardDeleted(ctx, del.CardID); err != nil {
				log.Error().Err(err).Str("card_id", del.CardID).Msg("release lock on delete")
			}
		}
	}

	if err := h.broadcaster.Publish(ctx, Envelope{Origin: s.id, Event: ev}); err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("publish event")
	}
}

func (h *Hub) handleJoin(ctx context.Context, s *session, ev board.Event) {
	var user board.User
	if err := json.Unmarshal(ev.Payload, &user); err != nil {
		log.Warn().Err(err).Str("conn_id", s.id).Msg("malformed presence:join")
		return
	}
	if err := h.manager.Join(ctx, user); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("presence join")
		return
	}
	s.user = &user
	h.publish(ctx, s.id, board.EventPresenceJoin, user)
}

func (h *Hub) handleHeartbeat(ctx context.Context, s *session, ev board.Event) {
	var user board.User
	if err := json.Unmarshal(ev.Payload, &user); err != nil {
		log.Warn().Err(err).Str("conn_id", s.id).Msg("malformed presence:heartbeat")
		return
	}
	if err := h.manager.Heartbeat(ctx, user); err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("presence heartbeat")
		return
	}
	s.user = &user
}

// handleLock arbitrates an edit lock request. The requester gets a
// point-to-point ok/denied answer; on success everyone else learns the
// new holder. A denial is a normal outcome, not an error.
func (h *Hub) handleLock(ctx context.Context, s *session, ev board.Event) {
	if s.user == nil {
		return
	}
	var req board.LockPayload
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		log.Warn().Err(err).Str("conn_id", s.id).Msg("malformed edit:lock")
		return
	}

	acquired, err := h.manager.Acquire(ctx, req.CardID, s.user.ID, s.user.Name)
	if err != nil {
		log.Error().Err(err).Str("card_id", req.CardID).Msg("acquire lock")
		return
	}

	if !acquired {
		h.sendTo(s, board.EventEditLockDenied, board.LockPayload{CardID: req.CardID})
		return
	}

	h.sendTo(s, board.EventEditLockOK, board.LockPayload{CardID: req.CardID})
	h.publish(ctx, s.id, board.EventEditLock, board.LockPayload{
		CardID:   req.CardID,
		UserID:   s.user.ID,
		UserName: s.user.Name,
	})
}

func (h *Hub) handleUnlock(ctx context.Context, s *session, ev board.Event) {
	if s.user == nil {
		return
	}
	var req board.LockPayload
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		log.Warn().Err(err).Str("conn_id", s.id).Msg("malformed edit:unlock")
		return
	}
	if err := h.manager.Release(ctx, req.CardID, s.user.ID); err != nil {
		log.Error().Err(err).Str("card_id", req.CardID).Msg("release lock")
		return
	}
	h.publish(ctx, s.id, board.EventEditUnlock, board.LockPayload{
		CardID: req.CardID,
		UserID: s.user.ID,
	})
}

// publish builds an event and hands it to the broadcaster.
func (h *Hub) publish(ctx context.Context, origin, kind string, payload any) {
	ev, err := board.NewEvent(kind, payload)
	if err != nil {
		log.Error().Err(err).Str("type", kind).Msg("encode event")
		return
	}
	if err := h.broadcaster.Publish(ctx, Envelope{Origin: origin, Event: ev}); err != nil {
		log.Error().Err(err).Str("type", kind).Msg("publish event")
	}
}

// sendTo delivers an event to one session only, bypassing fanout. Used
// for the lock request acknowledgments.
func (h *Hub) sendTo(s *session, kind string, payload any) {
	ev, err := board.NewEvent(kind, payload)
	if err != nil {
		log.Error().Err(err).Str("type", kind).Msg("encode event")
		return
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", kind).Msg("encode event")
		return
	}
	s.enqueue(raw)
}

// Deliver pushes a received envelope to every locally-connected
// client. Board mutations reach every connection including the
// originator; presence and lock notifications skip the originating
// connection, which already received its direct acknowledgment.
func (h *Hub) Deliver(env Envelope) {
	raw, err := json.Marshal(env.Event)
	if err != nil {
		log.Error().Err(err).Str("type", env.Event.Type).Msg("encode delivery")
		return
	}

	skipOrigin := excludesOrigin(env.Event.Type)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.sessions {
		if skipOrigin && s.id == env.Origin && env.Origin != "" {
			continue
		}
		s.enqueue(raw)
	}
}

// excludesOrigin reports whether deliveries of this kind skip the
// originating connection.
func excludesOrigin(kind string) bool {
	switch kind {
	case board.EventPresenceJoin, board.EventPresenceLeave, board.EventEditLock, board.EventEditUnlock:
		return true
	}
	return false
}
