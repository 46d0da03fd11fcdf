package hub

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"github.com/boardsync/boardsync/internal/board"
)

// session is one client connection: a registered outbound queue
// drained by a single writer goroutine, plus the identity learned from
// presence:join. All outbound traffic goes through enqueue so a slow
// reader can never block fanout for the rest of the hub.
type session struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	user *board.User // nil until presence:join
}

// enqueue queues an outbound frame. Frames to a client whose buffer is
// full are dropped; the client reconciles from the next board:init on
// reconnect.
func (s *session) enqueue(payload []byte) {
	select {
	case s.send <- payload:
	default:
		log.Warn().Str("conn_id", s.id).Msg("outbound buffer full, dropping frame")
	}
}

// writeLoop drains the outbound queue and keeps the connection alive
// with periodic pings. Returns when ctx ends or a write fails.
func (s *session) writeLoop(ctx context.Context, pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-s.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("conn_id", s.id).Msg("websocket write")
				return
			}
		case <-ticker.C:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Ping(wctx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("conn_id", s.id).Msg("websocket ping")
				return
			}
		}
	}
}
