package realtime

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/octave-im/octave-api/internal/observability"
)

const gatewayPingInterval = 30 * time.Second

// ConnectionOptions carries metadata extracted during the HTTP upgrade.
type ConnectionOptions struct {
	UserID        string
	CorrelationID string
	Context       context.Context
}

// Gateway serves authenticated websocket connections: it registers each
// session with the synchronizer, drains outbound events to the socket and
// tears the session down when either pump stops.
type Gateway struct {
	synchronizer *Synchronizer
	logger       zerolog.Logger
}

// NewGateway creates the websocket gateway.
func NewGateway(synchronizer *Synchronizer, logger zerolog.Logger) *Gateway {
	return &Gateway{
		synchronizer: synchronizer,
		logger:       logger.With().Str("component", "gateway").Logger(),
	}
}

// ServeConnection runs the session until the socket closes. It blocks, which
// is what the fiber websocket handler expects.
func (g *Gateway) ServeConnection(conn *websocket.Conn, opts ConnectionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	session := NewSession(opts.UserID)
	if err := g.synchronizer.Connect(baseCtx, session); err != nil {
		g.logger.Error().Err(err).Str("user_id", opts.UserID).Msg("failed to resolve rooms for connection")
		_ = conn.WriteJSON(Event{Name: "error", Data: map[string]string{"error": "InternalError"}})
		_ = conn.Close()
		return
	}

	observability.GatewayConnectionsTotal().Inc()
	observability.GatewayConnectedSessions().Inc()
	defer observability.GatewayConnectedSessions().Dec()

	go g.writer(conn, session)
	g.reader(conn, session)
}

// reader drains inbound frames. The gateway protocol is push-only after the
// handshake, so inbound payloads are ignored; the loop exists to detect
// disconnects and answer control frames.
func (g *Gateway) reader(conn *websocket.Conn, session *Session) {
	defer g.close(conn, session)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			g.logger.Debug().Err(err).Str("user_id", session.UserID).Msg("gateway read loop ended")
			return
		}
	}
}

func (g *Gateway) writer(conn *websocket.Conn, session *Session) {
	defer g.close(conn, session)

	for {
		select {
		case event := <-session.Send():
			if err := conn.WriteJSON(event); err != nil {
				g.logger.Debug().Err(err).Str("user_id", session.UserID).Msg("gateway write loop terminated")
				return
			}
		case <-time.After(gatewayPingInterval):
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				g.logger.Debug().Err(err).Str("user_id", session.UserID).Msg("gateway ping failed")
				return
			}
		case <-session.Closed():
			return
		}
	}
}

func (g *Gateway) close(conn *websocket.Conn, session *Session) {
	session.Close()
	g.synchronizer.Disconnect(session)
	_ = conn.Close()
}
