package warroom

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/agrilog/warroom/internal/pkg/ctxlog"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	// Outbound writes must complete within this window or the session is
	// considered dead.
	writeTimeout = 10 * time.Second

	// Liveness: the client must answer a ping within pongTimeout.
	pingInterval = 30 * time.Second
	pongTimeout  = 60 * time.Second

	maxMessageSize = 4 * 1024
)

// HandlerConfig configures the live channel endpoint.
type HandlerConfig struct {
	// Room sessions are allowed to join. Join requests for other rooms
	// are rejected.
	Room string

	// SessionBuffer bounds each session's outbound queue.
	SessionBuffer int

	// AllowedOrigins for the WebSocket upgrade; "*" allows any.
	AllowedOrigins []string
}

// Handler upgrades dashboard connections and runs the session protocol:
// the client sends a join action, the server acks with a joined event,
// and from then on the dispatcher pushes named events to the session.
type Handler struct {
	config   HandlerConfig
	registry *Registry
	upgrader websocket.Upgrader
}

// NewHandler creates the live channel handler.
func NewHandler(config HandlerConfig, registry *Registry) *Handler {
	if config.SessionBuffer <= 0 {
		config.SessionBuffer = DefaultSessionBuffer
	}

	allowed := make(map[string]bool, len(config.AllowedOrigins))
	for _, o := range config.AllowedOrigins {
		allowed[o] = true
	}

	return &Handler{
		config:   config,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowed["*"] {
					return true
				}
				return allowed[r.Header.Get("Origin")]
			},
		},
	}
}

// RegisterRoutes registers the live channel endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/war-room", h.Serve)
}

// clientMessage is what a connected dashboard may send.
type clientMessage struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

// serverFrame mirrors the broadcast envelope for server-initiated frames.
type serverFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Serve handles GET /war-room: upgrade, then pump until disconnect.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	session := NewSession(h.config.SessionBuffer)
	recordSessionConnected()
	logger.Info("session connected", "session_id", session.ID())

	go h.writePump(conn, session)
	h.readPump(conn, session)

	// readPump returned: the connection is gone.
	h.registry.Disconnect(session)
	_ = conn.Close()
	recordSessionDisconnected()
	logger.Info("session disconnected", "session_id", session.ID())
}

// readPump consumes client messages until the connection drops. Joining
// is the only action; everything else is ignored. No push traffic is
// delivered before the session joins its room.
func (h *Handler) readPump(conn *websocket.Conn, session *Session) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		if msg.Action == "join" && msg.Room == h.config.Room {
			h.registry.Join(session, msg.Room)
			h.sendFrame(session, serverFrame{
				Event: "joined",
				Data:  map[string]string{"room": msg.Room},
			})
		}
	}
}

// writePump drains the session queue onto the wire, interleaved with
// liveness pings. Exits when the session closes or a write fails.
func (h *Handler) writePump(conn *websocket.Conn, session *Session) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-session.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		case <-session.Done():
			return
		}
	}
}

func (h *Handler) sendFrame(session *Session, frame serverFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	session.TrySend(payload)
}
