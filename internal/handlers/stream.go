package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/middleware"
	"github.com/StefanRadev91/TSPlaywrightSite/internal/session"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type streamMessage struct {
	Type  string        `json:"type"`
	Phase session.Phase `json:"phase"`
	State session.State `json:"state"`
}

// StreamServer pushes every state change of a client's Session Store over a WebSocket.
type StreamServer struct {
	registry *session.Registry
	upgrader websocket.Upgrader
}

func NewStreamServer(registry *session.Registry, allowOrigins []string) *StreamServer {
	allowed := make(map[string]bool, len(allowOrigins))
	allowAll := len(allowOrigins) == 0
	for _, o := range allowOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return &StreamServer{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowAll || origin == "" || allowed[origin]
			},
		},
	}
}

func (s *StreamServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/session", s.HandleSession)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// HandleSession streams the Store of the client named by the sid cookie. The
// client must have made an API call first so the Store exists.
func (s *StreamServer) HandleSession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.ClientCookie)
	if err != nil || cookie.Value == "" {
		http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
		return
	}
	store, ok := s.registry.Lookup(cookie.Value)
	if !ok {
		http.Error(w, `{"error":"Session not found"}`, http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade stream connection: %v", err)
		return
	}

	streamClients.Inc()
	defer streamClients.Dec()

	// Snapshots are complete, so only the newest one waiting matters.
	latest := make(chan session.State, 1)
	unsubscribe := store.Subscribe(func(st session.State) {
		select {
		case latest <- st:
		default:
			select {
			case <-latest:
			default:
			}
			select {
			case latest <- st:
			default:
			}
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go readPump(conn, done)
	// Keep the Store alive while the stream is open.
	touch := func() { s.registry.Lookup(cookie.Value) }
	writePump(conn, latest, done, touch)
}

// readPump discards client frames and reports when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, latest <-chan session.State, done <-chan struct{}, touch func()) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case st := <-latest:
			body, err := json.Marshal(streamMessage{Type: "state", Phase: st.Phase(), State: st})
			if err != nil {
				log.Printf("Failed to marshal state: %v", err)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			touch()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
