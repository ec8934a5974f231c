package viz

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// subscriberBuffer bounds the per-client frame queue. Slow clients
// lose frames rather than stalling the simulation.
const subscriberBuffer = 64

// #region frame

// Frame is one tick of agent state as streamed to viewers.
type Frame struct {
	RunID   string  `json:"run_id"`
	Episode int     `json:"episode"`
	Tick    int     `json:"tick"`
	Phase   string  `json:"phase"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Speed   float64 `json:"speed"`
	Reward  float64 `json:"reward"`
	Epsilon float64 `json:"epsilon"`
}

// #endregion frame

// #region server

type subscriber struct {
	frames chan Frame
}

// Server fans simulation frames out to websocket viewers. Publish
// never blocks the simulation loop.
type Server struct {
	mu       sync.Mutex
	subs     map[*subscriber]struct{}
	upgrader websocket.Upgrader
}

// NewServer creates a server with no subscribers.
func NewServer() *Server {
	return &Server{
		subs: make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router exposes the HTTP surface: a status endpoint and the frame
// stream.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", s.handleStatus).Methods("GET")
	router.HandleFunc("/ws", s.handleWS).Methods("GET")
	return router
}

// ListenAndServe blocks serving the viz surface on addr.
func (s *Server) ListenAndServe(addr string) error {
	log.Printf("[VIZ] listening on %s", addr)
	return http.ListenAndServe(addr, s.Router())
}

// Publish offers a frame to every subscriber. Full queues drop the
// frame for that subscriber.
func (s *Server) Publish(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		select {
		case sub.frames <- f:
		default:
		}
	}
}

// Subscribers reports the current viewer count.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"viewers": s.Subscribers(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[VIZ] upgrade: %v", err)
		return
	}

	sub := &subscriber{frames: make(chan Frame, subscriberBuffer)}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	closed := make(chan struct{})
	// reads are discarded; the loop exists to notice the client hanging up
	go func(c *websocket.Conn) {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}(conn)

	defer func() {
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
		conn.Close()
	}()

	for {
		select {
		case <-closed:
			return
		case f := <-sub.frames:
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
	}
}

// #endregion server
