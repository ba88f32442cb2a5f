package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Ankur3509/GestureLab/internal/detector"
	"github.com/Ankur3509/GestureLab/internal/relay"
	"github.com/Ankur3509/GestureLab/internal/store"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event names on the socket.
const (
	EventSession = "session"
	EventFrame   = "frame"
)

// Socket tuning.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 20 // base64 frames
	sendBuffer     = 32
)

// ErrHubClosed is returned by Emit after Close.
var ErrHubClosed = errors.New("hub closed")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 64 << 10,
	CheckOrigin: func(r *http.Request) bool {
		return true // any visualization client may connect
	},
}

// Envelope is the framing of every socket message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// SessionInfo is the payload of the session event sent on connect.
type SessionInfo struct {
	SID string `json:"sid"`
}

// FrameHandler processes inbound client frames.
type FrameHandler interface {
	HandleFrame(req relay.FrameRequest) (*relay.FrameResult, error)
}

// Journal records session lifecycles.
type Journal interface {
	Open(sess *store.Session) error
	Close(id string, c store.SessionCounters) error
}

type session struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	received atomic.Int64
	dropped  atomic.Int64
	sent     atomic.Int64
}

// Hub tracks connected websocket sessions and broadcasts relay events to
// them. It is a relay.Sink.
type Hub struct {
	frames  FrameHandler
	journal Journal

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
	onCount  func(n int)
}

// NewHub creates a hub. frames and journal may be nil.
func NewHub(frames FrameHandler, journal Journal) *Hub {
	return &Hub{
		frames:   frames,
		journal:  journal,
		sessions: make(map[string]*session),
	}
}

// OnCountChange registers a callback run after every connect and disconnect.
func (h *Hub) OnCountChange(fn func(n int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onCount = fn
}

// Count returns the number of connected sessions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Active reports whether any client is connected.
func (h *Hub) Active() bool {
	return h.Count() > 0
}

// SessionIDs returns the ids of connected sessions.
func (h *Hub) SessionIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	return ids
}

func encode(event string, payload any) ([]byte, error) {
	return sonic.Marshal(outbound{Event: event, Data: payload})
}

// Emit broadcasts an event to every session. The message is encoded once;
// sessions whose queue is full miss it.
func (h *Hub) Emit(event string, payload any) error {
	msg, err := encode(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrHubClosed
	}
	for _, s := range h.sessions {
		s.enqueue(msg)
	}
	return nil
}

// Close disconnects every session and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.conn.Close()
	}
}

func (s *session) enqueue(msg []byte) {
	select {
	case s.send <- msg:
	default:
		s.dropped.Add(1)
	}
}

func (h *Hub) reply(s *session, event string, payload any) {
	msg, err := encode(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode reply")
		return
	}
	s.enqueue(msg)
}

// ServeHTTP upgrades the request and runs the session until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	s := &session{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	if !h.register(s, r) {
		conn.Close()
		return
	}
	defer h.unregister(s)

	go s.writePump()
	h.reply(s, EventSession, SessionInfo{SID: s.id})

	h.readPump(s)
}

// register adds s to the hub. It refuses the session once Close has run, since
// Close only disconnects the sessions it saw.
func (h *Hub) register(s *session, r *http.Request) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.sessions[s.id] = s
	n := len(h.sessions)
	cb := h.onCount
	h.mu.Unlock()

	log.Info().Str("sid", s.id).Str("remote", r.RemoteAddr).Int("clients", n).Msg("client connected")

	if h.journal != nil {
		err := h.journal.Open(&store.Session{ID: s.id, RemoteAddr: r.RemoteAddr, UserAgent: r.UserAgent()})
		if err != nil {
			log.Warn().Err(err).Str("sid", s.id).Msg("journal open failed")
		}
	}
	if cb != nil {
		cb(n)
	}
	return true
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	n := len(h.sessions)
	cb := h.onCount
	h.mu.Unlock()

	close(s.done)
	s.conn.Close()

	log.Info().Str("sid", s.id).Int("clients", n).Msg("client disconnected")

	if h.journal != nil {
		err := h.journal.Close(s.id, store.SessionCounters{
			FramesReceived: s.received.Load(),
			FramesDropped:  s.dropped.Load(),
			MessagesSent:   s.sent.Load(),
		})
		if err != nil {
			log.Warn().Err(err).Str("sid", s.id).Msg("journal close failed")
		}
	}
	if cb != nil {
		cb(n)
	}
}

// readPump handles inbound events one at a time.
func (h *Hub) readPump(s *session) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("sid", s.id).Msg("read error")
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleMessage(s, data)
	}
}

func (h *Hub) handleMessage(s *session, data []byte) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("sid", s.id).Msg("malformed message dropped")
		return
	}

	switch env.Event {
	case EventFrame:
		h.handleFrame(s, env.Data)
	default:
		log.Debug().Str("sid", s.id).Str("event", env.Event).Msg("ignoring event")
	}
}

func (h *Hub) handleFrame(s *session, data json.RawMessage) {
	s.received.Add(1)
	if h.frames == nil {
		return
	}

	var req relay.FrameRequest
	if err := sonic.Unmarshal(data, &req); err != nil {
		log.Warn().Err(err).Str("sid", s.id).Msg("malformed frame dropped")
		return
	}

	res, err := h.frames.HandleFrame(req)
	if errors.Is(err, relay.ErrPaused) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("sid", s.id).Msg("frame dropped")
		return
	}

	h.reply(s, relay.EventHandUpdate, detector.Payload(res.Hands))
	if req.Preview && res.Preview != "" {
		h.reply(s, relay.EventCameraFrame, relay.CameraFrame{Frame: res.Preview})
	}
}

// writePump owns all writes on the connection.
func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.conn.Close()
				return
			}
			s.sent.Add(1)
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		}
	}
}
