// Package live pushes review activity for a book to websocket viewers.
// Each isbn is a room; new viewers get the room's recent reviews first.
package live

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistorySize = 50
	sendBuffer         = 32
	writeWait          = 5 * time.Second

	EventReviewCreated = "review.created"
	EventViewerJoin    = "viewer.join"
	EventViewerLeave   = "viewer.leave"
)

type Event struct {
	Type    string    `json:"type"`
	ISBN    string    `json:"isbn"`
	User    string    `json:"user"`
	Rating  int       `json:"rating,omitempty"`
	Comment string    `json:"comment,omitempty"`
	Date    string    `json:"date,omitempty"`
	At      time.Time `json:"at"`
}

// viewer owns its connection's writes; the hub only ever enqueues.
type viewer struct {
	ws   *websocket.Conn
	user string
	send chan []byte
}

type room struct {
	viewers map[*websocket.Conn]*viewer
	history []Event
}

type Hub struct {
	mu          sync.Mutex
	rooms       map[string]*room
	historySize int
	logger      logrus.FieldLogger
}

func NewHub(historySize int, logger logrus.FieldLogger) *Hub {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		rooms:       make(map[string]*room),
		historySize: historySize,
		logger:      logger,
	}
}

// Join registers ws in the isbn room and queues the room's history ahead
// of any live event. Writes happen on a goroutine per viewer, so a slow
// client never holds the hub lock.
func (h *Hub) Join(isbn string, ws *websocket.Conn, user string) error {
	h.mu.Lock()
	r := h.roomLocked(isbn)
	v := &viewer{ws: ws, user: user, send: make(chan []byte, h.historySize+sendBuffer)}
	for _, ev := range r.history {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.mu.Unlock()
			return err
		}
		v.send <- payload
	}
	r.viewers[ws] = v
	h.mu.Unlock()

	go h.writePump(isbn, v)

	h.broadcast(Event{Type: EventViewerJoin, ISBN: isbn, User: user})
	return nil
}

func (h *Hub) Leave(isbn string, ws *websocket.Conn) {
	var user string
	h.mu.Lock()
	if r, ok := h.rooms[isbn]; ok {
		if v, ok := r.viewers[ws]; ok {
			user = v.user
			h.dropLocked(r, v)
		}
	}
	h.mu.Unlock()

	_ = ws.Close()

	if user != "" {
		h.broadcast(Event{Type: EventViewerLeave, ISBN: isbn, User: user})
	}
}

// Publish records a review event in its room's history and fans it out.
func (h *Hub) Publish(ev Event) {
	if ev.Type == "" {
		ev.Type = EventReviewCreated
	}
	h.broadcast(ev)
}

func (h *Hub) broadcast(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.WithError(err).Warn("marshal live event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.roomLocked(ev.ISBN)
	if ev.Type == EventReviewCreated {
		r.history = append(r.history, ev)
		if len(r.history) > h.historySize {
			r.history = r.history[len(r.history)-h.historySize:]
		}
	}

	for _, v := range r.viewers {
		select {
		case v.send <- payload:
		default:
			h.logger.WithFields(logrus.Fields{"isbn": ev.ISBN, "user": v.user}).Debug("dropping slow live viewer")
			h.dropLocked(r, v)
		}
	}
}

func (h *Hub) writePump(isbn string, v *viewer) {
	for payload := range v.send {
		_ = v.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := v.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.WithError(err).WithField("isbn", isbn).Debug("live write failed")
			_ = v.ws.Close()
			h.Leave(isbn, v.ws)
			for range v.send {
			}
			return
		}
	}
	_ = v.ws.Close()
}

// dropLocked removes v and ends its writer; the reader then sees the close.
func (h *Hub) dropLocked(r *room, v *viewer) {
	if _, ok := r.viewers[v.ws]; !ok {
		return
	}
	delete(r.viewers, v.ws)
	close(v.send)
}

func (h *Hub) History(isbn string) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[isbn]; ok {
		return append([]Event(nil), r.history...)
	}
	return nil
}

func (h *Hub) Viewers(isbn string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[isbn]; ok {
		return len(r.viewers)
	}
	return 0
}

func (h *Hub) roomLocked(isbn string) *room {
	r, ok := h.rooms[isbn]
	if !ok {
		r = &room{viewers: make(map[*websocket.Conn]*viewer)}
		h.rooms[isbn] = r
	}
	return r
}
