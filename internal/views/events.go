package views

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/review"
	"github.com/JaimeStill/creditdesk/pkg/handlers"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

// Client message types.
const (
	MessageKey     = "key"
	MessageRefresh = "refresh"
)

// Server message types.
const (
	MessageState = "state"
	MessageError = "error"
)

// ClientMessage is a command sent over the events socket.
type ClientMessage struct {
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
}

// ServerMessage is pushed to the events socket.
type ServerMessage struct {
	Type  string        `json:"type"`
	State *review.State `json:"state,omitempty"`
	Error string        `json:"error,omitempty"`
}

type switchRequest struct {
	view *View
	ack  chan struct{}
}

type stream struct {
	h          *Handler
	conn       *websocket.Conn
	out        chan ServerMessage
	switchTo   chan switchRequest
	done       chan struct{}
	writerDone chan struct{}
}

// Events upgrades to a websocket that pushes the view state after every
// change. Arrow keys navigate and a refresh message refetches. The view is
// unmounted when the socket closes.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	v, err := h.registry.Get(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "view", v.ID, "error", err)
		return
	}
	defer conn.Close()

	// The request context ends on server shutdown; tell the console before
	// dropping the socket.
	stop := context.AfterFunc(r.Context(), func() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		conn.Close()
	})
	defer stop()

	h.registry.attach(v)

	s := &stream{
		h:          h,
		conn:       conn,
		out:        make(chan ServerMessage, 8),
		switchTo:   make(chan switchRequest),
		done:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}

	go s.write(v)
	current := s.read(r.Context(), v)

	close(s.done)
	<-s.writerDone

	h.registry.detach(current)
	if err := h.registry.Unmount(current.ID); err == nil {
		h.logger.Info("view unmounted on socket close", "view", current.ID)
	}
}

// read handles client messages until the socket fails and returns the view
// the socket ended on.
func (s *stream) read(ctx context.Context, v *View) *View {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	current := v
	for {
		var msg ClientMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.h.logger.Debug("websocket read failed", "view", current.ID, "error", err)
			}
			return current
		}

		current.touch(s.h.registry.clock.Now())

		switch msg.Type {
		case MessageKey:
			dir, ok := applications.DirectionForKey(msg.Key)
			if !ok {
				continue
			}
			next, err := s.navigate(ctx, current, dir)
			if err != nil {
				s.fail(err)
				continue
			}
			if next != nil {
				current = next
			}
		case MessageRefresh:
			if err := current.Session.Refresh(ctx); err != nil {
				s.fail(err)
			}
		default:
			s.fail(fmt.Errorf("unsupported message type %q", msg.Type))
		}
	}
}

// navigate mounts the neighbour, moves the writer onto it, and only then
// closes the old view so the writer never mistakes the switch for a close.
func (s *stream) navigate(ctx context.Context, v *View, dir applications.Direction) (*View, error) {
	id, ok, err := v.Session.Navigate(ctx, dir)
	if err != nil || !ok {
		return nil, err
	}

	nv, err := s.h.registry.Mount(ctx, id, v.Session.Reviewer())
	if err != nil {
		return nil, err
	}
	s.h.registry.attach(nv)

	req := switchRequest{view: nv, ack: make(chan struct{})}
	select {
	case s.switchTo <- req:
		<-req.ack
	case <-s.writerDone:
	}

	s.h.registry.detach(v)
	s.h.registry.Unmount(v.ID)
	return nv, nil
}

func (s *stream) fail(err error) {
	select {
	case s.out <- ServerMessage{Type: MessageError, Error: err.Error()}:
	case <-s.writerDone:
	}
}

// write owns every write to the connection.
func (s *stream) write(v *View) {
	defer close(s.writerDone)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	sub, unsub := v.Session.Subscribe()
	defer func() { unsub() }()

	if !s.send(stateMessage(v.Session.State())) {
		return
	}

	for {
		select {
		case st, ok := <-sub:
			if !ok {
				s.close(websocket.CloseNormalClosure, "view closed")
				return
			}
			if !s.send(stateMessage(st)) {
				return
			}
		case req := <-s.switchTo:
			unsub()
			sub, unsub = req.view.Session.Subscribe()
			close(req.ack)
			if !s.send(stateMessage(req.view.Session.State())) {
				return
			}
		case msg := <-s.out:
			if !s.send(msg) {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		case <-s.done:
			s.close(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (s *stream) send(msg ServerMessage) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(msg); err != nil {
		s.conn.Close()
		return false
	}
	return true
}

// close sends a close frame and closes the connection, which also ends the
// reader.
func (s *stream) close(code int, text string) {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
	s.conn.Close()
}

func stateMessage(st review.State) ServerMessage {
	return ServerMessage{Type: MessageState, State: &st}
}

func checkOrigin(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	if slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(origins, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
