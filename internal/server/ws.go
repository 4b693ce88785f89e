package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/kumar-shivang/work-tracker/internal/assistant"
)

// clientFrame is what a connected chat client sends.
type clientFrame struct {
	Type     string `json:"type"` // message, command, confirm, cancel
	Text     string `json:"text,omitempty"`
	TicketID string `json:"ticket_id,omitempty"`
}

// serverFrame is what the server sends back, including pushed notifications.
type serverFrame struct {
	Type      string `json:"type"` // reply, notice, error
	Text      string `json:"text"`
	PendingID string `json:"pending_id,omitempty"`
}

// chatHub tracks live chat connections by session so scheduled jobs can push
// notifications to them.
type chatHub struct {
	mu       sync.Mutex
	sessions map[string]chan serverFrame
}

func newChatHub() *chatHub {
	return &chatHub{sessions: make(map[string]chan serverFrame)}
}

// attach registers a session's outbound channel, replacing any previous
// connection for the same session.
func (h *chatHub) attach(sessionID string) chan serverFrame {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.sessions[sessionID]; ok {
		close(old)
	}
	ch := make(chan serverFrame, 16)
	h.sessions[sessionID] = ch
	return ch
}

func (h *chatHub) detach(sessionID string, ch chan serverFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == ch {
		delete(h.sessions, sessionID)
		close(ch)
	}
}

// Notify pushes a notice to one session. Returns false when the session has
// no live connection or its buffer is full.
func (h *chatHub) Notify(sessionID, text string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.sessions[sessionID]
	if !ok {
		return false
	}
	select {
	case ch <- serverFrame{Type: "notice", Text: text}:
		return true
	default:
		return false
	}
}

// Broadcast pushes a notice to every live session.
func (h *chatHub) Broadcast(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.sessions {
		select {
		case ch <- serverFrame{Type: "notice", Text: text}:
		default:
		}
	}
}

// handleWS upgrades the connection and runs the chat loop for one session.
// The session id comes from the query string; the assistant enforces the
// allow-list.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, `{"error":"session query parameter required"}`, http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Printf("server: websocket accept failed: %v", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	ctx := r.Context()
	outbound := s.hub.attach(sessionID)
	defer s.hub.detach(sessionID, outbound)

	// Writer: drains pushed notifications alongside direct replies.
	go func() {
		for frame := range outbound {
			if err := writeFrame(ctx, conn, frame); err != nil {
				return
			}
		}
	}()

	for {
		var frame clientFrame
		if err := readFrame(ctx, conn, &frame); err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			log.Printf("server: websocket read failed: %v", err)
			return
		}

		reply, err := s.dispatch(ctx, sessionID, frame)
		if err != nil {
			if errors.Is(err, assistant.ErrSessionNotAllowed) {
				conn.Close(websocket.StatusPolicyViolation, "session not allowed")
				return
			}
			log.Printf("server: dispatch failed for session %s: %v", sessionID, err)
			reply = assistant.Reply{Text: "Something went wrong handling that, please try again."}
		}

		select {
		case outbound <- serverFrame{Type: "reply", Text: reply.Text, PendingID: reply.PendingID}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sessionID string, frame clientFrame) (assistant.Reply, error) {
	switch frame.Type {
	case "message":
		return s.assistant.HandleMessage(ctx, sessionID, frame.Text)
	case "command":
		return s.assistant.HandleCommand(ctx, sessionID, frame.Text)
	case "confirm", "cancel":
		return s.assistant.HandleCallback(ctx, sessionID, frame.Type, frame.TicketID)
	default:
		return assistant.Reply{Text: "Unknown message type."}, nil
	}
}

func readFrame(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeFrame(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
