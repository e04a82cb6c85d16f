package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/serviceseeking/onboard/internal/domain"
	"github.com/serviceseeking/onboard/internal/flow"
)

const wsTurnTimeout = 90 * time.Second

type wsInbound struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type wsOutbound struct {
	Type         string              `json:"type"` // "reply" | "error"
	SessionID    string              `json:"session_id,omitempty"`
	Response     string              `json:"response,omitempty"`
	QuickReplies []domain.QuickReply `json:"quick_replies,omitempty"`
	CurrentStep  domain.Step         `json:"current_step,omitempty"`
	IsTerminal   bool                `json:"is_terminal,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// ServeChat runs the onboarding conversation over a websocket. The first
// frame without a session id creates the session; every later frame is one
// turn. Turns for the connection run sequentially, matching the per-session
// serialization the HTTP path gets from the session lock.
func (h *Handler) ServeChat(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("failed to accept websocket", "error", err)
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("websocket closed by client")
			} else {
				h.logger.Warn("websocket read error", "error", err)
			}
			return
		}

		var in wsInbound
		if err := json.Unmarshal(data, &in); err != nil {
			h.writeWS(ctx, ws, wsOutbound{Type: "error", Error: "invalid message"})
			continue
		}
		h.writeWS(ctx, ws, h.handleWSTurn(ctx, in))
	}
}

func (h *Handler) handleWSTurn(ctx context.Context, in wsInbound) wsOutbound {
	turnCtx, cancel := context.WithTimeout(ctx, wsTurnTimeout)
	defer cancel()

	var (
		sess    *domain.Session
		release func()
		reply   flow.Reply
	)
	if in.SessionID == "" {
		sess, release = h.sessions.Create()
		defer release()
		reply = h.orch.Start(turnCtx, sess)
	} else {
		var err error
		sess, release, err = h.sessions.Acquire(in.SessionID)
		if err != nil {
			return wsOutbound{Type: "error", SessionID: in.SessionID, Error: "session not found"}
		}
		defer release()
		if strings.TrimSpace(in.Message) == "" {
			return wsOutbound{Type: "error", SessionID: in.SessionID, Error: "message is required"}
		}
		if !h.limiter.Allow(sess.ID) {
			return wsOutbound{Type: "error", SessionID: sess.ID, Error: "too many messages, please slow down"}
		}
		reply = h.orch.Advance(turnCtx, sess, in.Message)
	}
	h.persistTurn(sess, in.Message, reply)

	return wsOutbound{
		Type:         "reply",
		SessionID:    sess.ID,
		Response:     reply.Text,
		QuickReplies: reply.QuickReplies,
		CurrentStep:  reply.Step,
		IsTerminal:   reply.Terminal,
	}
}

func (h *Handler) writeWS(ctx context.Context, ws *websocket.Conn, v wsOutbound) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode websocket frame", "error", err)
		return
	}
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		h.logger.Warn("websocket write error", "error", err)
	}
}
