package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/commercebatola-sys/Outil1/internal/analysis"
	"github.com/commercebatola-sys/Outil1/internal/session"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsAsk        = "ask"
	wsProcessing = "processing"
	wsAnswer     = "answer"
	wsError      = "error"
	wsPing       = "ping"
	wsPong       = "pong"

	wsReadLimit = 64 << 10
	wsIdle      = 10 * time.Minute
)

type wsMessage struct {
	Type     string        `json:"type"`
	Question string        `json:"question,omitempty"`
	Turn     *session.Turn `json:"turn,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// handleChatWS answers questions over a websocket. Each "ask" is answered in
// order; the client sees "processing" before the answer or error.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if _, err := s.svc.Session(id); err != nil {
		writeServiceErr(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws.upgrade.failed", zap.String("session_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsIdle))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsIdle))
	})
	log := s.log.With(zap.String("session_id", id), zap.String("req_id", middleware.GetReqID(r.Context())))
	log.Info("ws.opened")

	ctx := r.Context()
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("ws.read.failed", zap.Error(err))
			}
			log.Info("ws.closed")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsIdle))

		var reply wsMessage
		switch msg.Type {
		case wsPing:
			reply = wsMessage{Type: wsPong}
		case wsAsk:
			if err := conn.WriteJSON(wsMessage{Type: wsProcessing, Question: msg.Question}); err != nil {
				log.Warn("ws.write.failed", zap.Error(err))
				return
			}
			turn, err := s.svc.Ask(ctx, id, msg.Question)
			if err != nil {
				reply = wsMessage{Type: wsError, Message: userMessage(err)}
			} else {
				reply = wsMessage{Type: wsAnswer, Turn: &turn}
			}
		default:
			reply = wsMessage{Type: wsError, Message: "type de message inconnu : " + strings.TrimSpace(msg.Type)}
		}
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn("ws.write.failed", zap.Error(err))
			return
		}
	}
}

func userMessage(err error) string {
	var ae *analysis.Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return toAPIError(statusFor(err), err).Message
}
