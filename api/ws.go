package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/observe"
	sessionx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/session"
)

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	u := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	if len(allowedOrigins) == 0 {
		// nil CheckOrigin falls back to the same-host check.
		return u
	}

	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	u.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
	return u
}

// handleChatSocket serves a multi-turn chat over one websocket. Every text
// frame carries a QueryRequest; every reply is a QueryResponse or an
// ErrorResponse. All turns on a connection share one session.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ctx := observe.WithSessionID(r.Context(), sessionID)

	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("load session")
		_ = conn.WriteJSON(ErrorResponse{Detail: agentErrorPrefix + "session unavailable"})
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("websocket closed")
			}
			return
		}

		reply := s.answerFrame(ctx, sessionID, sess, msg)
		if err := conn.WriteJSON(reply); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("websocket write")
			return
		}
	}
}

func (s *Server) answerFrame(ctx context.Context, sessionID string, sess *sessionx.Session, msg []byte) any {
	var req QueryRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		return ErrorResponse{Detail: "invalid request body: " + err.Error()}
	}
	if req.Query == nil {
		return ErrorResponse{Detail: "field required: query"}
	}

	ans, err := s.asker.Ask(ctx, sess, *req.Query)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("agent error")
		return ErrorResponse{Detail: agentErrorPrefix + publicReason(err)}
	}

	if s.persistent(sessionID) {
		if err := s.sessions.Save(ctx, sess); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("save session")
		}
	}
	return QueryResponse{AgentResponse: ans.Reply, SessionID: sessionID}
}
