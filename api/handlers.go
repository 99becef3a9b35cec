package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	"github.com/tanpawarit/Chative-Apple-Support-Agent/agent/observe"
	sessionx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/session"
)

const (
	agentErrorPrefix = "Agent error: "
	reasonInternal   = "internal error"
	maxBodyBytes     = 1 << 20
)

type QueryRequest struct {
	Query     *string `json:"query"`
	SessionID string  `json:"session_id,omitempty"`
}

type QueryResponse struct {
	AgentResponse string `json:"agent_response"`
	SessionID     string `json:"session_id,omitempty"`
}

type ItemResponse struct {
	ItemID int     `json:"item_id"`
	Q      *string `json:"q"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"Hello": "World"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeDetail(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	if req.Query == nil {
		s.writeDetail(w, http.StatusUnprocessableEntity, "field required: query")
		return
	}

	ctx := r.Context()
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID != "" {
		ctx = observe.WithSessionID(ctx, sessionID)
	}

	sess, err := s.loadSession(ctx, sessionID)
	if err != nil {
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("load session")
		s.writeDetail(w, http.StatusInternalServerError, agentErrorPrefix+"session unavailable")
		return
	}

	ans, err := s.asker.Ask(ctx, sess, *req.Query)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("request_id", middleware.GetReqID(ctx)).
			Msg("agent error")
		s.writeDetail(w, http.StatusInternalServerError, agentErrorPrefix+publicReason(err))
		return
	}

	if s.persistent(sessionID) {
		if err := s.sessions.Save(ctx, sess); err != nil {
			// The answer is already computed; losing history is not worth a 500.
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("save session")
		}
	}

	s.writeJSON(w, http.StatusOK, QueryResponse{
		AgentResponse: ans.Reply,
		SessionID:     sessionID,
	})
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.Atoi(chi.URLParam(r, "item_id"))
	if err != nil {
		s.writeDetail(w, http.StatusUnprocessableEntity, "item_id must be an integer")
		return
	}

	resp := ItemResponse{ItemID: itemID}
	if values, ok := r.URL.Query()["q"]; ok && len(values) > 0 {
		q := values[0]
		resp.Q = &q
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) persistent(sessionID string) bool {
	return sessionID != "" && s.sessions != nil
}

func (s *Server) loadSession(ctx context.Context, sessionID string) (*sessionx.Session, error) {
	if !s.persistent(sessionID) {
		return sessionx.New(sessionID), nil
	}
	return sessionx.LoadOrNew(ctx, s.sessions, sessionID)
}

// publicReason keeps provider details out of the response body; the full
// error is logged.
func publicReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	case errors.Is(err, contractx.ErrModelInvoke):
		return "language model unavailable"
	case errors.Is(err, contractx.ErrSchemaViolation):
		return "invalid language model response"
	case errors.Is(err, contractx.ErrOracle):
		return "search service unavailable"
	case errors.Is(err, contractx.ErrValidation):
		return "invalid request"
	default:
		return reasonInternal
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn().Err(err).Msg("write response")
	}
}

func (s *Server) writeDetail(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, ErrorResponse{Detail: detail})
}
