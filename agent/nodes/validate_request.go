package assistantnode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
	sessionx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/session"
)

var ErrNilSession = errors.New("conversation session is nil")

type GraphInput struct {
	Session *sessionx.Session
	Query   string
}

type GraphOutput struct {
	Reply    string
	Decision contractx.RoutingDecision
	Tool     string
}

type GraphState struct {
	Session *sessionx.Session
	Query   string
	Now     time.Time

	// History is the window of messages that preceded Query.
	History  []contractx.Message
	Decision contractx.RoutingDecision
	Tool     string
	Reply    string
}

// ValidateRequest trims the query and snapshots the prior history window.
// A negative window hides history from the classifier. An empty query is
// allowed through; classification routes it to the fallback tool. The session
// is not touched until FinalizeReply.
func ValidateRequest(in GraphInput, historyWindow int, nowFn func() time.Time) (*GraphState, error) {
	if in.Session == nil {
		return nil, ErrNilSession
	}

	now := nowFn().UTC()
	query := strings.TrimSpace(in.Query)
	var history []contractx.Message
	if historyWindow >= 0 {
		history = in.Session.Window(historyWindow)
	}

	return &GraphState{
		Session: in.Session,
		Query:   query,
		Now:     now,
		History: history,
	}, nil
}
