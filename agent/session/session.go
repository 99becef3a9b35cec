package session

import (
	"time"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

// Session is the ordered message history of one conversation. Messages are
// append-only, most recent last. A Session is owned by a single request or
// REPL loop and is not safe for concurrent use.
type Session struct {
	id        string
	messages  []contractx.Message
	updatedAt time.Time
}

func New(id string) *Session {
	return &Session{id: id}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Append(msg contractx.Message) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages = append(s.messages, msg)
	s.updatedAt = msg.CreatedAt
}

// Messages returns a copy of the full history.
func (s *Session) Messages() []contractx.Message {
	out := make([]contractx.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Window returns a copy of the last n messages. n <= 0 returns everything.
func (s *Session) Window(n int) []contractx.Message {
	if n <= 0 || n >= len(s.messages) {
		return s.Messages()
	}
	out := make([]contractx.Message, n)
	copy(out, s.messages[len(s.messages)-n:])
	return out
}

func (s *Session) Len() int {
	return len(s.messages)
}

func (s *Session) UpdatedAt() time.Time {
	return s.updatedAt
}

// snapshot is the persisted form of a Session.
type snapshot struct {
	SessionID string              `json:"session_id"`
	Messages  []contractx.Message `json:"messages"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (s *Session) snapshot() snapshot {
	return snapshot{SessionID: s.id, Messages: s.Messages(), UpdatedAt: s.updatedAt}
}

func fromSnapshot(snap snapshot) *Session {
	return &Session{id: snap.SessionID, messages: snap.Messages, updatedAt: snap.UpdatedAt}
}
