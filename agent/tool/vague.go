package tool

import (
	"context"
	"strings"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

const DefaultDeclineMessage = "I'm sorry, I can only help with questions about Apple products and Apple support."

type vagueTool struct {
	name    string
	desc    string
	message string
}

// NewVague returns the fallback tool. It answers every query with the same
// decline message and never fails.
func NewVague(message string) contractx.Tool {
	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultDeclineMessage
	}
	return &vagueTool{
		name:    NameVague,
		desc:    "Use for questions that are vague, off-topic, or about non-Apple brands and products.",
		message: message,
	}
}

func (t *vagueTool) Name() string        { return t.name }
func (t *vagueTool) Description() string { return t.desc }

func (t *vagueTool) Invoke(context.Context, string) (contractx.ToolResult, error) {
	return contractx.Success(t.name, t.message), nil
}
