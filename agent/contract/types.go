package contract

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ToolName  string    `json:"tool_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type RoutingDecision struct {
	SelectedTool string `json:"selected_tool"`
	Rationale    string `json:"rationale,omitempty"`
}

type ToolResult struct {
	Tool   string `json:"tool"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func Success(tool, text string) ToolResult {
	return ToolResult{Tool: tool, Result: text}
}

func Failure(tool, reason string) ToolResult {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown failure"
	}
	return ToolResult{Tool: tool, Error: reason}
}

func (r ToolResult) OK() bool {
	return r.Error == ""
}

type SearchHit struct {
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	URL     string  `json:"url"`
	Score   float64 `json:"score,omitempty"`
}
