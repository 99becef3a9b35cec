package assistantnode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/Chative-Apple-Support-Agent/agent/contract"
)

// FinalizeReply records the user and assistant messages together, so a turn
// that fails earlier leaves the session unchanged.
func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: dispatcher returned empty reply", contractx.ErrValidation)
	}

	in.Session.Append(contractx.Message{
		Role:      contractx.RoleUser,
		Content:   in.Query,
		CreatedAt: in.Now,
	})
	in.Session.Append(contractx.Message{
		Role:      contractx.RoleAssistant,
		Content:   reply,
		ToolName:  in.Tool,
		CreatedAt: in.Now,
	})

	return GraphOutput{Reply: reply, Decision: in.Decision, Tool: in.Tool}, nil
}
