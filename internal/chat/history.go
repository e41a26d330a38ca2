package chat

import (
	"github.com/embernet/tapestry-sub001/internal/ai"
	"github.com/embernet/tapestry-sub001/internal/models"
)

// callRef is one unanswered function call seen while rebuilding history.
type callRef struct {
	name string
	id   string
}

// History converts the transcript into provider messages. Turns still
// awaiting confirmation are left out. Tool results are paired with the
// earliest unanswered call of the same name.
func History(transcript []Message) []ai.Message {
	var (
		out     []ai.Message
		pending []callRef
	)
	for _, m := range transcript {
		if m.Pending() {
			continue
		}
		switch m.Kind {
		case KindUser:
			out = append(out, ai.Message{Role: ai.RoleUser, Text: m.Text})

		case KindAssistant, KindNotice:
			msg := ai.Message{Role: ai.RoleModel, Text: m.Text}
			for _, p := range m.Proposals {
				msg.FunctionCalls = append(msg.FunctionCalls, ai.FunctionCall{
					ID:   p.Call.ID,
					Name: p.Call.Name,
					Args: p.Call.Args,
				})
				pending = append(pending, callRef{name: p.Call.Name, id: p.Call.ID})
			}
			if msg.Text == "" && len(msg.FunctionCalls) == 0 {
				continue
			}
			out = append(out, msg)

		case KindTool:
			msg := ai.Message{Role: ai.RoleUser}
			for _, r := range m.Results {
				id := r.ID
				for i, ref := range pending {
					if ref.name == r.Name {
						id = ref.id
						pending = append(pending[:i], pending[i+1:]...)
						break
					}
				}
				msg.FunctionResponses = append(msg.FunctionResponses, ai.FunctionResponse{
					ID:       id,
					Name:     r.Name,
					Response: responseMap(r.Response.Result),
				})
			}
			if len(msg.FunctionResponses) > 0 {
				out = append(out, msg)
			}
		}
	}
	return out
}

func responseMap(o models.ToolOutcome) map[string]any {
	result := map[string]any{
		"success": o.Success,
		"message": o.Message,
	}
	if o.Skipped {
		result["skipped"] = true
	}
	if len(o.Extra) > 0 {
		result["extra"] = o.Extra
	}
	return map[string]any{"result": result}
}
