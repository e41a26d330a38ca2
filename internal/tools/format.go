package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/embernet/tapestry-sub001/internal/models"
)

// FormatResults renders calls and their results as a text block, one line
// per call, for feeding back to the model or showing to the user.
func FormatResults(calls []models.ToolCall, results []models.ToolResult) string {
	var sb strings.Builder
	for i, c := range calls {
		args, _ := json.Marshal(c.Args)
		status := "failed"
		msg := ""
		if i < len(results) {
			r := results[i].Response.Result
			switch {
			case r.Skipped:
				status = "skipped"
			case r.Success:
				status = "ok"
			}
			msg = r.Message
		}
		fmt.Fprintf(&sb, "- %s(%s) [%s] %s\n", c.Name, args, status, strings.TrimSpace(msg))
	}
	return sb.String()
}

// AllFailed reports whether results is non-empty and no call succeeded.
func AllFailed(results []models.ToolResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Response.Result.Success {
			return false
		}
	}
	return true
}
