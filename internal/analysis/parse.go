package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var ErrUnusableOutput = errors.New("model output is not a JSON object")

// Parse turns raw model text into a ModelOutput. Prose or code fences around the
// object are ignored and broken JSON is repaired where possible. Missing fields
// default to empty; only output with no recoverable object is an error.
func Parse(raw string) (ModelOutput, error) {
	body := extractObject(stripCodeFence(strings.TrimSpace(raw)))
	if body == "" {
		return Empty(), ErrUnusableOutput
	}
	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(body)
		if rerr != nil {
			return Empty(), fmt.Errorf("%w: %v", ErrUnusableOutput, err)
		}
		if err := json.Unmarshal([]byte(repaired), &doc); err != nil {
			return Empty(), fmt.Errorf("%w: %v", ErrUnusableOutput, err)
		}
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return Empty(), ErrUnusableOutput
	}
	return fromObject(obj), nil
}

func stripCodeFence(s string) string {
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// extractObject keeps the text between the first "{" and the last "}".
func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 {
		return ""
	}
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}
