package solution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cubebuddy/cubebuddy/internal/domain"
)

// wireStep accepts the field spellings produced by the solvers and by older
// hand-off payloads.
type wireStep struct {
	Title       string `json:"title"`
	Notation    string `json:"notation"`
	Alg         string `json:"alg"`
	Description string `json:"description"`
	Note        string `json:"note"`
}

// DecodeSteps parses a JSON step list. Elements may be objects or bare
// notation strings, and the list may be wrapped as {"steps": [...]}.
// Move counts are always recomputed from the notation.
func DecodeSteps(data []byte) ([]domain.SolveStep, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Steps json.RawMessage `json:"steps"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode steps: %w", err)
		}
		data = wrapped.Steps
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	out := make([]domain.SolveStep, 0, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err == nil {
			out = append(out, NewStep(strings.TrimSpace(s), ""))
			continue
		}
		var w wireStep
		if err := json.Unmarshal(r, &w); err != nil {
			return nil, fmt.Errorf("decode step %d: %w", i, err)
		}
		step := NewStep(strings.TrimSpace(first(w.Notation, w.Alg)), first(w.Description, w.Note))
		step.Title = w.Title
		out = append(out, step)
	}
	return out, nil
}

func first(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
