package agent

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparsableOutput means the agent's final text did not contain a valid
// structured result. Callers surface this loudly; there is no best-effort
// fallback result.
var ErrUnparsableOutput = errors.New("agent output is not parseable")

// Result is the structured research result expected from the agent.
type Result struct {
	Topic     string   `json:"topic"`
	Summary   string   `json:"summary"`
	Sources   []string `json:"sources"`
	ToolsUsed []string `json:"tools_used"`
}

// ParseOutput extracts the structured result from the agent's final text.
// Accepts a bare JSON object, a fenced code block, or JSON embedded in
// surrounding prose. Topic and summary must both be present.
func ParseOutput(raw string) (Result, error) {
	candidate := extractJSONObject(raw)
	if candidate == "" {
		return Result{}, ErrUnparsableOutput
	}

	var result Result
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return Result{}, ErrUnparsableOutput
	}

	// Some models nest the payload under "final"; unwrap once.
	if result.Topic == "" && result.Summary == "" {
		var wrapped struct {
			Final Result `json:"final"`
		}
		if err := json.Unmarshal([]byte(candidate), &wrapped); err == nil {
			result = wrapped.Final
		}
	}

	result.Topic = strings.TrimSpace(result.Topic)
	result.Summary = strings.TrimSpace(result.Summary)
	if result.Topic == "" || result.Summary == "" {
		return Result{}, ErrUnparsableOutput
	}
	return result, nil
}

// extractJSONObject returns the first balanced top-level JSON object in s,
// skipping markdown code fences.
func extractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	if fenced := stripCodeFence(s); fenced != "" {
		s = fenced
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return ""
	}
	body := strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
