package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const maxDecodeDepth = 4

var reCodeFence = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(.*?)\\s*```$")

// DecodePayload unwraps the shapes models actually return into a bare JSON object:
// fenced code blocks, JSON encoded inside a JSON string, and a {"field": [...]}
// wrapper whose first item is the real payload.
func DecodePayload(raw []byte) ([]byte, error) {
	return decodePayload(raw, 0)
}

func decodePayload(raw []byte, depth int) ([]byte, error) {
	if depth > maxDecodeDepth {
		return nil, errors.New("decode payload: nested too deeply")
	}
	s := strings.TrimSpace(string(raw))
	if m := reCodeFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	if s == "" {
		return nil, errors.New("decode payload: empty")
	}

	switch s[0] {
	case '"':
		var inner string
		if err := json.Unmarshal([]byte(s), &inner); err != nil {
			return nil, fmt.Errorf("decode payload: string: %w", err)
		}
		return decodePayload([]byte(inner), depth+1)
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		if wrapped, ok := obj["field"]; ok && len(obj) == 1 {
			var items []json.RawMessage
			if err := json.Unmarshal(wrapped, &items); err != nil || len(items) == 0 {
				return nil, errors.New("decode payload: field wrapper holds no items")
			}
			return decodePayload(items[0], depth+1)
		}
		return []byte(s), nil
	default:
		preview := s
		if len(preview) > 32 {
			preview = preview[:32]
		}
		return nil, fmt.Errorf("decode payload: expected a JSON object, got %q", preview)
	}
}
