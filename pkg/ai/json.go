package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrParse marks model output that could not be decoded. Retrying the same
// prompt is not expected to help.
var ErrParse = errors.New("llm output is not valid json")

// ExtractJSON strips markdown fences and any prose around the outermost JSON value
func ExtractJSON(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx != -1 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}

	open := strings.IndexAny(content, "{[")
	if open < 0 {
		return content
	}
	closer := "}"
	if content[open] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(content, closer)
	if end < open {
		return content[open:]
	}
	return content[open : end+1]
}

// DecodeJSON extracts and unmarshals model output into v.
// Failures wrap ErrParse.
func DecodeJSON(content string, v interface{}) error {
	raw := ExtractJSON(content)
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrParse, err)
	}
	return nil
}
