package parse

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Supported providers. Adding a provider means adding a parser in this
// package and a case in ParseSession; nothing else branches on these.
const (
	ProviderClaude = "claude"
	ProviderCodex  = "codex"
	ProviderGemini = "gemini"
)

const maxLineSize = 10 * 1024 * 1024 // 10MB

// TokenUsage holds per-message token counters. Zero-valued when the
// source record carries no usage.
type TokenUsage struct {
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

func (u TokenUsage) IsZero() bool {
	return u == TokenUsage{}
}

// ToolUseBlock is the payload of a tool_use content block.
type ToolUseBlock struct {
	ToolUseID string
	Name      string
	InputJSON string
}

// ContentBlock is one typed fragment of a message body. Unknown block
// types pass through with their text preserved.
type ContentBlock struct {
	Type    string
	Text    string
	ToolUse *ToolUseBlock
}

// Message is the canonical, provider-agnostic message every parser
// emits. ParentUUID is empty when the message has no parent.
type Message struct {
	UUID        string
	ParentUUID  string
	Type        string // user, assistant, tool_use, tool_result, thinking, system
	Role        string
	Model       string
	Blocks      []ContentBlock
	ContentText string
	Usage       TokenUsage
	Timestamp   string
	IsSidechain bool
	SequenceNum int
}

// BlocksJSON renders the content blocks as a JSON array for storage.
func (m *Message) BlocksJSON() string {
	type toolUseJSON struct {
		ToolUseID string `json:"tool_use_id"`
		Name      string `json:"name"`
		InputJSON string `json:"input_json"`
	}
	type blockJSON struct {
		Type    string       `json:"type"`
		Text    string       `json:"text,omitempty"`
		ToolUse *toolUseJSON `json:"tool_use,omitempty"`
	}
	out := make([]blockJSON, 0, len(m.Blocks))
	for _, b := range m.Blocks {
		bj := blockJSON{Type: b.Type, Text: b.Text}
		if b.ToolUse != nil {
			bj.ToolUse = &toolUseJSON{
				ToolUseID: b.ToolUse.ToolUseID,
				Name:      b.ToolUse.Name,
				InputJSON: b.ToolUse.InputJSON,
			}
		}
		out = append(out, bj)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// asInt coerces any decoded JSON value to a non-negative-ish int.
// Booleans, floats and numeric strings all convert; everything else is 0.
func asInt(v any) int {
	switch n := v.(type) {
	case bool:
		if n {
			return 1
		}
		return 0
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
		return 0
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return int(f)
		}
		return 0
	default:
		return 0
	}
}

// asString returns v if it is a string, otherwise "".
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// safeJSONString encodes v as a JSON string, trimming raw strings and
// defaulting to "{}" when v is nil or cannot be encoded.
func safeJSONString(v any) string {
	switch val := v.(type) {
	case nil:
		return "{}"
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return "{}"
		}
		return trimmed
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "{}"
		}
		return string(data)
	}
}

// toolUseSearchText flattens a tool_use block into indexable text.
func toolUseSearchText(tu *ToolUseBlock) string {
	if tu == nil {
		return ""
	}
	if tu.Name == "" {
		return tu.InputJSON
	}
	return tu.Name + "\n" + tu.InputJSON
}

// firstText returns the first non-empty block text, or "".
func firstText(blocks []ContentBlock) string {
	for _, b := range blocks {
		if b.Text != "" {
			return b.Text
		}
	}
	return ""
}
