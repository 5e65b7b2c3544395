// Package category classifies canonical messages into a small
// filterable category set, shared by indexing (persisted mask) and
// search (facet counts).
package category

import "github.com/mdemirhan/cch/internal/parse"

// Mask is a bitmask over the six message categories.
type Mask int

const (
	User Mask = 1 << iota
	Assistant
	ToolCall
	Thinking
	ToolResult
	System
)

// Keys in canonical display order.
var Keys = []string{"user", "assistant", "tool_call", "thinking", "tool_result", "system"}

var maskByKey = map[string]Mask{
	"user":        User,
	"assistant":   Assistant,
	"tool_call":   ToolCall,
	"thinking":    Thinking,
	"tool_result": ToolResult,
	"system":      System,
}

// Legacy alias kept for stored data written before the rename.
var aliasByKey = map[string]string{
	"tool_use": "tool_call",
}

// Classify maps one message to its category mask. The result is never
// zero: when no content rule fires, the message falls back to a
// role-based category so it stays visible under at least one filter.
func Classify(msgType, role string, blocks []parse.ContentBlock, contentText string) Mask {
	if msgType == "summary" || msgType == "system" {
		return System
	}

	var mask Mask
	for _, b := range blocks {
		switch b.Type {
		case "thinking":
			if b.Text != "" {
				mask |= Thinking
			}
		case "tool_use":
			mask |= ToolCall
		case "tool_result":
			mask |= ToolResult
		default:
			if b.Text != "" && role == "assistant" {
				mask |= Assistant
			}
		}
	}
	if role == "user" && contentText != "" {
		mask |= User
	}

	if mask == 0 {
		switch role {
		case "assistant":
			return Assistant
		case "user":
			return User
		default:
			return System
		}
	}
	return mask
}

// MaskForKeys combines the masks of the given keys, ignoring unknown
// values. Legacy aliases map to their canonical key.
func MaskForKeys(keys []string) Mask {
	var mask Mask
	for _, key := range keys {
		if canonical, ok := aliasByKey[key]; ok {
			key = canonical
		}
		mask |= maskByKey[key]
	}
	return mask
}

// KeysForMask expands a mask into canonical-order keys.
func KeysForMask(mask Mask) []string {
	var keys []string
	for _, key := range Keys {
		if mask&maskByKey[key] != 0 {
			keys = append(keys, key)
		}
	}
	return keys
}

// NormalizeKeys filters to known keys in canonical order. nil means
// all categories.
func NormalizeKeys(keys []string) []string {
	if keys == nil {
		return append([]string(nil), Keys...)
	}
	selected := make(map[string]bool, len(keys))
	for _, key := range keys {
		if canonical, ok := aliasByKey[key]; ok {
			key = canonical
		}
		if _, ok := maskByKey[key]; ok {
			selected[key] = true
		}
	}
	var out []string
	for _, key := range Keys {
		if selected[key] {
			out = append(out, key)
		}
	}
	return out
}
