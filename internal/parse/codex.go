package parse

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
)

type codexRecord struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// parseCodex handles turn-based Codex session logs. The current model
// is fold-state threaded through the loop: turn_context records update
// it and every subsequent response item carries it.
func parseCodex(path, sessionKey string, emit EmitFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	seq := 0
	lineNum := 0
	currentModel := ""
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec codexRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("skipping malformed record", "path", path, "line", lineNum, "error", err)
			continue
		}

		var payload map[string]any
		switch rec.Type {
		case "turn_context":
			if json.Unmarshal(rec.Payload, &payload) == nil {
				if m := asString(payload["model"]); m != "" {
					currentModel = m
				}
			}
			continue
		case "response_item":
			if err := json.Unmarshal(rec.Payload, &payload); err != nil {
				slog.Warn("skipping malformed record", "path", path, "line", lineNum, "error", err)
				continue
			}
		default:
			// session_meta is consumed by discovery; event_msg mirrors
			// the response_item stream and would double-count turns.
			continue
		}

		raw := codexResponseRecord(payload, rec.Timestamp, currentModel)
		if raw == nil {
			continue
		}

		for _, msg := range normalizeRecord(sessionKey, seq, *raw) {
			if err := emit(msg); err != nil {
				return err
			}
			seq++
		}
	}
	return scanner.Err()
}

func codexResponseRecord(payload map[string]any, timestamp, model string) *rawRecord {
	switch asString(payload["type"]) {
	case "message":
		role := asString(payload["role"])
		if role == "" {
			role = "assistant"
		}
		blocks, text := parseCodexContent(payload["content"])
		if text == "" && len(blocks) == 0 {
			return nil
		}
		return &rawRecord{
			SourceType:  role,
			Role:        role,
			Model:       model,
			Blocks:      blocks,
			ContentText: text,
			Timestamp:   timestamp,
		}

	case "function_call":
		return &rawRecord{
			SourceType: "assistant",
			Role:       "assistant",
			Model:      model,
			Blocks: []ContentBlock{{
				Type: "tool_use",
				ToolUse: &ToolUseBlock{
					ToolUseID: asString(payload["call_id"]),
					Name:      asString(payload["name"]),
					InputJSON: safeJSONString(payload["arguments"]),
				},
			}},
			Timestamp: timestamp,
		}

	case "function_call_output":
		text := extractCodexFunctionOutput(payload["output"])
		return &rawRecord{
			SourceType: "user",
			Role:       "user",
			Blocks:     []ContentBlock{{Type: "tool_result", Text: text}},
			Timestamp:  timestamp,
		}

	case "reasoning":
		text := extractCodexReasoning(payload)
		if text == "" {
			return nil
		}
		return &rawRecord{
			SourceType: "assistant",
			Role:       "assistant",
			Model:      model,
			Blocks:     []ContentBlock{{Type: "thinking", Text: text}},
			Timestamp:  timestamp,
		}

	default:
		return nil
	}
}

// parseCodexContent flattens a Codex message content value into blocks
// plus joined search text. Items may be {type, text} maps or bare
// strings; every non-empty text contributes.
func parseCodexContent(content any) ([]ContentBlock, string) {
	switch c := content.(type) {
	case string:
		return []ContentBlock{{Type: "text", Text: c}}, c
	case []any:
		var blocks []ContentBlock
		var parts []string
		for _, item := range c {
			switch v := item.(type) {
			case string:
				blocks = append(blocks, ContentBlock{Type: "text", Text: v})
				if v != "" {
					parts = append(parts, v)
				}
			case map[string]any:
				text := asString(v["text"])
				blocks = append(blocks, ContentBlock{Type: "text", Text: text})
				if text != "" {
					parts = append(parts, text)
				}
			}
		}
		return blocks, joinNonEmpty(parts)
	default:
		return nil, ""
	}
}

// extractCodexFunctionOutput pulls the human-readable part of a tool
// output: a raw string, an "output" string field, or a JSON dump.
func extractCodexFunctionOutput(output any) string {
	switch v := output.(type) {
	case string:
		return v
	case map[string]any:
		if s := asString(v["output"]); s != "" {
			return s
		}
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// extractCodexReasoning joins the structured summary texts, falling
// back to a raw content string.
func extractCodexReasoning(payload map[string]any) string {
	if summary, ok := payload["summary"].([]any); ok {
		var parts []string
		for _, item := range summary {
			if m, ok := item.(map[string]any); ok {
				if text := asString(m["text"]); text != "" {
					parts = append(parts, text)
				}
			}
		}
		if len(parts) > 0 {
			return joinNonEmpty(parts)
		}
	}
	return asString(payload["content"])
}
