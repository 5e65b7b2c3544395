package parse

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
)

type claudeRecord struct {
	Type        string          `json:"type"`
	UUID        string          `json:"uuid"`
	ParentUUID  string          `json:"parentUuid"`
	Timestamp   string          `json:"timestamp"`
	IsSidechain bool            `json:"isSidechain"`
	Summary     string          `json:"summary"`
	Content     any             `json:"content"`
	Text        string          `json:"text"`
	Message     json.RawMessage `json:"message"`
}

type claudeMessage struct {
	Role    string         `json:"role"`
	Model   string         `json:"model"`
	Usage   map[string]any `json:"usage"`
	Content any            `json:"content"`
}

// parseClaude handles line-delimited Claude Code session logs. A line
// that fails to decode is skipped with a warning; known event kinds
// (progress and snapshot markers) are dropped without one.
func parseClaude(path, sessionKey string, emit EmitFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	seq := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec claudeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("skipping malformed record", "path", path, "line", lineNum, "error", err)
			continue
		}

		var raw *rawRecord
		switch rec.Type {
		case "user", "assistant":
			raw = claudeConversationRecord(&rec)
		case "summary":
			raw = &rawRecord{
				BaseUUID:    rec.UUID,
				SourceType:  "system",
				ContentText: rec.Summary,
				Timestamp:   rec.Timestamp,
			}
		case "system":
			// the body lives under content or text depending on the
			// log version
			text := asString(rec.Content)
			if text == "" {
				text = rec.Text
			}
			raw = &rawRecord{
				BaseUUID:    rec.UUID,
				SourceType:  "system",
				ContentText: text,
				Timestamp:   rec.Timestamp,
			}
		case "progress", "file-history-snapshot", "queue-operation":
			continue
		default:
			continue
		}
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

func claudeConversationRecord(rec *claudeRecord) *rawRecord {
	var msg claudeMessage
	if err := json.Unmarshal(rec.Message, &msg); err != nil {
		return nil
	}

	return &rawRecord{
		BaseUUID:    rec.UUID,
		ParentUUID:  rec.ParentUUID,
		SourceType:  rec.Type,
		Role:        msg.Role,
		Model:       msg.Model,
		Blocks:      claudeContentBlocks(msg.Content),
		Usage:       claudeUsage(msg.Usage),
		Timestamp:   rec.Timestamp,
		IsSidechain: rec.IsSidechain,
	}
}

func claudeUsage(raw map[string]any) TokenUsage {
	return TokenUsage{
		InputTokens:         asInt(raw["input_tokens"]),
		OutputTokens:        asInt(raw["output_tokens"]),
		CacheReadTokens:     asInt(raw["cache_read_input_tokens"]),
		CacheCreationTokens: asInt(raw["cache_creation_input_tokens"]),
	}
}

func claudeContentBlocks(content any) []ContentBlock {
	switch c := content.(type) {
	case string:
		return []ContentBlock{{Type: "text", Text: c}}
	case []any:
		blocks := make([]ContentBlock, 0, len(c))
		for _, item := range c {
			switch b := item.(type) {
			case string:
				blocks = append(blocks, ContentBlock{Type: "text", Text: b})
			case map[string]any:
				blocks = append(blocks, claudeContentBlock(b))
			}
		}
		return blocks
	default:
		return nil
	}
}

func claudeContentBlock(block map[string]any) ContentBlock {
	blockType := asString(block["type"])
	if blockType == "" {
		blockType = "unknown"
	}

	switch blockType {
	case "text":
		return ContentBlock{Type: "text", Text: asString(block["text"])}
	case "thinking":
		return ContentBlock{Type: "thinking", Text: asString(block["thinking"])}
	case "tool_use":
		input := block["input"]
		inputJSON := "{}"
		if input != nil {
			inputJSON = safeJSONString(input)
		}
		return ContentBlock{
			Type: "tool_use",
			ToolUse: &ToolUseBlock{
				ToolUseID: asString(block["id"]),
				Name:      asString(block["name"]),
				InputJSON: inputJSON,
			},
		}
	case "tool_result":
		return ContentBlock{Type: "tool_result", Text: extractContentText(block["content"])}
	default:
		return ContentBlock{Type: blockType, Text: asString(block["text"])}
	}
}

// extractContentText flattens a string-or-block-list content value.
func extractContentText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, item := range c {
			switch v := item.(type) {
			case string:
				parts = append(parts, v)
			case map[string]any:
				if asString(v["type"]) == "text" {
					parts = append(parts, asString(v["text"]))
				}
			}
		}
		return joinNonEmpty(parts)
	default:
		return ""
	}
}
