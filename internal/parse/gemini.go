package parse

import (
	"encoding/json"
	"os"
)

type geminiDocument struct {
	SessionID   string           `json:"sessionId"`
	StartTime   string           `json:"startTime"`
	LastUpdated string           `json:"lastUpdated"`
	Messages    []map[string]any `json:"messages"`
}

// parseGemini handles whole-document Gemini session files. The entire
// file is one JSON object with an ordered messages array; an
// assistant entry's "thoughts" field becomes a thinking block emitted
// before its text block.
func parseGemini(path, sessionKey string, emit EmitFunc) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var doc geminiDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	seq := 0
	for _, entry := range doc.Messages {
		raw := geminiEntryRecord(entry)
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
	return nil
}

func geminiEntryRecord(entry map[string]any) *rawRecord {
	var sourceType string
	switch asString(entry["type"]) {
	case "user":
		sourceType = "user"
	case "gemini", "model", "assistant":
		sourceType = "assistant"
	case "info":
		sourceType = "system"
	default:
		return nil
	}

	text := extractGeminiContentText(entry["content"])
	thoughts := extractGeminiThoughts(entry["thoughts"])
	if text == "" && thoughts == "" {
		return nil
	}

	var blocks []ContentBlock
	if thoughts != "" {
		blocks = append(blocks, ContentBlock{Type: "thinking", Text: thoughts})
	}
	if text != "" || len(blocks) == 0 {
		blocks = append(blocks, ContentBlock{Type: "text", Text: text})
	}

	return &rawRecord{
		BaseUUID:    asString(entry["id"]),
		SourceType:  sourceType,
		Role:        sourceType,
		Model:       asString(entry["model"]),
		Blocks:      blocks,
		ContentText: joinNonEmpty([]string{thoughts, text}),
		Usage:       parseGeminiUsage(entry["tokens"]),
		Timestamp:   asString(entry["timestamp"]),
	}
}

// extractGeminiContentText flattens string, {text} map, or part-list
// content shapes; anything else degrades to "".
func extractGeminiContentText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case map[string]any:
		return asString(c["text"])
	case []any:
		var parts []string
		for _, item := range c {
			switch v := item.(type) {
			case string:
				parts = append(parts, v)
			case map[string]any:
				if text := asString(v["text"]); text != "" {
					parts = append(parts, text)
				}
			}
		}
		return joinNonEmpty(parts)
	default:
		return ""
	}
}

func extractGeminiThoughts(thoughts any) string {
	switch t := thoughts.(type) {
	case string:
		return t
	case []any:
		var parts []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return joinNonEmpty(parts)
	default:
		return ""
	}
}

// parseGeminiUsage maps the provider's token field names, coercing
// bool/float/string values instead of failing.
func parseGeminiUsage(tokens any) TokenUsage {
	raw, ok := tokens.(map[string]any)
	if !ok {
		return TokenUsage{}
	}
	return TokenUsage{
		InputTokens:     asInt(raw["input"]),
		OutputTokens:    asInt(raw["output"]),
		CacheReadTokens: asInt(raw["cached"]),
	}
}
