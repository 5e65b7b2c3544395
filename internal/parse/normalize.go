package parse

import "fmt"

// rawRecord is the provider-independent shape of one source record
// before the multi-block split.
type rawRecord struct {
	BaseUUID    string
	ParentUUID  string
	SourceType  string // user, assistant, summary, system
	Role        string
	Model       string
	Blocks      []ContentBlock
	ContentText string
	Usage       TokenUsage
	Timestamp   string
	IsSidechain bool
}

// normalizeRecord splits one source record into canonical messages.
//
// Thinking, tool_use and tool_result blocks each become their own
// message; remaining text-bearing blocks merge into a single message
// typed by the record's role, placed where its first text block was.
// The merged message keeps the record's uuid; split-off messages get
// "{uuid}#{n}". Each message's parent is the previously emitted
// message, the first keeping the record's own parent. Usage attaches
// only to the first emitted message so token sums are never counted
// twice.
func normalizeRecord(sessionKey string, seqStart int, rec rawRecord) []Message {
	switch rec.SourceType {
	case "user", "assistant":
	default:
		// Summaries, system records and anything unrecognized collapse
		// to a single system message.
		text := rec.ContentText
		if text == "" {
			text = firstText(rec.Blocks)
		}
		blocks := rec.Blocks
		if len(blocks) == 0 {
			blocks = []ContentBlock{{Type: "text", Text: text}}
		}
		return []Message{{
			UUID:        orSynthesized(rec.BaseUUID, sessionKey, seqStart),
			ParentUUID:  rec.ParentUUID,
			Type:        "system",
			Role:        "system",
			Blocks:      blocks,
			ContentText: text,
			Usage:       rec.Usage,
			Timestamp:   rec.Timestamp,
			IsSidechain: rec.IsSidechain,
			SequenceNum: seqStart,
		}}
	}

	role := rec.Role
	if role == "" {
		role = rec.SourceType
	}

	type part struct {
		msgType string
		text    string
		blocks  []ContentBlock
	}

	var parts []part
	mainIdx := -1
	var textBlocks []ContentBlock
	var textParts []string

	for _, b := range rec.Blocks {
		switch b.Type {
		case "thinking":
			parts = append(parts, part{msgType: "thinking", text: b.Text, blocks: []ContentBlock{b}})
		case "tool_use":
			parts = append(parts, part{msgType: "tool_use", text: toolUseSearchText(b.ToolUse), blocks: []ContentBlock{b}})
		case "tool_result":
			parts = append(parts, part{msgType: "tool_result", text: b.Text, blocks: []ContentBlock{b}})
		default:
			if mainIdx < 0 {
				mainIdx = len(parts)
				parts = append(parts, part{msgType: rec.SourceType})
			}
			textBlocks = append(textBlocks, b)
			if b.Text != "" {
				textParts = append(textParts, b.Text)
			}
		}
	}

	if mainIdx >= 0 {
		parts[mainIdx].blocks = textBlocks
		parts[mainIdx].text = joinNonEmpty(textParts)
	} else if len(parts) == 0 {
		parts = append(parts, part{
			msgType: rec.SourceType,
			text:    rec.ContentText,
			blocks:  []ContentBlock{{Type: "text", Text: rec.ContentText}},
		})
		mainIdx = 0
	}

	msgs := make([]Message, 0, len(parts))
	prevUUID := rec.ParentUUID
	splitN := 0
	for i, p := range parts {
		var uuid string
		switch {
		case i == mainIdx:
			uuid = orSynthesized(rec.BaseUUID, sessionKey, seqStart+i)
		case rec.BaseUUID != "":
			splitN++
			uuid = fmt.Sprintf("%s#%d", rec.BaseUUID, splitN)
		default:
			uuid = orSynthesized("", sessionKey, seqStart+i)
		}

		usage := TokenUsage{}
		if i == 0 {
			usage = rec.Usage
		}

		msgs = append(msgs, Message{
			UUID:        uuid,
			ParentUUID:  prevUUID,
			Type:        p.msgType,
			Role:        role,
			Model:       rec.Model,
			Blocks:      p.blocks,
			ContentText: p.text,
			Usage:       usage,
			Timestamp:   rec.Timestamp,
			IsSidechain: rec.IsSidechain,
			SequenceNum: seqStart + i,
		})
		prevUUID = uuid
	}
	return msgs
}

func orSynthesized(uuid, sessionKey string, seq int) string {
	if uuid != "" {
		return uuid
	}
	return fmt.Sprintf("%s:msg:%d", sessionKey, seq)
}

func joinNonEmpty(parts []string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out == "" {
			out = p
		} else {
			out += "\n" + p
		}
	}
	return out
}
