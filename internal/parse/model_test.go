package parse

import (
	"encoding/json"
	"testing"
)

func TestAsInt(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{nil, 0},
		{float64(42), 42},
		{float64(3.9), 3},
		{true, 1},
		{false, 0},
		{"120", 120},
		{" 7.5 ", 7},
		{"not a number", 0},
		{json.Number("15"), 15},
		{[]any{1}, 0},
	}
	for _, c := range cases {
		if got := asInt(c.in); got != c.want {
			t.Errorf("asInt(%#v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestSafeJSONString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "{}"},
		{"", "{}"},
		{"   ", "{}"},
		{` {"a":1} `, `{"a":1}`},
		{map[string]any{"cmd": "ls"}, `{"cmd":"ls"}`},
	}
	for _, c := range cases {
		if got := safeJSONString(c.in); got != c.want {
			t.Errorf("safeJSONString(%#v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestToolUseSearchText(t *testing.T) {
	if got := toolUseSearchText(nil); got != "" {
		t.Errorf("nil = %q", got)
	}
	tu := &ToolUseBlock{Name: "Bash", InputJSON: `{"command":"ls"}`}
	if got := toolUseSearchText(tu); got != "Bash\n{\"command\":\"ls\"}" {
		t.Errorf("got %q", got)
	}
	anon := &ToolUseBlock{InputJSON: "{}"}
	if got := toolUseSearchText(anon); got != "{}" {
		t.Errorf("anonymous = %q", got)
	}
}

func TestJoinNonEmpty(t *testing.T) {
	if got := joinNonEmpty([]string{"", "a", "", "b"}); got != "a\nb" {
		t.Errorf("got %q", got)
	}
	if got := joinNonEmpty(nil); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestBlocksJSON(t *testing.T) {
	m := Message{Blocks: []ContentBlock{
		{Type: "text", Text: "hi"},
		{Type: "tool_use", ToolUse: &ToolUseBlock{ToolUseID: "t1", Name: "Read", InputJSON: "{}"}},
	}}
	got := m.BlocksJSON()

	var decoded []map[string]any
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("BlocksJSON() is not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d blocks, want 2", len(decoded))
	}
	if decoded[0]["type"] != "text" || decoded[0]["text"] != "hi" {
		t.Errorf("block 0 = %v", decoded[0])
	}
	tu, _ := decoded[1]["tool_use"].(map[string]any)
	if tu == nil || tu["name"] != "Read" {
		t.Errorf("block 1 = %v", decoded[1])
	}

	empty := Message{}
	if empty.BlocksJSON() != "[]" {
		t.Errorf("empty BlocksJSON() = %q", empty.BlocksJSON())
	}
}

func TestNormalizeRecordSynthesizedUUIDs(t *testing.T) {
	rec := rawRecord{
		SourceType: "assistant",
		Role:       "assistant",
		Blocks: []ContentBlock{
			{Type: "thinking", Text: "hm"},
			{Type: "text", Text: "answer"},
		},
	}
	msgs := normalizeRecord("sess", 4, rec)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].UUID != "sess:msg:4" {
		t.Errorf("split UUID = %q", msgs[0].UUID)
	}
	if msgs[1].UUID != "sess:msg:5" {
		t.Errorf("main UUID = %q", msgs[1].UUID)
	}
	if msgs[1].ParentUUID != "sess:msg:4" {
		t.Errorf("main ParentUUID = %q", msgs[1].ParentUUID)
	}
}

func TestNormalizeRecordBareRecord(t *testing.T) {
	rec := rawRecord{
		BaseUUID:    "u-1",
		SourceType:  "user",
		Role:        "user",
		ContentText: "typed text only",
	}
	msgs := normalizeRecord("sess", 0, rec)
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	m := msgs[0]
	if m.UUID != "u-1" || m.Type != "user" || m.ContentText != "typed text only" {
		t.Errorf("message = %+v", m)
	}
	if len(m.Blocks) != 1 || m.Blocks[0].Type != "text" {
		t.Errorf("blocks = %+v", m.Blocks)
	}
}
