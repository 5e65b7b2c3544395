package parse

import "testing"

func TestParseCodexConversation(t *testing.T) {
	lines := `{"timestamp":"2025-02-01T09:00:00Z","type":"session_meta","payload":{"id":"abc","cwd":"/home/x/proj"}}
{"timestamp":"2025-02-01T09:00:01Z","type":"turn_context","payload":{"model":"gpt-5-codex"}}
{"timestamp":"2025-02-01T09:00:02Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"fix the build"}]}}
{"timestamp":"2025-02-01T09:00:10Z","type":"response_item","payload":{"type":"reasoning","summary":[{"type":"summary_text","text":"Looking at the Makefile"}]}}
{"timestamp":"2025-02-01T09:00:12Z","type":"response_item","payload":{"type":"function_call","call_id":"call-1","name":"shell","arguments":"{\"command\":[\"make\"]}"}}
{"timestamp":"2025-02-01T09:00:15Z","type":"response_item","payload":{"type":"function_call_output","call_id":"call-1","output":{"output":"build OK","metadata":{"exit_code":0}}}}
{"timestamp":"2025-02-01T09:00:20Z","type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"The build passes now."}]}}
{"timestamp":"2025-02-01T09:00:21Z","type":"event_msg","payload":{"type":"agent_message","message":"The build passes now."}}
`
	path := writeFixture(t, "rollout.jsonl", lines)

	msgs, err := Collect(ProviderCodex, path, "codex:sess")
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	// session_meta and event_msg are not conversation rows
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}

	if msgs[0].Type != "user" || msgs[0].ContentText != "fix the build" {
		t.Errorf("user = %+v", msgs[0])
	}
	// codex records carry no uuid, so all are synthesized
	if msgs[0].UUID != "codex:sess:msg:0" {
		t.Errorf("UUID = %q", msgs[0].UUID)
	}

	if msgs[1].Type != "thinking" || msgs[1].ContentText != "Looking at the Makefile" {
		t.Errorf("reasoning = %+v", msgs[1])
	}

	tool := msgs[2]
	if tool.Type != "tool_use" {
		t.Errorf("Type = %q", tool.Type)
	}
	tu := tool.Blocks[0].ToolUse
	if tu == nil || tu.ToolUseID != "call-1" || tu.Name != "shell" {
		t.Errorf("tool use = %+v", tu)
	}
	if tu.InputJSON != `{"command":["make"]}` {
		t.Errorf("InputJSON = %q", tu.InputJSON)
	}

	result := msgs[3]
	if result.Type != "tool_result" || result.Role != "user" {
		t.Errorf("tool result = %+v", result)
	}
	if result.ContentText != "build OK" {
		t.Errorf("ContentText = %q", result.ContentText)
	}

	final := msgs[4]
	if final.Type != "assistant" || final.ContentText != "The build passes now." {
		t.Errorf("assistant = %+v", final)
	}
	// model comes from the preceding turn_context
	if final.Model != "gpt-5-codex" {
		t.Errorf("Model = %q", final.Model)
	}
	if msgs[0].Model != "gpt-5-codex" {
		t.Errorf("user Model = %q", msgs[0].Model)
	}
}

func TestParseCodexModelSwitch(t *testing.T) {
	lines := `{"timestamp":"2025-02-01T09:00:00Z","type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"before"}]}}
{"timestamp":"2025-02-01T09:00:01Z","type":"turn_context","payload":{"model":"o4-mini"}}
{"timestamp":"2025-02-01T09:00:02Z","type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"after"}]}}
`
	path := writeFixture(t, "rollout.jsonl", lines)

	msgs, err := Collect(ProviderCodex, path, "codex:sess")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Model != "" {
		t.Errorf("first Model = %q, want empty", msgs[0].Model)
	}
	if msgs[1].Model != "o4-mini" {
		t.Errorf("second Model = %q, want o4-mini", msgs[1].Model)
	}
}

func TestParseCodexEmptyAndMalformed(t *testing.T) {
	lines := `
{"timestamp":"2025-02-01T09:00:00Z","type":"response_item","payload":{"type":"message","role":"assistant","content":[]}}
garbage
{"timestamp":"2025-02-01T09:00:01Z","type":"response_item","payload":{"type":"reasoning","summary":[]}}
{"timestamp":"2025-02-01T09:00:02Z","type":"response_item","payload":{"type":"message","role":"user","content":"plain string content"}}
`
	path := writeFixture(t, "rollout.jsonl", lines)

	msgs, err := Collect(ProviderCodex, path, "codex:sess")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].ContentText != "plain string content" {
		t.Errorf("ContentText = %q", msgs[0].ContentText)
	}
}

func TestParseCodexFunctionCallDefaults(t *testing.T) {
	lines := `{"timestamp":"2025-02-01T09:00:00Z","type":"response_item","payload":{"type":"function_call","name":"apply_patch"}}
`
	path := writeFixture(t, "rollout.jsonl", lines)

	msgs, err := Collect(ProviderCodex, path, "codex:sess")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	tu := msgs[0].Blocks[0].ToolUse
	if tu.InputJSON != "{}" {
		t.Errorf("InputJSON = %q, want {}", tu.InputJSON)
	}
	if tu.ToolUseID != "" {
		t.Errorf("ToolUseID = %q, want empty", tu.ToolUseID)
	}
}

func TestParseCodexReasoningContentFallback(t *testing.T) {
	lines := `{"timestamp":"2025-02-01T09:00:00Z","type":"response_item","payload":{"type":"reasoning","content":"raw chain of thought"}}
`
	path := writeFixture(t, "rollout.jsonl", lines)

	msgs, err := Collect(ProviderCodex, path, "codex:sess")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].ContentText != "raw chain of thought" {
		t.Fatalf("msgs = %+v", msgs)
	}
}
