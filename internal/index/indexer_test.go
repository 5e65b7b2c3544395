package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mdemirhan/cch/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		ClaudeRoot: filepath.Join(root, "claude"),
		CodexRoot:  filepath.Join(root, "codex"),
		GeminiRoot: filepath.Join(root, "gemini"),
		DBPath:     filepath.Join(root, "index.db"),
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const claudeSessionFixture = `{"type":"user","uuid":"u-1","timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"please fix the flaky scanner test"}}
{"type":"assistant","uuid":"a-1","parentUuid":"u-1","timestamp":"2025-01-15T10:00:05Z","message":{"role":"assistant","model":"claude-sonnet-4","content":[{"type":"thinking","thinking":"the scanner races on shutdown"},{"type":"tool_use","id":"tu-1","name":"Bash","input":{"command":"go test ./..."}},{"type":"text","text":"Found it, the watcher closes twice."}],"usage":{"input_tokens":40,"output_tokens":25,"cache_read_input_tokens":10}}}
{"type":"summary","summary":"Fixed scanner shutdown race"}
`

func writeClaudeFixture(t *testing.T, cfg *config.Config) string {
	path := filepath.Join(cfg.ClaudeRoot, "-home-u-src-proj", "sess-aaaa.jsonl")
	mustWrite(t, path, claudeSessionFixture)
	return path
}

func TestIndexAll(t *testing.T) {
	cfg := testConfig(t)
	writeClaudeFixture(t, cfg)

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	res, err := IndexAll(db, cfg, Options{})
	if err != nil {
		t.Fatalf("IndexAll() error = %v", err)
	}
	if res.FilesIndexed != 1 || res.FilesFailed != 0 {
		t.Fatalf("result = %+v", res)
	}
	// 1 user + 3 split assistant + 1 summary
	if res.TotalMessages != 5 {
		t.Errorf("TotalMessages = %d, want 5", res.TotalMessages)
	}

	s, err := db.GetSession("sess-aaaa")
	if err != nil {
		t.Fatal(err)
	}
	if s == nil {
		t.Fatal("session not stored")
	}
	if s.MessageCount != 5 {
		t.Errorf("MessageCount = %d, want 5", s.MessageCount)
	}
	if s.UserMessageCount != 1 || s.AssistantMessageCount != 1 {
		t.Errorf("type counts = %d user, %d assistant", s.UserMessageCount, s.AssistantMessageCount)
	}
	if s.ToolCallCount != 1 {
		t.Errorf("ToolCallCount = %d, want 1", s.ToolCallCount)
	}
	if s.TotalInputTokens != 40 || s.TotalOutputTokens != 25 || s.TotalCacheReadTokens != 10 {
		t.Errorf("tokens = %d/%d/%d", s.TotalInputTokens, s.TotalOutputTokens, s.TotalCacheReadTokens)
	}
	if s.Model != "claude-sonnet-4" || s.ModelsUsed != "claude-sonnet-4" {
		t.Errorf("models = %q / %q", s.Model, s.ModelsUsed)
	}
	if s.DurationMS != 5000 {
		t.Errorf("DurationMS = %d, want 5000", s.DurationMS)
	}
	if s.FirstPrompt != "please fix the flaky scanner test" {
		t.Errorf("FirstPrompt = %q", s.FirstPrompt)
	}
	if s.Cwd != "/home/u/src/proj" {
		t.Errorf("Cwd = %q", s.Cwd)
	}

	msgs, err := db.GetMessages("sess-aaaa", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	for i, m := range msgs {
		if m.SequenceNum != i {
			t.Errorf("msgs[%d].SequenceNum = %d", i, m.SequenceNum)
		}
		if m.CategoryMask == 0 {
			t.Errorf("msgs[%d] has zero category mask", i)
		}
	}

	tools, err := db.GetToolCalls("sess-aaaa", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tools) != 1 {
		t.Fatalf("got %d tool calls, want 1", len(tools))
	}
	if tools[0].ToolUseID != "tu-1" || tools[0].ToolName != "Bash" {
		t.Errorf("tool call = %+v", tools[0])
	}
	if !strings.Contains(tools[0].InputJSON, "go test") {
		t.Errorf("InputJSON = %q", tools[0].InputJSON)
	}

	projects, err := db.ListProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 1 {
		t.Fatalf("got %d projects, want 1", len(projects))
	}
	if projects[0].SessionCount != 1 || projects[0].ProjectName != "proj" {
		t.Errorf("project = %+v", projects[0])
	}
	if projects[0].LastActivity == "" {
		t.Error("LastActivity not recomputed")
	}
}

func TestIndexAllIncrementalSkip(t *testing.T) {
	cfg := testConfig(t)
	path := writeClaudeFixture(t, cfg)

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := IndexAll(db, cfg, Options{}); err != nil {
		t.Fatal(err)
	}

	res, err := IndexAll(db, cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesIndexed != 0 || res.FilesSkipped != 1 {
		t.Errorf("unchanged file: %+v", res)
	}

	// append a record; size changes, file must be reindexed
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	extra := `{"type":"user","uuid":"u-2","timestamp":"2025-01-15T11:00:00Z","message":{"role":"user","content":"and the linter too"}}` + "\n"
	if _, err := f.WriteString(extra); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	res, err = IndexAll(db, cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesIndexed != 1 {
		t.Errorf("changed file: %+v", res)
	}

	s, err := db.GetSession("sess-aaaa")
	if err != nil {
		t.Fatal(err)
	}
	// rows were replaced, not appended
	if s.MessageCount != 6 {
		t.Errorf("MessageCount = %d, want 6", s.MessageCount)
	}
}

func TestIndexAllForce(t *testing.T) {
	cfg := testConfig(t)
	writeClaudeFixture(t, cfg)

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := IndexAll(db, cfg, Options{}); err != nil {
		t.Fatal(err)
	}
	res, err := IndexAll(db, cfg, Options{Force: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesIndexed != 1 || res.FilesSkipped != 0 {
		t.Errorf("force run: %+v", res)
	}
}

func TestIndexAllPrunesDeletedFiles(t *testing.T) {
	cfg := testConfig(t)
	path := writeClaudeFixture(t, cfg)

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := IndexAll(db, cfg, Options{}); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	res, err := IndexAll(db, cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesPruned != 1 {
		t.Errorf("FilesPruned = %d, want 1", res.FilesPruned)
	}

	s, err := db.GetSession("sess-aaaa")
	if err != nil {
		t.Fatal(err)
	}
	if s != nil {
		t.Errorf("session for deleted file still present: %s", s.SessionID)
	}

	var n int
	if err := db.Raw().QueryRow("SELECT COUNT(*) FROM indexed_files").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("indexed_files rows = %d, want 0", n)
	}
	if err := db.Raw().QueryRow("SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("message rows = %d, want 0", n)
	}

	projects, err := db.ListProjects()
	if err != nil {
		t.Fatal(err)
	}
	if len(projects) != 0 {
		t.Errorf("got %d projects, want 0", len(projects))
	}
}

func TestIndexAllReindexesWhenSessionRowMissing(t *testing.T) {
	cfg := testConfig(t)
	writeClaudeFixture(t, cfg)

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := IndexAll(db, cfg, Options{}); err != nil {
		t.Fatal(err)
	}
	// drop the session but keep the fingerprint, as if the store lost
	// the row between runs
	if _, err := db.Raw().Exec("DELETE FROM sessions WHERE session_id = ?", "sess-aaaa"); err != nil {
		t.Fatal(err)
	}

	res, err := IndexAll(db, cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesIndexed != 1 || res.FilesSkipped != 0 {
		t.Errorf("result = %+v", res)
	}

	s, err := db.GetSession("sess-aaaa")
	if err != nil {
		t.Fatal(err)
	}
	if s == nil {
		t.Fatal("session not restored")
	}
	if s.MessageCount != 5 {
		t.Errorf("MessageCount = %d, want 5", s.MessageCount)
	}
}

func TestIndexAllCorruptFileDoesNotPoisonRun(t *testing.T) {
	cfg := testConfig(t)
	writeClaudeFixture(t, cfg)
	// discovery reads only the identity fields, so this file is found,
	// but the full parse rejects the non-array messages value
	mustWrite(t, filepath.Join(cfg.GeminiRoot, "tmp", "h1", "sessions", "d1", "session-1.json"),
		`{"sessionId":"bad","messages":{}}`)

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	res, err := IndexAll(db, cfg, Options{})
	if err != nil {
		t.Fatalf("IndexAll() error = %v", err)
	}
	if res.FilesIndexed != 1 || res.FilesFailed != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestIndexAllSharedUUIDAcrossSessions(t *testing.T) {
	cfg := testConfig(t)
	record := `{"type":"user","uuid":"u-1","timestamp":"2025-01-15T10:00:00Z","message":{"role":"user","content":"hello"}}` + "\n"
	mustWrite(t, filepath.Join(cfg.ClaudeRoot, "-p", "sess-one.jsonl"), record)
	mustWrite(t, filepath.Join(cfg.ClaudeRoot, "-p", "sess-two.jsonl"), record)

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	res, err := IndexAll(db, cfg, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.FilesIndexed != 2 || res.TotalMessages != 2 {
		t.Fatalf("result = %+v", res)
	}

	for _, sid := range []string{"sess-one", "sess-two"} {
		msgs, err := db.GetMessages(sid, 0, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) != 1 || msgs[0].UUID != "u-1" {
			t.Errorf("session %s messages = %+v", sid, msgs)
		}
	}
}

func TestIndexAllProgress(t *testing.T) {
	cfg := testConfig(t)
	writeClaudeFixture(t, cfg)

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var calls int
	var finalCurrent, finalTotal int
	_, err = IndexAll(db, cfg, Options{Progress: func(current, total int, message string) {
		calls++
		finalCurrent, finalTotal = current, total
	}})
	if err != nil {
		t.Fatal(err)
	}
	if calls == 0 {
		t.Fatal("progress callback never invoked")
	}
	if finalCurrent != finalTotal {
		t.Errorf("final progress = %d/%d", finalCurrent, finalTotal)
	}
}

func TestIndexAllMultiProvider(t *testing.T) {
	cfg := testConfig(t)
	writeClaudeFixture(t, cfg)
	mustWrite(t, filepath.Join(cfg.CodexRoot, "2025", "02", "01", "rollout-abc.jsonl"),
		`{"timestamp":"2025-02-01T09:00:00Z","type":"session_meta","payload":{"id":"abc","cwd":"/home/u/src/other"}}`+"\n"+
			`{"timestamp":"2025-02-01T09:00:02Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"hello codex"}]}}`+"\n")

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := IndexAll(db, cfg, Options{}); err != nil {
		t.Fatal(err)
	}

	all, total, err := db.ListSessions(ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("sessions = %d (total %d), want 2", len(all), total)
	}

	codexOnly, _, err := db.ListSessions(ListOptions{Provider: "codex"})
	if err != nil {
		t.Fatal(err)
	}
	if len(codexOnly) != 1 || codexOnly[0].Provider != "codex" {
		t.Errorf("codex filter = %+v", codexOnly)
	}

	st, err := db.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if st.SessionCount != 2 || st.ProjectCount != 2 {
		t.Errorf("stats = %+v", st)
	}
	if st.ToolCallCount != 1 {
		t.Errorf("ToolCallCount = %d, want 1", st.ToolCallCount)
	}

	usage, err := db.ToolUsage(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(usage) != 1 || usage[0].ToolName != "Bash" || usage[0].Count != 1 {
		t.Errorf("tool usage = %+v", usage)
	}

	counts, err := db.HeatmapCounts()
	if err != nil {
		t.Fatal(err)
	}
	sum := 0
	for _, day := range counts {
		for _, n := range day {
			sum += n
		}
	}
	if sum == 0 {
		t.Error("heatmap is empty")
	}
	// 2025-01-15 is a Wednesday, 10:00 UTC
	if counts[2][10] == 0 {
		t.Error("expected activity at Wednesday 10:00")
	}
}
