package index

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/mdemirhan/cch/internal/category"
	"github.com/mdemirhan/cch/internal/config"
	"github.com/mdemirhan/cch/internal/parse"
	"github.com/mdemirhan/cch/internal/scan"
)

// messageBatch is the number of message rows inserted per flush.
const messageBatch = 300

// Progress reports indexing progress. current counts processed files,
// total is the number of discovered sessions.
type Progress func(current, total int, message string)

// Options controls an IndexAll run.
type Options struct {
	// Force reindexes every session regardless of file fingerprints.
	Force    bool
	Progress Progress
}

// Result summarizes an IndexAll run.
type Result struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesFailed   int
	FilesPruned   int
	TotalMessages int
}

// IndexAll discovers every session under the configured roots and
// indexes those whose files changed since the last run. Each session is
// indexed in its own transaction; one corrupt file never poisons the
// rest of the run.
func IndexAll(d *DB, cfg *config.Config, opts Options) (Result, error) {
	var res Result
	sessions := scan.Discover(cfg)
	total := len(sessions)

	if err := upsertProjects(d, sessions); err != nil {
		return res, fmt.Errorf("upsert projects: %w", err)
	}

	fingerprints, err := d.loadFingerprints()
	if err != nil {
		return res, fmt.Errorf("load fingerprints: %w", err)
	}
	sessionsByPath, err := d.loadSessionPaths()
	if err != nil {
		return res, fmt.Errorf("load session paths: %w", err)
	}

	pruned, err := pruneMissingFiles(d, sessions, fingerprints, sessionsByPath)
	if err != nil {
		return res, fmt.Errorf("prune missing files: %w", err)
	}
	res.FilesPruned = pruned

	for i, s := range sessions {
		// Skip only when both the fingerprint and the session row are
		// intact. A matching fingerprint with no row means the store
		// lost the session and the file must be indexed again.
		if fp, ok := fingerprints[s.FilePath]; !opts.Force && ok &&
			fp.mtimeMS == s.MtimeMS && fp.size == s.FileSize &&
			sessionsByPath[s.FilePath] == s.SessionID {
			res.FilesSkipped++
			continue
		}
		if opts.Progress != nil {
			opts.Progress(i+1, total, fmt.Sprintf("indexing %s", shortID(s.SessionID)))
		}
		n, err := indexSession(d, s)
		if err != nil {
			slog.Warn("failed to index session",
				"path", s.FilePath, "session", s.SessionID, "error", err)
			res.FilesFailed++
			continue
		}
		res.FilesIndexed++
		res.TotalMessages += n
	}

	if err := recomputeProjectStats(d); err != nil {
		return res, fmt.Errorf("recompute project stats: %w", err)
	}
	if opts.Progress != nil {
		opts.Progress(total, total, "done")
	}
	return res, nil
}

func upsertProjects(d *DB, sessions []scan.Session) error {
	seen := make(map[string]bool)
	for _, s := range sessions {
		if s.ProjectID == "" || seen[s.ProjectID] {
			continue
		}
		seen[s.ProjectID] = true
		_, err := d.db.Exec(`
INSERT INTO projects (project_id, provider, project_path, project_name)
VALUES (?, ?, ?, ?)
ON CONFLICT(project_id) DO UPDATE SET
    project_path = excluded.project_path,
    project_name = excluded.project_name`,
			s.ProjectID, s.Provider, s.ProjectPath, s.ProjectName)
		if err != nil {
			return err
		}
	}
	return nil
}

// pruneMissingFiles removes sessions and fingerprints whose files no
// longer exist on disk. Message and tool call rows go with the session
// via cascade; emptied projects are dropped by recomputeProjectStats.
func pruneMissingFiles(d *DB, sessions []scan.Session, fingerprints map[string]fingerprint, sessionsByPath map[string]string) (int, error) {
	discovered := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		discovered[s.FilePath] = true
	}

	pruned := 0
	for path := range sessionsByPath {
		if discovered[path] {
			continue
		}
		if _, err := d.db.Exec("DELETE FROM sessions WHERE file_path = ?", path); err != nil {
			return pruned, err
		}
		delete(sessionsByPath, path)
		pruned++
	}
	for path := range fingerprints {
		if discovered[path] {
			continue
		}
		if _, err := d.db.Exec("DELETE FROM indexed_files WHERE file_path = ?", path); err != nil {
			return pruned, err
		}
		delete(fingerprints, path)
	}
	return pruned, nil
}

// sessionStats accumulates rollups while messages stream through.
type sessionStats struct {
	messageCount   int
	userCount      int
	assistantCount int
	toolCallCount  int
	usage          parse.TokenUsage
	models         map[string]bool
	primaryModel   string
	firstPrompt    string
	firstTS        string
	lastTS         string
}

func (st *sessionStats) observe(m *parse.Message) {
	st.messageCount++
	switch m.Type {
	case "user":
		st.userCount++
		if st.firstPrompt == "" && strings.TrimSpace(m.ContentText) != "" {
			st.firstPrompt = truncate(strings.TrimSpace(m.ContentText), 500)
		}
	case "assistant":
		st.assistantCount++
	}
	st.usage.InputTokens += m.Usage.InputTokens
	st.usage.OutputTokens += m.Usage.OutputTokens
	st.usage.CacheReadTokens += m.Usage.CacheReadTokens
	st.usage.CacheCreationTokens += m.Usage.CacheCreationTokens
	if m.Model != "" {
		if st.primaryModel == "" {
			st.primaryModel = m.Model
		}
		st.models[m.Model] = true
	}
	if m.Timestamp != "" {
		if st.firstTS == "" || m.Timestamp < st.firstTS {
			st.firstTS = m.Timestamp
		}
		if st.lastTS == "" || m.Timestamp > st.lastTS {
			st.lastTS = m.Timestamp
		}
	}
}

func (st *sessionStats) modelsUsed() string {
	names := make([]string, 0, len(st.models))
	for m := range st.models {
		names = append(names, m)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

func (st *sessionStats) durationMS() int64 {
	first, ferr := parseTimestamp(st.firstTS)
	last, lerr := parseTimestamp(st.lastTS)
	if ferr != nil || lerr != nil {
		return 0
	}
	ms := last.Sub(first).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

func indexSession(d *DB, s scan.Session) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Replace prior rows for this file and this session id; cascades
	// clear messages and tool calls.
	if _, err := tx.Exec(
		"DELETE FROM sessions WHERE file_path = ? OR session_id = ?",
		s.FilePath, s.SessionID,
	); err != nil {
		return 0, err
	}

	// Shell row first so message FKs resolve; rollups land at the end.
	if _, err := tx.Exec(`
INSERT INTO sessions (session_id, project_id, provider, file_path,
                      first_prompt, summary, git_branch, cwd,
                      created_at, modified_at, is_sidechain)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.SessionID, s.ProjectID, s.Provider, s.FilePath,
		s.FirstPrompt, s.Summary, s.GitBranch, s.ProjectPath,
		s.Created, s.Modified, boolInt(s.IsSidechain),
	); err != nil {
		return 0, err
	}

	msgStmt, err := tx.Prepare(`
INSERT OR REPLACE INTO messages
    (session_id, uuid, parent_uuid, type, role, model,
     content_text, content_json,
     input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens,
     timestamp, is_sidechain, sequence_num, category_mask)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer msgStmt.Close()

	toolStmt, err := tx.Prepare(`
INSERT OR REPLACE INTO tool_calls
    (session_id, tool_use_id, message_uuid, tool_name, input_json, timestamp)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer toolStmt.Close()

	st := &sessionStats{models: make(map[string]bool)}
	pending := make([]parse.Message, 0, messageBatch)

	flush := func() error {
		for i := range pending {
			m := &pending[i]
			var parent any
			if m.ParentUUID != "" {
				parent = m.ParentUUID
			}
			mask := category.Classify(m.Type, m.Role, m.Blocks, m.ContentText)
			if _, err := msgStmt.Exec(
				s.SessionID, m.UUID, parent, m.Type, m.Role, m.Model,
				m.ContentText, m.BlocksJSON(),
				m.Usage.InputTokens, m.Usage.OutputTokens,
				m.Usage.CacheReadTokens, m.Usage.CacheCreationTokens,
				m.Timestamp, boolInt(m.IsSidechain), m.SequenceNum, int(mask),
			); err != nil {
				return err
			}
			for bi, b := range m.Blocks {
				if b.Type != "tool_use" || b.ToolUse == nil {
					continue
				}
				st.toolCallCount++
				id := b.ToolUse.ToolUseID
				if id == "" {
					id = fmt.Sprintf("%s:%d:%d", s.SessionID, m.SequenceNum, bi)
				}
				if _, err := toolStmt.Exec(
					s.SessionID, id, m.UUID, b.ToolUse.Name,
					b.ToolUse.InputJSON, m.Timestamp,
				); err != nil {
					return err
				}
			}
		}
		pending = pending[:0]
		return nil
	}

	err = parse.ParseSession(s.Provider, s.FilePath, s.SessionID, func(m parse.Message) error {
		st.observe(&m)
		pending = append(pending, m)
		if len(pending) >= messageBatch {
			return flush()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := flush(); err != nil {
		return 0, err
	}

	created := s.Created
	if created == "" {
		created = st.firstTS
	}
	modified := s.Modified
	if modified == "" {
		modified = st.lastTS
	}
	firstPrompt := s.FirstPrompt
	if firstPrompt == "" {
		firstPrompt = st.firstPrompt
	}
	if _, err := tx.Exec(`
UPDATE sessions SET
    first_prompt = ?,
    message_count = ?, user_message_count = ?, assistant_message_count = ?,
    tool_call_count = ?,
    total_input_tokens = ?, total_output_tokens = ?,
    total_cache_read_tokens = ?, total_cache_creation_tokens = ?,
    model = ?, models_used = ?,
    created_at = ?, modified_at = ?, duration_ms = ?
WHERE session_id = ?`,
		firstPrompt,
		st.messageCount, st.userCount, st.assistantCount,
		st.toolCallCount,
		st.usage.InputTokens, st.usage.OutputTokens,
		st.usage.CacheReadTokens, st.usage.CacheCreationTokens,
		st.primaryModel, st.modelsUsed(),
		created, modified, st.durationMS(),
		s.SessionID,
	); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`
INSERT OR REPLACE INTO indexed_files (file_path, file_mtime_ms, file_size, indexed_at)
VALUES (?, ?, ?, ?)`,
		s.FilePath, s.MtimeMS, s.FileSize, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return st.messageCount, nil
}

func recomputeProjectStats(d *DB) error {
	if _, err := d.db.Exec(`
UPDATE projects SET
    session_count = (SELECT COUNT(*) FROM sessions s WHERE s.project_id = projects.project_id),
    first_activity = COALESCE(
        (SELECT MIN(s.created_at) FROM sessions s
         WHERE s.project_id = projects.project_id AND s.created_at != ''), ''),
    last_activity = COALESCE(
        (SELECT MAX(s.modified_at) FROM sessions s
         WHERE s.project_id = projects.project_id AND s.modified_at != ''), '')`,
	); err != nil {
		return err
	}
	// Projects whose sessions all disappeared are dropped.
	_, err := d.db.Exec("DELETE FROM projects WHERE session_count = 0")
	return err
}

// parseTimestamp accepts RFC3339 with or without fractional seconds
// and a bare "2006-01-02T15:04:05" fallback.
func parseTimestamp(ts string) (time.Time, error) {
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", ts)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func shortID(id string) string {
	if i := strings.LastIndex(id, ":"); i >= 0 && i+1 < len(id) {
		id = id[i+1:]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
