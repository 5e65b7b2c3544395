package index

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SessionRow is a row from the sessions table with per-session rollups.
type SessionRow struct {
	SessionID                string
	ProjectID                string
	Provider                 string
	FilePath                 string
	FirstPrompt              string
	Summary                  string
	MessageCount             int
	UserMessageCount         int
	AssistantMessageCount    int
	ToolCallCount            int
	TotalInputTokens         int
	TotalOutputTokens        int
	TotalCacheReadTokens     int
	TotalCacheCreationTokens int
	Model                    string
	ModelsUsed               string
	GitBranch                string
	Cwd                      string
	CreatedAt                string
	ModifiedAt               string
	DurationMS               int64
	IsSidechain              bool

	// Joined from projects for display.
	ProjectName string
	ProjectPath string
}

// MessageRow is a canonical message as stored.
type MessageRow struct {
	SessionID           string
	UUID                string
	ParentUUID          string
	Type                string
	Role                string
	Model               string
	ContentText         string
	ContentJSON         string
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
	Timestamp           string
	IsSidechain         bool
	SequenceNum         int
	CategoryMask        int
}

// ToolCallRow is a single tool invocation extracted at index time.
type ToolCallRow struct {
	SessionID   string
	ToolUseID   string
	MessageUUID string
	ToolName    string
	InputJSON   string
	Timestamp   string
}

// ProjectRow is a project with activity rollups.
type ProjectRow struct {
	ProjectID     string
	Provider      string
	ProjectPath   string
	ProjectName   string
	SessionCount  int
	FirstActivity string
	LastActivity  string
}

// ListOptions filters and orders ListSessions.
type ListOptions struct {
	ProjectID string
	Provider  string
	Model     string
	SortBy    string
	Limit     int
	Offset    int
}

// sortColumns whitelists user-supplied sort keys.
var sortColumns = map[string]string{
	"created_at":          "s.created_at",
	"modified_at":         "s.modified_at",
	"message_count":       "s.message_count",
	"tool_call_count":     "s.tool_call_count",
	"total_output_tokens": "s.total_output_tokens",
}

const sessionSelect = `
SELECT s.session_id, s.project_id, s.provider, s.file_path,
       s.first_prompt, s.summary,
       s.message_count, s.user_message_count, s.assistant_message_count,
       s.tool_call_count,
       s.total_input_tokens, s.total_output_tokens,
       s.total_cache_read_tokens, s.total_cache_creation_tokens,
       s.model, s.models_used, s.git_branch, s.cwd,
       s.created_at, s.modified_at, s.duration_ms, s.is_sidechain,
       COALESCE(p.project_name, ''), COALESCE(p.project_path, '')
FROM sessions s
LEFT JOIN projects p ON p.project_id = s.project_id
`

func scanSessionRow(scan func(dest ...any) error) (*SessionRow, error) {
	var s SessionRow
	var sidechain int
	err := scan(
		&s.SessionID, &s.ProjectID, &s.Provider, &s.FilePath,
		&s.FirstPrompt, &s.Summary,
		&s.MessageCount, &s.UserMessageCount, &s.AssistantMessageCount,
		&s.ToolCallCount,
		&s.TotalInputTokens, &s.TotalOutputTokens,
		&s.TotalCacheReadTokens, &s.TotalCacheCreationTokens,
		&s.Model, &s.ModelsUsed, &s.GitBranch, &s.Cwd,
		&s.CreatedAt, &s.ModifiedAt, &s.DurationMS, &sidechain,
		&s.ProjectName, &s.ProjectPath,
	)
	if err != nil {
		return nil, err
	}
	s.IsSidechain = sidechain != 0
	return &s, nil
}

// ListSessions returns a page of sessions plus the unpaged total.
func (d *DB) ListSessions(opts ListOptions) ([]SessionRow, int, error) {
	var conds []string
	var args []any
	if opts.ProjectID != "" {
		conds = append(conds, "s.project_id = ?")
		args = append(args, opts.ProjectID)
	}
	if opts.Provider != "" {
		conds = append(conds, "s.provider = ?")
		args = append(args, opts.Provider)
	}
	if opts.Model != "" {
		conds = append(conds, "(s.model = ? OR s.models_used LIKE ?)")
		args = append(args, opts.Model, "%"+opts.Model+"%")
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQ := "SELECT COUNT(*) FROM sessions s " + where
	if err := d.db.QueryRow(countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	order, ok := sortColumns[opts.SortBy]
	if !ok {
		order = "s.modified_at"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	q := sessionSelect + where + " ORDER BY " + order + " DESC LIMIT ? OFFSET ?"
	args = append(args, limit, opts.Offset)
	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		s, err := scanSessionRow(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *s)
	}
	return out, total, rows.Err()
}

// GetSession returns a single session, or nil when it does not exist.
func (d *DB) GetSession(sessionID string) (*SessionRow, error) {
	row := d.db.QueryRow(sessionSelect+"WHERE s.session_id = ?", sessionID)
	s, err := scanSessionRow(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// GetMessages returns a session's messages in conversation order.
// limit <= 0 means no limit.
func (d *DB) GetMessages(sessionID string, limit, offset int) ([]MessageRow, error) {
	q := `
SELECT session_id, uuid, COALESCE(parent_uuid, ''), type, role, model,
       content_text, content_json,
       input_tokens, output_tokens, cache_read_tokens, cache_creation_tokens,
       timestamp, is_sidechain, sequence_num, category_mask
FROM messages
WHERE session_id = ?
ORDER BY sequence_num`
	args := []any{sessionID}
	if limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var out []MessageRow
	for rows.Next() {
		var m MessageRow
		var sidechain int
		if err := rows.Scan(
			&m.SessionID, &m.UUID, &m.ParentUUID, &m.Type, &m.Role, &m.Model,
			&m.ContentText, &m.ContentJSON,
			&m.InputTokens, &m.OutputTokens, &m.CacheReadTokens, &m.CacheCreationTokens,
			&m.Timestamp, &sidechain, &m.SequenceNum, &m.CategoryMask,
		); err != nil {
			return nil, err
		}
		m.IsSidechain = sidechain != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetToolCalls returns a session's tool calls, optionally restricted to
// the given message UUIDs.
func (d *DB) GetToolCalls(sessionID string, messageUUIDs []string) ([]ToolCallRow, error) {
	q := `
SELECT session_id, tool_use_id, message_uuid, tool_name, input_json, timestamp
FROM tool_calls
WHERE session_id = ?`
	args := []any{sessionID}
	if len(messageUUIDs) > 0 {
		q += " AND message_uuid IN (" + placeholders(len(messageUUIDs)) + ")"
		for _, u := range messageUUIDs {
			args = append(args, u)
		}
	}
	q += " ORDER BY timestamp, tool_use_id"
	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("get tool calls: %w", err)
	}
	defer rows.Close()

	var out []ToolCallRow
	for rows.Next() {
		var t ToolCallRow
		if err := rows.Scan(
			&t.SessionID, &t.ToolUseID, &t.MessageUUID,
			&t.ToolName, &t.InputJSON, &t.Timestamp,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListProjects returns all projects ordered by most recent activity.
func (d *DB) ListProjects() ([]ProjectRow, error) {
	rows, err := d.db.Query(`
SELECT project_id, provider, project_path, project_name,
       session_count, first_activity, last_activity
FROM projects
ORDER BY last_activity DESC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var out []ProjectRow
	for rows.Next() {
		var p ProjectRow
		if err := rows.Scan(
			&p.ProjectID, &p.Provider, &p.ProjectPath, &p.ProjectName,
			&p.SessionCount, &p.FirstActivity, &p.LastActivity,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProject returns a single project, or nil when it does not exist.
func (d *DB) GetProject(projectID string) (*ProjectRow, error) {
	var p ProjectRow
	err := d.db.QueryRow(`
SELECT project_id, provider, project_path, project_name,
       session_count, first_activity, last_activity
FROM projects WHERE project_id = ?`, projectID).Scan(
		&p.ProjectID, &p.Provider, &p.ProjectPath, &p.ProjectName,
		&p.SessionCount, &p.FirstActivity, &p.LastActivity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Stats summarizes the whole index.
type Stats struct {
	ProjectCount      int
	SessionCount      int
	MessageCount      int
	ToolCallCount     int
	TotalInputTokens  int64
	TotalOutputTokens int64
}

func (d *DB) Stats() (*Stats, error) {
	var st Stats
	err := d.db.QueryRow(`
SELECT (SELECT COUNT(*) FROM projects),
       (SELECT COUNT(*) FROM sessions),
       (SELECT COUNT(*) FROM messages),
       (SELECT COUNT(*) FROM tool_calls),
       (SELECT COALESCE(SUM(total_input_tokens), 0) FROM sessions),
       (SELECT COALESCE(SUM(total_output_tokens), 0) FROM sessions)`,
	).Scan(
		&st.ProjectCount, &st.SessionCount, &st.MessageCount,
		&st.ToolCallCount, &st.TotalInputTokens, &st.TotalOutputTokens,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &st, nil
}

// HeatmapCounts buckets messages by weekday and hour. Rows run Monday
// through Sunday; SQLite's %w is Sunday-based, so the day is rotated.
func (d *DB) HeatmapCounts() ([7][24]int, error) {
	var counts [7][24]int
	rows, err := d.db.Query(`
SELECT CAST(strftime('%w', timestamp) AS INTEGER) AS dow,
       CAST(strftime('%H', timestamp) AS INTEGER) AS hour,
       COUNT(*)
FROM messages
WHERE timestamp != ''
GROUP BY dow, hour`)
	if err != nil {
		return counts, fmt.Errorf("heatmap: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dow, hour, n int
		if err := rows.Scan(&dow, &hour, &n); err != nil {
			return counts, err
		}
		if dow < 0 || dow > 6 || hour < 0 || hour > 23 {
			continue
		}
		counts[((dow-1)%7+7)%7][hour] = n
	}
	return counts, rows.Err()
}

// ToolUsageRow is the invocation count for one tool name.
type ToolUsageRow struct {
	ToolName string
	Count    int
}

// ToolUsage returns tool invocation counts, most used first.
func (d *DB) ToolUsage(limit int) ([]ToolUsageRow, error) {
	q := `
SELECT tool_name, COUNT(*) AS n
FROM tool_calls
GROUP BY tool_name
ORDER BY n DESC, tool_name`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := d.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("tool usage: %w", err)
	}
	defer rows.Close()

	var out []ToolUsageRow
	for rows.Next() {
		var t ToolUsageRow
		if err := rows.Scan(&t.ToolName, &t.Count); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
