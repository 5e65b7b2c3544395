// Package search runs full-text queries against the message index and
// computes facet counts for the result set.
package search

import (
	"fmt"
	"strings"

	"github.com/mdemirhan/cch/internal/category"
	"github.com/mdemirhan/cch/internal/index"
)

// Options is a single search request.
type Options struct {
	Query string
	// Categories restricts results to messages matching any of the
	// named categories. Empty means all.
	Categories []string
	ProjectID  string
	Providers  []string
	// ProjectQuery is a case-insensitive substring match on the
	// project name.
	ProjectQuery string
	Limit        int
	Offset       int
}

// Result is one search hit.
type Result struct {
	MessageUUID string
	SessionID   string
	ProjectID   string
	ProjectName string
	Provider    string
	MessageType string
	Role        string
	Snippet     string
	Timestamp   string
}

// Results is a page of hits plus the unpaged total and per-category
// facet counts. Facets ignore the category filter so the counts stay
// stable while the user toggles category chips.
type Results struct {
	Query       string
	Results     []Result
	TotalCount  int
	FacetCounts map[string]int
}

type Engine struct {
	db *index.DB
}

func NewEngine(db *index.DB) *Engine {
	return &Engine{db: db}
}

// Search executes a full-text query. A blank or whitespace-only query
// returns an empty result set with zeroed facets rather than matching
// everything.
func (e *Engine) Search(opts Options) (*Results, error) {
	res := &Results{
		Query:       opts.Query,
		FacetCounts: zeroFacets(),
	}
	ftsQuery := escapeFTSQuery(opts.Query)
	if ftsQuery == "" {
		return res, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	// Conditions shared by the result, count and facet queries; the
	// category filter applies only to the first two.
	var conds []string
	args := []any{ftsQuery}
	if opts.ProjectID != "" {
		conds = append(conds, "s.project_id = ?")
		args = append(args, opts.ProjectID)
	}
	if len(opts.Providers) > 0 {
		ph := strings.TrimSuffix(strings.Repeat("?,", len(opts.Providers)), ",")
		conds = append(conds, "s.provider IN ("+ph+")")
		for _, p := range opts.Providers {
			args = append(args, p)
		}
	}
	if opts.ProjectQuery != "" {
		conds = append(conds, "LOWER(COALESCE(p.project_name, '')) LIKE ?")
		args = append(args, "%"+strings.ToLower(opts.ProjectQuery)+"%")
	}

	baseFrom := `
FROM messages_fts f
JOIN messages m ON m.rowid = f.rowid
JOIN sessions s ON s.session_id = m.session_id
LEFT JOIN projects p ON p.project_id = s.project_id
WHERE messages_fts MATCH ?`
	baseWhere := ""
	if len(conds) > 0 {
		baseWhere = " AND " + strings.Join(conds, " AND ")
	}

	catArgs := args
	catWhere := baseWhere
	mask := category.MaskForKeys(category.NormalizeKeys(opts.Categories))
	if len(opts.Categories) > 0 && mask != 0 {
		catWhere += " AND m.category_mask & ? != 0"
		catArgs = append(append([]any{}, args...), int(mask))
	}

	countQ := "SELECT COUNT(*)" + baseFrom + catWhere
	if err := e.db.Raw().QueryRow(countQ, catArgs...).Scan(&res.TotalCount); err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}

	facetQ := "SELECT m.category_mask, COUNT(*)" + baseFrom + baseWhere + " GROUP BY m.category_mask"
	frows, err := e.db.Raw().Query(facetQ, args...)
	if err != nil {
		return nil, fmt.Errorf("facet counts: %w", err)
	}
	for frows.Next() {
		var m, n int
		if err := frows.Scan(&m, &n); err != nil {
			frows.Close()
			return nil, err
		}
		for _, key := range category.KeysForMask(category.Mask(m)) {
			res.FacetCounts[key] += n
		}
	}
	if err := frows.Err(); err != nil {
		frows.Close()
		return nil, err
	}
	frows.Close()

	resultQ := `
SELECT m.uuid, m.session_id, s.project_id,
       COALESCE(p.project_name, ''), s.provider,
       m.type, m.role,
       snippet(messages_fts, 0, '<mark>', '</mark>', '...', 64),
       m.timestamp` +
		baseFrom + catWhere + `
ORDER BY rank, m.rowid
LIMIT ? OFFSET ?`
	qargs := append(append([]any{}, catArgs...), limit, opts.Offset)
	rows, err := e.db.Raw().Query(resultQ, qargs...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r Result
		if err := rows.Scan(
			&r.MessageUUID, &r.SessionID, &r.ProjectID,
			&r.ProjectName, &r.Provider,
			&r.MessageType, &r.Role, &r.Snippet, &r.Timestamp,
		); err != nil {
			return nil, err
		}
		res.Results = append(res.Results, r)
	}
	return res, rows.Err()
}

func zeroFacets() map[string]int {
	facets := make(map[string]int, len(category.Keys))
	for _, k := range category.Keys {
		facets[k] = 0
	}
	return facets
}

// escapeFTSQuery turns free text into an FTS5 query that cannot be
// derailed by operator syntax. Each whitespace-delimited term becomes a
// quoted string with embedded quotes doubled; terms are implicitly
// ANDed.
func escapeFTSQuery(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		quoted = append(quoted, `"`+strings.ReplaceAll(f, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}
