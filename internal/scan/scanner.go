// Package scan discovers session files across the three provider
// source trees and resolves stable project/session identities.
package scan

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mdemirhan/cch/internal/config"
	"github.com/mdemirhan/cch/internal/parse"
)

// Session describes one discovered session file with the metadata
// needed for incremental indexing. Enrichment fields (FirstPrompt,
// Summary, counts, GitBranch) are best-effort and default to empty.
type Session struct {
	SessionID       string
	SourceSessionID string
	Provider        string
	FilePath        string
	ProjectID       string
	ProjectPath     string
	ProjectName     string
	MtimeMS         int64
	FileSize        int64
	FirstPrompt     string
	Summary         string
	MessageCount    int
	Created         string
	Modified        string
	GitBranch       string
	IsSidechain     bool
}

// Discover enumerates all provider trees. Missing directories yield
// empty results, never errors; discovery cannot fail the run. Results
// are sorted by mtime descending.
func Discover(cfg *config.Config) []Session {
	var sessions []Session
	sessions = append(sessions, discoverClaude(cfg.ClaudeRoot)...)
	sessions = append(sessions, discoverCodex(cfg.CodexRoot)...)
	sessions = append(sessions, discoverGemini(cfg)...)

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].MtimeMS > sessions[j].MtimeMS
	})
	return sessions
}

// discoverClaude walks <root>/<project-dir>/*.jsonl. Each project dir
// may carry a sessions-index.json sidecar whose entries enrich the
// descriptors; a missing or malformed sidecar degrades silently.
func discoverClaude(root string) []Session {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var sessions []Session
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projectDirID := entry.Name()
		projectDir := filepath.Join(root, projectDirID)
		index := loadSessionsIndex(projectDir)

		files, err := os.ReadDir(projectDir)
		if err != nil {
			continue
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.HasSuffix(name, ".jsonl") {
				continue
			}
			if strings.HasPrefix(name, "agent-") || strings.Contains(name, "sessions-index") {
				continue
			}
			path := filepath.Join(projectDir, name)
			info, err := os.Stat(path)
			if err != nil {
				continue
			}

			sourceID := strings.TrimSuffix(name, ".jsonl")
			meta := index[sourceID]
			projectPath := strings.TrimSpace(meta.ProjectPath)
			if projectPath == "" {
				projectPath = decodeProjectID(projectDirID)
			}

			sessions = append(sessions, Session{
				SessionID:       sourceID,
				SourceSessionID: sourceID,
				Provider:        parse.ProviderClaude,
				FilePath:        path,
				ProjectID:       providerProjectID(parse.ProviderClaude, projectPath, projectDirID),
				ProjectPath:     projectPath,
				ProjectName:     projectNameFromPath(projectPath),
				MtimeMS:         info.ModTime().UnixMilli(),
				FileSize:        info.Size(),
				FirstPrompt:     meta.FirstPrompt,
				Summary:         meta.Summary,
				MessageCount:    meta.MessageCount,
				Created:         meta.Created,
				Modified:        meta.Modified,
				GitBranch:       meta.GitBranch,
				IsSidechain:     meta.IsSidechain,
			})
		}
	}
	return sessions
}

// discoverCodex walks the date-partitioned tree for *.jsonl files and
// head-scans each for session metadata.
func discoverCodex(root string) []Session {
	var sessions []Session
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable dirs
		}
		if info.IsDir() || filepath.Ext(path) != ".jsonl" {
			return nil
		}

		meta := scanCodexMeta(path)
		sourceID := meta.SourceSessionID
		if sourceID == "" {
			sourceID = strings.TrimSuffix(filepath.Base(path), ".jsonl")
		}

		projectPath := meta.ProjectPath
		projectName := "Unknown"
		if projectPath != "" {
			projectName = projectNameFromPath(projectPath)
		}

		sessions = append(sessions, Session{
			SessionID:       providerSessionID(parse.ProviderCodex, sourceID, path),
			SourceSessionID: sourceID,
			Provider:        parse.ProviderCodex,
			FilePath:        path,
			ProjectID:       providerProjectID(parse.ProviderCodex, projectPath, filepath.Dir(path)),
			ProjectPath:     projectPath,
			ProjectName:     projectName,
			MtimeMS:         info.ModTime().UnixMilli(),
			FileSize:        info.Size(),
			Created:         meta.Created,
			Modified:        meta.Modified,
			GitBranch:       meta.GitBranch,
		})
		return nil
	})
	return sessions
}

// discoverGemini walks <gemini>/tmp for session-*.json documents,
// resolving project paths through the hash map built from
// projects.json and .project_root markers.
func discoverGemini(cfg *config.Config) []Session {
	tmpDir := cfg.GeminiTmpDir()
	if info, err := os.Stat(tmpDir); err != nil || !info.IsDir() {
		return nil
	}

	hashToPath := buildGeminiHashMap(cfg)
	var sessions []Session
	filepath.Walk(tmpDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		base := filepath.Base(path)
		if !strings.HasPrefix(base, "session-") || !strings.HasSuffix(base, ".json") {
			return nil
		}

		doc := loadGeminiDocument(path)
		if doc == nil {
			return nil
		}

		sourceID := doc.SessionID
		if sourceID == "" {
			sourceID = strings.TrimSuffix(base, ".json")
		}

		// tmp/<hash>/sessions/<dir>/session-*.json
		hashDir := filepath.Dir(filepath.Dir(filepath.Dir(path)))
		projectPath := hashToPath[doc.ProjectHash]
		if projectPath == "" {
			projectPath = strings.TrimSpace(readFileString(filepath.Join(hashDir, ".project_root")))
			if projectPath != "" && doc.ProjectHash != "" {
				hashToPath[doc.ProjectHash] = projectPath
			}
		}

		projectName := projectNameFromPath(projectPath)
		if projectName == "Unknown" {
			projectName = filepath.Base(hashDir)
		}

		fallback := doc.ProjectHash
		if fallback == "" {
			fallback = filepath.Base(hashDir)
		}

		sessions = append(sessions, Session{
			SessionID:       providerSessionID(parse.ProviderGemini, sourceID, path),
			SourceSessionID: sourceID,
			Provider:        parse.ProviderGemini,
			FilePath:        path,
			ProjectID:       providerProjectID(parse.ProviderGemini, projectPath, fallback),
			ProjectPath:     projectPath,
			ProjectName:     projectName,
			MtimeMS:         info.ModTime().UnixMilli(),
			FileSize:        info.Size(),
			Created:         doc.StartTime,
			Modified:        doc.LastUpdated,
		})
		return nil
	})
	return sessions
}

// decodeProjectID turns a Claude project directory name like
// "-Users-foo-src-myproject" into "/Users/foo/src/myproject".
func decodeProjectID(projectID string) string {
	if projectID == "" {
		return ""
	}
	return strings.ReplaceAll(projectID, "-", "/")
}

// projectNameFromPath derives a display name from the last path
// segment, defaulting to "Unknown".
func projectNameFromPath(projectPath string) string {
	trimmed := strings.TrimRight(projectPath, "/")
	if trimmed == "" {
		return "Unknown"
	}
	parts := strings.Split(trimmed, "/")
	name := parts[len(parts)-1]
	if name == "" {
		return "Unknown"
	}
	return name
}

// providerProjectID builds a provider-scoped stable project ID from a
// hashed path seed.
func providerProjectID(provider, projectPath, fallback string) string {
	seed := strings.TrimRight(strings.TrimSpace(projectPath), "/")
	if seed == "" {
		seed = strings.TrimSpace(fallback)
	}
	if seed == "" {
		seed = "unknown"
	}
	sum := sha1.Sum([]byte(provider + ":" + seed))
	return fmt.Sprintf("%s:%s", provider, hex.EncodeToString(sum[:])[:16])
}

// providerSessionID scopes a source session ID. Claude IDs stay as-is;
// other providers may duplicate IDs across copied temp folders, so a
// short path digest disambiguates.
func providerSessionID(provider, sourceID, path string) string {
	if provider == parse.ProviderClaude {
		return sourceID
	}
	sum := sha1.Sum([]byte(path))
	return fmt.Sprintf("%s:%s:%s", provider, sourceID, hex.EncodeToString(sum[:])[:8])
}

func geminiProjectHash(projectPath string) string {
	sum := sha256.Sum256([]byte(projectPath))
	return hex.EncodeToString(sum[:])
}

func readFileString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
