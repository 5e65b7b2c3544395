package scan

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdemirhan/cch/internal/config"
)

// sidecarEntry is one record of a Claude sessions-index.json sidecar.
// Values published here take precedence over values recomputed during
// parsing.
type sidecarEntry struct {
	SessionID    string `json:"sessionId"`
	ProjectPath  string `json:"projectPath"`
	FirstPrompt  string `json:"firstPrompt"`
	Summary      string `json:"summary"`
	MessageCount int    `json:"messageCount"`
	Created      string `json:"created"`
	Modified     string `json:"modified"`
	GitBranch    string `json:"gitBranch"`
	IsSidechain  bool   `json:"isSidechain"`
}

// loadSessionsIndex reads a project directory's sidecar index keyed by
// session ID. Missing or malformed sidecars return an empty map so
// discovery never fails.
func loadSessionsIndex(projectDir string) map[string]sidecarEntry {
	data, err := os.ReadFile(filepath.Join(projectDir, "sessions-index.json"))
	if err != nil {
		return map[string]sidecarEntry{}
	}

	var index struct {
		Entries []sidecarEntry `json:"entries"`
	}
	if err := json.Unmarshal(data, &index); err != nil {
		return map[string]sidecarEntry{}
	}

	byID := make(map[string]sidecarEntry, len(index.Entries))
	for _, entry := range index.Entries {
		if entry.SessionID != "" {
			byID[entry.SessionID] = entry
		}
	}
	return byID
}

// codexMeta is the metadata a head-scan of a Codex session yields.
type codexMeta struct {
	SourceSessionID string
	ProjectPath     string
	Created         string
	Modified        string
	GitBranch       string
}

const codexMetaScanLines = 120

// scanCodexMeta reads at most the first codexMetaScanLines lines of a
// Codex session for its session_meta payload and timestamps, without
// a full parse. Unreadable files yield empty metadata.
func scanCodexMeta(path string) codexMeta {
	var meta codexMeta

	f, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if lineNum > codexMetaScanLines {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec struct {
			Timestamp string `json:"timestamp"`
			Type      string `json:"type"`
			Payload   struct {
				ID  string `json:"id"`
				Cwd string `json:"cwd"`
				Git *struct {
					Branch string `json:"branch"`
				} `json:"git"`
			} `json:"payload"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}

		if rec.Timestamp != "" {
			if meta.Created == "" {
				meta.Created = rec.Timestamp
			}
			meta.Modified = rec.Timestamp
		}

		if rec.Type == "session_meta" {
			if rec.Payload.ID != "" {
				meta.SourceSessionID = rec.Payload.ID
			}
			if rec.Payload.Cwd != "" {
				meta.ProjectPath = rec.Payload.Cwd
			}
			if rec.Payload.Git != nil {
				meta.GitBranch = rec.Payload.Git.Branch
			}
			if meta.SourceSessionID != "" && meta.ProjectPath != "" {
				break
			}
		}
	}
	return meta
}

// geminiDoc holds the identity fields read from a Gemini session
// document during discovery.
type geminiDoc struct {
	SessionID   string `json:"sessionId"`
	ProjectHash string `json:"projectHash"`
	StartTime   string `json:"startTime"`
	LastUpdated string `json:"lastUpdated"`
}

func loadGeminiDocument(path string) *geminiDoc {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc geminiDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return &doc
}

// buildGeminiHashMap maps SHA-256 project hashes to project paths,
// gathered from projects.json and .project_root marker files.
func buildGeminiHashMap(cfg *config.Config) map[string]string {
	hashToPath := make(map[string]string)

	if data, err := os.ReadFile(filepath.Join(cfg.GeminiRoot, "projects.json")); err == nil {
		var payload struct {
			Projects map[string]json.RawMessage `json:"projects"`
		}
		if json.Unmarshal(data, &payload) == nil {
			for projectPath := range payload.Projects {
				if strings.TrimSpace(projectPath) != "" {
					hashToPath[geminiProjectHash(projectPath)] = projectPath
				}
			}
		}
	}

	for _, dir := range []string{filepath.Join(cfg.GeminiRoot, "history"), cfg.GeminiTmpDir()} {
		markers, err := filepath.Glob(filepath.Join(dir, "*", ".project_root"))
		if err != nil {
			continue
		}
		for _, marker := range markers {
			projectPath := strings.TrimSpace(readFileString(marker))
			if projectPath != "" {
				hashToPath[geminiProjectHash(projectPath)] = projectPath
			}
		}
	}
	return hashToPath
}
