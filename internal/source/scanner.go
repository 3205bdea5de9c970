package source

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanDir walks the Claude projects directory and discovers all JSONL session
// files, newest first.
func ScanDir(claudeDir string) ([]DiscoveredFile, error) {
	projectsDir := filepath.Join(claudeDir, "projects")

	info, err := os.Stat(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, nil
	}

	var files []DiscoveredFile

	err = filepath.WalkDir(projectsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // skip unreadable entries
		}
		if d.IsDir() || filepath.Ext(path) != ".jsonl" {
			return nil
		}

		rel, _ := filepath.Rel(projectsDir, path)
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) < 2 {
			return nil
		}

		name := d.Name()
		df := DiscoveredFile{
			Path:       path,
			Project:    decodeProjectName(parts[0]),
			ProjectDir: parts[0],
		}
		if fi, err := d.Info(); err == nil {
			df.ModTime = fi.ModTime()
		}

		// <project>/<session-uuid>/subagents/agent-<id>.jsonl
		if len(parts) >= 4 && parts[2] == "subagents" {
			df.IsSubagent = true
			df.ParentSession = parts[1]
			df.SessionID = parts[1] + "/" + strings.TrimSuffix(name, ".jsonl")
		} else {
			df.SessionID = strings.TrimSuffix(name, ".jsonl")
		}

		files = append(files, df)
		return nil
	})

	sort.SliceStable(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
	return files, err
}

// LatestTranscript returns the most recently modified main-session transcript,
// optionally restricted to a project name. It reports false if none exist.
func LatestTranscript(claudeDir, project string) (DiscoveredFile, bool, error) {
	files, err := ScanDir(claudeDir)
	if err != nil {
		return DiscoveredFile{}, false, err
	}
	for _, f := range files {
		if f.IsSubagent {
			continue
		}
		if project != "" && !strings.EqualFold(f.Project, project) {
			continue
		}
		return f, true, nil
	}
	return DiscoveredFile{}, false, nil
}

// decodeProjectName extracts a human-readable project name from the encoded directory name.
// Claude Code encodes absolute paths by replacing "/" with "-", so:
//
//	"-Users-alice-projects-gitlore" -> "gitlore"
//	"-Users-alice-projects-my-cool-project" -> "my-cool-project"
func decodeProjectName(dirName string) string {
	parts := strings.Split(dirName, "-")

	knownParents := map[string]bool{
		"projects": true, "repos": true, "src": true,
		"code": true, "workspace": true, "dev": true,
	}

	for i := len(parts) - 2; i >= 0; i-- {
		if knownParents[strings.ToLower(parts[i])] {
			if name := strings.Join(parts[i+1:], "-"); name != "" {
				return name
			}
		}
	}

	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return dirName
}
