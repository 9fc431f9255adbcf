package hooks

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

var excludedMarkdownDirs = map[string]bool{
	"node_modules": true, ".git": true,
}

// discoverMarkdown recursively walks root for .md/.markdown files.
func discoverMarkdown(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if excludedMarkdownDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".md" || ext == ".markdown" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// discoverTranscripts finds transcript files under dir whose modification
// time falls within the session window [since, now]. When since is the
// zero value (no startTime was recovered), it falls back to the last two
// hours. A missing dir yields no transcripts rather than an error, since
// not every caller configures transcript capture.
func discoverTranscripts(dir string, since time.Time) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	if since.IsZero() {
		since = time.Now().Add(-2 * time.Hour)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(since) {
			continue
		}
		candidates = append(candidates, candidate{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.Before(candidates[j].modTime) })

	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.path
	}
	return out, nil
}
