package graph

import (
	"os"
	"path/filepath"
	"strings"
)

var sourceExtensions = map[string]bool{
	".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true, ".cjs": true, ".vue": true,
}

var excludedDirNames = map[string]bool{
	"node_modules": true, "test": true, "tests": true, "__tests__": true,
}

func isTestFile(name string) bool {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return strings.HasSuffix(base, ".test") || strings.HasSuffix(base, ".spec")
}

// discoverFiles recursively walks root, returning TypeScript/JavaScript/Vue
// source file paths. Declaration files (.d.ts), test-suffixed files, and
// descendants of node_modules/test/tests/__tests__ directories are
// excluded.
func discoverFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if excludedDirNames[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !sourceExtensions[ext] {
			return nil
		}
		if strings.HasSuffix(path, ".d.ts") {
			return nil
		}
		if isTestFile(filepath.Base(path)) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}
