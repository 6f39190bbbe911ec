package skills

import (
	"os"
	"path/filepath"
	"sort"

	"finch/pkg/logger"
)

// ScanDir loads every skill file directly under dir, in name order. A
// missing directory yields no skills. Invalid files are logged and
// skipped.
func ScanDir(dir string) ([]*File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var files []*File
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() || !IsSkillFile(path) {
			continue
		}
		f, err := ParseFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Skipping invalid skill file")
			continue
		}
		files = append(files, f)
	}
	return files, nil
}
