package intake

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/safesite-labs/sitelog-intake/constants"
	"github.com/safesite-labs/sitelog-intake/internal/entity"
)

// ScanStats summarizes a directory scan.
type ScanStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
}

// AllowedExt checks if a file extension is in the allowed scan set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// ScanDirectory collects the eligible scan files directly under root, in
// name order, reading each into a payload ready for enqueueing.
func ScanDirectory(root string, skipHidden bool) ([]entity.Payload, ScanStats, error) {
	var stats ScanStats

	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, stats, fmt.Errorf("read dir %s: %w", root, err)
	}
	sort.Slice(dirents, func(i, j int) bool { return dirents[i].Name() < dirents[j].Name() })

	var out []entity.Payload
	for _, de := range dirents {
		if de.IsDir() {
			continue
		}
		stats.Scanned++
		name := de.Name()
		if skipHidden && IsHidden(name) {
			stats.Skipped++
			continue
		}
		ext := filepath.Ext(name)
		if !AllowedExt(ext) {
			stats.Skipped++
			continue
		}
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			return nil, stats, fmt.Errorf("read %s: %w", name, err)
		}
		stats.Matched++
		out = append(out, entity.Payload{
			Filename: name,
			MIMEType: constants.MIMEForExt(ext),
			Data:     data,
		})
	}
	return out, stats, nil
}
