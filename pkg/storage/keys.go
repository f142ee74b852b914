package storage

import (
	"fmt"
	"strings"
	"time"
)

// Object key folders for the three upload kinds.
const (
	FolderCovers        = "covers"
	FolderChapters      = "chapters"
	FolderChapterImages = "chapter-images"
)

// BuildKey produces `<folder>/<unixMillis>-<sanitizedFilename>`. The
// timestamp prefix keeps re-uploads of the same filename from colliding.
func BuildKey(folder, filename string) string {
	return fmt.Sprintf("%s/%d-%s", folder, time.Now().UnixMilli(), SanitizeFilename(filename))
}

// SanitizeFilename strips path separators and characters that are awkward in
// object keys or URLs.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
