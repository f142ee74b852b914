package storage

import (
	"regexp"
	"strings"
	"testing"
)

var keyPattern = regexp.MustCompile(`^covers/\d{13,}-[A-Za-z0-9._-]+$`)

func TestBuildKeyFormat(t *testing.T) {
	key := BuildKey(FolderCovers, "My Cover (final).png")
	if !keyPattern.MatchString(key) {
		t.Fatalf("unexpected key format: %q", key)
	}
	if !strings.HasSuffix(key, "-My_Cover__final_.png") {
		t.Fatalf("unexpected sanitized name in key: %q", key)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"chapter-1.pdf", "chapter-1.pdf"},
		{"../../etc/passwd", "passwd"},
		{`C:\uploads\book.pdf`, "book.pdf"},
		{"साइंस.pdf", "_____.pdf"},
		{"   spaced name.pdf", "spaced_name.pdf"},
		{"", "file"},
		{"///", "file"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
