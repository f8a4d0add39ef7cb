package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minLineRunes = 3

var artifactPattern = regexp.MustCompile(`(?i)\b(?:https?|www|google|pdf|eng|in|\d*px|\d*dpi)\b`)

// Normalize strips OCR noise from raw recognizer output: every line is
// trimmed, and lines that are too short or carry a scanner/URL artifact
// marker are dropped. Line order is preserved.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minLineRunes {
			continue
		}
		if artifactPattern.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
