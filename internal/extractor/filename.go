package extractor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// illegalFilenameChars covers path separators and the characters most
// filesystems reject. Runs of them collapse to a single underscore.
const illegalFilenameChars = "/\\:*?\"<>|\x00"

// sanitiseFilename strips characters which cannot appear in a filename
// and normalises whitespace so titles from arbitrary sources produce a
// stable on-disk name.
func sanitiseFilename(raw string) string {
	var builder strings.Builder
	lastWasUnderscore := false
	for _, r := range raw {
		if strings.ContainsRune(illegalFilenameChars, r) || r < 0x20 {
			if !lastWasUnderscore {
				builder.WriteRune('_')
				lastWasUnderscore = true
			}
			continue
		}
		builder.WriteRune(r)
		lastWasUnderscore = false
	}

	name := strings.TrimSpace(builder.String())
	if name == "" {
		return "untitled"
	}
	return name
}

// uniqueArtifactPath derives the deterministic download path for the
// given title/author inside dir, suffixing ' (n)' until the name does
// not collide with an existing file. The same title resolved twice
// therefore never overwrites the earlier artifact.
func uniqueArtifactPath(dir string, title string, author string, ext string) string {
	base := sanitiseFilename(fmt.Sprintf("%s - %s", title, author))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	candidate := filepath.Join(dir, base+ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(candidate); err != nil {
			return candidate
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, n, ext))
	}
}
