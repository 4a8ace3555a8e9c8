package ingest

import (
	"path/filepath"
	"strings"
)

// normalizeSpace collapses multiple spaces into one and trims the string.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanLines normalizes whitespace on each line and drops blank runs.
func cleanLines(block string) string {
	block = strings.ReplaceAll(block, "\r\n", "\n")
	block = strings.ReplaceAll(block, "\r", "\n")

	var out []string
	blank := false
	for _, raw := range strings.Split(block, "\n") {
		s := normalizeSpace(raw)
		if s == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, s)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// baseName strips any directory part, including Windows-style paths some
// browsers send with uploads.
func baseName(filename string) string {
	return filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
}

// ContractIDFromFilename is the upload's base name without its last extension.
func ContractIDFromFilename(filename string) string {
	base := baseName(filename)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return strings.TrimSpace(base)
}
