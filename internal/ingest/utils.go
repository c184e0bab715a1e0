package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/resume-parser/constants"
)

// Parsable reports whether path has an extension the pipeline accepts.
func Parsable(path string) bool {
	return constants.IsAllowedExt(filepath.Ext(path))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
// Office lock files (~$name.docx) count as hidden too.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$")
}
