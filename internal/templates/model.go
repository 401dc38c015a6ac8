package templates

import (
	"path"
	"strings"
)

// Template is a named HTML template body.
type Template struct {
	Name string `json:"name"`
	Body string `json:"body"`
}

// Rejection names an archive entry that was not imported and why.
type Rejection struct {
	Entry  string `json:"entry"`
	Reason string `json:"reason"`
}

// ImportReport summarizes an archive import.
type ImportReport struct {
	Imported []string    `json:"imported"`
	Rejected []Rejection `json:"rejected"`
}

// DefaultExtension is appended to names that lack an accepted extension.
const DefaultExtension = ".html"

// HasTemplateExtension reports whether name ends in .html or .htm.
func HasTemplateExtension(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
		return true
	default:
		return false
	}
}
