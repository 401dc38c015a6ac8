package templates

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"resume-formatter/internal/shared/telemetry"
	"resume-formatter/internal/shared/util"
)

// maxEntrySize caps the uncompressed size of one archive entry.
const maxEntrySize = 5 << 20

const reasonSuperseded = "duplicate name, superseded by later entry"

type pendingEntry struct {
	entry string
	name  string
	body  string
}

// ImportArchive unpacks a ZIP archive held in memory and stores every valid
// template entry. Entries are checked before anything is written, so an
// archive that cannot be opened leaves the store untouched. Duplicate names
// resolve last-write-wins.
func (s *Store) ImportArchive(ctx context.Context, data []byte) (ImportReport, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	// Insecure entry names are reported per entry below.
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return ImportReport{}, &ArchiveError{Err: err}
	}

	report := ImportReport{Imported: []string{}, Rejected: []Rejection{}}
	var accepted []pendingEntry
	byName := make(map[string]int)

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}

		name, body, reason := readEntry(f)
		if reason != "" {
			report.Rejected = append(report.Rejected, Rejection{Entry: f.Name, Reason: reason})
			continue
		}

		if idx, dup := byName[name]; dup {
			report.Rejected = append(report.Rejected, Rejection{Entry: accepted[idx].entry, Reason: reasonSuperseded})
			accepted[idx] = pendingEntry{entry: f.Name, name: name, body: body}
			continue
		}
		byName[name] = len(accepted)
		accepted = append(accepted, pendingEntry{entry: f.Name, name: name, body: body})
	}

	for _, p := range accepted {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.write(ctx, p.name, p.body); err != nil {
			return report, err
		}
		report.Imported = append(report.Imported, p.name)
	}

	telemetry.Info("template.archive_imported", map[string]any{
		"imported": len(report.Imported),
		"rejected": len(report.Rejected),
	})
	return report, nil
}

// readEntry returns the template name and body for f, or a rejection reason.
func readEntry(f *zip.File) (name, body, reason string) {
	if isTraversal(f.Name) {
		return "", "", "path traversal in entry name"
	}
	if !HasTemplateExtension(f.Name) {
		return "", "", "unsupported extension, want .html or .htm"
	}

	name = path.Base(strings.ReplaceAll(f.Name, "\\", "/"))
	if err := util.ValidateName(name); err != nil {
		return "", "", "invalid template name"
	}
	if f.UncompressedSize64 > maxEntrySize {
		return "", "", fmt.Sprintf("entry exceeds %d bytes", maxEntrySize)
	}

	rc, err := f.Open()
	if err != nil {
		return "", "", fmt.Sprintf("unreadable entry: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return "", "", fmt.Sprintf("unreadable entry: %v", err)
	}
	if len(data) > maxEntrySize {
		return "", "", fmt.Sprintf("entry exceeds %d bytes", maxEntrySize)
	}
	if !utf8.Valid(data) {
		return "", "", "body is not valid UTF-8"
	}
	return name, string(data), ""
}

func isTraversal(entry string) bool {
	normalized := strings.ReplaceAll(entry, "\\", "/")
	if strings.HasPrefix(normalized, "/") || (len(normalized) > 1 && normalized[1] == ':') {
		return true
	}
	for _, seg := range strings.Split(normalized, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
