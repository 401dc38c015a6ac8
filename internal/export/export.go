package export

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"resume-formatter/internal/render"
	"resume-formatter/internal/shared/util"
)

// Format is a downloadable artifact encoding.
type Format string

// Supported formats.
const (
	FormatHTML   Format = "HTML"
	FormatJSON   Format = "JSON"
	FormatBase64 Format = "BASE64"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown export format")

// Artifact is an encoded download.
type Artifact struct {
	Format      Format
	Bytes       []byte
	Filename    string
	ContentType string
}

// ParseFormat maps names like "html", "json" or "base64" to a Format.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "HTML":
		return FormatHTML, nil
	case "JSON":
		return FormatJSON, nil
	case "BASE64", "B64":
		return FormatBase64, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%q", raw)
	}
}

// Export encodes one artifact of a finished run. sourceFilename names the
// original upload and drives the suggested download name.
func Export(format Format, result render.Result, data map[string]any, original []byte, sourceFilename string) (Artifact, error) {
	stem := util.FileStem(sourceFilename)
	if stem == "" {
		stem = "resume"
	}

	switch format {
	case FormatHTML:
		return Artifact{
			Format:      FormatHTML,
			Bytes:       []byte(result.HTML),
			Filename:    stem + "_formatted.html",
			ContentType: "text/html; charset=utf-8",
		}, nil
	case FormatJSON:
		b, err := EncodeJSON(data)
		if err != nil {
			return Artifact{}, err
		}
		return Artifact{
			Format:      FormatJSON,
			Bytes:       b,
			Filename:    stem + "_data.json",
			ContentType: "application/json",
		}, nil
	case FormatBase64:
		return Artifact{
			Format:      FormatBase64,
			Bytes:       []byte(base64.StdEncoding.EncodeToString(original)),
			Filename:    stem + "_base64.txt",
			ContentType: "text/plain; charset=utf-8",
		}, nil
	default:
		return Artifact{}, errors.Wrapf(ErrUnknownFormat, "%q", string(format))
	}
}

// EncodeJSON serializes data with two-space indentation after checking that
// every value in the tree can be represented in JSON.
func EncodeJSON(data map[string]any) ([]byte, error) {
	if data == nil {
		data = map[string]any{}
	}
	if err := checkSerializable("$", data); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return nil, &SerializationError{Path: "$", Reason: err.Error()}
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SerializationError names the first value that cannot be encoded.
type SerializationError struct {
	Path   string
	Reason string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize %s: %s", e.Path, e.Reason)
}
