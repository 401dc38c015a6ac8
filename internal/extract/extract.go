package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

const mimePDF = "application/pdf"

var (
	// ErrNotPDF is returned when the payload does not carry a PDF signature.
	ErrNotPDF = errors.New("input is not a PDF document")
	// ErrUnreadablePDF is returned when the PDF structure cannot be parsed.
	ErrUnreadablePDF = errors.New("input PDF is unreadable")
)

// Info describes a PDF payload before it is sent for parsing.
type Info struct {
	Pages     int  `json:"pages"`
	HasText   bool `json:"hasText"`
	TextBytes int  `json:"textBytes"`
}

// InspectPDF checks that data is a readable PDF and reports its page count
// and whether it carries an extractable text layer.
// Library used: github.com/ledongthuc/pdf.
func InspectPDF(ctx context.Context, data []byte) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	if len(data) == 0 || http.DetectContentType(data) != mimePDF {
		return Info{}, ErrNotPDF
	}

	reader, err := openPDF(data)
	if err != nil {
		return Info{}, errors.Wrap(ErrUnreadablePDF, err.Error())
	}

	info := Info{Pages: reader.NumPage()}
	if info.Pages == 0 {
		return info, errors.Wrap(ErrUnreadablePDF, "no pages")
	}

	// A missing text layer is not fatal: scanned resumes are still sent on.
	if text, err := plainText(reader); err == nil {
		trimmed := strings.TrimSpace(text)
		info.HasText = trimmed != ""
		info.TextBytes = len(trimmed)
	}
	return info, nil
}

// ExtractText returns the plain text of a PDF payload.
func ExtractText(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	reader, err := openPDF(data)
	if err != nil {
		return "", err
	}
	return plainText(reader)
}

// openPDF guards against panics raised by the parser on malformed input.
func openPDF(data []byte) (r *pdf.Reader, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("pdf parser panic: %v", rec)
		}
	}()
	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func plainText(reader *pdf.Reader) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("pdf text panic: %v", rec)
		}
	}()
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
