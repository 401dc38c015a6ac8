package extract

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
)

// minimalPDF builds a one-page PDF with a correct cross-reference table.
func minimalPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestInspectPDFReadsPages(t *testing.T) {
	info, err := InspectPDF(context.Background(), minimalPDF("Jane Doe"))
	if err != nil {
		t.Fatalf("InspectPDF: %v", err)
	}
	if info.Pages != 1 {
		t.Fatalf("Pages = %d, want 1", info.Pages)
	}
}

func TestInspectPDFRejectsNonPDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "html", data: []byte("<html><body>cv</body></html>")},
		{name: "zip", data: []byte("PK\x03\x04rest")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := InspectPDF(context.Background(), tt.data); !errors.Is(err, ErrNotPDF) {
				t.Fatalf("err = %v, want ErrNotPDF", err)
			}
		})
	}
}

func TestInspectPDFRejectsCorruptBody(t *testing.T) {
	_, err := InspectPDF(context.Background(), []byte("%PDF-1.4\nthis is not really a pdf"))
	if !errors.Is(err, ErrUnreadablePDF) {
		t.Fatalf("err = %v, want ErrUnreadablePDF", err)
	}
}

func TestInspectPDFHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := InspectPDF(ctx, minimalPDF("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
