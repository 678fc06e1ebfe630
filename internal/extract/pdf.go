package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	pdfx "github.com/ledongthuc/pdf"
)

// IsPDF reports whether buf starts with the PDF magic or contentType names PDF.
func IsPDF(buf []byte, contentType string) bool {
	return bytes.HasPrefix(buf, []byte("%PDF-")) || strings.Contains(strings.ToLower(contentType), "pdf")
}

// PDFText extracts the plain text of up to maxPages pages.
func PDFText(buf []byte, maxPages int) (text string, pages int, err error) {
	if len(buf) == 0 {
		return "", 0, errors.New("empty pdf")
	}
	r, err := pdfx.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}
	total := r.NumPage()
	if maxPages <= 0 || maxPages > total {
		maxPages = total
	}
	var out strings.Builder
	for i := 1; i <= maxPages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		txt, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if t := strings.TrimSpace(txt); t != "" {
			out.WriteString(t)
			out.WriteString("\n\n")
		}
	}
	return strings.TrimSpace(out.String()), total, nil
}
