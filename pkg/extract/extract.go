// Package extract turns uploaded files into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/papercomputeco/docchat/pkg/errs"
)

const (
	MimePDF  = "application/pdf"
	MimeText = "text/plain"
)

// pageSeparator joins the text of consecutive PDF pages.
const pageSeparator = "\n\n"

// MediaType returns the lowercase media type of a Content-Type value with
// its parameters stripped.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// Supported reports whether Extract accepts the content type.
func Supported(contentType string) bool {
	switch MediaType(contentType) {
	case MimePDF, MimeText:
		return true
	}
	return false
}

// Extract returns the text content of data. Unsupported types and
// unreadable files fail with errs.ErrValidation.
func Extract(ctx context.Context, contentType string, data []byte) (string, error) {
	switch MediaType(contentType) {
	case MimeText:
		if !utf8.Valid(data) {
			return "", errs.Validation("text file is not valid UTF-8")
		}
		return string(data), nil

	case MimePDF:
		return extractPDF(ctx, data)

	default:
		return "", errs.Validation("unsupported content type %q", contentType)
	}
}

func extractPDF(ctx context.Context, data []byte) (text string, err error) {
	// The PDF parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", errs.Validation("unreadable pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errs.Validation("unreadable pdf: %v", err)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", errs.Validation("reading pdf page %d: %v", i, err)
		}
		if s := strings.TrimSpace(content); s != "" {
			pages = append(pages, s)
		}
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("%w: pdf has no extractable text", errs.ErrValidation)
	}
	return strings.Join(pages, pageSeparator), nil
}
