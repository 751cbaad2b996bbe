package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"validert/internal/document"
	"validert/internal/util"
)

const (
	MethodPDFText   = "pdf_text"
	MethodPlainText = "plain_text"
)

// Result is the byte-stable paginated text of one report. Its hash is the document
// hash, so the same file must always produce the same Text.
type Result struct {
	Text   string `json:"text"`
	Pages  int    `json:"pages"`
	Method string `json:"method"`
}

// File extracts a PDF page by page, or reads a text file that already follows the
// page-marker convention.
func File(path string) (Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDF(path)
	default:
		b, err := os.ReadFile(path)
		if err != nil {
			return Result{}, fmt.Errorf("read text: %w", err)
		}
		text := util.SanitizeText(string(b))
		if text == "" {
			return Result{}, util.ErrNoExtractableText
		}
		return Result{Text: text, Pages: len(document.Split(text)), Method: MethodPlainText}, nil
	}
}

func PDF(path string) (Result, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return Result{}, fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		pages = append(pages, text)
	}
	res, err := Pages(pages)
	if err != nil {
		return Result{}, err
	}
	res.Method = MethodPDFText
	return res, nil
}

// Pages renders per-page text with page markers. Page numbers follow the source
// even when a page is blank.
func Pages(pages []string) (Result, error) {
	clean := make([]string, len(pages))
	blank := true
	for i, p := range pages {
		clean[i] = util.SanitizeText(strings.ReplaceAll(p, "\f", "\n"))
		if clean[i] != "" {
			blank = false
		}
	}
	if blank {
		return Result{}, util.ErrNoExtractableText
	}
	return Result{Text: document.Join(clean), Pages: len(clean), Method: MethodPlainText}, nil
}
