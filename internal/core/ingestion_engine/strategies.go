package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// strategy converts one file into text.
type strategy func(ctx context.Context, name string, data []byte) (string, error)

// unimplementedFormats are recognized but only produce a placeholder.
var unimplementedFormats = map[string]string{
	".xlsx":  "Spreadsheet (XLSX)",
	".xls":   "Spreadsheet (XLS)",
	".ods":   "Spreadsheet (ODS)",
	".pptx":  "Presentation (PPTX)",
	".ppt":   "Presentation (PPT)",
	".odp":   "Presentation (ODP)",
	".pages": "Pages document",
	".rtf":   "Rich text (RTF)",
	".odt":   "Rich text (ODT)",
	".html":  "Markup (HTML)",
	".htm":   "Markup (HTML)",
	".xml":   "Markup (XML)",
	".epub":  "E-book (EPUB)",
	".mobi":  "E-book (MOBI)",
}

// formatOf returns the lower-cased extension including the dot, or "".
func formatOf(name string) string {
	return strings.ToLower(path.Ext(strings.ReplaceAll(name, "\\", "/")))
}

// formatLabel is the metrics label for a file name.
func formatLabel(name string) string {
	if ext := formatOf(name); ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	return "none"
}

func (r *DocconvRuntime) strategyFor(ext string) strategy {
	switch ext {
	case ".pdf":
		return r.extractPDF
	case ".docx":
		return extractDocx
	}
	if label, ok := unimplementedFormats[ext]; ok {
		return unimplemented(label)
	}
	return extractText
}

// UnimplementedPlaceholder is the text stored for a recognized but unsupported format.
func UnimplementedPlaceholder(label, name string) string {
	return fmt.Sprintf("%s extraction is not yet implemented (%s).", label, name)
}

func unimplemented(label string) strategy {
	return func(_ context.Context, name string, _ []byte) (string, error) {
		return UnimplementedPlaceholder(label, path.Base(name)), nil
	}
}

// extractText decodes data as UTF-8, honouring a BOM and replacing invalid sequences.
func extractText(_ context.Context, _ string, data []byte) (string, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}

// extractDocx joins the document's paragraphs with newlines, dropping empty ones.
func extractDocx(_ context.Context, _ string, data []byte) (string, error) {
	body, _, err := docconv.ConvertDocx(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("convert docx: %w", err)
	}
	return joinParagraphs(body), nil
}

func joinParagraphs(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	paras := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimRight(line, " \t"); strings.TrimSpace(line) != "" {
			paras = append(paras, line)
		}
	}
	return strings.Join(paras, "\n")
}

// extractPDF splits the PDF into single pages inside the scratch dir and converts
// each one, so page boundaries survive into the text.
func (r *DocconvRuntime) extractPDF(ctx context.Context, _ string, data []byte) (string, error) {
	pageCount, err := api.PageCount(bytes.NewReader(data), r.pdfConf)
	if err != nil {
		return "", fmt.Errorf("read pdf: %w", err)
	}

	dir, cleanup, err := r.workspace()
	if err != nil {
		return "", err
	}
	defer cleanup()

	source := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(source, data, 0o600); err != nil {
		return "", fmt.Errorf("stage pdf: %w", err)
	}
	if err := api.SplitFile(source, dir, 1, r.pdfConf); err != nil {
		return "", fmt.Errorf("split pdf: %w", err)
	}

	base := strings.TrimSuffix(source, filepath.Ext(source))
	pages := make([]string, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := convertPDFPage(fmt.Sprintf("%s_%d.pdf", base, n))
		if err != nil {
			return "", fmt.Errorf("page %d: %w", n, err)
		}
		if text = strings.TrimSpace(text); text == "" {
			continue
		}
		pages = append(pages, fmt.Sprintf("## Page %d\n\n%s\n", n, text))
	}
	return strings.Join(pages, "\n"), nil
}

func convertPDFPage(pagePath string) (string, error) {
	f, err := os.Open(pagePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	body, _, err := docconv.ConvertPDF(f)
	if err != nil {
		return "", fmt.Errorf("convert: %w", err)
	}
	return body, nil
}
