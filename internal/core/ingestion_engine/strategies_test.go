package ingestion_engine

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"github.com/markdave123-py/docbundle/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRuntime(t *testing.T) *DocconvRuntime {
	t.Helper()
	rt := NewDocconvRuntime(RuntimeConfig{ScratchDir: t.TempDir()}, 0, zap.NewNop())
	require.NoError(t, rt.Init(context.Background()))
	t.Cleanup(func() { _ = rt.Close() })
	return rt
}

func TestExtractText(t *testing.T) {
	rt := newTestRuntime(t)

	tests := []struct {
		name string
		file string
		data []byte
		want string
	}{
		{"plain text", "notes.txt", []byte("hello world"), "hello world"},
		{"markdown", "README.MD", []byte("# Title\n\nbody"), "# Title\n\nbody"},
		{"invalid utf-8 replaced", "broken.txt", []byte{'h', 'i', 0xff, '!'}, "hi�!"},
		{"utf-8 bom stripped", "bom.txt", []byte("\xef\xbb\xbfhello"), "hello"},
		{"utf-16 bom decoded", "wide.txt", []byte("\xff\xfeh\x00i\x00"), "hi"},
		{"unknown extension falls back to text", "main.go", []byte("package main"), "package main"},
		{"no extension", "Makefile", []byte("all:"), "all:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rt.Extract(context.Background(), tt.file, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractUnimplementedFormats(t *testing.T) {
	rt := newTestRuntime(t)

	tests := []struct {
		file  string
		label string
	}{
		{"data.xlsx", "Spreadsheet (XLSX)"},
		{"Deck.PPTX", "Presentation (PPTX)"},
		{"letter.rtf", "Rich text (RTF)"},
		{"page.html", "Markup (HTML)"},
		{"book.epub", "E-book (EPUB)"},
		{"notes.pages", "Pages document"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := rt.Extract(context.Background(), tt.file, []byte("PK\x03\x04 not really"))
			require.NoError(t, err)
			assert.Equal(t, UnimplementedPlaceholder(tt.label, tt.file), got)
			assert.Contains(t, got, "not yet implemented")

			again, err := rt.Extract(context.Background(), tt.file, []byte("other bytes"))
			require.NoError(t, err)
			assert.Equal(t, got, again, "placeholder must not depend on content")
		})
	}
}

func TestExtractDocx(t *testing.T) {
	rt := newTestRuntime(t)

	data := buildDocx(t, "First paragraph", "", "Second paragraph")
	got, err := rt.Extract(context.Background(), "report.docx", data)
	require.NoError(t, err)

	first := strings.Index(got, "First paragraph")
	second := strings.Index(got, "Second paragraph")
	require.GreaterOrEqual(t, first, 0, "got %q", got)
	require.Greater(t, second, first, "paragraphs must keep document order")
	assert.NotContains(t, got, "\n\n", "empty paragraphs are dropped")
}

func TestExtractDocxRejectsGarbage(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.Extract(context.Background(), "broken.docx", []byte("definitely not a zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "convert docx")
}

func TestExtractPDFRejectsGarbage(t *testing.T) {
	rt := newTestRuntime(t)

	_, err := rt.Extract(context.Background(), "broken.pdf", []byte("%PDF-1.4 truncated"))
	require.Error(t, err)
}

func TestExtractPDFPages(t *testing.T) {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		t.Skip("pdftotext not installed")
	}
	rt := newTestRuntime(t)

	out, err := rt.Extract(context.Background(), "report.pdf", buildPDF(t, "First page text", "", "Third page text"))
	require.NoError(t, err)

	assert.Contains(t, out, "## Page 1")
	assert.Contains(t, out, "## Page 3")
	assert.NotContains(t, out, "## Page 2", "blank pages are skipped")
	assert.Less(t, strings.Index(out, "## Page 1"), strings.Index(out, "## Page 3"))
	assert.Contains(t, out, "First page text")
	assert.Contains(t, out, "Third page text")
}

func TestRuntimeInitWarnsWithoutPDFToText(t *testing.T) {
	observed, logs := observer.New(zapcore.WarnLevel)
	rt := NewDocconvRuntime(RuntimeConfig{ScratchDir: t.TempDir()}, 0, zap.New(observed))
	require.NoError(t, rt.Init(context.Background()))
	t.Cleanup(func() { _ = rt.Close() })

	warnings := logs.FilterMessage("pdftotext not found, PDF documents will fail to extract").Len()
	if _, err := exec.LookPath("pdftotext"); err != nil {
		assert.Equal(t, 1, warnings)
	} else {
		assert.Zero(t, warnings)
	}
}

func TestRuntimeInitRequiresPDFToText(t *testing.T) {
	if _, err := exec.LookPath("pdftotext"); err == nil {
		t.Skip("pdftotext is installed")
	}
	rt := NewDocconvRuntime(RuntimeConfig{ScratchDir: t.TempDir(), RequirePDFToText: true}, 0, nil)
	err := rt.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext is required")
}

func TestExtractBeforeInit(t *testing.T) {
	rt := NewDocconvRuntime(RuntimeConfig{}, 3, nil)
	_, err := rt.Extract(context.Background(), "a.txt", []byte("x"))
	require.Error(t, err)
}

func TestRuntimeCloseRemovesScratchDir(t *testing.T) {
	parent := t.TempDir()
	rt := NewDocconvRuntime(RuntimeConfig{ScratchDir: parent}, 1, zap.NewNop())
	require.NoError(t, rt.Init(context.Background()))
	require.DirExists(t, rt.dir)

	dir := rt.dir
	require.NoError(t, rt.Close())
	assert.NoDirExists(t, dir)
	assert.NoError(t, rt.Close(), "second close is a no-op")
}

func TestJoinParagraphs(t *testing.T) {
	assert.Equal(t, "a\nb", joinParagraphs("a\r\n\r\n  \nb  \n"))
	assert.Equal(t, "", joinParagraphs("\n\n"))
}

func TestDocumentKey(t *testing.T) {
	tests := []struct {
		name    string
		file    models.RawFile
		grouped bool
		want    string
	}{
		{"ungrouped uses bare name", models.RawFile{Name: "x.txt", RelativePath: "a/x.txt"}, false, "x.txt"},
		{"ungrouped strips directories", models.RawFile{Name: "dir/x.txt"}, false, "x.txt"},
		{"grouped uses relative path", models.RawFile{Name: "x.txt", RelativePath: "a/x.txt"}, true, "a/x.txt"},
		{"grouped normalizes separators", models.RawFile{Name: "x.txt", RelativePath: `a\b\x.txt`}, true, "a/b/x.txt"},
		{"grouped cleans dot segments", models.RawFile{Name: "x.txt", RelativePath: "./a/../a/x.txt"}, true, "a/x.txt"},
		{"grouped cannot escape root", models.RawFile{Name: "x.txt", RelativePath: "../../x.txt"}, true, "x.txt"},
		{"grouped without path falls back to name", models.RawFile{Name: "x.txt"}, true, "x.txt"},
		{"empty name", models.RawFile{}, false, "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentKey(tt.file, tt.grouped))
		})
	}
}

func TestFormatLabel(t *testing.T) {
	assert.Equal(t, "pdf", formatLabel("A.PDF"))
	assert.Equal(t, "txt", formatLabel(`dir\notes.txt`))
	assert.Equal(t, "none", formatLabel("Makefile"))
}

// buildDocx assembles a minimal WordprocessingML package.
func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, body string) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	write("[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`+
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`+
		`<Default Extension="xml" ContentType="application/xml"/>`+
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>`+
		`</Types>`)
	write("_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>`+
		`</Relationships>`)

	var body strings.Builder
	for _, p := range paragraphs {
		if p == "" {
			body.WriteString(`<w:p/>`)
			continue
		}
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	write("word/document.xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		body.String()+
		`</w:body></w:document>`)

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildPDF writes a minimal PDF with one page per entry; an empty entry gives a
// page with an empty content stream.
func buildPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	var objects []string
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	)
	for i, text := range pages {
		var stream string
		if text != "" {
			stream = fmt.Sprintf("BT /F1 24 Tf 72 700 Td (%s) Tj ET", text)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
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
