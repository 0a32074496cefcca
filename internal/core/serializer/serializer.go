// Package serializer renders a document context snapshot into the tagged text
// blob handed to downstream consumers.
//
// Document content is written verbatim. A document whose own text contains
// something that looks like a closing tag will produce ambiguous output; the
// format has always behaved this way and consumers rely on it.
package serializer

import (
	"strings"

	"github.com/markdave123-py/docbundle/internal/models"
)

const (
	// PendingMarker stands in for the content of a document still being extracted.
	PendingMarker = "[extraction pending]"
	// RootFolder names the folder of grouped documents that have no directory.
	RootFolder = "."
)

var attrEscaper = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")

// Render serializes every selected document of c, whatever its status, plus the
// user's instructions. The output depends only on its inputs.
func Render(c models.DocumentContext, instructions string) models.FinalOutput {
	var b strings.Builder
	b.WriteString("<document_context>\n")
	writeGrouped(&b, c)
	writeUngrouped(&b, c)
	b.WriteString("</document_context>")

	return models.FinalOutput{
		DocumentContext:  b.String(),
		UserInstructions: RenderInstructions(instructions),
	}
}

// RenderInstructions wraps the instructions in their own block.
func RenderInstructions(instructions string) string {
	return "<user_instructions>\n  " + instructions + "\n</user_instructions>"
}

// SelectedCount is the number of selected documents across both groups.
func SelectedCount(c models.DocumentContext) int {
	n := 0
	for _, d := range c.Grouped {
		if d.Selected {
			n++
		}
	}
	for _, d := range c.Ungrouped {
		if d.Selected {
			n++
		}
	}
	return n
}

// FolderOf is the top-level directory of a grouped key.
func FolderOf(key string) string {
	if i := strings.IndexByte(key, '/'); i > 0 {
		return key[:i]
	}
	return RootFolder
}

func writeGrouped(b *strings.Builder, c models.DocumentContext) {
	b.WriteString("  <grouped_files>\n")

	// Folders appear in the order their first document was inserted.
	var folders []string
	byFolder := map[string][]models.Document{}
	for _, d := range c.GroupedDocuments() {
		if !d.Selected {
			continue
		}
		f := FolderOf(d.Key)
		if _, ok := byFolder[f]; !ok {
			folders = append(folders, f)
		}
		byFolder[f] = append(byFolder[f], d)
	}

	for _, f := range folders {
		b.WriteString(`    <folder name="` + attrEscaper.Replace(f) + "\">\n")
		for _, d := range byFolder[f] {
			b.WriteString(`      <file path="` + attrEscaper.Replace(d.Key) + "\">\n")
			b.WriteString("        " + body("content", d) + "\n")
			b.WriteString("      </file>\n")
		}
		b.WriteString("    </folder>\n")
	}
	b.WriteString("  </grouped_files>\n")
}

func writeUngrouped(b *strings.Builder, c models.DocumentContext) {
	b.WriteString("  <unsorted_files>\n")
	for _, d := range c.Ungrouped {
		if !d.Selected {
			continue
		}
		b.WriteString(`    <filename name="` + attrEscaper.Replace(d.Key) + "\">\n")
		b.WriteString("      " + body("context", d) + "\n")
		b.WriteString("    </filename>\n")
	}
	b.WriteString("  </unsorted_files>\n")
}

// body renders a document's payload element according to its status.
func body(tag string, d models.Document) string {
	switch d.Status {
	case models.StatusProcessed:
		return "<" + tag + ">" + d.Content + "</" + tag + ">"
	case models.StatusError:
		return "<" + tag + ` status="error">[extraction failed: ` + d.ErrorMessage + "]</" + tag + ">"
	default:
		return "<" + tag + ` status="loading">` + PendingMarker + "</" + tag + ">"
	}
}
