package services

import (
	"strings"

	"github.com/markdave123-py/docbundle/internal/models"
)

// TreeNode is a folder or file in the derived folder view of grouped documents.
type TreeNode struct {
	Name     string           `json:"name"`
	Path     string           `json:"path"`
	Folder   bool             `json:"folder"`
	Document *models.Document `json:"document,omitempty"`
	Children []*TreeNode      `json:"children,omitempty"`
}

// Tree derives a folder hierarchy from the flat grouped map. Children keep the
// insertion order of the documents that created them.
func Tree(c models.DocumentContext) *TreeNode {
	root := &TreeNode{Name: "", Path: "", Folder: true}
	index := map[string]*TreeNode{"": root}

	for _, doc := range c.GroupedDocuments() {
		parts := strings.Split(doc.Key, "/")
		parent := root
		for i, part := range parts[:len(parts)-1] {
			p := strings.Join(parts[:i+1], "/")
			node, ok := index[p]
			if !ok {
				node = &TreeNode{Name: part, Path: p, Folder: true}
				index[p] = node
				parent.Children = append(parent.Children, node)
			}
			parent = node
		}
		d := doc
		parent.Children = append(parent.Children, &TreeNode{
			Name:     parts[len(parts)-1],
			Path:     doc.Key,
			Document: &d,
		})
	}
	return root
}
