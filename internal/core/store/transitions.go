package store

import (
	"github.com/markdave123-py/docbundle/internal/models"
)

// The functions below are the only way a DocumentContext changes. Each one takes
// the current value and returns a new one; the input is never modified.

// withPlaceholders upserts a pending document for every entry of batch.
// versions carries the version assigned to each key.
func withPlaceholders(c models.DocumentContext, grouped bool, batch []models.Placeholder, versions map[string]int64) (models.DocumentContext, []models.Document) {
	next := c.Clone()
	placed := make([]models.Document, 0, len(batch))

	for _, p := range batch {
		prev, exists := next.Lookup(p.Key, grouped)
		doc := models.Document{
			Key:      p.Key,
			Name:     p.Name,
			Status:   models.StatusPending,
			Selected: exists && prev.Selected,
			Version:  versions[p.Key],
		}
		next = put(next, grouped, doc, exists)
		placed = append(placed, doc)
	}
	return next, placed
}

// withLoading moves a pending document of the given version to loading.
func withLoading(c models.DocumentContext, key string, grouped bool, version int64) (models.DocumentContext, bool) {
	doc, ok := c.Lookup(key, grouped)
	if !ok || doc.Version != version || doc.Status != models.StatusPending {
		return c, false
	}
	doc.Status = models.StatusLoading
	return put(c.Clone(), grouped, doc, true), true
}

// withCompletion resolves a loading document when the response carries its
// current version. Anything else is stale and leaves c untouched.
func withCompletion(c models.DocumentContext, resp models.ExtractionResponse) (models.DocumentContext, bool) {
	doc, ok := c.Lookup(resp.Key, resp.Grouped)
	if !ok || doc.Version != resp.Version || doc.Status != models.StatusLoading {
		return c, false
	}
	if resp.OK {
		doc.Status = models.StatusProcessed
		doc.Content = resp.Content
		doc.ErrorMessage = ""
	} else {
		doc.Status = models.StatusError
		doc.Content = ""
		doc.ErrorMessage = resp.ErrorMessage
		if doc.ErrorMessage == "" {
			doc.ErrorMessage = "extraction failed"
		}
	}
	return put(c.Clone(), resp.Grouped, doc, true), true
}

// withToggle flips the selection of one document.
func withToggle(c models.DocumentContext, key string, grouped bool) (models.DocumentContext, bool) {
	doc, ok := c.Lookup(key, grouped)
	if !ok {
		return c, false
	}
	doc.Selected = !doc.Selected
	return put(c.Clone(), grouped, doc, true), true
}

// withAllSelected sets the selection of every document in one group.
func withAllSelected(c models.DocumentContext, grouped, selected bool) models.DocumentContext {
	next := c.Clone()
	if grouped {
		for k, d := range next.Grouped {
			d.Selected = selected
			next.Grouped[k] = d
		}
		return next
	}
	for i := range next.Ungrouped {
		next.Ungrouped[i].Selected = selected
	}
	return next
}

// put writes doc into an already cloned context, in place when exists is true.
func put(c models.DocumentContext, grouped bool, doc models.Document, exists bool) models.DocumentContext {
	if grouped {
		if !exists {
			c.GroupedOrder = append(c.GroupedOrder, doc.Key)
		}
		c.Grouped[doc.Key] = doc
		return c
	}
	if exists {
		for i := range c.Ungrouped {
			if c.Ungrouped[i].Key == doc.Key {
				c.Ungrouped[i] = doc
				return c
			}
		}
	}
	c.Ungrouped = append(c.Ungrouped, doc)
	return c
}
