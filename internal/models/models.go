package models

// Status is the processing state of a tracked document.
type Status string

const (
	StatusPending   Status = "pending"
	StatusLoading   Status = "loading"
	StatusProcessed Status = "processed"
	StatusError     Status = "error"
)

// Terminal reports whether no further transition is possible without a new upload.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusError
}

// Document represents one uploaded file and its extraction state.
type Document struct {
	Key          string `json:"key"`                     // relative path when grouped, bare name otherwise
	Name         string `json:"name"`                    // display name
	Content      string `json:"content"`                 // only meaningful when Status is processed
	Status       Status `json:"status"`                  // pending | loading | processed | error
	ErrorMessage string `json:"error_message,omitempty"` // set iff Status is error
	Selected     bool   `json:"selected"`
	Version      int64  `json:"version"`
}

// DocumentContext is the full state of one session.
//
// Grouped holds folder uploads keyed by path, GroupedOrder keeps their insertion order.
// Ungrouped holds individual uploads in upload order.
type DocumentContext struct {
	Grouped      map[string]Document `json:"grouped"`
	GroupedOrder []string            `json:"grouped_order"`
	Ungrouped    []Document          `json:"ungrouped"`
}

// NewDocumentContext returns an empty context.
func NewDocumentContext() DocumentContext {
	return DocumentContext{Grouped: map[string]Document{}}
}

// Clone returns a copy that shares no mutable memory with c.
func (c DocumentContext) Clone() DocumentContext {
	out := DocumentContext{
		Grouped:      make(map[string]Document, len(c.Grouped)),
		GroupedOrder: append([]string(nil), c.GroupedOrder...),
		Ungrouped:    append([]Document(nil), c.Ungrouped...),
	}
	for k, d := range c.Grouped {
		out.Grouped[k] = d
	}
	return out
}

// GroupedDocuments returns the grouped documents in insertion order.
func (c DocumentContext) GroupedDocuments() []Document {
	docs := make([]Document, 0, len(c.GroupedOrder))
	for _, key := range c.GroupedOrder {
		if d, ok := c.Grouped[key]; ok {
			docs = append(docs, d)
		}
	}
	return docs
}

// Lookup finds a document by key in the requested group.
func (c DocumentContext) Lookup(key string, grouped bool) (Document, bool) {
	if grouped {
		d, ok := c.Grouped[key]
		return d, ok
	}
	for _, d := range c.Ungrouped {
		if d.Key == key {
			return d, true
		}
	}
	return Document{}, false
}

// RawFile is one file handed over by the renderer.
type RawFile struct {
	Name         string
	RelativePath string
	Data         []byte
}

// Placeholder identifies a document about to be (re-)uploaded.
type Placeholder struct {
	Key  string
	Name string
}

// ExtractionRequest is the message sent to an extraction worker.
type ExtractionRequest struct {
	Key     string
	Grouped bool
	Version int64
	Name    string
	Data    []byte
}

// ExtractionResponse is the message a worker sends back for one request.
type ExtractionResponse struct {
	Key          string
	Grouped      bool
	Version      int64
	OK           bool
	Content      string
	ErrorMessage string
}

// FinalOutput is the serialized context handed to downstream consumers.
type FinalOutput struct {
	DocumentContext  string `json:"document_context"`
	UserInstructions string `json:"user_instructions"`
}
