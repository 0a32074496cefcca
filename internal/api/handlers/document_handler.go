package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	middleware "github.com/markdave123-py/docbundle/internal/api/middlewares"
	"github.com/markdave123-py/docbundle/internal/core/ingestion_engine"
	"github.com/markdave123-py/docbundle/internal/core/store"
	"github.com/markdave123-py/docbundle/internal/models"
	"github.com/markdave123-py/docbundle/internal/services"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	sessions       *services.SessionManager
	maxUploadBytes int64
	log            *zap.Logger
}

func NewDocumentHandler(sessions *services.SessionManager, maxUploadMB int, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{sessions: sessions, maxUploadBytes: int64(maxUploadMB) << 20, log: log}
}

// session resolves the caller's session or writes the error response.
func (h *DocumentHandler) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	id, ok := middleware.SessionID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session_id not found in context")
		return nil, false
	}
	s, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	return s, true
}

// UploadDocuments accepts a multipart batch under the "files" field. multipart
// strips directories from part file names, so grouped uploads send the relative
// paths as repeated "paths" values in the same order as the files.
func (h *DocumentHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	grouped, err := parseBool(r.URL.Query().Get("grouped"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "grouped must be true or false")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	paths := r.MultipartForm.Value["paths"]
	if len(paths) != 0 && len(paths) != len(headers) {
		writeError(w, http.StatusBadRequest, "paths must match files one to one")
		return
	}

	files := make([]models.RawFile, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("open %s: %v", fh.Filename, err))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		rel := fh.Filename
		if len(paths) != 0 {
			rel = paths[i]
		}
		files = append(files, models.RawFile{Name: fh.Filename, RelativePath: rel, Data: data})
	}

	if err := s.Ingest(r.Context(), files, grouped); err != nil {
		if errors.Is(err, ingestion_engine.ErrPoolUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.Debug("batch accepted", zap.String("session_id", s.ID), zap.Int("files", len(files)), zap.Bool("grouped", grouped))
	writeJSON(w, http.StatusAccepted, s.Snapshot())
}

func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *DocumentHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, services.Tree(s.Snapshot()))
}

type toggleRequest struct {
	Key     string `json:"key"`
	Grouped bool   `json:"grouped"`
}

func (h *DocumentHandler) ToggleDocument(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := s.Toggle(req.Key, req.Grouped); err != nil {
		if errors.Is(err, store.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

type selectAllRequest struct {
	Grouped  bool `json:"grouped"`
	Selected bool `json:"selected"`
}

func (h *DocumentHandler) SelectAll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req selectAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.SelectAll(req.Grouped, req.Selected)
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *DocumentHandler) ClearDocuments(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Clear()
	w.WriteHeader(http.StatusNoContent)
}

type contextRequest struct {
	Instructions string `json:"instructions"`
}

// RenderContext returns the serialized selection and instructions.
func (h *DocumentHandler) RenderContext(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	writeJSON(w, http.StatusOK, s.Render(req.Instructions))
}

// ExportContext returns the clipboard text form.
func (h *DocumentHandler) ExportContext(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, s.Export(req.Instructions))
}

func parseBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
