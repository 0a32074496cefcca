package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	middleware "github.com/markdave123-py/docbundle/internal/api/middlewares"
	"github.com/markdave123-py/docbundle/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionManager
	secret   []byte
	ttl      time.Duration
}

func NewSessionHandler(sessions *services.SessionManager, secret []byte, ttl time.Duration) *SessionHandler {
	return &SessionHandler{sessions: sessions, secret: secret, ttl: ttl}
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// CreateSession starts an empty document session and returns a token bound to it.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()

	token, err := generateJWT(h.secret, s.ID, h.ttl)
	if err != nil {
		h.sessions.Delete(s.ID)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: s.ID, Token: token})
}

// DeleteSession drops the caller's session and everything it tracked.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.SessionID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session_id not found in context")
		return
	}
	h.sessions.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

// generateJWT creates a signed token with a session ID claim
func generateJWT(secret []byte, sessionID string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"session_id": sessionID,
		"exp":        time.Now().Add(ttl).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err := tok.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return token, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
