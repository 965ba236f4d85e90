package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/khanglvm/torque-advisor/internal/advisor"
	"github.com/khanglvm/torque-advisor/internal/session"
)

type handler struct {
	advisor  Asker
	sessions session.Store
	logger   *zap.Logger
	version  string
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "torque-advisor",
		"version": h.version,
	})
}

// maxChatBody caps the size of a POST /chat body.
const maxChatBody = 1 << 20

// chat handles POST /chat.
func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(w, http.StatusRequestEntityTooLarge, "request body too large", err.Error())
			return
		}
		h.writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		h.writeError(w, http.StatusBadRequest, "question is required", "")
		return
	}

	res, err := h.advisor.Ask(r.Context(), req.Question, req.SessionID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, advisor.ErrUpstream) {
			status = http.StatusBadGateway
		}
		h.logger.Error("chat turn failed", zap.String("session_id", res.SessionID), zap.Error(err))
		h.writeError(w, status, "turn failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, res)
}

func (h *handler) sessionStats(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.sessions.Stats())
}

func (h *handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !h.sessions.Delete(id) {
		h.writeError(w, http.StatusNotFound, session.ErrNotFound.Error(), "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *handler) writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{"error": message}
	if detail != "" {
		resp["detail"] = detail
	}
	h.writeJSON(w, status, resp)
}
