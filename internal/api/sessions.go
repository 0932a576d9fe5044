package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetSession returns the persisted session document.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := h.store.Load(r.Context(), id)
	if !ok {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, sess)
}

// DeleteSession removes a session. Missing sessions are not an error.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	h.store.Delete(r.Context(), id)
	h.limiter.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}
