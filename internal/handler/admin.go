package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/session-relay/internal/config"
	"github.com/capitalize-ai/session-relay/internal/middleware"
	"github.com/capitalize-ai/session-relay/internal/store"
	"github.com/capitalize-ai/session-relay/pkg/logger"
)

// AdminHandler exposes the operator API: namespace inventory, session
// inspection and eviction, and per-user admission toggles.
type AdminHandler struct {
	cfg        *config.Config
	sessions   store.SessionStore
	identities store.IdentityStore
	logger     *logger.Logger
}

func NewAdminHandler(cfg *config.Config, sessions store.SessionStore, identities store.IdentityStore, log *logger.Logger) *AdminHandler {
	return &AdminHandler{cfg: cfg, sessions: sessions, identities: identities, logger: log}
}

// ListNamespaces handles GET /api/v1/namespaces. Bot tokens and webhook
// secrets never leave the process.
func (h *AdminHandler) ListNamespaces(w http.ResponseWriter, r *http.Request) {
	type namespaceView struct {
		Name     string `json:"name"`
		Provider string `json:"provider"`
		Model    string `json:"model,omitempty"`
		Users    int    `json:"allowed_users"`
	}

	out := make([]namespaceView, 0, len(h.cfg.Namespaces))
	for i := range h.cfg.Namespaces {
		ns := &h.cfg.Namespaces[i]
		out = append(out, namespaceView{
			Name:     ns.Name,
			Provider: ns.Provider,
			Model:    ns.Model,
			Users:    len(ns.AllowList),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"namespaces": out})
}

// GetSession handles GET /api/v1/namespaces/{namespace}/sessions/{id}.
func (h *AdminHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	id := chi.URLParam(r, "id")

	if _, ok := h.cfg.Namespace(namespace); !ok {
		writeError(w, http.StatusNotFound, "unknown namespace")
		return
	}

	session, err := h.sessions.Find(r.Context(), namespace, id)
	if err != nil {
		h.logger.Error("session lookup failed",
			zap.String("namespace", namespace),
			zap.String("conversation_id", id),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// DeleteSession handles DELETE /api/v1/namespaces/{namespace}/sessions/{id}.
// It removes the session record and any lock, freeing a conversation that
// got wedged.
func (h *AdminHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	id := chi.URLParam(r, "id")

	if _, ok := h.cfg.Namespace(namespace); !ok {
		writeError(w, http.StatusNotFound, "unknown namespace")
		return
	}

	if err := h.sessions.Remove(r.Context(), namespace, id); err != nil {
		h.logger.Error("session removal failed",
			zap.String("namespace", namespace),
			zap.String("conversation_id", id),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("session removed",
		zap.String("namespace", namespace),
		zap.String("conversation_id", id),
		zap.String("operator", middleware.GetOperator(r.Context())))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListIdentities handles GET /api/v1/namespaces/{namespace}/identities.
func (h *AdminHandler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	if _, ok := h.cfg.Namespace(namespace); !ok {
		writeError(w, http.StatusNotFound, "unknown namespace")
		return
	}

	identities, err := h.identities.List(r.Context(), namespace)
	if err != nil {
		h.logger.Error("identity listing failed",
			zap.String("namespace", namespace),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"identities": identities})
}

// SetIdentityAllowed handles PUT /api/v1/namespaces/{namespace}/identities/{id}/allowed.
func (h *AdminHandler) SetIdentityAllowed(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	id := chi.URLParam(r, "id")

	if _, ok := h.cfg.Namespace(namespace); !ok {
		writeError(w, http.StatusNotFound, "unknown namespace")
		return
	}

	var body struct {
		Allowed bool `json:"allowed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.identities.SetAllowed(r.Context(), namespace, id, body.Allowed); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "identity not found")
			return
		}
		h.logger.Error("identity update failed",
			zap.String("namespace", namespace),
			zap.String("remote_id", id),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	h.logger.Info("identity admission changed",
		zap.String("namespace", namespace),
		zap.String("remote_id", id),
		zap.Bool("allowed", body.Allowed),
		zap.String("operator", middleware.GetOperator(r.Context())))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"remote_id": id,
		"allowed":   body.Allowed,
	})
}
