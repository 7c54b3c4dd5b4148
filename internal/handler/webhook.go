package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/session-relay/internal/model"
	"github.com/capitalize-ai/session-relay/internal/service"
	"github.com/capitalize-ai/session-relay/pkg/logger"
)

// WebhookHandler receives chat-platform updates and hands them to the
// admission pipeline.
type WebhookHandler struct {
	admission *service.AdmissionService
	logger    *logger.Logger
}

func NewWebhookHandler(admission *service.AdmissionService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{admission: admission, logger: log}
}

// Receive handles POST /webhook/{namespace}. The platform retries failed
// deliveries, so anything that is not a transient server error must answer
// 200 to stop the retry loop.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	var update model.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.admission.Admit(r.Context(), namespace, &update)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.Is(err, service.ErrNamespaceNotFound):
			writeError(w, http.StatusNotFound, "unknown namespace")
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Reason)
		default:
			h.logger.Error("admission failed",
				zap.String("namespace", namespace),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"enqueued": result.Enqueued,
	})
}
