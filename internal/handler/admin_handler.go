package handler

import (
	"net/http"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/service"
)

// AdminHandler serves operator endpoints. Routes are wrapped in
// auth.RequireAdmin.
type AdminHandler struct {
	release   service.ReleaseService
	lifecycle service.LifecycleService
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(release service.ReleaseService, lifecycle service.LifecycleService) *AdminHandler {
	return &AdminHandler{release: release, lifecycle: lifecycle}
}

type confirmationListResponse struct {
	Confirmations []*model.ConfirmationEvent `json:"confirmations"`
}

// Confirmations handles GET /api/admin/owners/{id}/confirmations.
func (h *AdminHandler) Confirmations(w http.ResponseWriter, r *http.Request) {
	events, err := h.release.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "list_failed")
		return
	}
	if events == nil {
		events = []*model.ConfirmationEvent{}
	}
	writeJSON(w, http.StatusOK, confirmationListResponse{Confirmations: events})
}

// Reconcile handles POST /api/admin/reconcile.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.lifecycle.Reconcile(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "reconcile_failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
