package handler

import (
	"net/http"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"github.com/afterword/backend/internal/service"
)

const defaultNotificationLimit = 50

// RelationshipHandler serves the caller's side of other people's contact
// lists.
type RelationshipHandler struct {
	contacts      service.ContactService
	notifications repository.NotificationRepository
}

// NewRelationshipHandler creates a RelationshipHandler.
func NewRelationshipHandler(contacts service.ContactService, notifications repository.NotificationRepository) *RelationshipHandler {
	return &RelationshipHandler{contacts: contacts, notifications: notifications}
}

type trustedByResponse struct {
	Relationships []*model.TrustedRelationship `json:"relationships"`
}

// TrustedBy handles GET /api/me/trusted-by. An optional ?email= must match
// the caller's own verified address.
func (h *RelationshipHandler) TrustedBy(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(w, r)
	if !ok {
		return
	}
	rels, err := h.contacts.TrustedBy(r.Context(), id, r.URL.Query().Get("email"))
	if err != nil {
		writeServiceError(w, r, err, "list_failed")
		return
	}
	if rels == nil {
		rels = []*model.TrustedRelationship{}
	}
	writeJSON(w, http.StatusOK, trustedByResponse{Relationships: rels})
}

type notificationListResponse struct {
	Notifications []*model.Notification `json:"notifications"`
}

// Notifications handles GET /api/me/notifications.
func (h *RelationshipHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(w, r)
	if !ok {
		return
	}
	list, err := h.notifications.ListByUser(r.Context(), id, defaultNotificationLimit)
	if err != nil {
		writeServiceError(w, r, err, "list_failed")
		return
	}
	if list == nil {
		list = []*model.Notification{}
	}
	writeJSON(w, http.StatusOK, notificationListResponse{Notifications: list})
}
