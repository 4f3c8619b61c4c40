package handler

import (
	"net/http"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/service"
)

// ContactHandler は連絡先の登録・一覧・編集・削除と再解決を扱う
type ContactHandler struct {
	contacts  service.ContactService
	lifecycle service.LifecycleService
}

// NewContactHandler は ContactHandler を生成する
func NewContactHandler(contacts service.ContactService, lifecycle service.LifecycleService) *ContactHandler {
	return &ContactHandler{contacts: contacts, lifecycle: lifecycle}
}

// addContactRequest is the JSON body for POST /api/me/contacts.
type addContactRequest struct {
	Email             string  `json:"email"`
	FullName          string  `json:"full_name"`
	Phone             string  `json:"phone"`
	RelationshipLabel string  `json:"relationship_label"`
	ContactType       string  `json:"contact_type"`
	Role              *string `json:"role"`
	IsPrimary         bool    `json:"is_primary"`
	Invite            bool    `json:"invite"`
}

// patchContactRequest is the JSON body for PATCH /api/me/contacts/{id}.
// Absent fields are left unchanged.
type patchContactRequest struct {
	FullName          *string `json:"full_name"`
	Phone             *string `json:"phone"`
	RelationshipLabel *string `json:"relationship_label"`
	ContactType       *string `json:"contact_type"`
	Role              *string `json:"role"`
	IsPrimary         *bool   `json:"is_primary"`
}

type contactListResponse struct {
	Contacts []*model.Contact `json:"contacts"`
}

func rolePtr(s *string) *model.Role {
	if s == nil || *s == "" {
		return nil
	}
	r := model.Role(*s)
	return &r
}

// List は GET /api/me/contacts を処理する
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	contacts, err := h.contacts.List(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, r, err, "list_failed")
		return
	}
	// Return [] not null for empty lists
	if contacts == nil {
		contacts = []*model.Contact{}
	}
	writeJSON(w, http.StatusOK, contactListResponse{Contacts: contacts})
}

// Add は POST /api/me/contacts を処理する
func (h *ContactHandler) Add(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req addContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.contacts.Add(r.Context(), ownerID, model.ContactInput{
		Email:             req.Email,
		FullName:          req.FullName,
		Phone:             req.Phone,
		RelationshipLabel: req.RelationshipLabel,
		Type:              model.ContactType(req.ContactType),
		Role:              rolePtr(req.Role),
		IsPrimary:         req.IsPrimary,
		Invite:            req.Invite,
	})
	if err != nil {
		writeServiceError(w, r, err, "create_failed")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// Update は PATCH /api/me/contacts/{id} を処理する
func (h *ContactHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req patchContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := model.ContactPatch{
		FullName:          req.FullName,
		Phone:             req.Phone,
		RelationshipLabel: req.RelationshipLabel,
		Role:              rolePtr(req.Role),
		IsPrimary:         req.IsPrimary,
	}
	if req.ContactType != nil {
		t := model.ContactType(*req.ContactType)
		patch.Type = &t
	}

	c, err := h.contacts.Update(r.Context(), ownerID, r.PathValue("id"), patch)
	if err != nil {
		writeServiceError(w, r, err, "update_failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Remove は DELETE /api/me/contacts/{id} を処理する
func (h *ContactHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.contacts.Remove(r.Context(), ownerID, r.PathValue("id")); err != nil {
		writeServiceError(w, r, err, "delete_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recheck は POST /api/me/contacts/{id}/recheck を処理する
func (h *ContactHandler) Recheck(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(w, r)
	if !ok {
		return
	}
	c, err := h.lifecycle.Recheck(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "recheck_failed")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
