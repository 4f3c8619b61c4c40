package handler

import (
	"net/http"

	"github.com/afterword/backend/internal/service"
)

// ReleaseHandler は死亡確認フローを扱う
type ReleaseHandler struct {
	release service.ReleaseService
}

// NewReleaseHandler は ReleaseHandler を生成する
func NewReleaseHandler(release service.ReleaseService) *ReleaseHandler {
	return &ReleaseHandler{release: release}
}

// confirmRequest is the JSON body for POST /api/legacy/owners/{id}/confirm-deceased.
type confirmRequest struct {
	VerificationMethod string `json:"verification_method"`
	Notes              string `json:"notes"`
	ConfirmationText   string `json:"confirmation_text"`
}

// Prompt は GET /api/legacy/owners/{id}/confirmation を処理する
func (h *ReleaseHandler) Prompt(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(w, r)
	if !ok {
		return
	}
	p, err := h.release.Prompt(r.Context(), id, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err, "prompt_failed")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Confirm は POST /api/legacy/owners/{id}/confirm-deceased を処理する
// 既に確認済みの場合も 200 で already_confirmed=true を返す
func (h *ReleaseHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := callerID(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.release.ConfirmDeceased(r.Context(), service.ConfirmRequest{
		CallerID:           id,
		TargetOwnerID:      r.PathValue("id"),
		VerificationMethod: req.VerificationMethod,
		Notes:              req.Notes,
		ConfirmationText:   req.ConfirmationText,
	})
	if err != nil {
		writeServiceError(w, r, err, "confirm_failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
