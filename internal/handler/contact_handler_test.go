package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/afterword/backend/internal/model"
	"github.com/afterword/backend/internal/repository"
	"github.com/afterword/backend/internal/service"
	"github.com/afterword/backend/pkg/auth"
)

// ---------------------------------------------------------------------------
// Mock services
// ---------------------------------------------------------------------------

type mockContactService struct {
	addFunc       func(ctx context.Context, ownerID string, in model.ContactInput) (*model.Contact, error)
	listFunc      func(ctx context.Context, ownerID string) ([]*model.Contact, error)
	updateFunc    func(ctx context.Context, ownerID, contactID string, patch model.ContactPatch) (*model.Contact, error)
	removeFunc    func(ctx context.Context, ownerID, contactID string) error
	trustedByFunc func(ctx context.Context, callerID, claimedEmail string) ([]*model.TrustedRelationship, error)
}

func (m *mockContactService) Add(ctx context.Context, ownerID string, in model.ContactInput) (*model.Contact, error) {
	if m.addFunc != nil {
		return m.addFunc(ctx, ownerID, in)
	}
	return &model.Contact{}, nil
}

func (m *mockContactService) List(ctx context.Context, ownerID string) ([]*model.Contact, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockContactService) Update(ctx context.Context, ownerID, contactID string, patch model.ContactPatch) (*model.Contact, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, ownerID, contactID, patch)
	}
	return &model.Contact{}, nil
}

func (m *mockContactService) Remove(ctx context.Context, ownerID, contactID string) error {
	if m.removeFunc != nil {
		return m.removeFunc(ctx, ownerID, contactID)
	}
	return nil
}

func (m *mockContactService) TrustedBy(ctx context.Context, callerID, claimedEmail string) ([]*model.TrustedRelationship, error) {
	if m.trustedByFunc != nil {
		return m.trustedByFunc(ctx, callerID, claimedEmail)
	}
	return nil, nil
}

type mockLifecycleService struct {
	recheckFunc func(ctx context.Context, ownerID, contactID string) (*model.Contact, error)
}

func (m *mockLifecycleService) Recheck(ctx context.Context, ownerID, contactID string) (*model.Contact, error) {
	if m.recheckFunc != nil {
		return m.recheckFunc(ctx, ownerID, contactID)
	}
	return &model.Contact{}, nil
}

func (m *mockLifecycleService) Reconcile(ctx context.Context) (service.ReconcileReport, error) {
	return service.ReconcileReport{}, nil
}

func authed(req *http.Request, userID string) *http.Request {
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body["error"]
}

// ---------------------------------------------------------------------------
// POST /api/me/contacts
// ---------------------------------------------------------------------------

func TestContactHandler_Add_Success(t *testing.T) {
	var gotOwner string
	var gotInput model.ContactInput
	mock := &mockContactService{
		addFunc: func(ctx context.Context, ownerID string, in model.ContactInput) (*model.Contact, error) {
			gotOwner, gotInput = ownerID, in
			return &model.Contact{ID: "c-1", Email: "ann@example.com"}, nil
		},
	}
	h := NewContactHandler(mock, &mockLifecycleService{})

	body := `{"email":"Ann@Example.com","full_name":"Ann","contact_type":"trusted","role":"executor","is_primary":true,"invite":true}`
	req := authed(httptest.NewRequest(http.MethodPost, "/api/me/contacts", strings.NewReader(body)), "owner-1")
	rec := httptest.NewRecorder()
	h.Add(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if gotOwner != "owner-1" {
		t.Errorf("expected owner-1, got %q", gotOwner)
	}
	if gotInput.Type != model.ContactTypeTrusted || gotInput.Role == nil || *gotInput.Role != model.RoleExecutor {
		t.Errorf("unexpected input: %+v", gotInput)
	}
	if !gotInput.IsPrimary || !gotInput.Invite {
		t.Errorf("expected is_primary and invite to be set: %+v", gotInput)
	}
}

func TestContactHandler_Add_Unauthenticated(t *testing.T) {
	h := NewContactHandler(&mockContactService{}, &mockLifecycleService{})
	req := httptest.NewRequest(http.MethodPost, "/api/me/contacts", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.Add(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestContactHandler_Add_InvalidJSON(t *testing.T) {
	h := NewContactHandler(&mockContactService{}, &mockLifecycleService{})
	req := authed(httptest.NewRequest(http.MethodPost, "/api/me/contacts", strings.NewReader(`{`)), "owner-1")
	rec := httptest.NewRecorder()
	h.Add(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "invalid_json" {
		t.Errorf("expected invalid_json, got %q", code)
	}
}

func TestContactHandler_Add_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &service.ValidationError{Code: service.CodeRoleRequired}, http.StatusBadRequest, "role_required"},
		{"duplicate", repository.ErrConflict, http.StatusConflict, "contact_exists"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"internal", errors.New("db down"), http.StatusInternalServerError, "create_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockContactService{
				addFunc: func(ctx context.Context, ownerID string, in model.ContactInput) (*model.Contact, error) {
					return nil, tt.err
				},
			}
			h := NewContactHandler(mock, &mockLifecycleService{})
			req := authed(httptest.NewRequest(http.MethodPost, "/api/me/contacts", strings.NewReader(`{"email":"a@example.com"}`)), "owner-1")
			rec := httptest.NewRecorder()
			h.Add(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("expected %q, got %q", tt.code, code)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// GET /api/me/contacts
// ---------------------------------------------------------------------------

func TestContactHandler_List_EmptyIsArray(t *testing.T) {
	h := NewContactHandler(&mockContactService{}, &mockLifecycleService{})
	req := authed(httptest.NewRequest(http.MethodGet, "/api/me/contacts", nil), "owner-1")
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"contacts":[]}` {
		t.Errorf("expected empty array, got %s", got)
	}
}

// ---------------------------------------------------------------------------
// PATCH / DELETE / recheck
// ---------------------------------------------------------------------------

func TestContactHandler_Update_PassesPatch(t *testing.T) {
	var gotID string
	var gotPatch model.ContactPatch
	mock := &mockContactService{
		updateFunc: func(ctx context.Context, ownerID, contactID string, patch model.ContactPatch) (*model.Contact, error) {
			gotID, gotPatch = contactID, patch
			return &model.Contact{ID: contactID}, nil
		},
	}
	h := NewContactHandler(mock, &mockLifecycleService{})

	req := httptest.NewRequest(http.MethodPatch, "/api/me/contacts/c-1", strings.NewReader(`{"contact_type":"regular","is_primary":false}`))
	req.SetPathValue("id", "c-1")
	rec := httptest.NewRecorder()
	h.Update(rec, authed(req, "owner-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotID != "c-1" {
		t.Errorf("expected c-1, got %q", gotID)
	}
	if gotPatch.Type == nil || *gotPatch.Type != model.ContactTypeRegular {
		t.Errorf("expected type=regular, got %+v", gotPatch.Type)
	}
	if gotPatch.IsPrimary == nil || *gotPatch.IsPrimary {
		t.Errorf("expected is_primary=false, got %+v", gotPatch.IsPrimary)
	}
	if gotPatch.FullName != nil {
		t.Error("absent fields must stay nil")
	}
}

func TestContactHandler_Remove_NotFound(t *testing.T) {
	mock := &mockContactService{
		removeFunc: func(ctx context.Context, ownerID, contactID string) error {
			return repository.ErrNotFound
		},
	}
	h := NewContactHandler(mock, &mockLifecycleService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/me/contacts/c-9", nil)
	req.SetPathValue("id", "c-9")
	rec := httptest.NewRecorder()
	h.Remove(rec, authed(req, "owner-1"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestContactHandler_Remove_NoContent(t *testing.T) {
	h := NewContactHandler(&mockContactService{}, &mockLifecycleService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/me/contacts/c-1", nil)
	req.SetPathValue("id", "c-1")
	rec := httptest.NewRecorder()
	h.Remove(rec, authed(req, "owner-1"))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
}

func TestContactHandler_Recheck(t *testing.T) {
	lc := &mockLifecycleService{
		recheckFunc: func(ctx context.Context, ownerID, contactID string) (*model.Contact, error) {
			return &model.Contact{ID: contactID, InvitationStatus: model.StatusRegistered}, nil
		},
	}
	h := NewContactHandler(&mockContactService{}, lc)

	req := httptest.NewRequest(http.MethodPost, "/api/me/contacts/c-1/recheck", nil)
	req.SetPathValue("id", "c-1")
	rec := httptest.NewRecorder()
	h.Recheck(rec, authed(req, "owner-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got model.Contact
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.InvitationStatus != model.StatusRegistered {
		t.Errorf("expected registered, got %q", got.InvitationStatus)
	}
}
