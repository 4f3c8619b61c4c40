package handler

import (
	"net/http"
)

// Routes collects the handlers and middleware that make up the API.
type Routes struct {
	Base          *Handler
	Contacts      *ContactHandler
	Relationships *RelationshipHandler
	Release       *ReleaseHandler
	Media         *MediaHandler
	Admin         *AdminHandler

	// Auth authenticates the caller (auth.RequireAuth or auth.DevAuth).
	Auth func(http.Handler) http.Handler
	// RequireAdmin runs after Auth on /api/admin routes.
	RequireAdmin func(http.Handler) http.Handler
	// ConfirmLimiter throttles confirm-deceased submissions. Optional.
	ConfirmLimiter *RateLimiter
	// Metrics serves /metrics. Optional.
	Metrics http.Handler
}

// Router registers every route and wraps the mux in the shared middleware.
func Router(rt Routes) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", rt.Base.Health)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics)
	}

	wrapAuth := func(f http.HandlerFunc) http.Handler {
		return rt.Auth(f)
	}
	wrapAdmin := func(f http.HandlerFunc) http.Handler {
		return rt.Auth(rt.RequireAdmin(f))
	}

	// 連絡先 API（認証必須）
	mux.Handle("GET /api/me/contacts", wrapAuth(rt.Contacts.List))
	mux.Handle("POST /api/me/contacts", wrapAuth(rt.Contacts.Add))
	mux.Handle("PATCH /api/me/contacts/{id}", wrapAuth(rt.Contacts.Update))
	mux.Handle("DELETE /api/me/contacts/{id}", wrapAuth(rt.Contacts.Remove))
	mux.Handle("POST /api/me/contacts/{id}/recheck", wrapAuth(rt.Contacts.Recheck))
	mux.Handle("GET /api/me/trusted-by", wrapAuth(rt.Relationships.TrustedBy))
	mux.Handle("GET /api/me/notifications", wrapAuth(rt.Relationships.Notifications))

	// 死亡確認・公開動画
	mux.Handle("GET /api/legacy/owners/{id}/confirmation", wrapAuth(rt.Release.Prompt))
	confirm := wrapAuth(rt.Release.Confirm)
	if rt.ConfirmLimiter != nil {
		confirm = rt.ConfirmLimiter.Middleware(confirm)
	}
	mux.Handle("POST /api/legacy/owners/{id}/confirm-deceased", confirm)
	mux.Handle("GET /api/legacy/videos", wrapAuth(rt.Media.List))
	mux.Handle("GET /api/legacy/videos/{id}/url", wrapAuth(rt.Media.URL))

	// Admin routes
	mux.Handle("GET /api/admin/owners/{id}/confirmations", wrapAdmin(rt.Admin.Confirmations))
	mux.Handle("POST /api/admin/reconcile", wrapAdmin(rt.Admin.Reconcile))

	return SecurityHeaders(RequestLogger(rt.Base.CORS(mux)))
}
