// internal/app/features/userinfo/routes.go
package userinfo

import "github.com/go-chi/chi/v5"

// MountRoutes registers GET /user on the supplied (API) router.
// No auth middleware is required because anonymous callers get a
// minimal response.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/user", h.ServeUserInfo)
}
