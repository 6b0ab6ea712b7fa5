// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/dalemusser/libraryhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the audit trail under the path where this router is
// mounted (typically "/api/audit" from bootstrap). Staff only.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(authz.Require(authz.ViewAuditTrail))

		pr.Get("/", h.ServeList)
		pr.Get("/record/{id}", h.ServeRecordTrail)
	})

	return r
}
