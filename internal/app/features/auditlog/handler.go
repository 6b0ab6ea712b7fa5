// internal/app/features/auditlog/handler.go
package auditlog

import (
	"github.com/dalemusser/libraryhub/internal/app/store/audit"
	"go.uber.org/zap"
)

// Handler exposes the circulation and payment audit trail to staff.
type Handler struct {
	Events *audit.Store
	Log    *zap.Logger
}

// NewHandler constructs an audit trail handler over the given store.
func NewHandler(events *audit.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		Log:    logger,
	}
}
