// internal/app/features/payment/handler.go
package payment

import (
	"net/http"

	"github.com/dalemusser/libraryhub/internal/app/engine/payments"
	"github.com/dalemusser/libraryhub/internal/app/system/authz"
	"github.com/dalemusser/libraryhub/internal/app/system/ratelimit"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler serves the /api/payment endpoints on top of the payments engine.
// Limiter throttles the endpoints that create payments or call a gateway;
// nil disables throttling.
type Handler struct {
	Engine  *payments.Engine
	Limiter *ratelimit.Limiter
	Log     *zap.Logger
}

// NewHandler constructs a payment Handler.
func NewHandler(engine *payments.Engine, limiter *ratelimit.Limiter, logger *zap.Logger) *Handler {
	return &Handler{Engine: engine, Limiter: limiter, Log: logger}
}

// viewer describes the caller to the engine's ownership checks.
func viewer(r *http.Request) payments.Viewer {
	role, _, userID, _ := authz.UserCtx(r)
	return payments.Viewer{ID: userID, Staff: models.IsStaff(role)}
}

func (h *Handler) throttle(next http.Handler) http.Handler {
	if h.Limiter == nil {
		return next
	}
	return h.Limiter.Middleware(next)
}
