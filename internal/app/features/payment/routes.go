// internal/app/features/payment/routes.go
package payment

import (
	"github.com/dalemusser/libraryhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the payment endpoints (typically under "/api/payment").
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	// Creating payments and talking to a gateway are throttled per user.
	r.With(authz.Require(authz.CreateOnlineOrder), h.throttle).Post("/create-order", h.HandleCreateOrder)
	r.With(authz.Require(authz.ConfirmOnlinePayment), h.throttle).Post("/verify", h.HandleVerify)
	r.With(authz.Require(authz.SubmitManualPayment), h.throttle).Post("/submit-manual", h.HandleSubmitManual)

	r.With(authz.Require(authz.VerifyManualPayment)).Put("/verify-manual/{id}", h.HandleVerifyManual)
	r.With(authz.Require(authz.SendReceiptEmail)).Post("/send-email/{id}", h.HandleSendReceipt)

	r.With(authz.Require(authz.PaymentHistory)).Get("/history", h.ServeHistory)
	r.With(authz.Require(authz.PaymentStats)).Get("/stats", h.ServeStats)
	r.With(authz.Require(authz.TransferDetails)).Get("/admin-details", h.ServeTransferDetails)
	r.With(authz.Require(authz.DownloadReceipt)).Get("/receipt/{id}", h.ServeReceipt)
	r.With(authz.Require(authz.GetPayment)).Get("/{id}", h.ServePayment)

	return r
}
