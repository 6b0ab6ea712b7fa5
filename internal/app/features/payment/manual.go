// internal/app/features/payment/manual.go
package payment

import (
	"net/http"

	"github.com/dalemusser/libraryhub/internal/app/features/shared"
	"github.com/dalemusser/libraryhub/internal/app/system/authz"
	"github.com/dalemusser/libraryhub/internal/app/system/respond"
	"github.com/dalemusser/libraryhub/internal/domain/models"
)

// HandleSubmitManual handles POST /api/payment/submit-manual.
func (h *Handler) HandleSubmitManual(w http.ResponseWriter, r *http.Request) {
	_, _, userID, _ := authz.UserCtx(r)

	var body paymentBody
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	req, err := body.request()
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	p, err := h.Engine.SubmitManualPayment(r.Context(), userID, req)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusCreated, "Payment submitted for verification", p)
}

type decisionBody struct {
	Status     string `json:"status"`
	AdminNotes string `json:"adminNotes"`
}

// HandleVerifyManual handles PUT /api/payment/verify-manual/{id}.
func (h *Handler) HandleVerifyManual(w http.ResponseWriter, r *http.Request) {
	_, _, staffID, _ := authz.UserCtx(r)
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	var body decisionBody
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	p, err := h.Engine.VerifyManualPayment(r.Context(), id, staffID, body.Status, body.AdminNotes)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	msg := "Payment verified successfully"
	if p.Status == models.PaymentFailed {
		msg = "Payment marked as failed"
	}
	respond.OK(w, http.StatusOK, msg, p)
}

// ServeTransferDetails handles GET /api/payment/admin-details.
func (h *Handler) ServeTransferDetails(w http.ResponseWriter, r *http.Request) {
	respond.OK(w, http.StatusOK, "", h.Engine.TransferDetails())
}
