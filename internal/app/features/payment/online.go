// internal/app/features/payment/online.go
package payment

import (
	"net/http"

	"github.com/dalemusser/libraryhub/internal/app/engine/payments"
	"github.com/dalemusser/libraryhub/internal/app/features/shared"
	"github.com/dalemusser/libraryhub/internal/app/system/authz"
	"github.com/dalemusser/libraryhub/internal/app/system/gateway"
	"github.com/dalemusser/libraryhub/internal/app/system/respond"
)

// paymentBody is shared by create-order and submit-manual.
type paymentBody struct {
	Amount        int64  `json:"amount"`
	PaymentType   string `json:"paymentType"`
	PaymentMethod string `json:"paymentMethod"`
	BorrowID      string `json:"borrowId"`
	Description   string `json:"description"`
	TransactionID string `json:"transactionId"`
}

func (b paymentBody) request() (payments.Request, error) {
	borrowID, err := shared.ParseID(b.BorrowID, "borrowId")
	if err != nil {
		return payments.Request{}, err
	}
	return payments.Request{
		Amount:        b.Amount,
		PaymentType:   b.PaymentType,
		Method:        b.PaymentMethod,
		BorrowID:      borrowID,
		Description:   b.Description,
		TransactionID: b.TransactionID,
	}, nil
}

// HandleCreateOrder handles POST /api/payment/create-order.
func (h *Handler) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.Engine.CreateOnlineOrder(r.Context(), userID, req)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusCreated, "Order created", res)
}

type verifyBody struct {
	OrderID         string `json:"orderId"`
	PaymentID       string `json:"paymentId"`
	Signature       string `json:"signature"`
	PaymentMethod   string `json:"paymentMethod"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// HandleVerify handles POST /api/payment/verify.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var body verifyBody
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	p, err := h.Engine.ConfirmOnlinePayment(r.Context(), body.PaymentMethod, gateway.Proof{
		OrderID:         body.OrderID,
		PaymentID:       body.PaymentID,
		Signature:       body.Signature,
		PaymentIntentID: body.PaymentIntentID,
	})
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "Payment verified successfully", p)
}
