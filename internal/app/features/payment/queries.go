// internal/app/features/payment/queries.go
package payment

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/libraryhub/internal/app/engine/payments"
	"github.com/dalemusser/libraryhub/internal/app/features/shared"
	"github.com/dalemusser/libraryhub/internal/app/system/authz"
	"github.com/dalemusser/libraryhub/internal/app/system/paging"
	"github.com/dalemusser/libraryhub/internal/app/system/respond"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
)

type historyData struct {
	Payments   []models.Payment `json:"payments"`
	Pagination paging.Meta      `json:"pagination"`
}

// ServeHistory handles GET /api/payment/history. Students see their own
// payments; staff see everyone's and may narrow by ?userId=.
func (h *Handler) ServeHistory(w http.ResponseWriter, r *http.Request) {
	v := viewer(r)
	q := payments.HistoryQuery{
		Status:      query.Get(r, "status"),
		PaymentType: query.Get(r, "paymentType"),
		Page:        paging.Parse(r),
	}
	if v.Staff {
		uid, err := shared.ParseID(query.Get(r, "userId"), "userId")
		if err != nil {
			respond.Error(w, h.Log, err)
			return
		}
		q.UserID = uid
	} else {
		q.UserID = &v.ID
	}

	rows, meta, err := h.Engine.History(r.Context(), q)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", historyData{Payments: rows, Pagination: meta})
}

// ServePayment handles GET /api/payment/{id}.
func (h *Handler) ServePayment(w http.ResponseWriter, r *http.Request) {
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	p, err := h.Engine.Get(r.Context(), id, viewer(r))
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", p)
}

// ServeReceipt handles GET /api/payment/receipt/{id} and streams the
// receipt document as a download.
func (h *Handler) ServeReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	doc, err := h.Engine.Receipt(r.Context(), id, viewer(r))
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

// HandleSendReceipt handles POST /api/payment/send-email/{id}.
func (h *Handler) HandleSendReceipt(w http.ResponseWriter, r *http.Request) {
	_, _, staffID, _ := authz.UserCtx(r)
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	to, err := h.Engine.SendReceipt(r.Context(), id, staffID)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "Receipt sent to "+to, map[string]string{"email": to})
}

// ServeStats handles GET /api/payment/stats.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Engine.Stats(r.Context())
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", stats)
}
