// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/features/shared"
	"github.com/dalemusser/libraryhub/internal/app/store/audit"
	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/paging"
	"github.com/dalemusser/libraryhub/internal/app/system/respond"
	"github.com/dalemusser/libraryhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// eventView is the JSON shape of one audit event.
type eventView struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"event_type"`
	UserID        string            `json:"user_id,omitempty"`
	ActorID       string            `json:"actor_id,omitempty"`
	RecordID      string            `json:"record_id,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

type listData struct {
	Events     []eventView `json:"events"`
	Pagination paging.Meta `json:"pagination"`
}

func hex(id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	return id.Hex()
}

func toViews(events []audit.Event) []eventView {
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView{
			ID:            e.ID.Hex(),
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			UserID:        hex(e.UserID),
			ActorID:       hex(e.ActorID),
			RecordID:      hex(e.RecordID),
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		})
	}
	return out
}

var categories = map[string]bool{
	"":                        true,
	audit.CategoryCirculation: true,
	audit.CategoryPayments:    true,
}

// ServeList handles GET /api/audit.
//
// Filters: category, event_type, userId, start_date and end_date
// (YYYY-MM-DD or RFC3339; end_date covers the whole day when given as a date).
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	category := strings.TrimSpace(query.Get(r, "category"))
	if !categories[category] {
		respond.Error(w, h.Log, apperr.New(apperr.BadRequest, "unknown category"))
		return
	}

	page := paging.Parse(r)
	filter := audit.QueryFilter{
		Category:  category,
		EventType: strings.TrimSpace(query.Get(r, "event_type")),
		Limit:     int64(page.Limit),
		Offset:    page.Skip(),
	}

	userID, err := shared.ParseID(query.Get(r, "userId"), "userId")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	filter.UserID = userID

	start, err := shared.ParseDate(query.Get(r, "start_date"), "start_date")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	filter.StartTime = start

	rawEnd := strings.TrimSpace(query.Get(r, "end_date"))
	end, err := shared.ParseDate(rawEnd, "end_date")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	if end != nil && len(rawEnd) == len("2006-01-02") {
		eod := end.Add(24*time.Hour - time.Nanosecond)
		end = &eod
	}
	filter.EndTime = end

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	respond.OK(w, http.StatusOK, "", listData{
		Events:     toViews(events),
		Pagination: paging.NewMeta(page, total),
	})
}

// ServeRecordTrail handles GET /api/audit/record/{id}: every event for one
// borrow record or payment, newest first.
func (h *Handler) ServeRecordTrail(w http.ResponseWriter, r *http.Request) {
	id, err := shared.PathID(r, "id")
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit record trail")
	defer cancel()

	events, err := h.Events.GetByRecord(ctx, id)
	if err != nil {
		respond.Error(w, h.Log, err)
		return
	}
	respond.OK(w, http.StatusOK, "", map[string]any{"events": toViews(events)})
}
