package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/libraryhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// QueueDepth reports how many notifications are waiting to be sent.
type QueueDepth interface {
	Pending() int
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Queue  QueueDepth
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. queue may be nil.
func NewHandler(client *mongo.Client, queue QueueDepth, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Queue:  queue,
		Log:    logger,
	}
}

type healthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	Notifications *int   `json:"notifications_pending,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "notifications_pending":0 }
//
// On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…" }
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}
	if h.Queue != nil {
		n := h.Queue.Pending()
		resp.Notifications = &n
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}
