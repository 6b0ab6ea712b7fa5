// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryCirculation = "circulation"
	CategoryPayments    = "payments"
)

// Circulation event types
const (
	EventBorrowRequested = "borrow_requested"
	EventBorrowSigned    = "borrow_signed"
	EventBorrowIssued    = "borrow_issued"
	EventBorrowRejected  = "borrow_rejected"
	EventReturnInitiated = "return_initiated"
	EventReturnVerified  = "return_verified"
	EventOverdueSweep    = "overdue_sweep"
)

// Payment event types
const (
	EventOrderCreated        = "order_created"
	EventOnlinePaymentPaid   = "online_payment_completed"
	EventOnlinePaymentDenied = "online_payment_denied"
	EventManualSubmitted     = "manual_payment_submitted"
	EventManualVerified      = "manual_payment_verified"
	EventManualFailed        = "manual_payment_failed"
	EventReceiptEmailed      = "receipt_emailed"
)

// Event represents an audit event.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`

	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	UserID   *primitive.ObjectID `bson:"user_id,omitempty"`   // affected user
	ActorID  *primitive.ObjectID `bson:"actor_id,omitempty"`  // staff who acted, if any
	RecordID *primitive.ObjectID `bson:"record_id,omitempty"` // borrow record or payment

	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	UserID    *primitive.ObjectID
	RecordID  *primitive.ObjectID
	Category  string
	EventType string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int64
	Offset    int64
}

func (f QueryFilter) bson() bson.M {
	query := bson.M{}
	if f.UserID != nil {
		query["user_id"] = f.UserID
	}
	if f.RecordID != nil {
		query["record_id"] = f.RecordID
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.EventType != "" {
		query["event_type"] = f.EventType
	}
	if f.StartTime != nil || f.EndTime != nil {
		tq := bson.M{}
		if f.StartTime != nil {
			tq["$gte"] = *f.StartTime
		}
		if f.EndTime != nil {
			tq["$lte"] = *f.EndTime
		}
		query["timestamp"] = tq
	}
	return query
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store. Indexes live in system/indexes.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query retrieves audit events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cur, err := s.c.Find(ctx, filter.bson(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.bson())
}

// GetByRecord returns the trail for one borrow record or payment.
func (s *Store) GetByRecord(ctx context.Context, recordID primitive.ObjectID) ([]Event, error) {
	return s.Query(ctx, QueryFilter{RecordID: &recordID})
}
