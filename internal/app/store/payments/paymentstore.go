package paymentstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/libraryhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("payment not found")
	// ErrDuplicateTransaction is returned when the unique transaction_id index rejects a write.
	ErrDuplicateTransaction = errors.New("transaction id already recorded")
	// ErrWrongState is returned when a guarded transition finds the payment
	// outside the states it starts from.
	ErrWrongState = errors.New("payment is not in the required state")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("payments")}
}

// Create inserts a payment.
func (s *Store) Create(ctx context.Context, p models.Payment) (models.Payment, error) {
	p.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Payment{}, ErrDuplicateTransaction
		}
		return models.Payment{}, err
	}
	return p, nil
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*models.Payment, error) {
	var p models.Payment
	if err := s.c.FindOne(ctx, filter).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByID loads a payment.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Payment, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// GetByOrderID loads the payment created for a gateway order.
func (s *Store) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return s.findOne(ctx, bson.M{"order_id": orderID})
}

// transition applies set to the payment matched by filter while it is in one
// of the from states. Exactly one concurrent caller can win a transition.
func (s *Store) transition(ctx context.Context, filter bson.M, from []string, set bson.M) (*models.Payment, error) {
	lookup := bson.M{}
	for k, v := range filter {
		lookup[k] = v
	}
	filter["status"] = bson.M{"$in": from}
	set["updated_at"] = time.Now().UTC()

	var p models.Payment
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err == mongo.ErrNoDocuments {
		if _, gerr := s.findOne(ctx, lookup); gerr != nil {
			return nil, gerr
		}
		return nil, ErrWrongState
	}
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, ErrDuplicateTransaction
		}
		return nil, err
	}
	return &p, nil
}

// CompleteOnline settles a pending gateway order.
func (s *Store) CompleteOnline(ctx context.Context, orderID, transactionID string, snapshot map[string]string, now time.Time) (*models.Payment, error) {
	return s.transition(ctx, bson.M{"order_id": orderID}, []string{models.PaymentPending}, bson.M{
		"status":           models.PaymentCompleted,
		"transaction_id":   transactionID,
		"paid_at":          now.UTC(),
		"gateway_response": snapshot,
	})
}

// Decide records a staff decision on a manual payment awaiting verification.
// decision is models.PaymentCompleted or models.PaymentFailed.
func (s *Store) Decide(ctx context.Context, id primitive.ObjectID, decision string, staffID primitive.ObjectID, notes string, now time.Time) (*models.Payment, error) {
	set := bson.M{
		"status":      decision,
		"verified_by": staffID,
		"admin_notes": notes,
	}
	if decision == models.PaymentCompleted {
		set["paid_at"] = now.UTC()
	}
	return s.transition(ctx, bson.M{"_id": id}, []string{models.PaymentVerifying}, set)
}

// ReopenOnline undoes CompleteOnline when settlement could not be applied.
// Only the completion made with transactionID is reverted.
func (s *Store) ReopenOnline(ctx context.Context, id primitive.ObjectID, transactionID string) error {
	return s.reopen(ctx,
		bson.M{"_id": id, "transaction_id": transactionID},
		models.PaymentPending,
		bson.M{"transaction_id": "", "paid_at": "", "gateway_response": ""})
}

// ReopenManual undoes a completing Decide when settlement could not be
// applied. Only the decision recorded by staffID is reverted.
func (s *Store) ReopenManual(ctx context.Context, id, staffID primitive.ObjectID) error {
	return s.reopen(ctx,
		bson.M{"_id": id, "verified_by": staffID},
		models.PaymentVerifying,
		bson.M{"verified_by": "", "admin_notes": "", "paid_at": ""})
}

func (s *Store) reopen(ctx context.Context, filter bson.M, to string, unset bson.M) error {
	filter["status"] = models.PaymentCompleted
	res, err := s.c.UpdateOne(ctx, filter, bson.M{
		"$set":   bson.M{"status": to, "updated_at": time.Now().UTC()},
		"$unset": unset,
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrWrongState
	}
	return nil
}

// SetReceipt stores the receipt reference.
func (s *Store) SetReceipt(ctx context.Context, id primitive.ObjectID, url string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"receipt_url": url, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// HistoryFilter narrows History. Zero values match everything.
type HistoryFilter struct {
	UserID      *primitive.ObjectID
	Status      string
	PaymentType string
}

// History returns one page of payments, newest first, and the total match count.
func (s *Store) History(ctx context.Context, f HistoryFilter, skip, limit int64) ([]models.Payment, int64, error) {
	filter := bson.M{}
	if f.UserID != nil {
		filter["user_id"] = *f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.PaymentType != "" {
		filter["payment_type"] = f.PaymentType
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := s.c.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	rows := []models.Payment{}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// TypeStat aggregates completed payments of one type.
type TypeStat struct {
	PaymentType string `bson:"_id" json:"payment_type"`
	Count       int64  `bson:"count" json:"count"`
	Total       int64  `bson:"total" json:"total"`
}

// Stats summarizes completed payments.
type Stats struct {
	TotalRevenue int64            `json:"total_revenue"`
	ByType       []TypeStat       `json:"by_type"`
	Recent       []models.Payment `json:"recent_payments"`
}

// Stats aggregates completed revenue per type plus the ten most recent completions.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	out := Stats{ByType: []TypeStat{}, Recent: []models.Payment{}}

	cur, err := s.c.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"status": models.PaymentCompleted}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$payment_type",
			"count": bson.M{"$sum": 1},
			"total": bson.M{"$sum": "$amount"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	})
	if err != nil {
		return Stats{}, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &out.ByType); err != nil {
		return Stats{}, err
	}
	for _, ts := range out.ByType {
		out.TotalRevenue += ts.Total
	}

	rc, err := s.c.Find(ctx, bson.M{"status": models.PaymentCompleted}, options.Find().
		SetSort(bson.D{{Key: "paid_at", Value: -1}}).
		SetLimit(10))
	if err != nil {
		return Stats{}, err
	}
	defer rc.Close(ctx)
	if err := rc.All(ctx, &out.Recent); err != nil {
		return Stats{}, err
	}
	return out, nil
}
