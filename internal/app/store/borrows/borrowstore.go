package borrowstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("borrow record not found")
	// ErrWrongState is returned when a guarded transition finds the record in
	// a state the transition does not start from.
	ErrWrongState = errors.New("borrow record is not in the required state")
	// ErrSameApprover is returned when one identity tries to fill both approval slots.
	ErrSameApprover = errors.New("the same staff member cannot sign both approvals")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("borrow_records")}
}

// Create inserts a new record.
func (s *Store) Create(ctx context.Context, r models.BorrowRecord) (models.BorrowRecord, error) {
	r.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, r); err != nil {
		return models.BorrowRecord{}, err
	}
	return r, nil
}

// GetByID loads a record.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.BorrowRecord, error) {
	var r models.BorrowRecord
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// CountActiveByUser counts the user's records in borrowed or overdue state.
func (s *Store) CountActiveByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"user_id": userID,
		"status":  bson.M{"$in": models.ActiveBorrowStates},
	})
}

// ExistsActive reports whether the user currently holds bookID.
func (s *Store) ExistsActive(ctx context.Context, userID, bookID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{
		"user_id": userID,
		"book_id": bookID,
		"status":  bson.M{"$in": models.ActiveBorrowStates},
	}, options.Count().SetLimit(1))
	return n > 0, err
}

// SignApproval writes approverID into the slot for role while the record is
// pending and the slot is empty. The other slot must not hold the same
// identity.
//
// signed is false when the slot was already filled; the current record is
// returned unchanged in that case.
func (s *Store) SignApproval(ctx context.Context, id primitive.ObjectID, role string, approverID primitive.ObjectID) (rec *models.BorrowRecord, signed bool, err error) {
	slot, other := "approved_by_admin", "approved_by_librarian"
	if role == models.RoleLibrarian {
		slot, other = other, slot
	}

	var r models.BorrowRecord
	err = s.c.FindOneAndUpdate(ctx,
		bson.M{
			"_id":    id,
			"status": models.BorrowPending,
			slot:     nil,
			other:    bson.M{"$ne": approverID},
		},
		bson.M{"$set": bson.M{slot: approverID, "updated_at": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&r)
	if err == nil {
		return &r, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	cur, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if cur.Status != models.BorrowPending {
		return cur, false, ErrWrongState
	}
	mine, theirs := cur.ApprovedByAdmin, cur.ApprovedByLibrarian
	if role == models.RoleLibrarian {
		mine, theirs = theirs, mine
	}
	if mine == nil && theirs != nil && *theirs == approverID {
		return cur, false, ErrSameApprover
	}
	return cur, false, nil
}

// transition moves a record from one of the from states, applying set.
// It returns the record as it is after the update.
func (s *Store) transition(ctx context.Context, filter bson.M, from []string, set bson.M) (*models.BorrowRecord, error) {
	filter["status"] = bson.M{"$in": from}
	set["updated_at"] = time.Now().UTC()

	var r models.BorrowRecord
	err := s.c.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&r)
	if err == mongo.ErrNoDocuments {
		id, _ := filter["_id"].(primitive.ObjectID)
		if _, gerr := s.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, ErrWrongState
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Activate claims a fully approved pending record as borrowed. Only one
// caller can win the claim.
func (s *Store) Activate(ctx context.Context, id, issuedBy primitive.ObjectID, now time.Time) (*models.BorrowRecord, error) {
	return s.transition(ctx,
		bson.M{
			"_id":                   id,
			"approved_by_admin":     bson.M{"$ne": nil},
			"approved_by_librarian": bson.M{"$ne": nil},
		},
		[]string{models.BorrowPending},
		bson.M{
			"status":      models.BorrowBorrowed,
			"borrow_date": now.UTC(),
			"issued_by":   issuedBy,
		})
}

// RevertActivation undoes Activate when the copy could not be taken.
func (s *Store) RevertActivation(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.BorrowBorrowed},
		bson.M{
			"$set":   bson.M{"status": models.BorrowPending, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"issued_by": ""},
		})
	return err
}

// Reject closes a pending request.
func (s *Store) Reject(ctx context.Context, id, staffID primitive.ObjectID, notes string) (*models.BorrowRecord, error) {
	set := bson.M{"status": models.BorrowRejected, "rejected_by": staffID}
	if notes != "" {
		set["notes"] = notes
	}
	return s.transition(ctx, bson.M{"_id": id}, []string{models.BorrowPending}, set)
}

// MarkReturnPending records that the borrower handed the book back.
func (s *Store) MarkReturnPending(ctx context.Context, id primitive.ObjectID, now time.Time) (*models.BorrowRecord, error) {
	return s.transition(ctx, bson.M{"_id": id}, models.ActiveBorrowStates, bson.M{
		"status":      models.BorrowReturnPending,
		"return_date": now.UTC(),
	})
}

// CompleteReturn closes a return_pending record with the computed fine.
func (s *Store) CompleteReturn(ctx context.Context, id, staffID primitive.ObjectID, fine int64) (*models.BorrowRecord, error) {
	return s.transition(ctx, bson.M{"_id": id}, []string{models.BorrowReturnPending}, bson.M{
		"status":      models.BorrowReturned,
		"returned_to": staffID,
		"fine":        fine,
	})
}

// ReopenReturn undoes CompleteReturn when the return's effects could not be
// applied. Only the verification made by staffID is reverted.
func (s *Store) ReopenReturn(ctx context.Context, id, staffID primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.BorrowReturned, "returned_to": staffID},
		bson.M{
			"$set":   bson.M{"status": models.BorrowReturnPending, "fine": int64(0), "updated_at": time.Now().UTC()},
			"$unset": bson.M{"returned_to": ""},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrWrongState
	}
	return nil
}

// MarkOverdue moves every borrowed record past its due date to overdue.
func (s *Store) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{
			"status":      models.BorrowBorrowed,
			"due_date":    bson.M{"$lt": now.UTC()},
			"return_date": nil,
		},
		bson.M{"$set": bson.M{"status": models.BorrowOverdue, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// SetFinePaid flags the record's fine as settled.
func (s *Store) SetFinePaid(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"fine_paid": true, "updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.BorrowRecord, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []models.BorrowRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns the user's records in the given states, newest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID, statuses []string) ([]models.BorrowRecord, error) {
	return s.find(ctx,
		bson.M{"user_id": userID, "status": bson.M{"$in": statuses}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ListByStatus returns records in the given states, earliest due first.
func (s *Store) ListByStatus(ctx context.Context, statuses []string) ([]models.BorrowRecord, error) {
	return s.find(ctx,
		bson.M{"status": bson.M{"$in": statuses}},
		options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}}))
}

// ListOverdue returns overdue records that have not been handed back.
func (s *Store) ListOverdue(ctx context.Context) ([]models.BorrowRecord, error) {
	return s.find(ctx,
		bson.M{"status": models.BorrowOverdue, "return_date": nil},
		options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}}))
}

// HistoryFilter narrows History. Zero values match everything.
type HistoryFilter struct {
	UserID *primitive.ObjectID
	Status string
}

// History returns one page of records, newest first, and the total match count.
func (s *Store) History(ctx context.Context, f HistoryFilter, skip, limit int64) ([]models.BorrowRecord, int64, error) {
	filter := bson.M{}
	if f.UserID != nil {
		filter["user_id"] = *f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}

	total, err := s.c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
