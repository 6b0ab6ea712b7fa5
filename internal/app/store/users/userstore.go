package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/libraryhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

var (
	// ErrNotFound is returned when no user matches the given id.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errBadRole        = errors.New(`role must be "student"|"librarian"|"admin"`)
)

// GetByID loads a user by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user. Emails are stored lowercased.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	u.ID = primitive.NewObjectID()
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	switch u.Role {
	case models.RoleStudent, models.RoleLibrarian, models.RoleAdmin:
	default:
		return models.User{}, errBadRole
	}
	if u.MembershipStatus == "" {
		u.MembershipStatus = models.MembershipInactive
	}
	if u.HeldBooks == nil {
		u.HeldBooks = []primitive.ObjectID{}
	}
	if u.TotalFines < 0 {
		u.TotalFines = 0
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) updateOne(ctx context.Context, id primitive.ObjectID, update interface{}) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddFine increments the user's outstanding fines.
func (s *Store) AddFine(ctx context.Context, id primitive.ObjectID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	return s.updateOne(ctx, id, bson.M{
		"$inc": bson.M{"total_fines": amount},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
}

// ReduceFines subtracts amount from the user's fines, flooring at zero,
// and returns how much was actually removed. The floor is applied
// server-side so concurrent settlements cannot drive the balance negative.
// AddFine with the returned amount restores the previous balance.
func (s *Store) ReduceFines(ctx context.Context, id primitive.ObjectID, amount int64) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"total_fines": bson.M{"$max": bson.A{
				0,
				bson.M{"$subtract": bson.A{bson.M{"$ifNull": bson.A{"$total_fines", 0}}, amount}},
			}},
			"updated_at": time.Now().UTC(),
		}}},
	}

	var before models.User
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline,
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&before)
	if err == mongo.ErrNoDocuments {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if before.TotalFines < amount {
		return max(before.TotalFines, 0), nil
	}
	return amount, nil
}

// AddHeldBook records bookID in the user's held-books cache.
func (s *Store) AddHeldBook(ctx context.Context, id, bookID primitive.ObjectID) error {
	return s.updateOne(ctx, id, bson.M{
		"$addToSet": bson.M{"held_books": bookID},
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	})
}

// RemoveHeldBook removes bookID from the user's held-books cache.
func (s *Store) RemoveHeldBook(ctx context.Context, id, bookID primitive.ObjectID) error {
	return s.updateOne(ctx, id, bson.M{
		"$pull": bson.M{"held_books": bookID},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
}

// ActivateMembership marks the membership active until expiry.
func (s *Store) ActivateMembership(ctx context.Context, id primitive.ObjectID, expiry time.Time) error {
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{
		"membership_status": models.MembershipActive,
		"membership_expiry": expiry.UTC(),
		"updated_at":        time.Now().UTC(),
	}})
}

// GetByEmail loads a user by (case-insensitive) email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetRole changes a user's role.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) error {
	switch role {
	case models.RoleStudent, models.RoleLibrarian, models.RoleAdmin:
	default:
		return errBadRole
	}
	return s.updateOne(ctx, id, bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}})
}
