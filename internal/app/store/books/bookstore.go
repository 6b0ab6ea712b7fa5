package bookstore

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

var (
	ErrNotFound      = errors.New("book not found")
	ErrDuplicateISBN = errors.New("a book with this isbn already exists")
	// ErrNoCopies is returned when a decrement would take available copies below zero.
	ErrNoCopies = errors.New("no copies available")
	// ErrAllCopiesIn is returned when an increment would exceed total copies.
	ErrAllCopiesIn = errors.New("all copies already available")
	errBadCopies   = errors.New("total copies must be at least 1")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("books")}
}

// Create inserts a book with every copy available unless AvailableCopies is set.
func (s *Store) Create(ctx context.Context, b models.Book) (models.Book, error) {
	if b.TotalCopies < 1 {
		return models.Book{}, errBadCopies
	}
	if b.AvailableCopies <= 0 || b.AvailableCopies > b.TotalCopies {
		b.AvailableCopies = b.TotalCopies
	}
	b.ID = primitive.NewObjectID()
	b.ISBN = strings.TrimSpace(b.ISBN)
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, b); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Book{}, ErrDuplicateISBN
		}
		return models.Book{}, err
	}
	return b, nil
}

// GetByID loads a book.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var b models.Book
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

// TitlesByID returns id -> title for the given books. Unknown ids are omitted.
func (s *Store) TitlesByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]string, error) {
	out := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"title": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			ID    primitive.ObjectID `bson:"_id"`
			Title string             `bson:"title"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = row.Title
	}
	return out, cur.Err()
}

// TakeCopy atomically decrements available copies, refusing to go below zero.
func (s *Store) TakeCopy(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var b models.Book
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "available_copies": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"available_copies": -1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, s.missOrGuard(ctx, id, ErrNoCopies)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ReturnCopy atomically increments available copies, refusing to exceed total.
func (s *Store) ReturnCopy(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var b models.Book
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "$expr": bson.M{"$lt": bson.A{"$available_copies", "$total_copies"}}},
		bson.M{
			"$inc": bson.M{"available_copies": 1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&b)
	if err == mongo.ErrNoDocuments {
		return nil, s.missOrGuard(ctx, id, ErrAllCopiesIn)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// missOrGuard tells a missing book apart from a failed guard.
func (s *Store) missOrGuard(ctx context.Context, id primitive.ObjectID, guardErr error) error {
	n, err := s.c.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return guardErr
}
