package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/libraryhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc interface{}) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert test %s: %v", coll, err)
	}
}

// CreateUser creates a user with the given role and no fines.
func (f *Fixtures) CreateUser(ctx context.Context, email, role string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:               primitive.NewObjectID(),
		Name:             "Test " + role,
		Email:            email,
		Role:             role,
		MembershipStatus: models.MembershipActive,
		HeldBooks:        []primitive.ObjectID{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.insert(ctx, "users", u)
	return u
}

// CreateStudent creates a student.
func (f *Fixtures) CreateStudent(ctx context.Context, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, email, models.RoleStudent)
}

// CreateStudentWithFines creates a student who owes fines.
func (f *Fixtures) CreateStudentWithFines(ctx context.Context, email string, fines int64) models.User {
	f.t.Helper()

	u := f.CreateStudent(ctx, email)
	if _, err := f.db.Collection("users").UpdateByID(ctx, u.ID,
		bson.M{"$set": bson.M{"total_fines": fines}}); err != nil {
		f.t.Fatalf("failed to set fines: %v", err)
	}
	u.TotalFines = fines
	return u
}

// CreateBook creates a book with every copy available.
func (f *Fixtures) CreateBook(ctx context.Context, isbn string, copies int) models.Book {
	f.t.Helper()

	now := time.Now().UTC()
	b := models.Book{
		ID:              primitive.NewObjectID(),
		ISBN:            isbn,
		Title:           "Book " + isbn,
		Author:          "Test Author",
		TotalCopies:     copies,
		AvailableCopies: copies,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.insert(ctx, "books", b)
	return b
}

// CreatePendingBorrow creates a pending request due in 14 days.
func (f *Fixtures) CreatePendingBorrow(ctx context.Context, userID, bookID primitive.ObjectID) models.BorrowRecord {
	f.t.Helper()

	now := time.Now().UTC()
	r := models.BorrowRecord{
		ID:         primitive.NewObjectID(),
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: now,
		DueDate:    now.AddDate(0, 0, 14),
		Status:     models.BorrowPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.insert(ctx, "borrow_records", r)
	return r
}

// CreateActiveBorrow creates a fully approved borrowed record with the given due date.
// It does not touch the book's copy count or the user's held books.
func (f *Fixtures) CreateActiveBorrow(ctx context.Context, userID, bookID primitive.ObjectID, due time.Time) models.BorrowRecord {
	f.t.Helper()

	now := time.Now().UTC()
	admin, librarian := primitive.NewObjectID(), primitive.NewObjectID()
	r := models.BorrowRecord{
		ID:                  primitive.NewObjectID(),
		UserID:              userID,
		BookID:              bookID,
		BorrowDate:          now,
		DueDate:             due.UTC(),
		Status:              models.BorrowBorrowed,
		ApprovedByAdmin:     &admin,
		ApprovedByLibrarian: &librarian,
		IssuedBy:            &librarian,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	f.insert(ctx, "borrow_records", r)
	return r
}

// CreatePayment inserts p as-is after filling id and timestamps.
func (f *Fixtures) CreatePayment(ctx context.Context, p models.Payment) models.Payment {
	f.t.Helper()

	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	if p.Currency == "" {
		p.Currency = "INR"
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	f.insert(ctx, "payments", p)
	return p
}
