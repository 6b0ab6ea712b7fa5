package userstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	userstore "github.com/dalemusser/libraryhub/internal/app/store/users"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"github.com/dalemusser/libraryhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		Name:  "  Asha Rao ",
		Email: "Asha@Example.com",
		Role:  models.RoleStudent,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.Email != "asha@example.com" {
		t.Errorf("email = %q, want lowercased", created.Email)
	}
	if created.Name != "Asha Rao" {
		t.Errorf("name = %q, want trimmed", created.Name)
	}
	if created.MembershipStatus != models.MembershipInactive {
		t.Errorf("membership = %q, want inactive", created.MembershipStatus)
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStore_Create_InvalidRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.Create(ctx, models.User{Name: "X", Email: "x@example.com", Role: "superadmin"})
	if err == nil {
		t.Fatal("expected error for invalid role")
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{Name: "A", Email: "dup@example.com", Role: models.RoleStudent}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.User{Name: "B", Email: "DUP@example.com", Role: models.RoleStudent})
	if !errors.Is(err, userstore.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestStore_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Fines(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateStudent(ctx, "fines@example.com")

	if err := store.AddFine(ctx, u.ID, 30); err != nil {
		t.Fatalf("AddFine failed: %v", err)
	}
	reduced, err := store.ReduceFines(ctx, u.ID, 10)
	if err != nil {
		t.Fatalf("ReduceFines failed: %v", err)
	}
	if reduced != 10 {
		t.Errorf("reduced = %d, want 10", reduced)
	}
	got, _ := store.GetByID(ctx, u.ID)
	if got.TotalFines != 20 {
		t.Errorf("TotalFines = %d, want 20", got.TotalFines)
	}

	// Overpayment floors at zero.
	reduced, err = store.ReduceFines(ctx, u.ID, 500)
	if err != nil {
		t.Fatalf("ReduceFines failed: %v", err)
	}
	if reduced != 20 {
		t.Errorf("reduced = %d, want 20 (only what was owed)", reduced)
	}
	got, _ = store.GetByID(ctx, u.ID)
	if got.TotalFines != 0 {
		t.Errorf("TotalFines = %d, want 0", got.TotalFines)
	}

	// Adding back the reported reduction restores the balance exactly.
	if err := store.AddFine(ctx, u.ID, reduced); err != nil {
		t.Fatalf("AddFine failed: %v", err)
	}
	got, _ = store.GetByID(ctx, u.ID)
	if got.TotalFines != 20 {
		t.Errorf("TotalFines after restore = %d, want 20", got.TotalFines)
	}

	if _, err := store.ReduceFines(ctx, primitive.NewObjectID(), 5); err != userstore.ErrNotFound {
		t.Errorf("ReduceFines on missing user = %v, want ErrNotFound", err)
	}
}

func TestStore_HeldBooks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateStudent(ctx, "held@example.com")
	book := primitive.NewObjectID()

	for i := 0; i < 2; i++ {
		if err := store.AddHeldBook(ctx, u.ID, book); err != nil {
			t.Fatalf("AddHeldBook failed: %v", err)
		}
	}
	got, _ := store.GetByID(ctx, u.ID)
	if len(got.HeldBooks) != 1 {
		t.Fatalf("HeldBooks = %v, want exactly one entry", got.HeldBooks)
	}

	if err := store.RemoveHeldBook(ctx, u.ID, book); err != nil {
		t.Fatalf("RemoveHeldBook failed: %v", err)
	}
	got, _ = store.GetByID(ctx, u.ID)
	if len(got.HeldBooks) != 0 {
		t.Errorf("HeldBooks = %v, want empty", got.HeldBooks)
	}
}

func TestStore_ActivateMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateStudent(ctx, "member@example.com")
	expiry := time.Now().UTC().AddDate(1, 0, 0).Truncate(time.Millisecond)

	if err := store.ActivateMembership(ctx, u.ID, expiry); err != nil {
		t.Fatalf("ActivateMembership failed: %v", err)
	}
	got, _ := store.GetByID(ctx, u.ID)
	if got.MembershipStatus != models.MembershipActive {
		t.Errorf("status = %q, want active", got.MembershipStatus)
	}
	if got.MembershipExpiry == nil || !got.MembershipExpiry.Equal(expiry) {
		t.Errorf("expiry = %v, want %v", got.MembershipExpiry, expiry)
	}
}

func TestFetcher_FetchUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "lib@example.com", models.RoleLibrarian)
	f := userstore.NewFetcher(db)

	su := f.FetchUser(context.Background(), u.ID.Hex())
	if su == nil {
		t.Fatal("expected user")
	}
	if su.Role != models.RoleLibrarian || su.Email != "lib@example.com" {
		t.Errorf("unexpected session user %+v", su)
	}

	if f.FetchUser(ctx, "not-an-id") != nil {
		t.Error("expected nil for malformed id")
	}
	if f.FetchUser(ctx, primitive.NewObjectID().Hex()) != nil {
		t.Error("expected nil for unknown id")
	}
}

func TestStore_GetByEmailAndSetRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{Name: "Ravi", Email: "ravi@example.com", Role: models.RoleStudent})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.GetByEmail(ctx, "  RAVI@example.com ")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("GetByEmail returned %v, want %v", got.ID, created.ID)
	}
	if _, err := store.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("missing email: err = %v", err)
	}

	if err := store.SetRole(ctx, created.ID, models.RoleLibrarian); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	got, _ = store.GetByID(ctx, created.ID)
	if got.Role != models.RoleLibrarian {
		t.Errorf("role = %q", got.Role)
	}
	if err := store.SetRole(ctx, created.ID, "superadmin"); err == nil {
		t.Error("expected error for invalid role")
	}
	if err := store.SetRole(ctx, primitive.NewObjectID(), models.RoleAdmin); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("missing user: err = %v", err)
	}
}
