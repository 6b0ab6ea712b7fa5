package borrowstore_test

import (
	"errors"
	"testing"
	"time"

	borrowstore "github.com/dalemusser/libraryhub/internal/app/store/borrows"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"github.com/dalemusser/libraryhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_SignApproval(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := borrowstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := fx.CreatePendingBorrow(ctx, primitive.NewObjectID(), primitive.NewObjectID())
	admin := primitive.NewObjectID()
	librarian := primitive.NewObjectID()

	got, signed, err := store.SignApproval(ctx, rec.ID, models.RoleAdmin, admin)
	if err != nil || !signed {
		t.Fatalf("admin sign: signed=%v err=%v", signed, err)
	}
	if got.ApprovedByAdmin == nil || *got.ApprovedByAdmin != admin {
		t.Errorf("ApprovedByAdmin = %v, want %v", got.ApprovedByAdmin, admin)
	}

	// Re-signing the same slot is a no-op.
	_, signed, err = store.SignApproval(ctx, rec.ID, models.RoleAdmin, primitive.NewObjectID())
	if err != nil || signed {
		t.Errorf("second admin sign: signed=%v err=%v, want no-op", signed, err)
	}

	got, signed, err = store.SignApproval(ctx, rec.ID, models.RoleLibrarian, librarian)
	if err != nil || !signed {
		t.Fatalf("librarian sign: signed=%v err=%v", signed, err)
	}
	if !got.FullyApproved() {
		t.Error("expected record to be fully approved")
	}
	if *got.ApprovedByAdmin != admin {
		t.Error("librarian signature overwrote admin slot")
	}
}

func TestStore_SignApproval_SameIdentityBothSlots(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := borrowstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := fx.CreatePendingBorrow(ctx, primitive.NewObjectID(), primitive.NewObjectID())
	staff := primitive.NewObjectID()

	if _, _, err := store.SignApproval(ctx, rec.ID, models.RoleAdmin, staff); err != nil {
		t.Fatalf("admin sign: %v", err)
	}
	_, signed, err := store.SignApproval(ctx, rec.ID, models.RoleLibrarian, staff)
	if !errors.Is(err, borrowstore.ErrSameApprover) || signed {
		t.Errorf("expected ErrSameApprover, got signed=%v err=%v", signed, err)
	}
}

func TestStore_Activate_SingleWinner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := borrowstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := fx.CreatePendingBorrow(ctx, primitive.NewObjectID(), primitive.NewObjectID())

	// Not approved yet.
	if _, err := store.Activate(ctx, rec.ID, primitive.NewObjectID(), time.Now()); !errors.Is(err, borrowstore.ErrWrongState) {
		t.Fatalf("expected ErrWrongState before approvals, got %v", err)
	}

	store.SignApproval(ctx, rec.ID, models.RoleAdmin, primitive.NewObjectID())
	store.SignApproval(ctx, rec.ID, models.RoleLibrarian, primitive.NewObjectID())

	got, err := store.Activate(ctx, rec.ID, primitive.NewObjectID(), time.Now())
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if got.Status != models.BorrowBorrowed || got.IssuedBy == nil {
		t.Errorf("unexpected record after Activate: %+v", got)
	}
	if _, err := store.Activate(ctx, rec.ID, primitive.NewObjectID(), time.Now()); !errors.Is(err, borrowstore.ErrWrongState) {
		t.Errorf("second Activate: expected ErrWrongState, got %v", err)
	}

	if err := store.RevertActivation(ctx, rec.ID); err != nil {
		t.Fatalf("RevertActivation failed: %v", err)
	}
	back, _ := store.GetByID(ctx, rec.ID)
	if back.Status != models.BorrowPending || back.IssuedBy != nil {
		t.Errorf("expected pending with no issuer, got %+v", back)
	}
}

func TestStore_ReturnFlow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := borrowstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	due := time.Now().Add(-48 * time.Hour)
	rec := fx.CreateActiveBorrow(ctx, primitive.NewObjectID(), primitive.NewObjectID(), due)

	if _, err := store.CompleteReturn(ctx, rec.ID, primitive.NewObjectID(), 0); !errors.Is(err, borrowstore.ErrWrongState) {
		t.Fatalf("CompleteReturn from borrowed: expected ErrWrongState, got %v", err)
	}

	got, err := store.MarkReturnPending(ctx, rec.ID, time.Now())
	if err != nil {
		t.Fatalf("MarkReturnPending failed: %v", err)
	}
	if got.Status != models.BorrowReturnPending || got.ReturnDate == nil {
		t.Errorf("unexpected record: %+v", got)
	}

	if _, err := store.MarkReturnPending(ctx, rec.ID, time.Now()); !errors.Is(err, borrowstore.ErrWrongState) {
		t.Errorf("second MarkReturnPending: expected ErrWrongState, got %v", err)
	}

	staff := primitive.NewObjectID()
	got, err = store.CompleteReturn(ctx, rec.ID, staff, 20)
	if err != nil {
		t.Fatalf("CompleteReturn failed: %v", err)
	}
	if got.Status != models.BorrowReturned || got.Fine != 20 || *got.ReturnedTo != staff {
		t.Errorf("unexpected record: %+v", got)
	}

	// Reopening is limited to the verifying staff member and puts the
	// record back in return_pending with its return date intact.
	if err := store.ReopenReturn(ctx, rec.ID, primitive.NewObjectID()); !errors.Is(err, borrowstore.ErrWrongState) {
		t.Errorf("ReopenReturn by other staff: expected ErrWrongState, got %v", err)
	}
	if err := store.ReopenReturn(ctx, rec.ID, staff); err != nil {
		t.Fatalf("ReopenReturn failed: %v", err)
	}
	got, err = store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.BorrowReturnPending || got.Fine != 0 || got.ReturnedTo != nil || got.ReturnDate == nil {
		t.Errorf("reopened record: %+v", got)
	}
	if _, err := store.CompleteReturn(ctx, rec.ID, staff, 20); err != nil {
		t.Errorf("CompleteReturn after reopen failed: %v", err)
	}
}

func TestStore_Transition_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := borrowstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.MarkReturnPending(ctx, primitive.NewObjectID(), time.Now()); !errors.Is(err, borrowstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_MarkOverdue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := borrowstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	late := fx.CreateActiveBorrow(ctx, user, primitive.NewObjectID(), time.Now().Add(-time.Hour))
	onTime := fx.CreateActiveBorrow(ctx, user, primitive.NewObjectID(), time.Now().Add(time.Hour))

	n, err := store.MarkOverdue(ctx, time.Now())
	if err != nil {
		t.Fatalf("MarkOverdue failed: %v", err)
	}
	if n != 1 {
		t.Errorf("modified = %d, want 1", n)
	}

	got, _ := store.GetByID(ctx, late.ID)
	if got.Status != models.BorrowOverdue {
		t.Errorf("late status = %q, want overdue", got.Status)
	}
	got, _ = store.GetByID(ctx, onTime.ID)
	if got.Status != models.BorrowBorrowed {
		t.Errorf("on-time status = %q, want borrowed", got.Status)
	}

	// Idempotent.
	n, _ = store.MarkOverdue(ctx, time.Now())
	if n != 0 {
		t.Errorf("second sweep modified %d, want 0", n)
	}

	count, _ := store.CountActiveByUser(ctx, user)
	if count != 2 {
		t.Errorf("active count = %d, want 2 (overdue still counts)", count)
	}
}

func TestStore_History(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := borrowstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	for i := 0; i < 5; i++ {
		fx.CreatePendingBorrow(ctx, user, primitive.NewObjectID())
	}
	fx.CreatePendingBorrow(ctx, primitive.NewObjectID(), primitive.NewObjectID())

	rows, total, err := store.History(ctx, borrowstore.HistoryFilter{UserID: &user}, 0, 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(rows) != 2 {
		t.Errorf("rows = %d, want 2", len(rows))
	}

	_, total, _ = store.History(ctx, borrowstore.HistoryFilter{Status: models.BorrowPending}, 0, 10)
	if total != 6 {
		t.Errorf("total pending = %d, want 6", total)
	}
}
