package circulation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/mailer"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"github.com/dalemusser/libraryhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []mailer.Email
}

func (n *recordingNotifier) Notify(msg mailer.Email) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return true
}

func (n *recordingNotifier) subjects() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.sent))
	for i, m := range n.sent {
		out[i] = m.Subject
	}
	return out
}

func newTestEngine(t *testing.T, db *mongo.Database) (*Engine, *recordingNotifier) {
	t.Helper()
	n := &recordingNotifier{}
	e := New(Deps{DB: db, Notifier: n, Log: zap.NewNop()}, Config{})
	return e, n
}

func mustKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperr.KindOf(err); got != want {
		t.Fatalf("error kind = %s, want %s (err: %v)", got, want, err)
	}
}

func loadBook(t *testing.T, ctx context.Context, db *mongo.Database, id primitive.ObjectID) models.Book {
	t.Helper()
	var b models.Book
	if err := db.Collection("books").FindOne(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
		t.Fatalf("load book: %v", err)
	}
	return b
}

func loadUser(t *testing.T, ctx context.Context, db *mongo.Database, id primitive.ObjectID) models.User {
	t.Helper()
	var u models.User
	if err := db.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		t.Fatalf("load user: %v", err)
	}
	return u
}

// issueBook runs a request through both approvals.
func issueBook(t *testing.T, ctx context.Context, e *Engine, userID, bookID primitive.ObjectID) *models.BorrowRecord {
	t.Helper()
	rec, err := e.RequestBorrow(ctx, userID, bookID, nil)
	if err != nil {
		t.Fatalf("RequestBorrow: %v", err)
	}
	if _, err := e.ApproveBorrow(ctx, rec.ID, models.RoleAdmin, primitive.NewObjectID()); err != nil {
		t.Fatalf("admin approve: %v", err)
	}
	issued, err := e.ApproveBorrow(ctx, rec.ID, models.RoleLibrarian, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("librarian approve: %v", err)
	}
	if issued.Status != models.BorrowBorrowed {
		t.Fatalf("status after both approvals = %s", issued.Status)
	}
	return issued
}

func TestRequestBorrow_CreatesPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	student := fx.CreateStudent(ctx, "s@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 2)

	rec, err := e.RequestBorrow(ctx, student.ID, book.ID, nil)
	if err != nil {
		t.Fatalf("RequestBorrow failed: %v", err)
	}
	if rec.Status != models.BorrowPending {
		t.Errorf("status = %s, want pending", rec.Status)
	}
	wantDue := rec.BorrowDate.AddDate(0, 0, 14)
	if !rec.DueDate.Equal(wantDue) {
		t.Errorf("due = %v, want %v", rec.DueDate, wantDue)
	}
	if got := loadBook(t, ctx, db, book.ID).AvailableCopies; got != 2 {
		t.Errorf("available copies = %d, request must not take a copy", got)
	}
}

func TestRequestBorrow_Rejections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	student := fx.CreateStudent(ctx, "s@test.com")
	empty := fx.CreateBook(ctx, "isbn-empty", 1)
	if _, err := db.Collection("books").UpdateByID(ctx, empty.ID, bson.M{"$set": bson.M{"available_copies": 0}}); err != nil {
		t.Fatalf("drain book: %v", err)
	}

	held := fx.CreateBook(ctx, "isbn-held", 3)
	fx.CreateActiveBorrow(ctx, student.ID, held.ID, time.Now().AddDate(0, 0, 7))

	busy := fx.CreateStudent(ctx, "busy@test.com")
	for i, isbn := range []string{"b1", "b2", "b3"} {
		b := fx.CreateBook(ctx, isbn, 1)
		fx.CreateActiveBorrow(ctx, busy.ID, b.ID, time.Now().AddDate(0, 0, i+1))
	}
	free := fx.CreateBook(ctx, "isbn-free", 5)

	debtor := fx.CreateStudentWithFines(ctx, "debtor@test.com", 30)
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name   string
		userID primitive.ObjectID
		bookID primitive.ObjectID
		due    *time.Time
		want   apperr.Kind
	}{
		{"unknown book", student.ID, primitive.NewObjectID(), nil, apperr.NotFound},
		{"no copies", student.ID, empty.ID, nil, apperr.Unavailable},
		{"limit reached", busy.ID, free.ID, nil, apperr.BorrowLimitExceeded},
		{"already holds book", student.ID, held.ID, nil, apperr.DuplicateBorrow},
		{"outstanding fines", debtor.ID, free.ID, nil, apperr.OutstandingFines},
		{"due date in past", student.ID, free.ID, &past, apperr.BadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RequestBorrow(ctx, tt.userID, tt.bookID, tt.due)
			mustKind(t, err, tt.want)
		})
	}
}

func TestApproveBorrow_DualSignature(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, notes := newTestEngine(t, db)

	student := fx.CreateStudent(ctx, "s@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 2)
	rec, err := e.RequestBorrow(ctx, student.ID, book.ID, nil)
	if err != nil {
		t.Fatalf("RequestBorrow: %v", err)
	}

	admin, librarian := primitive.NewObjectID(), primitive.NewObjectID()
	after, err := e.ApproveBorrow(ctx, rec.ID, models.RoleAdmin, admin)
	if err != nil {
		t.Fatalf("admin approve: %v", err)
	}
	if after.Status != models.BorrowPending || after.ApprovedByAdmin == nil || after.ApprovedByLibrarian != nil {
		t.Fatalf("after admin: %+v", after)
	}

	// A second admin signs the admin slot again, which changes nothing.
	// Admins never fill the librarian slot.
	again, err := e.ApproveBorrow(ctx, rec.ID, models.RoleAdmin, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("repeat admin approve: %v", err)
	}
	if *again.ApprovedByAdmin != admin {
		t.Error("repeat approval overwrote the first signature")
	}
	if again.ApprovedByLibrarian != nil || again.Status != models.BorrowPending {
		t.Errorf("second admin filled the librarian slot: %+v", again)
	}

	issued, err := e.ApproveBorrow(ctx, rec.ID, models.RoleLibrarian, librarian)
	if err != nil {
		t.Fatalf("librarian approve: %v", err)
	}
	if issued.Status != models.BorrowBorrowed || !issued.FullyApproved() {
		t.Fatalf("after both: %+v", issued)
	}
	if issued.IssuedBy == nil || *issued.IssuedBy != librarian {
		t.Error("issued_by should be the finishing approver")
	}
	if got := loadBook(t, ctx, db, book.ID).AvailableCopies; got != 1 {
		t.Errorf("available copies = %d, want 1", got)
	}
	u := loadUser(t, ctx, db, student.ID)
	if len(u.HeldBooks) != 1 || u.HeldBooks[0] != book.ID {
		t.Errorf("held books = %v", u.HeldBooks)
	}
	if subj := notes.subjects(); len(subj) != 1 {
		t.Errorf("notifications = %v, want one issue notice", subj)
	}

	_, err = e.ApproveBorrow(ctx, rec.ID, models.RoleLibrarian, librarian)
	mustKind(t, err, apperr.InvalidState)
	if got := loadBook(t, ctx, db, book.ID).AvailableCopies; got != 1 {
		t.Errorf("copies moved again: %d", got)
	}
}

func TestApproveBorrow_Guards(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	student := fx.CreateStudent(ctx, "s@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 1)
	rec := fx.CreatePendingBorrow(ctx, student.ID, book.ID)

	_, err := e.ApproveBorrow(ctx, rec.ID, models.RoleStudent, student.ID)
	mustKind(t, err, apperr.Forbidden)

	_, err = e.ApproveBorrow(ctx, primitive.NewObjectID(), models.RoleAdmin, primitive.NewObjectID())
	mustKind(t, err, apperr.NotFound)

	staff := primitive.NewObjectID()
	if _, err := e.ApproveBorrow(ctx, rec.ID, models.RoleAdmin, staff); err != nil {
		t.Fatalf("admin approve: %v", err)
	}
	_, err = e.ApproveBorrow(ctx, rec.ID, models.RoleLibrarian, staff)
	mustKind(t, err, apperr.Forbidden)
}

func TestApproveBorrow_ConcurrentApprovalsNeverOverdraw(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	book := fx.CreateBook(ctx, "isbn-1", 1)
	const n = 6
	recs := make([]models.BorrowRecord, n)
	for i := range recs {
		s := fx.CreateStudent(ctx, primitive.NewObjectID().Hex()+"@test.com")
		recs[i] = fx.CreatePendingBorrow(ctx, s.ID, book.ID)
		if _, err := e.ApproveBorrow(ctx, recs[i].ID, models.RoleAdmin, primitive.NewObjectID()); err != nil {
			t.Fatalf("admin approve: %v", err)
		}
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range recs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.ApproveBorrow(ctx, recs[i].ID, models.RoleLibrarian, primitive.NewObjectID())
		}(i)
	}
	wg.Wait()

	issued := 0
	for _, err := range errs {
		switch {
		case err == nil:
			issued++
		case apperr.KindOf(err) == apperr.Conflict:
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if issued != 1 {
		t.Errorf("issued = %d, want exactly 1", issued)
	}
	if got := loadBook(t, ctx, db, book.ID).AvailableCopies; got != 0 {
		t.Errorf("available copies = %d, want 0", got)
	}
	borrowed, err := db.Collection("borrow_records").CountDocuments(ctx, bson.M{"status": models.BorrowBorrowed})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if borrowed != 1 {
		t.Errorf("borrowed records = %d, want 1", borrowed)
	}
}

func TestApproveBorrow_ConcurrentSignaturesIssueOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	student := fx.CreateStudent(ctx, "s@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 3)
	rec := fx.CreatePendingBorrow(ctx, student.ID, book.ID)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		for _, role := range []string{models.RoleAdmin, models.RoleLibrarian} {
			wg.Add(1)
			go func(role string) {
				defer wg.Done()
				_, _ = e.ApproveBorrow(ctx, rec.ID, role, primitive.NewObjectID())
			}(role)
		}
	}
	wg.Wait()

	// A straggler may have lost the race after the issue; finish it.
	_, _ = e.ApproveBorrow(ctx, rec.ID, models.RoleAdmin, primitive.NewObjectID())

	var got models.BorrowRecord
	if err := db.Collection("borrow_records").FindOne(ctx, bson.M{"_id": rec.ID}).Decode(&got); err != nil {
		t.Fatalf("load record: %v", err)
	}
	if got.Status != models.BorrowBorrowed || !got.FullyApproved() {
		t.Fatalf("record = %+v", got)
	}
	if c := loadBook(t, ctx, db, book.ID).AvailableCopies; c != 2 {
		t.Errorf("available copies = %d, want 2", c)
	}
}

func TestRejectBorrow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, notes := newTestEngine(t, db)

	student := fx.CreateStudent(ctx, "s@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 1)
	rec := fx.CreatePendingBorrow(ctx, student.ID, book.ID)

	staff := primitive.NewObjectID()
	got, err := e.RejectBorrow(ctx, rec.ID, staff, "<b>damaged</b> copy")
	if err != nil {
		t.Fatalf("RejectBorrow: %v", err)
	}
	if got.Status != models.BorrowRejected || got.RejectedBy == nil || *got.RejectedBy != staff {
		t.Errorf("record = %+v", got)
	}
	if got.Notes != "damaged copy" {
		t.Errorf("notes = %q, markup should be stripped", got.Notes)
	}
	if len(notes.subjects()) != 1 {
		t.Error("expected a rejection notice")
	}

	_, err = e.RejectBorrow(ctx, rec.ID, staff, "")
	mustKind(t, err, apperr.InvalidState)
}

func TestReturnRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	student := fx.CreateStudent(ctx, "s@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 2)
	issued := issueBook(t, ctx, e, student.ID, book.ID)

	pending, err := e.InitiateReturn(ctx, issued.ID, student.ID, models.RoleStudent)
	if err != nil {
		t.Fatalf("InitiateReturn: %v", err)
	}
	if pending.Status != models.BorrowReturnPending || pending.ReturnDate == nil {
		t.Fatalf("after initiate: %+v", pending)
	}

	staff := primitive.NewObjectID()
	done, err := e.VerifyReturn(ctx, issued.ID, staff)
	if err != nil {
		t.Fatalf("VerifyReturn: %v", err)
	}
	if done.Status != models.BorrowReturned || done.Fine != 0 {
		t.Errorf("after verify: status=%s fine=%d", done.Status, done.Fine)
	}
	if done.ReturnedTo == nil || *done.ReturnedTo != staff {
		t.Error("returned_to not recorded")
	}
	if got := loadBook(t, ctx, db, book.ID).AvailableCopies; got != 2 {
		t.Errorf("available copies = %d, want 2", got)
	}
	u := loadUser(t, ctx, db, student.ID)
	if len(u.HeldBooks) != 0 || u.TotalFines != 0 {
		t.Errorf("user after return: held=%v fines=%d", u.HeldBooks, u.TotalFines)
	}

	_, err = e.VerifyReturn(ctx, issued.ID, staff)
	mustKind(t, err, apperr.InvalidState)
	if got := loadBook(t, ctx, db, book.ID).AvailableCopies; got != 2 {
		t.Errorf("second verify moved copies: %d", got)
	}
}

func TestVerifyReturn_LateFineBlocksNextBorrow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	now := time.Now().UTC().Truncate(time.Millisecond)
	e.now = func() time.Time { return now }

	student := fx.CreateStudent(ctx, "s@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 1)
	rec := fx.CreateActiveBorrow(ctx, student.ID, book.ID, now.Add(-72*time.Hour))
	if _, err := db.Collection("books").UpdateByID(ctx, book.ID, bson.M{"$set": bson.M{"available_copies": 0}}); err != nil {
		t.Fatalf("take copy: %v", err)
	}

	if _, err := e.InitiateReturn(ctx, rec.ID, student.ID, models.RoleStudent); err != nil {
		t.Fatalf("InitiateReturn: %v", err)
	}
	done, err := e.VerifyReturn(ctx, rec.ID, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("VerifyReturn: %v", err)
	}
	if done.Fine != 30 {
		t.Errorf("fine = %d, want 30", done.Fine)
	}
	if got := loadUser(t, ctx, db, student.ID).TotalFines; got != 30 {
		t.Errorf("total fines = %d, want 30", got)
	}

	_, err = e.RequestBorrow(ctx, student.ID, book.ID, nil)
	mustKind(t, err, apperr.OutstandingFines)
}

func TestVerifyReturn_FailedStepReopensReturn(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	now := time.Now().UTC().Truncate(time.Millisecond)
	e.now = func() time.Time { return now }

	student := fx.CreateStudent(ctx, "s@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 2)
	rec := fx.CreateActiveBorrow(ctx, student.ID, book.ID, now.Add(-72*time.Hour))
	if _, err := db.Collection("books").UpdateByID(ctx, book.ID, bson.M{"$set": bson.M{"available_copies": 1}}); err != nil {
		t.Fatalf("take copy: %v", err)
	}
	if _, err := db.Collection("users").UpdateByID(ctx, student.ID, bson.M{"$set": bson.M{"held_books": bson.A{book.ID}}}); err != nil {
		t.Fatalf("hold book: %v", err)
	}
	if _, err := e.InitiateReturn(ctx, rec.ID, student.ID, models.RoleStudent); err != nil {
		t.Fatalf("InitiateReturn: %v", err)
	}

	// With the book gone the restock fails after the record was closed
	// and the held book released.
	var raw bson.M
	if err := db.Collection("books").FindOne(ctx, bson.M{"_id": book.ID}).Decode(&raw); err != nil {
		t.Fatalf("load book: %v", err)
	}
	if _, err := db.Collection("books").DeleteOne(ctx, bson.M{"_id": book.ID}); err != nil {
		t.Fatalf("delete book: %v", err)
	}

	staff := primitive.NewObjectID()
	_, err := e.VerifyReturn(ctx, rec.ID, staff)
	mustKind(t, err, apperr.NotFound)

	var br models.BorrowRecord
	if err := db.Collection("borrow_records").FindOne(ctx, bson.M{"_id": rec.ID}).Decode(&br); err != nil {
		t.Fatalf("load record: %v", err)
	}
	if br.Status != models.BorrowReturnPending || br.ReturnedTo != nil || br.Fine != 0 || br.ReturnDate == nil {
		t.Fatalf("record after failed verify: %+v", br)
	}
	u := loadUser(t, ctx, db, student.ID)
	if len(u.HeldBooks) != 1 || u.HeldBooks[0] != book.ID || u.TotalFines != 0 {
		t.Fatalf("user after failed verify: held=%v fines=%d", u.HeldBooks, u.TotalFines)
	}

	if _, err := db.Collection("books").InsertOne(ctx, raw); err != nil {
		t.Fatalf("restore book: %v", err)
	}
	done, err := e.VerifyReturn(ctx, rec.ID, staff)
	if err != nil {
		t.Fatalf("retry VerifyReturn: %v", err)
	}
	if done.Status != models.BorrowReturned || done.Fine != 30 {
		t.Errorf("after retry: status=%s fine=%d", done.Status, done.Fine)
	}
	if got := loadBook(t, ctx, db, book.ID).AvailableCopies; got != 2 {
		t.Errorf("available copies = %d, want 2", got)
	}
	u = loadUser(t, ctx, db, student.ID)
	if len(u.HeldBooks) != 0 || u.TotalFines != 30 {
		t.Errorf("user after retry: held=%v fines=%d", u.HeldBooks, u.TotalFines)
	}
}

func TestInitiateReturn_Guards(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	owner := fx.CreateStudent(ctx, "owner@test.com")
	other := fx.CreateStudent(ctx, "other@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 2)
	active := fx.CreateActiveBorrow(ctx, owner.ID, book.ID, time.Now().AddDate(0, 0, 3))
	pending := fx.CreatePendingBorrow(ctx, owner.ID, book.ID)

	_, err := e.InitiateReturn(ctx, active.ID, other.ID, models.RoleStudent)
	mustKind(t, err, apperr.Forbidden)

	_, err = e.InitiateReturn(ctx, pending.ID, owner.ID, models.RoleStudent)
	mustKind(t, err, apperr.InvalidState)

	_, err = e.InitiateReturn(ctx, primitive.NewObjectID(), owner.ID, models.RoleStudent)
	mustKind(t, err, apperr.NotFound)

	// Staff may hand a book in on the borrower's behalf.
	if _, err := e.InitiateReturn(ctx, active.ID, primitive.NewObjectID(), models.RoleLibrarian); err != nil {
		t.Fatalf("staff InitiateReturn: %v", err)
	}
	_, err = e.InitiateReturn(ctx, active.ID, owner.ID, models.RoleStudent)
	mustKind(t, err, apperr.InvalidState)

	_, err = e.VerifyReturn(ctx, pending.ID, primitive.NewObjectID())
	mustKind(t, err, apperr.InvalidState)
}

func TestSweepOverdue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	student := fx.CreateStudent(ctx, "s@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 3)
	late := fx.CreateActiveBorrow(ctx, student.ID, book.ID, time.Now().Add(-48*time.Hour))
	fx.CreateActiveBorrow(ctx, student.ID, book.ID, time.Now().Add(48*time.Hour))

	n, err := e.SweepOverdue(ctx)
	if err != nil {
		t.Fatalf("SweepOverdue: %v", err)
	}
	if n != 1 {
		t.Errorf("first sweep = %d, want 1", n)
	}
	n, err = e.SweepOverdue(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep = %d, want 0", n)
	}

	overdue, err := e.OverdueBorrows(ctx)
	if err != nil {
		t.Fatalf("OverdueBorrows: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != late.ID {
		t.Fatalf("overdue = %+v", overdue)
	}
	if overdue[0].BookTitle != book.Title {
		t.Errorf("book title = %q", overdue[0].BookTitle)
	}
	if got := loadUser(t, ctx, db, student.ID).TotalFines; got != 0 {
		t.Errorf("sweep charged fines: %d", got)
	}

	active, err := e.ActiveBorrows(ctx)
	if err != nil {
		t.Fatalf("ActiveBorrows: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("active = %d, want 2", len(active))
	}
}

func TestListings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	e, _ := newTestEngine(t, db)

	student := fx.CreateStudent(ctx, "s@test.com")
	other := fx.CreateStudent(ctx, "o@test.com")
	book := fx.CreateBook(ctx, "isbn-1", 5)
	fx.CreatePendingBorrow(ctx, student.ID, book.ID)
	fx.CreateActiveBorrow(ctx, student.ID, book.ID, time.Now().AddDate(0, 0, 3))
	fx.CreatePendingBorrow(ctx, other.ID, book.ID)
	rejected := fx.CreatePendingBorrow(ctx, student.ID, book.ID)
	if _, err := e.RejectBorrow(ctx, rejected.ID, primitive.NewObjectID(), ""); err != nil {
		t.Fatalf("RejectBorrow: %v", err)
	}

	mine, err := e.MyBorrows(ctx, student.ID)
	if err != nil {
		t.Fatalf("MyBorrows: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("my borrows = %d, want 2 (rejected excluded)", len(mine))
	}

	page, meta, err := e.History(ctx, HistoryQuery{UserID: &student.ID})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if meta.Total != 3 || len(page) != 3 || meta.TotalPages != 1 {
		t.Errorf("history: rows=%d meta=%+v", len(page), meta)
	}

	_, meta, err = e.History(ctx, HistoryQuery{Status: models.BorrowPending})
	if err != nil {
		t.Fatalf("History by status: %v", err)
	}
	if meta.Total != 2 {
		t.Errorf("pending across users = %d, want 2", meta.Total)
	}
}

func TestClassify(t *testing.T) {
	if classify(nil) != nil {
		t.Error("nil should stay nil")
	}
	plain := errors.New("socket closed")
	if apperr.KindOf(classify(plain)) != apperr.Internal {
		t.Error("unknown errors stay unclassified")
	}
	already := apperr.New(apperr.Conflict, "x")
	if classify(already) != already {
		t.Error("classified errors pass through")
	}
}
