package bookstore_test

import (
	"errors"
	"sync"
	"testing"

	bookstore "github.com/dalemusser/libraryhub/internal/app/store/books"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"github.com/dalemusser/libraryhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := bookstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	b, err := store.Create(ctx, models.Book{ISBN: "978-0", Title: "Go", Author: "A", TotalCopies: 3})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if b.AvailableCopies != 3 {
		t.Errorf("AvailableCopies = %d, want 3", b.AvailableCopies)
	}

	_, err = store.Create(ctx, models.Book{ISBN: "978-0", Title: "Go 2", TotalCopies: 1})
	if !errors.Is(err, bookstore.ErrDuplicateISBN) {
		t.Errorf("expected ErrDuplicateISBN, got %v", err)
	}

	if _, err := store.Create(ctx, models.Book{ISBN: "978-1", TotalCopies: 0}); err == nil {
		t.Error("expected error for zero copies")
	}
}

func TestStore_TakeAndReturnCopy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := bookstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	book := fx.CreateBook(ctx, "isbn-1", 1)

	b, err := store.TakeCopy(ctx, book.ID)
	if err != nil {
		t.Fatalf("TakeCopy failed: %v", err)
	}
	if b.AvailableCopies != 0 {
		t.Errorf("AvailableCopies = %d, want 0", b.AvailableCopies)
	}

	if _, err := store.TakeCopy(ctx, book.ID); !errors.Is(err, bookstore.ErrNoCopies) {
		t.Errorf("expected ErrNoCopies, got %v", err)
	}

	b, err = store.ReturnCopy(ctx, book.ID)
	if err != nil {
		t.Fatalf("ReturnCopy failed: %v", err)
	}
	if b.AvailableCopies != 1 {
		t.Errorf("AvailableCopies = %d, want 1", b.AvailableCopies)
	}

	if _, err := store.ReturnCopy(ctx, book.ID); !errors.Is(err, bookstore.ErrAllCopiesIn) {
		t.Errorf("expected ErrAllCopiesIn, got %v", err)
	}
}

func TestStore_TakeCopy_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := bookstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.TakeCopy(ctx, primitive.NewObjectID()); !errors.Is(err, bookstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_TakeCopy_ConcurrentNeverNegative(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := bookstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	book := fx.CreateBook(ctx, "isbn-race", 3)

	var wg sync.WaitGroup
	var mu sync.Mutex
	taken := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.TakeCopy(ctx, book.ID); err == nil {
				mu.Lock()
				taken++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if taken != 3 {
		t.Errorf("taken = %d, want 3", taken)
	}
	got, _ := store.GetByID(ctx, book.ID)
	if got.AvailableCopies != 0 {
		t.Errorf("AvailableCopies = %d, want 0", got.AvailableCopies)
	}
}
