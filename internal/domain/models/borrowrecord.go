// internal/domain/models/borrowrecord.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Borrow record states.
const (
	BorrowPending       = "pending"
	BorrowBorrowed      = "borrowed"
	BorrowReturnPending = "return_pending"
	BorrowReturned      = "returned"
	BorrowOverdue       = "overdue"
	BorrowRejected      = "rejected"
)

// ActiveBorrowStates are the states in which a user holds the physical copy.
var ActiveBorrowStates = []string{BorrowBorrowed, BorrowOverdue}

// BorrowRecord is one lending of one book to one user. Records are never deleted.
//
// A record in borrowed, overdue, return_pending or returned state carries both
// approval signatures.
type BorrowRecord struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	BookID primitive.ObjectID `bson:"book_id" json:"book_id"`

	BorrowDate time.Time  `bson:"borrow_date" json:"borrow_date"`
	DueDate    time.Time  `bson:"due_date" json:"due_date"`
	ReturnDate *time.Time `bson:"return_date,omitempty" json:"return_date,omitempty"`
	Status     string     `bson:"status" json:"status"`

	ApprovedByAdmin     *primitive.ObjectID `bson:"approved_by_admin,omitempty" json:"approved_by_admin,omitempty"`
	ApprovedByLibrarian *primitive.ObjectID `bson:"approved_by_librarian,omitempty" json:"approved_by_librarian,omitempty"`
	IssuedBy            *primitive.ObjectID `bson:"issued_by,omitempty" json:"issued_by,omitempty"`
	ReturnedTo          *primitive.ObjectID `bson:"returned_to,omitempty" json:"returned_to,omitempty"`
	RejectedBy          *primitive.ObjectID `bson:"rejected_by,omitempty" json:"rejected_by,omitempty"`

	Fine     int64  `bson:"fine" json:"fine"`
	FinePaid bool   `bson:"fine_paid" json:"fine_paid"`
	Notes    string `bson:"notes,omitempty" json:"notes,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// FullyApproved reports whether both staff signatures are present.
func (r BorrowRecord) FullyApproved() bool {
	return r.ApprovedByAdmin != nil && r.ApprovedByLibrarian != nil
}
