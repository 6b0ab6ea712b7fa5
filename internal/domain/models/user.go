// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles.
const (
	RoleStudent   = "student"
	RoleLibrarian = "librarian"
	RoleAdmin     = "admin"
)

// Membership states.
const (
	MembershipActive    = "active"
	MembershipInactive  = "inactive"
	MembershipSuspended = "suspended"
)

// User is a library patron or staff member.
//
// NOTE:
//   - HeldBooks is a cache of the books with a borrow record in borrowed or
//     overdue state. borrow_records is the source of truth.
//   - TotalFines never goes below zero.
type User struct {
	ID               primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name             string               `bson:"name" json:"name"`
	Email            string               `bson:"email" json:"email"`
	Phone            string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Role             string               `bson:"role" json:"role"` // student | librarian | admin
	MembershipStatus string               `bson:"membership_status" json:"membership_status"`
	MembershipExpiry *time.Time           `bson:"membership_expiry,omitempty" json:"membership_expiry,omitempty"`
	TotalFines       int64                `bson:"total_fines" json:"total_fines"`
	HeldBooks        []primitive.ObjectID `bson:"held_books" json:"held_books"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsStaff reports whether the role can approve and verify.
func IsStaff(role string) bool {
	return role == RoleAdmin || role == RoleLibrarian
}
