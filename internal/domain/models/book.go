// internal/domain/models/book.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Book is a catalog title with a fixed number of physical copies.
// 0 <= AvailableCopies <= TotalCopies at all times.
type Book struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ISBN            string             `bson:"isbn" json:"isbn"`
	Title           string             `bson:"title" json:"title"`
	Author          string             `bson:"author" json:"author"`
	TotalCopies     int                `bson:"total_copies" json:"total_copies"`
	AvailableCopies int                `bson:"available_copies" json:"available_copies"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Available reports whether at least one copy can be lent.
func (b Book) Available() bool {
	return b.AvailableCopies > 0
}
