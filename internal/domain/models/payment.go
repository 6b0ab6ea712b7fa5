// internal/domain/models/payment.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment states.
const (
	PaymentPending   = "pending"
	PaymentVerifying = "verifying"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Payment types.
const (
	PaymentTypeFine       = "fine"
	PaymentTypeMembership = "membership"
	PaymentTypeDeposit    = "deposit"
)

// Payment methods. Razorpay and Stripe are the two online gateway families;
// the rest are manual transfers verified by staff.
const (
	MethodRazorpay     = "razorpay"
	MethodStripe       = "stripe"
	MethodCash         = "cash"
	MethodUPI          = "upi"
	MethodBankTransfer = "bank_transfer"
)

// Payment is a single monetary transaction. Payments are never deleted.
// Side effects apply exactly once, on the transition into completed.
type Payment struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID  `bson:"user_id" json:"user_id"`
	BorrowID      *primitive.ObjectID `bson:"borrow_id,omitempty" json:"borrow_id,omitempty"`
	Amount        int64               `bson:"amount" json:"amount"`
	Currency      string              `bson:"currency" json:"currency"`
	PaymentType   string              `bson:"payment_type" json:"payment_type"`
	PaymentMethod string              `bson:"payment_method" json:"payment_method"`
	Status        string              `bson:"status" json:"status"`

	// TransactionID is unique across payments when present.
	TransactionID string `bson:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	OrderID       string `bson:"order_id,omitempty" json:"order_id,omitempty"`

	ReceiptURL      string              `bson:"receipt_url,omitempty" json:"receipt_url,omitempty"`
	PaidAt          *time.Time          `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	VerifiedBy      *primitive.ObjectID `bson:"verified_by,omitempty" json:"verified_by,omitempty"`
	AdminNotes      string              `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`
	Description     string              `bson:"description,omitempty" json:"description,omitempty"`
	GatewayResponse map[string]string   `bson:"gateway_response,omitempty" json:"gateway_response,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsOnlineMethod reports whether the method settles through a gateway.
func IsOnlineMethod(method string) bool {
	return method == MethodRazorpay || method == MethodStripe
}

// IsManualMethod reports whether the method is verified by staff.
func IsManualMethod(method string) bool {
	return method == MethodCash || method == MethodUPI || method == MethodBankTransfer
}

// IsPaymentType reports whether t is a known payment type.
func IsPaymentType(t string) bool {
	return t == PaymentTypeFine || t == PaymentTypeMembership || t == PaymentTypeDeposit
}
