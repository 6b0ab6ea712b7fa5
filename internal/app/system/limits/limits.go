// internal/app/system/limits/limits.go
package limits

// Request body size limits for the JSON API.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxJSONBody is the maximum size of a borrow or payment request body.
	MaxJSONBody = 64 << 10 // 64 KB

	// MaxTransactionIDLength caps the payer-supplied UPI/bank reference, in bytes.
	MaxTransactionIDLength = 128

	// MaxPaymentAmount caps a single payment, in whole currency units.
	// Gateways convert to minor units, so this keeps amount*100 within int64.
	MaxPaymentAmount = 10_000_000
)
