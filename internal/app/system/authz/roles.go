// internal/app/system/authz/roles.go
package authz

import "github.com/dalemusser/libraryhub/internal/domain/models"

// Operation names a gated action.
type Operation string

const (
	RequestBorrow     Operation = "borrow.request"
	ApproveBorrow     Operation = "borrow.approve"
	RejectBorrow      Operation = "borrow.reject"
	InitiateReturn    Operation = "borrow.return"
	VerifyReturn      Operation = "borrow.verify_return"
	OverdueSweep      Operation = "borrow.overdue_sweep"
	ListMyBorrows     Operation = "borrow.list_mine"
	BorrowHistory     Operation = "borrow.history"
	ListActiveBorrows Operation = "borrow.list_active"
	ListOverdue       Operation = "borrow.list_overdue"

	CreateOnlineOrder    Operation = "payment.create_order"
	ConfirmOnlinePayment Operation = "payment.confirm"
	SubmitManualPayment  Operation = "payment.submit_manual"
	VerifyManualPayment  Operation = "payment.verify_manual"
	PaymentHistory       Operation = "payment.history"
	GetPayment           Operation = "payment.get"
	DownloadReceipt      Operation = "payment.receipt"
	SendReceiptEmail     Operation = "payment.send_receipt"
	PaymentStats         Operation = "payment.stats"
	TransferDetails      Operation = "payment.transfer_details"

	ViewAuditTrail Operation = "audit.view"
)

var (
	everyone  = roles(models.RoleStudent, models.RoleLibrarian, models.RoleAdmin)
	staff     = roles(models.RoleLibrarian, models.RoleAdmin)
	students  = roles(models.RoleStudent)
	adminOnly = roles(models.RoleAdmin)
)

// capabilities is the (operation, role) -> allowed table. Ownership checks
// (a student touching only their own record) happen in the engines.
var capabilities = map[Operation]map[string]bool{
	RequestBorrow:     students,
	ApproveBorrow:     staff,
	RejectBorrow:      staff,
	InitiateReturn:    everyone,
	VerifyReturn:      staff,
	OverdueSweep:      adminOnly,
	ListMyBorrows:     everyone,
	BorrowHistory:     everyone,
	ListActiveBorrows: staff,
	ListOverdue:       staff,

	CreateOnlineOrder:    everyone,
	ConfirmOnlinePayment: everyone,
	SubmitManualPayment:  everyone,
	VerifyManualPayment:  staff,
	PaymentHistory:       everyone,
	GetPayment:           everyone,
	DownloadReceipt:      everyone,
	SendReceiptEmail:     staff,
	PaymentStats:         adminOnly,
	TransferDetails:      everyone,

	ViewAuditTrail: staff,
}

func roles(rs ...string) map[string]bool {
	m := make(map[string]bool, len(rs))
	for _, r := range rs {
		m[r] = true
	}
	return m
}

// Allowed reports whether role may invoke op. Unknown operations and roles are denied.
func Allowed(op Operation, role string) bool {
	return capabilities[op][role]
}

// Operations lists every gated operation.
func Operations() []Operation {
	ops := make([]Operation, 0, len(capabilities))
	for op := range capabilities {
		ops = append(ops, op)
	}
	return ops
}
