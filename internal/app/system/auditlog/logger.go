// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"strconv"

	"github.com/dalemusser/libraryhub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Circulation controls borrow/return events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Circulation string
	// Payments controls order, confirmation and manual verification events.
	Payments string
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
// A nil *Logger is a valid no-op logger.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.RecordID != nil {
		fields = append(fields, zap.String("record_id", event.RecordID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryCirculation:
		setting = l.config.Circulation
	case audit.CategoryPayments:
		setting = l.config.Payments
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}
	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}
	if (setting == "all" || setting == "db") && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func ref(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// --- Circulation ---

// BorrowRequested logs a new pending request.
func (l *Logger) BorrowRequested(ctx context.Context, userID, recordID, bookID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryCirculation,
		EventType: audit.EventBorrowRequested,
		UserID:    ref(userID),
		RecordID:  ref(recordID),
		Success:   true,
		Details:   map[string]string{"book_id": bookID.Hex()},
	})
}

// BorrowSigned logs one approval signature.
func (l *Logger) BorrowSigned(ctx context.Context, actorID, recordID primitive.ObjectID, role string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryCirculation,
		EventType: audit.EventBorrowSigned,
		ActorID:   ref(actorID),
		RecordID:  ref(recordID),
		Success:   true,
		Details:   map[string]string{"role": role},
	})
}

// BorrowIssued logs the transition to borrowed.
func (l *Logger) BorrowIssued(ctx context.Context, actorID, userID, recordID, bookID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryCirculation,
		EventType: audit.EventBorrowIssued,
		ActorID:   ref(actorID),
		UserID:    ref(userID),
		RecordID:  ref(recordID),
		Success:   true,
		Details:   map[string]string{"book_id": bookID.Hex()},
	})
}

// BorrowRejected logs a staff rejection.
func (l *Logger) BorrowRejected(ctx context.Context, actorID, userID, recordID primitive.ObjectID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryCirculation,
		EventType:     audit.EventBorrowRejected,
		ActorID:       ref(actorID),
		UserID:        ref(userID),
		RecordID:      ref(recordID),
		Success:       true,
		FailureReason: reason,
	})
}

// ReturnInitiated logs a self-reported return.
func (l *Logger) ReturnInitiated(ctx context.Context, actorID, userID, recordID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryCirculation,
		EventType: audit.EventReturnInitiated,
		ActorID:   ref(actorID),
		UserID:    ref(userID),
		RecordID:  ref(recordID),
		Success:   true,
	})
}

// ReturnVerified logs a verified return and the fine it produced.
func (l *Logger) ReturnVerified(ctx context.Context, actorID, userID, recordID primitive.ObjectID, fine int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryCirculation,
		EventType: audit.EventReturnVerified,
		ActorID:   ref(actorID),
		UserID:    ref(userID),
		RecordID:  ref(recordID),
		Success:   true,
		Details:   map[string]string{"fine": strconv.FormatInt(fine, 10)},
	})
}

// OverdueSweep logs a sweep that flagged at least one record.
func (l *Logger) OverdueSweep(ctx context.Context, count int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryCirculation,
		EventType: audit.EventOverdueSweep,
		Success:   true,
		Details:   map[string]string{"count": strconv.FormatInt(count, 10)},
	})
}

// --- Payments ---

// OrderCreated logs a new gateway order.
func (l *Logger) OrderCreated(ctx context.Context, userID, paymentID primitive.ObjectID, orderID, method string, amount int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayments,
		EventType: audit.EventOrderCreated,
		UserID:    ref(userID),
		RecordID:  ref(paymentID),
		Success:   true,
		Details: map[string]string{
			"order_id": orderID,
			"method":   method,
			"amount":   strconv.FormatInt(amount, 10),
		},
	})
}

// OnlinePaymentCompleted logs a confirmed gateway payment.
func (l *Logger) OnlinePaymentCompleted(ctx context.Context, userID, paymentID primitive.ObjectID, transactionID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayments,
		EventType: audit.EventOnlinePaymentPaid,
		UserID:    ref(userID),
		RecordID:  ref(paymentID),
		Success:   true,
		Details:   map[string]string{"transaction_id": transactionID},
	})
}

// OnlinePaymentDenied logs a proof that failed verification.
func (l *Logger) OnlinePaymentDenied(ctx context.Context, orderID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryPayments,
		EventType:     audit.EventOnlinePaymentDenied,
		Success:       false,
		FailureReason: reason,
		Details:       map[string]string{"order_id": orderID},
	})
}

// ManualSubmitted logs a manual payment awaiting verification.
func (l *Logger) ManualSubmitted(ctx context.Context, userID, paymentID primitive.ObjectID, transactionID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayments,
		EventType: audit.EventManualSubmitted,
		UserID:    ref(userID),
		RecordID:  ref(paymentID),
		Success:   true,
		Details:   map[string]string{"transaction_id": transactionID},
	})
}

// ManualDecided logs staff verification of a manual payment.
func (l *Logger) ManualDecided(ctx context.Context, actorID, userID, paymentID primitive.ObjectID, completed bool) {
	ev := audit.EventManualFailed
	if completed {
		ev = audit.EventManualVerified
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayments,
		EventType: ev,
		ActorID:   ref(actorID),
		UserID:    ref(userID),
		RecordID:  ref(paymentID),
		Success:   true,
	})
}

// ReceiptEmailed logs a receipt sent on staff request.
func (l *Logger) ReceiptEmailed(ctx context.Context, actorID, paymentID primitive.ObjectID, to string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayments,
		EventType: audit.EventReceiptEmailed,
		ActorID:   ref(actorID),
		RecordID:  ref(paymentID),
		Success:   true,
		Details:   map[string]string{"to": to},
	})
}
