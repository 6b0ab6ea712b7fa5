// Package circulation runs the borrow lifecycle:
//
//	pending -> borrowed -> return_pending -> returned
//	pending -> rejected
//	borrowed -> overdue (scheduled sweep)
//
// A request becomes borrowed only when both an admin and a librarian have
// signed it. Copy counts move exactly once per record: down when the record
// is issued, up when its return is verified.
package circulation

import (
	"context"
	"errors"
	"time"

	bookstore "github.com/dalemusser/libraryhub/internal/app/store/books"
	borrowstore "github.com/dalemusser/libraryhub/internal/app/store/borrows"
	userstore "github.com/dalemusser/libraryhub/internal/app/store/users"
	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"github.com/dalemusser/libraryhub/internal/app/system/auditlog"
	"github.com/dalemusser/libraryhub/internal/app/system/fines"
	"github.com/dalemusser/libraryhub/internal/app/system/mailer"
	"github.com/dalemusser/libraryhub/internal/app/system/notify"
	"github.com/dalemusser/libraryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("libraryhub/circulation")

// Config holds lending rules.
type Config struct {
	MaxBooksPerUser int
	FinePerDay      int64
	BorrowDays      int
	Currency        string
}

func (c Config) withDefaults() Config {
	if c.MaxBooksPerUser <= 0 {
		c.MaxBooksPerUser = 3
	}
	if c.FinePerDay <= 0 {
		c.FinePerDay = fines.DefaultPerDay
	}
	if c.BorrowDays <= 0 {
		c.BorrowDays = fines.DefaultBorrowDays
	}
	if c.Currency == "" {
		c.Currency = "INR"
	}
	return c
}

// Deps are the engine's collaborators. Audit and Notifier may be nil.
type Deps struct {
	DB       *mongo.Database
	Audit    *auditlog.Logger
	Notifier notify.Notifier
	Log      *zap.Logger
}

// Engine executes borrow lifecycle operations.
type Engine struct {
	db       *mongo.Database
	users    *userstore.Store
	books    *bookstore.Store
	borrows  *borrowstore.Store
	audit    *auditlog.Logger
	notifier notify.Notifier
	log      *zap.Logger
	cfg      Config
	now      func() time.Time

	transitions metric.Int64Counter
}

// New creates an Engine.
func New(deps Deps, cfg Config) *Engine {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	counter, err := otel.Meter("libraryhub/circulation").Int64Counter(
		"libraryhub.borrow.transitions",
		metric.WithDescription("Borrow records moved into a new state"),
	)
	if err != nil {
		log.Warn("borrow transition counter unavailable", zap.Error(err))
	}
	return &Engine{
		db:          deps.DB,
		users:       userstore.New(deps.DB),
		books:       bookstore.New(deps.DB),
		borrows:     borrowstore.New(deps.DB),
		audit:       deps.Audit,
		notifier:    deps.Notifier,
		log:         log,
		cfg:         cfg.withDefaults(),
		now:         func() time.Time { return time.Now().UTC() },
		transitions: counter,
	}
}

// Config returns the effective lending rules.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) count(ctx context.Context, status string) {
	if e.transitions != nil {
		e.transitions.Add(ctx, 1, metricStatus(status))
	}
}

func metricStatus(status string) metric.AddOption {
	return metric.WithAttributes(attribute.String("status", status))
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "circulation."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.Message(err))
	}
	span.End()
}

// classify maps store sentinels onto the error taxonomy. Errors that are
// already classified pass through; anything else stays unclassified.
func classify(err error) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, borrowstore.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "borrow record not found", err)
	case errors.Is(err, bookstore.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "book not found", err)
	case errors.Is(err, userstore.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, "user not found", err)
	case errors.Is(err, borrowstore.ErrWrongState):
		return apperr.Wrap(apperr.InvalidState, "", err)
	case errors.Is(err, borrowstore.ErrSameApprover):
		return apperr.Wrap(apperr.Forbidden, "the same staff member cannot sign both approvals", err)
	case errors.Is(err, bookstore.ErrNoCopies):
		return apperr.Wrap(apperr.Conflict, "no copies left to issue", err)
	}
	return err
}

func (e *Engine) send(ctx context.Context, build func(u *models.User, title string) mailer.Email, userID, bookID primitive.ObjectID) {
	if e.notifier == nil {
		return
	}
	u, err := e.users.GetByID(ctx, userID)
	if err != nil {
		e.log.Warn("notification skipped: user lookup failed", zap.String("user_id", userID.Hex()), zap.Error(err))
		return
	}
	if u.Email == "" {
		return
	}
	title := ""
	if b, err := e.books.GetByID(ctx, bookID); err == nil {
		title = b.Title
	}
	e.notifier.Notify(build(u, title))
}
