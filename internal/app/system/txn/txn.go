// Package txn runs multi-document writes inside a MongoDB transaction when the
// deployment supports one.
//
// Standalone servers reject transactions. Run detects that and re-runs the
// callback without a session, so every callback must be written with guarded
// single-document updates that stay correct on their own.
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func is the unit of work executed by Run. The context carries the session
// when a transaction is active; use it for every store call.
type Func func(ctx context.Context) error

// Run executes fn in a transaction, falling back to a plain call when the
// server cannot start one.
func Run(ctx context.Context, db *mongo.Database, logger *zap.Logger, fn Func) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return fn(ctx)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		if logger != nil {
			logger.Debug("transactions unavailable, running without session", zap.Error(err))
		}
		return fn(ctx)
	}
	return err
}

// IsNotSupported reports whether err means the server cannot run
// multi-document transactions (standalone mongod, unsupported topology).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263: // IllegalOperation, non-replica-set, OperationNotSupportedInTransaction
			return true
		}
	}

	// Drivers and proxies word this differently; require two signals.
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range []string{"transaction", "replica set", "session", "not supported", "illegal operation"} {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}
