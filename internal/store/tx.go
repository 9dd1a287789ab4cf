package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/agentmaild/agentmail/internal/errs"
	"gorm.io/gorm"
)

// TxFunc is a unit of work executed inside one serializable transaction.
// It must perform all of its reads and writes through tx; returning an
// error aborts the whole transaction (spec §4.1: "commit-all or abort-all
// with no visible intermediate state to other transactions").
type TxFunc func(ctx context.Context, tx *gorm.DB) error

// WithTx runs fn inside a serializable transaction, retrying on transient
// lock-conflict errors for up to cfg.MaxRetries attempts in all, with
// exponential backoff between attempts starting at cfg.RetryBaseDelay (spec §4.1 TransactionConflict policy).
// A *errs.Error returned by fn is never retried — it represents a
// deliberate application-level rejection (validation, policy, conflict),
// not a storage-layer conflict.
func (s *Store) WithTx(ctx context.Context, fn TxFunc) error {
	delay := s.cfg.RetryBaseDelay

	for attempt := 0; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, tx)
		}, &sql.TxOptions{Isolation: sql.LevelSerializable})

		if err == nil {
			return nil
		}

		if _, isAppErr := errs.As(err); isAppErr {
			return err
		}

		if !isRetryableConflict(err) || attempt >= s.cfg.MaxRetries-1 {
			if isRetryableConflict(err) {
				return errs.Newf(errs.StoreUnavailable, "store busy after %d attempts: %v", attempt+1, err)
			}
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// isRetryableConflict reports whether err looks like a transient
// lock/serialization conflict rather than a durable failure.
func isRetryableConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidTransaction) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"database is locked", "busy", "locked", "deadlock", "could not serialize"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
