package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/agentmaild/agentmail/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type conflictError struct{ msg string }

func (e *conflictError) Error() string { return e.msg }

func newMockStore(t *testing.T, maxRetries int) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	return &Store{
		db:      gormDB,
		sqlDB:   mockDB,
		backend: BackendPostgres,
		cfg:     Config{MaxRetries: maxRetries, RetryBaseDelay: time.Millisecond},
		clock:   NewClock(nil),
		logger:  zap.NewNop(),
	}, mock
}

// WithTx must retry a transient lock conflict rather than surface it
// immediately, the same mocked-driver shape the teacher used for its pool
// manager's transaction tests, generalized here to exercise the
// TransactionConflict retry policy itself rather than a bare commit/rollback.
func TestWithTx_RetriesOnLockConflictThenSucceeds(t *testing.T) {
	s, mock := newMockStore(t, 3)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err := s.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		attempts++
		if attempts == 1 {
			return &conflictError{"database is locked"}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestWithTx_GivesUpAfterMaxRetries confirms a persistent conflict surfaces
// as StoreUnavailable once MaxRetries attempts are exhausted rather than
// retrying forever.
func TestWithTx_GivesUpAfterMaxRetries(t *testing.T) {
	s, mock := newMockStore(t, 3)
	ctx := context.Background()

	for i := 0; i < s.cfg.MaxRetries; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	err := s.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return &conflictError{"database is locked"}
	})

	assert.Error(t, err)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.StoreUnavailable, e.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestWithTx_AppErrorSkipsRetry confirms an application-level *errs.Error is
// never retried, matching the non-conflict path the in-memory sqlite tests
// already cover, here proven at the mocked-driver level (single Begin/
// Rollback pair, no second attempt).
func TestWithTx_AppErrorSkipsRetry(t *testing.T) {
	s, mock := newMockStore(t, 3)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := s.WithTx(ctx, func(ctx context.Context, tx *gorm.DB) error {
		attempts++
		return errs.New(errs.InvalidArgument, "rejected")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
	require.NoError(t, mock.ExpectationsWereMet())
}
