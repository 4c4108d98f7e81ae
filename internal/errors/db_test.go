package errors

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapDBError_Nil(t *testing.T) {
	assert.NoError(t, MapDBError(nil))
}

func TestMapDBError_ContextErrors(t *testing.T) {
	err := MapDBError(context.DeadlineExceeded)
	assert.True(t, IsTimeout(err))

	err = MapDBError(context.Canceled)
	assert.True(t, IsCanceled(err))
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	assert.True(t, IsNotFound(err))
	assert.True(t, stderrors.Is(err, pgx.ErrNoRows))
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:   pgerrcode.UniqueViolation,
		Detail: `Key (request_id)=(req_123) already exists.`,
	}
	err := MapDBError(pgErr)
	require.True(t, IsConflict(err))
	assert.Equal(t, "request_id", GetField(err))
}

func TestMapDBError_UniqueViolation_PrefersColumnName(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:       pgerrcode.UniqueViolation,
		ColumnName: "id",
		Detail:     `Key (request_id)=(req_123) already exists.`,
	}
	err := MapDBError(pgErr)
	assert.Equal(t, "id", GetField(err))
}

func TestMapDBError_ForeignKeyViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:   pgerrcode.ForeignKeyViolation,
		Detail: `Key (job_id)=(x) is not present in table "jobs".`,
	}
	err := MapDBError(pgErr)
	assert.True(t, IsValidation(err))
}

func TestMapDBError_CheckAndNotNullViolations(t *testing.T) {
	err := MapDBError(&pgconn.PgError{
		Code:       pgerrcode.CheckViolation,
		ColumnName: "progress",
	})
	require.True(t, IsValidation(err))
	assert.Equal(t, "progress", GetField(err))

	err = MapDBError(&pgconn.PgError{
		Code:       pgerrcode.NotNullViolation,
		ColumnName: "owner_id",
	})
	require.True(t, IsValidation(err))
	assert.Equal(t, "owner_id", GetField(err))
}

func TestMapDBError_UnrecognizedPgError(t *testing.T) {
	err := MapDBError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	assert.True(t, IsInternal(err))
}

func TestMapDBError_PassthroughUnknown(t *testing.T) {
	plain := stderrors.New("network broke")
	assert.Equal(t, plain, MapDBError(plain))
}
