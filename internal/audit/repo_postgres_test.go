package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepo_Append(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	repo := NewPostgresRepo(sqlx.NewDb(raw, "pgx"))

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("e1", EventTypeLatePayment, "", "", "", "u1", "REF_1", "", int64(100), "late", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.Append(context.Background(), Event{
		ID: "e1", Type: EventTypeLatePayment, OwnerID: "u1", Reference: "REF_1",
		Amount: 100, Message: "late", CreatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_AppendPropagatesError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer raw.Close()
	repo := NewPostgresRepo(sqlx.NewDb(raw, "pgx"))

	boom := errors.New("boom")
	mock.ExpectExec("INSERT INTO audit_events").WillReturnError(boom)

	err = repo.Append(context.Background(), Event{ID: "e1", Type: EventTypeAdminAdjustment})
	assert.ErrorIs(t, err, boom)
}
