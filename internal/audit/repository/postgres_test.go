package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-auth/backend/internal/audit/domain"
)

var _ Repository = (*PostgresRepository)(nil)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgres_Create(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO audit_logs (id, user_id, action, ip, metadata, created_at)`)).
		WithArgs("a1", nil, "auth.sign_in_failed", "10.0.0.1", nil, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.AuditLog{
		ID: "a1", Action: "auth.sign_in_failed", IP: "10.0.0.1", CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Create_Error(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnError(errors.New("conn reset"))

	err := repo.Create(context.Background(), &domain.AuditLog{ID: "a1", Action: "x"})
	assert.EqualError(t, err, "db error: conn reset")
}
