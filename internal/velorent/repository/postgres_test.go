package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

var userRowColumns = []string{"id", "email", "password_hash", "role", "full_name", "inn",
	"registration_address", "residential_address", "passport", "phone", "bank_account",
	"status", "rejection_reason", "failed_login_attempts", "last_failed_login_at",
	"autopay_enabled", "autopay_payment_method_id", "created_at"}

func TestPostgresRepository_CreateUser(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (email, password_hash, role, status)")).
		WithArgs("rider@example.com", "hash", models.RoleUser, "draft").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))

	user := &models.User{Email: "rider@example.com", PasswordHash: "hash"}
	id, err := repo.CreateUser(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, created, user.CreatedAt)
	assert.Equal(t, models.StatusDraft, user.Status)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = repo.CreateUser(ctx, &models.User{Email: "rider@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetUser(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	fullName := "enc:abc"

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE lower(email) = lower($1)")).
		WithArgs("Rider@Example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(
			3, "rider@example.com", "hash", "user", fullName, nil,
			nil, nil, nil, nil, nil,
			"pending", nil, 2, nil,
			true, "pm-1", time.Now()))

	user, err := repo.GetUserByEmail(ctx, "Rider@Example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, int64(3), user.ID)
	assert.Equal(t, models.StatusPending, user.Status)
	require.NotNil(t, user.FullName)
	assert.Equal(t, fullName, *user.FullName)
	assert.Nil(t, user.INN)
	assert.Equal(t, 2, user.FailedLoginAttempts)
	require.NotNil(t, user.AutopayPaymentMethodID)
	assert.Equal(t, "pm-1", *user.AutopayPaymentMethodID)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	user, err = repo.GetUserByID(ctx, 404)
	assert.NoError(t, err)
	assert.Nil(t, user)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListUsersFilters(t *testing.T) {
	repo, mock := newMock(t)
	status := models.StatusPending

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = $1 AND status = $2 ORDER BY id")).
		WithArgs(models.RoleUser, "pending").
		WillReturnRows(sqlmock.NewRows(userRowColumns))

	users, err := repo.ListUsers(context.Background(), models.RoleUser, &status)
	assert.NoError(t, err)
	assert.Empty(t, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_UpdateUserMissing(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateUser(context.Background(), &models.User{ID: 9, Status: models.StatusDraft})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_InTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		repo, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_requests SET is_used = TRUE")).
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		err := repo.InTx(context.Background(), func(tx Repository) error {
			return tx.InvalidateResetRequests(context.Background(), 5)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		repo, mock := newMock(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := repo.InTx(context.Background(), func(tx Repository) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_Payments(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(amount), 0) FROM payments")).
		WithArgs(int64(11), models.PaymentSucceeded).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("10000.00"))

	sum, err := repo.SumSucceededPayments(ctx, 11)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(10000)))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT payment_method_id FROM payments")).
		WithArgs(int64(3), models.PaymentSucceeded).
		WillReturnRows(sqlmock.NewRows([]string{"payment_method_id"}))

	method, err := repo.GetLatestSavedPaymentMethod(ctx, 3)
	assert.NoError(t, err)
	assert.Nil(t, method)

	gid := "2d1c-gw"
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = repo.CreatePayment(ctx, &models.Payment{OrderID: 1, UserID: 3, GatewayPaymentID: &gid})
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ReplaceSchedule(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Now()
	due := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM contract_payments WHERE user_id = $1")).
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	for i := 1; i <= 2; i++ {
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO contract_payments")).
			WithArgs(int64(2), int64(8), i, sqlmock.AnyArg(), sqlmock.AnyArg(), models.SchedulePending).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(100+i, now, now))
	}

	rows := []models.ContractPayment{
		{DocumentID: 8, PaymentNumber: 1, DueDate: due, Amount: decimal.NewFromInt(1500), Status: models.SchedulePending},
		{DocumentID: 8, PaymentNumber: 2, DueDate: due.AddDate(0, 0, 7), Amount: decimal.NewFromInt(1500), Status: models.SchedulePending},
	}
	require.NoError(t, repo.ReplaceSchedule(context.Background(), 2, rows))
	assert.Equal(t, int64(101), rows[0].ID)
	assert.Equal(t, int64(102), rows[1].ID)
	assert.Equal(t, int64(2), rows[1].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_CreateTables(t *testing.T) {
	repo, mock := newMock(t)

	for range schema {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	assert.NoError(t, repo.CreateTables(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, schema, "CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))")
}

func TestPostgresRepository_UpdateLoginState(t *testing.T) {
	repo, mock := newMock(t)
	ctx := context.Background()
	failedAt := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET failed_login_attempts = $2, last_failed_login_at = $3 WHERE id = $1")).
		WithArgs(int64(4), int64(2), failedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateLoginState(ctx, 4, 2, &failedAt))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET failed_login_attempts")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.UpdateLoginState(ctx, 9, 0, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}
