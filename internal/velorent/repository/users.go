package repository

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/25x8/velorent/internal/velorent/models"
)

const userColumns = `id, email, password_hash, role, full_name, inn, registration_address,
	residential_address, passport, phone, bank_account, status, rejection_reason,
	failed_login_attempts, last_failed_login_at, autopay_enabled, autopay_payment_method_id, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(s scanner) (*models.User, error) {
	u := &models.User{}
	err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role,
		&u.FullName, &u.INN, &u.RegistrationAddress, &u.ResidentialAddress,
		&u.Passport, &u.Phone, &u.BankAccount, &u.Status, &u.RejectionReason,
		&u.FailedLoginAttempts, &u.LastFailedLoginAt, &u.AutopayEnabled,
		&u.AutopayPaymentMethodID, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a user and returns its id. A taken email yields ErrDuplicate.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Status == "" {
		user.Status = models.StatusDraft
	}

	var id int64
	err := r.q.QueryRowContext(
		ctx,
		"INSERT INTO users (email, password_hash, role, status) VALUES ($1, $2, $3, $4) RETURNING id, created_at",
		user.Email, user.PasswordHash, user.Role, user.Status,
	).Scan(&id, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}

	user.ID = id
	return id, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower($1)", email))
	if noRows(err) {
		return nil, nil
	}
	return u, err
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(r.q.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if noRows(err) {
		return nil, nil
	}
	return u, err
}

// ListUsers returns users ordered by id. Empty role and nil status match everything.
func (r *PostgresRepository) ListUsers(ctx context.Context, role string, status *models.Status) ([]models.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if role != "" {
		args = append(args, role)
		where = append(where, "role = $1")
	}
	if status != nil {
		args = append(args, string(*status))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}

	query := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	return users, rows.Err()
}

// UpdateUser writes every mutable column of user
func (r *PostgresRepository) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE users SET
			password_hash = $2, role = $3, full_name = $4, inn = $5,
			registration_address = $6, residential_address = $7, passport = $8,
			phone = $9, bank_account = $10, status = $11, rejection_reason = $12,
			failed_login_attempts = $13, last_failed_login_at = $14,
			autopay_enabled = $15, autopay_payment_method_id = $16
		WHERE id = $1`,
		user.ID, user.PasswordHash, user.Role, user.FullName, user.INN,
		user.RegistrationAddress, user.ResidentialAddress, user.Passport,
		user.Phone, user.BankAccount, string(user.Status), user.RejectionReason,
		user.FailedLoginAttempts, user.LastFailedLoginAt,
		user.AutopayEnabled, user.AutopayPaymentMethodID,
	)
	return expectOne(res, err)
}

// UpdateLoginState touches only the failed login counters
func (r *PostgresRepository) UpdateLoginState(ctx context.Context, userID int64, attempts int, lastFailedAt *time.Time) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE users SET failed_login_attempts = $2, last_failed_login_at = $3 WHERE id = $1",
		userID, attempts, lastFailedAt,
	)
	return expectOne(res, err)
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNotFound
	}
	return nil
}
