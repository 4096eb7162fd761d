package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/jackc/pgconn"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/shopspring/decimal"
)

// ErrDuplicate is returned when a unique constraint rejects a write
var ErrDuplicate = errors.New("duplicate record")

// errNotFound is returned by updates that matched no row
var errNotFound = sql.ErrNoRows

var (
	_ Repository = (*PostgresRepository)(nil)
	_ Repository = (*MemoryRepository)(nil)
)

// Repository defines the interface for data access operations.
// Lookups return (nil, nil) when the record does not exist.
type Repository interface {
	// InTx runs fn against a transactional repository and commits once if fn succeeds
	InTx(ctx context.Context, fn func(tx Repository) error) error

	// User operations
	CreateUser(ctx context.Context, user *models.User) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, role string, status *models.Status) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdateLoginState(ctx context.Context, userID int64, attempts int, lastFailedAt *time.Time) error

	// Document operations
	CreateDocument(ctx context.Context, userID int64) (*models.UserDocument, error)
	GetUserDocuments(ctx context.Context, userID int64) ([]models.UserDocument, error)
	ListDocuments(ctx context.Context) ([]models.UserDocument, error)
	CountUserDocuments(ctx context.Context, userID int64) (int, error)
	UpdateDocument(ctx context.Context, doc *models.UserDocument) error

	// Password reset operations
	CreateResetRequest(ctx context.Context, req *models.PasswordResetRequest) (int64, error)
	InvalidateResetRequests(ctx context.Context, userID int64) error
	GetLatestResetRequest(ctx context.Context, userID int64) (*models.PasswordResetRequest, error)
	UpdateResetRequest(ctx context.Context, req *models.PasswordResetRequest) error

	// Order and payment operations
	CreateOrder(ctx context.Context, order *models.Order) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	CreatePayment(ctx context.Context, payment *models.Payment) (int64, error)
	GetPaymentByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	GetOrderPayments(ctx context.Context, orderID int64) ([]models.Payment, error)
	SumSucceededPayments(ctx context.Context, orderID int64) (decimal.Decimal, error)
	GetLatestSavedPaymentMethod(ctx context.Context, userID int64) (*string, error)

	// Schedule operations
	ReplaceSchedule(ctx context.Context, userID int64, rows []models.ContractPayment) error
	GetUserSchedule(ctx context.Context, userID int64) ([]models.ContractPayment, error)
	GetScheduleRow(ctx context.Context, id int64) (*models.ContractPayment, error)
	GetScheduleRowsByPayment(ctx context.Context, paymentID int64) ([]models.ContractPayment, error)
	UpdateScheduleRow(ctx context.Context, row *models.ContractPayment) error
	CountPaidScheduleRows(ctx context.Context, userID int64) (int, error)
	ListDueAutopayRows(ctx context.Context, asOf time.Time) ([]models.ContractPayment, error)
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
	q  querier
}

// NewPostgresRepository wraps an open database handle
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, q: db}
}

// Open connects to PostgreSQL through the pgx driver and creates the schema
func Open(ctx context.Context, databaseURI string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", databaseURI)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	r := NewPostgresRepository(db)

	// Create tables if they don't exist
	if err := r.CreateTables(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InTx runs fn inside a database transaction. Nested calls reuse the outer transaction.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.db == nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&PostgresRepository{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id SERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(16) NOT NULL DEFAULT 'user',
		full_name TEXT,
		inn TEXT,
		registration_address TEXT,
		residential_address TEXT,
		passport TEXT,
		phone TEXT,
		bank_account TEXT,
		status VARCHAR(16) NOT NULL DEFAULT 'draft',
		rejection_reason TEXT,
		failed_login_attempts INTEGER NOT NULL DEFAULT 0,
		last_failed_login_at TIMESTAMPTZ,
		autopay_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		autopay_payment_method_id VARCHAR(64),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS user_documents (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		contract_number TEXT,
		bike_serial TEXT,
		akb1_serial TEXT,
		akb2_serial TEXT,
		akb3_serial TEXT,
		amount TEXT,
		amount_text TEXT,
		weeks_count INTEGER,
		filled_date DATE,
		end_date DATE,
		active BOOLEAN NOT NULL DEFAULT FALSE,
		signed BOOLEAN NOT NULL DEFAULT FALSE,
		contract_text TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))`,
	`CREATE INDEX IF NOT EXISTS idx_user_documents_user ON user_documents (user_id)`,
	`CREATE TABLE IF NOT EXISTS password_reset_requests (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		code VARCHAR(6) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMPTZ NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		locked_until TIMESTAMPTZ,
		is_used BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_password_reset_user ON password_reset_requests (user_id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		amount NUMERIC(10, 2) NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'RUB',
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		description VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id SERIAL PRIMARY KEY,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		gateway_payment_id VARCHAR(64) UNIQUE,
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		amount NUMERIC(10, 2) NOT NULL,
		currency VARCHAR(3) NOT NULL DEFAULT 'RUB',
		confirmation_url TEXT,
		payment_method_id VARCHAR(64),
		save_payment_method BOOLEAN NOT NULL DEFAULT FALSE,
		is_autopay BOOLEAN NOT NULL DEFAULT FALSE,
		raw_payload TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS contract_payments (
		id SERIAL PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		document_id INTEGER NOT NULL REFERENCES user_documents(id) ON DELETE CASCADE,
		payment_number INTEGER NOT NULL,
		due_date DATE NOT NULL,
		amount NUMERIC(10, 2) NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		order_id INTEGER REFERENCES orders(id) ON DELETE SET NULL,
		payment_id INTEGER REFERENCES payments(id) ON DELETE SET NULL,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contract_payments_user ON contract_payments (user_id)`,
}

// CreateTables creates the necessary tables if they don't exist
func (r *PostgresRepository) CreateTables(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func noRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
