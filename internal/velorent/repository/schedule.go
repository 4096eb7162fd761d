package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/25x8/velorent/internal/velorent/models"
)

const scheduleColumns = `id, user_id, document_id, payment_number, due_date, amount, status,
	order_id, payment_id, paid_at, created_at, updated_at`

func scanScheduleRow(s scanner) (*models.ContractPayment, error) {
	c := &models.ContractPayment{}
	err := s.Scan(&c.ID, &c.UserID, &c.DocumentID, &c.PaymentNumber, &c.DueDate,
		&c.Amount, &c.Status, &c.OrderID, &c.PaymentID, &c.PaidAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ReplaceSchedule deletes every schedule row of the user and inserts rows.
// Call it inside InTx so the swap is atomic.
func (r *PostgresRepository) ReplaceSchedule(ctx context.Context, userID int64, rows []models.ContractPayment) error {
	if _, err := r.q.ExecContext(ctx, "DELETE FROM contract_payments WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}

	for i := range rows {
		row := &rows[i]
		err := r.q.QueryRowContext(ctx, `
			INSERT INTO contract_payments (user_id, document_id, payment_number, due_date, amount, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at`,
			userID, row.DocumentID, row.PaymentNumber, row.DueDate, row.Amount, row.Status,
		).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert schedule row %d: %w", row.PaymentNumber, err)
		}
		row.UserID = userID
	}

	return nil
}

func (r *PostgresRepository) GetUserSchedule(ctx context.Context, userID int64) ([]models.ContractPayment, error) {
	return r.querySchedule(ctx,
		"SELECT "+scheduleColumns+" FROM contract_payments WHERE user_id = $1 ORDER BY payment_number", userID)
}

func (r *PostgresRepository) GetScheduleRow(ctx context.Context, id int64) (*models.ContractPayment, error) {
	c, err := scanScheduleRow(r.q.QueryRowContext(ctx,
		"SELECT "+scheduleColumns+" FROM contract_payments WHERE id = $1", id))
	if noRows(err) {
		return nil, nil
	}
	return c, err
}

func (r *PostgresRepository) GetScheduleRowsByPayment(ctx context.Context, paymentID int64) ([]models.ContractPayment, error) {
	return r.querySchedule(ctx,
		"SELECT "+scheduleColumns+" FROM contract_payments WHERE payment_id = $1 ORDER BY payment_number", paymentID)
}

func (r *PostgresRepository) UpdateScheduleRow(ctx context.Context, row *models.ContractPayment) error {
	return r.q.QueryRowContext(ctx, `
		UPDATE contract_payments SET status = $2, order_id = $3, payment_id = $4, paid_at = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`,
		row.ID, row.Status, row.OrderID, row.PaymentID, row.PaidAt,
	).Scan(&row.UpdatedAt)
}

func (r *PostgresRepository) CountPaidScheduleRows(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM contract_payments WHERE user_id = $1 AND status = $2",
		userID, models.SchedulePaid).Scan(&n)
	return n, err
}

// ListDueAutopayRows returns pending rows due on or before asOf that belong to
// autopay users and have no payment in flight
func (r *PostgresRepository) ListDueAutopayRows(ctx context.Context, asOf time.Time) ([]models.ContractPayment, error) {
	return r.querySchedule(ctx, `
		SELECT cp.id, cp.user_id, cp.document_id, cp.payment_number, cp.due_date, cp.amount,
			cp.status, cp.order_id, cp.payment_id, cp.paid_at, cp.created_at, cp.updated_at
		FROM contract_payments cp
		JOIN users u ON u.id = cp.user_id
		LEFT JOIN payments p ON p.id = cp.payment_id
		WHERE cp.status = $1
			AND cp.due_date <= $2
			AND u.autopay_enabled = TRUE
			AND u.autopay_payment_method_id IS NOT NULL
			AND (p.id IS NULL OR p.status = $3)
		ORDER BY cp.due_date, cp.id`,
		models.SchedulePending, asOf, models.PaymentCanceled)
}

func (r *PostgresRepository) querySchedule(ctx context.Context, query string, args ...interface{}) ([]models.ContractPayment, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ContractPayment
	for rows.Next() {
		c, err := scanScheduleRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *c)
	}

	return result, rows.Err()
}
