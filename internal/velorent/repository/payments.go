package repository

import (
	"context"

	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, amount, currency, status, description, created_at, updated_at`

const paymentColumns = `id, order_id, user_id, gateway_payment_id, status, amount, currency,
	confirmation_url, payment_method_id, save_payment_method, is_autopay, raw_payload,
	created_at, updated_at`

func scanPayment(s scanner) (*models.Payment, error) {
	p := &models.Payment{}
	err := s.Scan(&p.ID, &p.OrderID, &p.UserID, &p.GatewayPaymentID, &p.Status,
		&p.Amount, &p.Currency, &p.ConfirmationURL, &p.PaymentMethodID,
		&p.SavePaymentMethod, &p.IsAutopay, &p.RawPayload, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PostgresRepository) CreateOrder(ctx context.Context, order *models.Order) (int64, error) {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, amount, currency, status, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		order.UserID, order.Amount, order.Currency, order.Status, order.Description,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return order.ID, nil
}

// GetOrderByID returns the order without its payments
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	o := &models.Order{}
	err := r.q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id).
		Scan(&o.ID, &o.UserID, &o.Amount, &o.Currency, &o.Status, &o.Description, &o.CreatedAt, &o.UpdatedAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresRepository) UpdateOrder(ctx context.Context, order *models.Order) error {
	return r.q.QueryRowContext(ctx, `
		UPDATE orders SET amount = $2, currency = $3, status = $4, description = $5,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`,
		order.ID, order.Amount, order.Currency, order.Status, order.Description,
	).Scan(&order.UpdatedAt)
}

// CreatePayment inserts a payment. A reused gateway id yields ErrDuplicate.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *models.Payment) (int64, error) {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO payments (order_id, user_id, gateway_payment_id, status, amount, currency,
			confirmation_url, payment_method_id, save_payment_method, is_autopay, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		payment.OrderID, payment.UserID, payment.GatewayPaymentID, payment.Status,
		payment.Amount, payment.Currency, payment.ConfirmationURL, payment.PaymentMethodID,
		payment.SavePaymentMethod, payment.IsAutopay, payment.RawPayload,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	return payment.ID, nil
}

func (r *PostgresRepository) GetPaymentByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE gateway_payment_id = $1", gatewayID))
	if noRows(err) {
		return nil, nil
	}
	return p, err
}

func (r *PostgresRepository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return r.q.QueryRowContext(ctx, `
		UPDATE payments SET status = $2, payment_method_id = $3, raw_payload = $4,
			confirmation_url = $5, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`,
		payment.ID, payment.Status, payment.PaymentMethodID, payment.RawPayload, payment.ConfirmationURL,
	).Scan(&payment.UpdatedAt)
}

// GetOrderPayments returns payments of the order, newest first
func (r *PostgresRepository) GetOrderPayments(ctx context.Context, orderID int64) ([]models.Payment, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE order_id = $1 ORDER BY created_at DESC, id DESC",
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}

	return payments, rows.Err()
}

func (r *PostgresRepository) SumSucceededPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.q.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE order_id = $1 AND status = $2",
		orderID, models.PaymentSucceeded,
	).Scan(&sum)
	return sum, err
}

// GetLatestSavedPaymentMethod returns the method id of the user's most recent
// succeeded payment that carries one
func (r *PostgresRepository) GetLatestSavedPaymentMethod(ctx context.Context, userID int64) (*string, error) {
	var method string
	err := r.q.QueryRowContext(ctx, `
		SELECT payment_method_id FROM payments
		WHERE user_id = $1 AND status = $2 AND payment_method_id IS NOT NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		userID, models.PaymentSucceeded,
	).Scan(&method)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &method, nil
}
