package repository

import (
	"context"

	"github.com/25x8/velorent/internal/velorent/models"
)

func (r *PostgresRepository) CreateResetRequest(ctx context.Context, req *models.PasswordResetRequest) (int64, error) {
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO password_reset_requests (user_id, code, created_at, expires_at, attempts, locked_until, is_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		req.UserID, req.Code, req.CreatedAt, req.ExpiresAt, req.Attempts, req.LockedUntil, req.IsUsed,
	).Scan(&req.ID)
	if err != nil {
		return 0, err
	}
	return req.ID, nil
}

// InvalidateResetRequests marks every unused request of the user as used
func (r *PostgresRepository) InvalidateResetRequests(ctx context.Context, userID int64) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE password_reset_requests SET is_used = TRUE WHERE user_id = $1 AND is_used = FALSE", userID)
	return err
}

// GetLatestResetRequest returns the newest unused request of the user
func (r *PostgresRepository) GetLatestResetRequest(ctx context.Context, userID int64) (*models.PasswordResetRequest, error) {
	req := &models.PasswordResetRequest{}
	err := r.q.QueryRowContext(ctx, `
		SELECT id, user_id, code, created_at, expires_at, attempts, locked_until, is_used
		FROM password_reset_requests
		WHERE user_id = $1 AND is_used = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1`,
		userID,
	).Scan(&req.ID, &req.UserID, &req.Code, &req.CreatedAt, &req.ExpiresAt,
		&req.Attempts, &req.LockedUntil, &req.IsUsed)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *PostgresRepository) UpdateResetRequest(ctx context.Context, req *models.PasswordResetRequest) error {
	res, err := r.q.ExecContext(ctx,
		"UPDATE password_reset_requests SET attempts = $2, locked_until = $3, is_used = $4 WHERE id = $1",
		req.ID, req.Attempts, req.LockedUntil, req.IsUsed)
	return expectOne(res, err)
}
