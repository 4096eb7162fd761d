package repository

import (
	"context"

	"github.com/25x8/velorent/internal/velorent/models"
)

const documentColumns = `id, user_id, contract_number, bike_serial, akb1_serial, akb2_serial,
	akb3_serial, amount, amount_text, weeks_count, filled_date, end_date, active, signed,
	contract_text, created_at, updated_at`

func scanDocument(s scanner) (*models.UserDocument, error) {
	d := &models.UserDocument{}
	err := s.Scan(&d.ID, &d.UserID, &d.ContractNumber, &d.BikeSerial, &d.AKB1Serial,
		&d.AKB2Serial, &d.AKB3Serial, &d.Amount, &d.AmountText, &d.WeeksCount,
		&d.FilledDate, &d.EndDate, &d.Active, &d.Signed, &d.ContractText,
		&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// CreateDocument inserts an empty inactive document for the user
func (r *PostgresRepository) CreateDocument(ctx context.Context, userID int64) (*models.UserDocument, error) {
	return scanDocument(r.q.QueryRowContext(ctx,
		"INSERT INTO user_documents (user_id) VALUES ($1) RETURNING "+documentColumns, userID))
}

// GetUserDocuments returns the user's documents, newest first
func (r *PostgresRepository) GetUserDocuments(ctx context.Context, userID int64) ([]models.UserDocument, error) {
	return r.queryDocuments(ctx,
		"SELECT "+documentColumns+" FROM user_documents WHERE user_id = $1 ORDER BY created_at DESC, id DESC",
		userID)
}

// ListDocuments returns every document ordered by id
func (r *PostgresRepository) ListDocuments(ctx context.Context) ([]models.UserDocument, error) {
	return r.queryDocuments(ctx, "SELECT "+documentColumns+" FROM user_documents ORDER BY id")
}

func (r *PostgresRepository) queryDocuments(ctx context.Context, query string, args ...interface{}) ([]models.UserDocument, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.UserDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}

	return docs, rows.Err()
}

func (r *PostgresRepository) CountUserDocuments(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_documents WHERE user_id = $1", userID).Scan(&n)
	return n, err
}

// UpdateDocument writes every mutable column and stamps updated_at
func (r *PostgresRepository) UpdateDocument(ctx context.Context, doc *models.UserDocument) error {
	err := r.q.QueryRowContext(ctx, `
		UPDATE user_documents SET
			contract_number = $2, bike_serial = $3, akb1_serial = $4, akb2_serial = $5,
			akb3_serial = $6, amount = $7, amount_text = $8, weeks_count = $9,
			filled_date = $10, end_date = $11, active = $12, signed = $13,
			contract_text = $14, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
		RETURNING updated_at`,
		doc.ID, doc.ContractNumber, doc.BikeSerial, doc.AKB1Serial, doc.AKB2Serial,
		doc.AKB3Serial, doc.Amount, doc.AmountText, doc.WeeksCount,
		doc.FilledDate, doc.EndDate, doc.Active, doc.Signed, doc.ContractText,
	).Scan(&doc.UpdatedAt)
	return err
}
