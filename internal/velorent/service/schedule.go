package service

import (
	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/shopspring/decimal"
)

// BuildSchedule produces weekly installments 1..weeks_count starting at the filled date.
// Every installment carries the full document amount.
func BuildSchedule(doc *models.UserDocument, amount *string) ([]models.ContractPayment, error) {
	if amount == nil || doc.WeeksCount == nil || doc.FilledDate == nil {
		return nil, apperr.Validation("Document must have amount, weeks_count and filled_date to build a schedule")
	}
	if *doc.WeeksCount < 1 {
		return nil, apperr.Validation("weeks_count must be positive")
	}
	value, err := decimal.NewFromString(*amount)
	if err != nil {
		return nil, apperr.Validation("Document amount is not a number")
	}

	start := dateOnly(*doc.FilledDate)
	rows := make([]models.ContractPayment, 0, *doc.WeeksCount)
	for n := 1; n <= *doc.WeeksCount; n++ {
		rows = append(rows, models.ContractPayment{
			UserID:        doc.UserID,
			DocumentID:    doc.ID,
			PaymentNumber: n,
			DueDate:       start.AddDate(0, 0, 7*(n-1)),
			Amount:        value,
			Status:        models.SchedulePending,
		})
	}
	return rows, nil
}
