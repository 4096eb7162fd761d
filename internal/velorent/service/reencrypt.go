package service

import (
	"context"
	"fmt"

	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/25x8/velorent/internal/velorent/repository"
	"github.com/25x8/velorent/internal/velorent/secure"
)

// EncryptStats counts rows rewritten by EncryptStored
type EncryptStats struct {
	Users     int
	Documents int
}

// EncryptStored encrypts every plaintext personal and document field in place.
// Values that already carry the cipher tag are left as they are, so reruns are no-ops.
func EncryptStored(ctx context.Context, repo repository.Repository, cipher *secure.Cipher) (EncryptStats, error) {
	var stats EncryptStats
	err := repo.InTx(ctx, func(tx repository.Repository) error {
		stats = EncryptStats{}
		users, err := tx.ListUsers(ctx, "", nil)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		for i := range users {
			fields := users[i].PersonalFields()
			changed, err := encryptFields(cipher, fields[models.FieldFullName], fields[models.FieldINN],
				fields[models.FieldRegistrationAddress], fields[models.FieldResidentialAddress],
				fields[models.FieldPassport], fields[models.FieldPhone], fields[models.FieldBankAccount])
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			if err := tx.UpdateUser(ctx, &users[i]); err != nil {
				return fmt.Errorf("update user %d: %w", users[i].ID, err)
			}
			stats.Users++
		}

		docs, err := tx.ListDocuments(ctx)
		if err != nil {
			return fmt.Errorf("list documents: %w", err)
		}
		for i := range docs {
			d := &docs[i]
			changed, err := encryptFields(cipher, &d.ContractNumber, &d.BikeSerial, &d.AKB1Serial,
				&d.AKB2Serial, &d.AKB3Serial, &d.Amount, &d.AmountText)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			if err := tx.UpdateDocument(ctx, d); err != nil {
				return fmt.Errorf("update document %d: %w", d.ID, err)
			}
			stats.Documents++
		}
		return nil
	})
	return stats, err
}

func encryptFields(cipher *secure.Cipher, fields ...**string) (bool, error) {
	changed := false
	for _, f := range fields {
		if *f == nil || **f == "" || secure.IsEncrypted(**f) {
			continue
		}
		enc, err := cipher.Encrypt(**f)
		if err != nil {
			return false, err
		}
		*f = &enc
		changed = true
	}
	return changed, nil
}
