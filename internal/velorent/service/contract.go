package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/docx"
	"github.com/25x8/velorent/internal/velorent/utils"
	"go.uber.org/zap"
)

const humanDateLayout = "02.01.2006"

// ContractRenderer produces a contract file from placeholder values and returns its path
type ContractRenderer interface {
	Render(values map[string]string, fileName string) (string, error)
}

// DocxRenderer fills the configured Word template under the secure storage dir
type DocxRenderer struct {
	templatePath string
	outputDir    string
}

// NewDocxRenderer expects the template in <dir>/templates and writes to <dir>/generated_contracts
func NewDocxRenderer(secureDir, templateName string) *DocxRenderer {
	return &DocxRenderer{
		templatePath: filepath.Join(secureDir, "templates", templateName),
		outputDir:    filepath.Join(secureDir, "generated_contracts"),
	}
}

func (r *DocxRenderer) Render(values map[string]string, fileName string) (string, error) {
	if _, err := os.Stat(r.templatePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperr.NotFound("Contract template not found")
		}
		return "", fmt.Errorf("stat template: %w", err)
	}
	out := filepath.Join(r.outputDir, fileName)
	if err := docx.Render(r.templatePath, out, values); err != nil {
		return "", err
	}
	return out, nil
}

func valueOr(v *string, fallback string) string {
	if v == nil || *v == "" {
		return fallback
	}
	return *v
}

func humanDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(humanDateLayout)
}

// ContractValues builds the placeholder map for a contract from decrypted data
func ContractValues(city string, today time.Time, email string, view *DocumentView) map[string]string {
	todayStr := today.Format(humanDateLayout)

	address := valueOr(view.RegistrationAddress, valueOr(view.ResidentialAddress, ""))
	weeks := ""
	weekWord := ""
	if view.WeeksCount != nil {
		weeks = strconv.Itoa(*view.WeeksCount)
		weekWord = utils.WeekWord(*view.WeeksCount)
	}

	filled := todayStr
	if view.FilledDate != nil {
		if t, err := time.Parse(dateLayout, *view.FilledDate); err == nil {
			filled = humanDate(&t)
		}
	}
	end := ""
	if view.EndDate != nil {
		if t, err := time.Parse(dateLayout, *view.EndDate); err == nil {
			end = humanDate(&t)
		}
	}

	fullName := valueOr(view.FullName, "")
	return map[string]string{
		"CITY":                  city,
		"DATE":                  todayStr,
		"FULL_NAME":             fullName,
		"ФИО":                   fullName,
		"ADDRESS":               address,
		"REGISTRATION_ADDRESS":  valueOr(view.RegistrationAddress, ""),
		"RESIDENTIAL_ADDRESS":   valueOr(view.ResidentialAddress, ""),
		"PASSPORT":              valueOr(view.Passport, ""),
		"PHONE":                 valueOr(view.Phone, ""),
		"INN":                   valueOr(view.INN, ""),
		"EMAIL":                 email,
		"BANK_ACCOUNT":          valueOr(view.BankAccount, "-"),
		"№_договора":            valueOr(view.ContractNumber, ""),
		"Номер_приложения":      "1",
		"Серийный_номер_велик":  valueOr(view.BikeSerial, ""),
		"Серийный_нормер_АКБ_1": valueOr(view.AKB1Serial, ""),
		"Серийный_нормер_АКБ_2": valueOr(view.AKB2Serial, ""),
		"Серийный_нормер_АКБ_3": valueOr(view.AKB3Serial, ""),
		"Сумма":                 valueOr(view.Amount, ""),
		"Сумма_пропись":         valueOr(view.AmountText, ""),
		"Кол_во_недель":         weeks,
		"неделю":                weekWord,
		"Дата_аполнения":        filled,
		"Дата_заполнения":       filled,
		"Дат_конец_аренды":      end,
	}
}

// ExportContract renders the contract of one document of an approved user
func (s *DocumentService) ExportContract(ctx context.Context, userID, documentID int64) (string, error) {
	if s.renderer == nil {
		return "", apperr.NotFound("Contract export is not configured")
	}

	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return "", err
	}
	if err := ensureApproved(user); err != nil {
		return "", err
	}

	docs, err := s.RefreshDocuments(ctx, userID)
	if err != nil {
		return "", err
	}
	doc := findDocument(docs, documentID)
	if doc == nil {
		return "", apperr.NotFound("Document not found")
	}

	view := newDocumentView(s.cipher, user, doc)
	values := ContractValues(s.city, s.today(), user.Email, view)

	path, err := s.renderer.Render(values, fmt.Sprintf("contract_user_%d_%d.docx", userID, documentID))
	if err != nil {
		return "", err
	}

	s.logger.Info("contract exported", zap.Int64("user_id", userID), zap.Int64("document_id", documentID))
	return path, nil
}
