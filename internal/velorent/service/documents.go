package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/25x8/velorent/internal/velorent/repository"
	"github.com/25x8/velorent/internal/velorent/secure"
	"github.com/25x8/velorent/internal/velorent/utils"
	"go.uber.org/zap"
)

// DocumentService runs the personal data and contract document lifecycle
type DocumentService struct {
	repo     repository.Repository
	cipher   *secure.Cipher
	renderer ContractRenderer
	city     string
	logger   *zap.Logger
	now      func() time.Time
}

// NewDocumentService creates a new document service
func NewDocumentService(repo repository.Repository, cipher *secure.Cipher, renderer ContractRenderer, city string, logger *zap.Logger) *DocumentService {
	return &DocumentService{
		repo:     repo,
		cipher:   cipher,
		renderer: renderer,
		city:     city,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *DocumentService) today() time.Time {
	return dateOnly(s.now())
}

// Derive computes the end date of doc and whether today falls inside
// [filled_date, end_date]. Both dates are required for a range.
func Derive(doc *models.UserDocument, today time.Time) (*time.Time, bool) {
	if doc.FilledDate == nil || doc.WeeksCount == nil {
		return nil, false
	}
	start := dateOnly(*doc.FilledDate)
	end := start.AddDate(0, 0, 7*(*doc.WeeksCount))
	today = dateOnly(today)
	return &end, !today.Before(start) && !today.After(end)
}

// deriveAll recomputes end dates and active flags of docs ordered newest first.
// Only the newest in-range document is active. Returns indexes of changed docs.
func deriveAll(docs []models.UserDocument, today time.Time) []int {
	var changed []int
	activeSet := false
	for i := range docs {
		doc := &docs[i]
		end, inRange := Derive(doc, today)
		dirty := false

		if !sameDate(doc.EndDate, end) {
			doc.EndDate = end
			dirty = true
		}

		active := inRange && !activeSet
		if active {
			activeSet = true
		}
		if doc.Active != active {
			doc.Active = active
			dirty = true
		}

		if dirty {
			changed = append(changed, i)
		}
	}
	return changed
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return dateOnly(*a).Equal(dateOnly(*b))
}

// RefreshDocuments recomputes derived fields of the user's documents and persists
// them when something changed. Returns the documents newest first.
func (s *DocumentService) RefreshDocuments(ctx context.Context, userID int64) ([]models.UserDocument, error) {
	return s.refresh(ctx, s.repo, userID)
}

func (s *DocumentService) refresh(ctx context.Context, repo repository.Repository, userID int64) ([]models.UserDocument, error) {
	docs, err := repo.GetUserDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	changed := deriveAll(docs, s.today())
	if len(changed) == 0 {
		return docs, nil
	}

	err = repo.InTx(ctx, func(tx repository.Repository) error {
		for _, i := range changed {
			if err := tx.UpdateDocument(ctx, &docs[i]); err != nil {
				return fmt.Errorf("update document %d: %w", docs[i].ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func loadUser(ctx context.Context, repo repository.Repository, userID int64) (*models.User, error) {
	user, err := repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}
	return user, nil
}

func latest(docs []models.UserDocument) *models.UserDocument {
	if len(docs) == 0 {
		return nil
	}
	return &docs[0]
}

func findDocument(docs []models.UserDocument, id int64) *models.UserDocument {
	for i := range docs {
		if docs[i].ID == id {
			return &docs[i]
		}
	}
	return nil
}

func ensureApproved(user *models.User) error {
	if user.Status != models.StatusApproved {
		return apperr.InvalidState("User data is not approved")
	}
	return nil
}

// GetMyDocument returns the user's personal data with their latest document
func (s *DocumentService) GetMyDocument(ctx context.Context, userID int64) (*DocumentView, error) {
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.RefreshDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newDocumentView(s.cipher, user, latest(docs)), nil
}

// UpsertPersonalData stores the provided personal fields encrypted and moves the user back to draft
func (s *DocumentService) UpsertPersonalData(ctx context.Context, userID int64, in PersonalDataInput) (*DocumentView, error) {
	values, err := in.values()
	if err != nil {
		return nil, err
	}

	var view *DocumentView
	err = s.repo.InTx(ctx, func(tx repository.Repository) error {
		user, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.Status != models.StatusDraft && user.Status != models.StatusRejected {
			return apperr.InvalidState("Personal data cannot be changed while the application is %s", user.Status)
		}

		fields := user.PersonalFields()
		for name, value := range values {
			token, err := s.cipher.Encrypt(value)
			if err != nil {
				return fmt.Errorf("encrypt %s: %w", name, err)
			}
			*fields[name] = &token
		}
		user.Status = models.StatusDraft
		user.RejectionReason = nil

		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		docs, err := s.refresh(ctx, tx, userID)
		if err != nil {
			return err
		}
		view = newDocumentView(s.cipher, user, latest(docs))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("personal data updated", zap.Int64("user_id", userID), zap.Int("fields", len(values)))
	return view, nil
}

// Submit sends complete personal data for review
func (s *DocumentService) Submit(ctx context.Context, userID int64) (*DocumentView, error) {
	var view *DocumentView
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		user, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.Status != models.StatusDraft {
			return apperr.InvalidState("Only a draft can be submitted, current status is %s", user.Status)
		}
		if missing := decryptPersonal(s.cipher, user).missingFields(); len(missing) > 0 {
			return apperr.Validation("Missing personal data: %s", strings.Join(missing, ", "))
		}

		user.Status = models.StatusPending
		user.RejectionReason = nil
		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		docs, err := s.refresh(ctx, tx, userID)
		if err != nil {
			return err
		}
		view = newDocumentView(s.cipher, user, latest(docs))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("personal data submitted", zap.Int64("user_id", userID))
	return view, nil
}

// ListMyContracts returns all documents of the user, newest first
func (s *DocumentService) ListMyContracts(ctx context.Context, userID int64) ([]DocumentView, error) {
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	docs, err := s.RefreshDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]DocumentView, 0, len(docs))
	for i := range docs {
		v := newDocumentView(s.cipher, user, &docs[i])
		v.ContractDocxURL = fmt.Sprintf("/documents/me/contract-docx/%d", docs[i].ID)
		views = append(views, *v)
	}
	return views, nil
}

// Approve accepts a pending submission
func (s *DocumentService) Approve(ctx context.Context, userID int64) (*DocumentView, error) {
	var view *DocumentView
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		user, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.Status != models.StatusPending {
			return apperr.InvalidState("Only pending applications can be approved, current status is %s", user.Status)
		}
		if missing := decryptPersonal(s.cipher, user).missingFields(); len(missing) > 0 {
			return apperr.Validation("Not enough user data to approve: %s", strings.Join(missing, ", "))
		}

		user.Status = models.StatusApproved
		user.RejectionReason = nil
		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		docs, err := s.refresh(ctx, tx, userID)
		if err != nil {
			return err
		}
		doc := latest(docs)
		if doc != nil && doc.HasAdminFields() && doc.ContractNumber == nil {
			if err := s.ensureContractNumber(ctx, tx, doc); err != nil {
				return err
			}
			if err := tx.UpdateDocument(ctx, doc); err != nil {
				return fmt.Errorf("update document: %w", err)
			}
		}

		view = newDocumentView(s.cipher, user, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("personal data approved", zap.Int64("user_id", userID))
	return view, nil
}

// Reject declines a submission and wipes personal data and the latest document's contract fields
func (s *DocumentService) Reject(ctx context.Context, userID int64, reason string) (*DocumentView, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("Rejection reason is required")
	}

	var view *DocumentView
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		user, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.Status != models.StatusPending && user.Status != models.StatusApproved {
			return apperr.InvalidState("Only pending or approved applications can be rejected, current status is %s", user.Status)
		}

		user.Status = models.StatusRejected
		user.RejectionReason = &reason
		for _, field := range user.PersonalFields() {
			*field = nil
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		docs, err := tx.GetUserDocuments(ctx, userID)
		if err != nil {
			return fmt.Errorf("load documents: %w", err)
		}
		doc := latest(docs)
		if doc != nil {
			clearDocument(doc)
			if err := tx.UpdateDocument(ctx, doc); err != nil {
				return fmt.Errorf("update document: %w", err)
			}
		}

		view = newDocumentView(s.cipher, user, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("personal data rejected", zap.Int64("user_id", userID))
	return view, nil
}

func clearDocument(doc *models.UserDocument) {
	doc.ContractNumber = nil
	doc.BikeSerial = nil
	doc.AKB1Serial = nil
	doc.AKB2Serial = nil
	doc.AKB3Serial = nil
	doc.Amount = nil
	doc.AmountText = nil
	doc.ContractText = nil
	doc.WeeksCount = nil
	doc.FilledDate = nil
	doc.EndDate = nil
	doc.Active = false
}

// AdminUpdateDocument applies contract fields to the user's latest document.
// An inactive latest document is kept as history and a new one is opened instead.
func (s *DocumentService) AdminUpdateDocument(ctx context.Context, userID int64, in AdminDocumentUpdate) (*DocumentView, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hasUpdates := in.hasUpdates()

	var view *DocumentView
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		user, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := ensureApproved(user); err != nil {
			return err
		}

		docs, err := s.refresh(ctx, tx, userID)
		if err != nil {
			return err
		}

		doc := latest(docs)
		switch {
		case doc == nil && !hasUpdates:
			return apperr.Validation("No data to create a contract")
		case doc == nil, !doc.Active && hasUpdates:
			if doc, err = tx.CreateDocument(ctx, userID); err != nil {
				return fmt.Errorf("create document: %w", err)
			}
		}

		if !hasUpdates {
			view = newDocumentView(s.cipher, user, doc)
			return nil
		}

		if err := s.applyAdminUpdate(doc, in); err != nil {
			return err
		}
		doc.EndDate, _ = Derive(doc, s.today())
		if err := s.ensureContractNumber(ctx, tx, doc); err != nil {
			return err
		}
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}

		docs, err = s.refresh(ctx, tx, userID)
		if err != nil {
			return err
		}
		if refreshed := findDocument(docs, doc.ID); refreshed != nil {
			doc = refreshed
		}
		view = newDocumentView(s.cipher, user, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("contract document updated", zap.Int64("user_id", userID))
	return view, nil
}

func (s *DocumentService) applyAdminUpdate(doc *models.UserDocument, in AdminDocumentUpdate) error {
	serials := []struct {
		value Optional[string]
		dst   **string
	}{
		{in.BikeSerial, &doc.BikeSerial},
		{in.AKB1Serial, &doc.AKB1Serial},
		{in.AKB2Serial, &doc.AKB2Serial},
		{in.AKB3Serial, &doc.AKB3Serial},
	}
	for _, f := range serials {
		if !f.value.Set {
			continue
		}
		var plain *string
		if f.value.Value != nil {
			if v := strings.TrimSpace(*f.value.Value); v != "" {
				plain = &v
			}
		}
		token, err := s.cipher.EncryptPtr(plain)
		if err != nil {
			return fmt.Errorf("encrypt serial: %w", err)
		}
		*f.dst = token
	}

	if in.Amount.Set {
		doc.Amount, doc.AmountText = nil, nil
		if in.Amount.Value != nil {
			digits, err := in.Amount.Value.normalize("amount")
			if err != nil {
				return err
			}
			if doc.Amount, err = s.cipher.EncryptPtr(&digits); err != nil {
				return fmt.Errorf("encrypt amount: %w", err)
			}
			if doc.AmountText, err = s.cipher.EncryptPtr(amountText(digits)); err != nil {
				return fmt.Errorf("encrypt amount text: %w", err)
			}
		}
	}

	if in.WeeksCount.Set {
		doc.WeeksCount = in.WeeksCount.Value
	}
	if in.FilledDate.Set {
		doc.FilledDate = nil
		if in.FilledDate.Value != nil {
			d := dateOnly(in.FilledDate.Value.Time)
			doc.FilledDate = &d
		}
	}
	return nil
}

// amountText spells digits as a Russian cardinal; nil when the value does not fit int64
func amountText(digits string) *string {
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	text := utils.RussianCardinal(n)
	return &text
}

// ensureContractNumber assigns {user_id}.{document_id}.{document count} once
func (s *DocumentService) ensureContractNumber(ctx context.Context, repo repository.Repository, doc *models.UserDocument) error {
	if doc.ContractNumber != nil {
		return nil
	}
	count, err := repo.CountUserDocuments(ctx, doc.UserID)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	number := fmt.Sprintf("%d.%d.%d", doc.UserID, doc.ID, count)
	token, err := s.cipher.Encrypt(number)
	if err != nil {
		return fmt.Errorf("encrypt contract number: %w", err)
	}
	doc.ContractNumber = &token
	return nil
}

// SignDocument marks a document signed and rebuilds the user's payment schedule
func (s *DocumentService) SignDocument(ctx context.Context, userID, documentID int64) (*DocumentView, error) {
	var view *DocumentView
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		user, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := ensureApproved(user); err != nil {
			return err
		}

		docs, err := s.refresh(ctx, tx, userID)
		if err != nil {
			return err
		}
		doc := findDocument(docs, documentID)
		if doc == nil {
			return apperr.NotFound("Document not found")
		}

		paid, err := tx.CountPaidScheduleRows(ctx, userID)
		if err != nil {
			return fmt.Errorf("count paid installments: %w", err)
		}
		if paid > 0 {
			return apperr.InvalidState("Payment schedule already has paid installments")
		}

		rows, err := BuildSchedule(doc, s.cipher.DecryptDigits(doc.Amount))
		if err != nil {
			return err
		}

		doc.Signed = true
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := tx.ReplaceSchedule(ctx, userID, rows); err != nil {
			return fmt.Errorf("replace schedule: %w", err)
		}

		view = newDocumentView(s.cipher, user, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("contract signed", zap.Int64("user_id", userID), zap.Int64("document_id", documentID))
	return view, nil
}

// ListUsers returns regular users, optionally filtered by status
func (s *DocumentService) ListUsers(ctx context.Context, status *models.Status) ([]UserSummary, error) {
	if status != nil && !status.Valid() {
		return nil, apperr.Validation("Unknown status %q", *status)
	}
	users, err := s.repo.ListUsers(ctx, models.RoleUser, status)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	summaries := make([]UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, newUserSummary(s.cipher, &users[i]))
	}
	return summaries, nil
}

func (s *DocumentService) GetUserSummary(ctx context.Context, userID int64) (*UserSummary, error) {
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	summary := newUserSummary(s.cipher, user)
	return &summary, nil
}

// GetUserDocument returns one document of an approved user
func (s *DocumentService) GetUserDocument(ctx context.Context, userID, documentID int64) (*DocumentView, error) {
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	if err := ensureApproved(user); err != nil {
		return nil, err
	}
	docs, err := s.RefreshDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}
	doc := findDocument(docs, documentID)
	if doc == nil {
		return nil, apperr.NotFound("Document not found")
	}
	return newDocumentView(s.cipher, user, doc), nil
}

// ListUserContracts returns every document of an approved user with its export link
func (s *DocumentService) ListUserContracts(ctx context.Context, userID int64) ([]DocumentView, error) {
	user, err := loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	if err := ensureApproved(user); err != nil {
		return nil, err
	}
	docs, err := s.RefreshDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]DocumentView, 0, len(docs))
	for i := range docs {
		v := newDocumentView(s.cipher, user, &docs[i])
		v.ContractDocxURL = fmt.Sprintf("/admin/users/%d/contract-docx/%d", userID, docs[i].ID)
		views = append(views, *v)
	}
	return views, nil
}

// GetSchedule returns the user's installments ordered by number
func (s *DocumentService) GetSchedule(ctx context.Context, userID int64) ([]models.ContractPayment, error) {
	if _, err := loadUser(ctx, s.repo, userID); err != nil {
		return nil, err
	}
	rows, err := s.repo.GetUserSchedule(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if rows == nil {
		rows = []models.ContractPayment{}
	}
	return rows, nil
}
