package service

import (
	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/25x8/velorent/internal/velorent/secure"
)

// PersonalData is the decrypted identity of a user
type PersonalData struct {
	FullName            *string `json:"full_name"`
	INN                 *string `json:"inn"`
	RegistrationAddress *string `json:"registration_address"`
	ResidentialAddress  *string `json:"residential_address"`
	Passport            *string `json:"passport"`
	Phone               *string `json:"phone"`
	BankAccount         *string `json:"bank_account"`
}

// DocumentView combines a user's personal data with one of their documents
type DocumentView struct {
	PersonalData
	Status          models.Status `json:"status"`
	RejectionReason *string       `json:"rejection_reason"`

	ID             *int64  `json:"id"`
	ContractNumber *string `json:"contract_number"`
	BikeSerial     *string `json:"bike_serial"`
	AKB1Serial     *string `json:"akb1_serial"`
	AKB2Serial     *string `json:"akb2_serial"`
	AKB3Serial     *string `json:"akb3_serial"`
	Amount         *string `json:"amount"`
	AmountText     *string `json:"amount_text"`
	WeeksCount     *int    `json:"weeks_count"`
	FilledDate     *string `json:"filled_date"`
	EndDate        *string `json:"end_date"`
	Active         bool    `json:"active"`
	Signed         bool    `json:"signed"`
	ContractText   *string `json:"contract_text"`

	ContractDocxURL string `json:"contract_docx_url,omitempty"`
}

// UserSummary is the admin listing row of a user
type UserSummary struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	PersonalData
	Role            string        `json:"role"`
	Status          models.Status `json:"status"`
	RejectionReason *string       `json:"rejection_reason"`
}

// Profile is returned by the current-user endpoint
type Profile struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	PersonalData
	Status         models.Status `json:"status"`
	AutopayEnabled bool          `json:"autopay_enabled"`
}

func decryptPersonal(c *secure.Cipher, u *models.User) PersonalData {
	return PersonalData{
		FullName:            c.DecryptPtr(u.FullName),
		INN:                 c.DecryptDigits(u.INN),
		RegistrationAddress: c.DecryptPtr(u.RegistrationAddress),
		ResidentialAddress:  c.DecryptPtr(u.ResidentialAddress),
		Passport:            c.DecryptDigits(u.Passport),
		Phone:               c.DecryptPtr(u.Phone),
		BankAccount:         c.DecryptDigits(u.BankAccount),
	}
}

// missingFields lists personal fields that are empty after decryption
func (p PersonalData) missingFields() []string {
	values := map[string]*string{
		models.FieldFullName:            p.FullName,
		models.FieldINN:                 p.INN,
		models.FieldRegistrationAddress: p.RegistrationAddress,
		models.FieldResidentialAddress:  p.ResidentialAddress,
		models.FieldPassport:            p.Passport,
		models.FieldPhone:               p.Phone,
		models.FieldBankAccount:         p.BankAccount,
	}
	var missing []string
	for _, name := range models.PersonalFieldNames {
		if v := values[name]; v == nil || *v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func newDocumentView(c *secure.Cipher, u *models.User, doc *models.UserDocument) *DocumentView {
	v := &DocumentView{
		PersonalData:    decryptPersonal(c, u),
		Status:          u.Status,
		RejectionReason: u.RejectionReason,
	}
	if doc == nil {
		return v
	}

	id := doc.ID
	v.ID = &id
	v.ContractNumber = c.DecryptPtr(doc.ContractNumber)
	v.BikeSerial = c.DecryptPtr(doc.BikeSerial)
	v.AKB1Serial = c.DecryptPtr(doc.AKB1Serial)
	v.AKB2Serial = c.DecryptPtr(doc.AKB2Serial)
	v.AKB3Serial = c.DecryptPtr(doc.AKB3Serial)
	v.Amount = c.DecryptDigits(doc.Amount)
	v.AmountText = c.DecryptPtr(doc.AmountText)
	v.WeeksCount = doc.WeeksCount
	v.FilledDate = formatDate(doc.FilledDate)
	v.EndDate = formatDate(doc.EndDate)
	v.Active = doc.Active
	v.Signed = doc.Signed
	v.ContractText = doc.ContractText
	return v
}

func newUserSummary(c *secure.Cipher, u *models.User) UserSummary {
	return UserSummary{
		ID:              u.ID,
		Email:           u.Email,
		PersonalData:    decryptPersonal(c, u),
		Role:            u.Role,
		Status:          u.Status,
		RejectionReason: u.RejectionReason,
	}
}
