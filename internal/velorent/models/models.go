package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a user's personal data submission
type Status string

// Personal data statuses
const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered user. Personal fields hold ciphertext.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`

	FullName            *string `json:"-"`
	INN                 *string `json:"-"`
	RegistrationAddress *string `json:"-"`
	ResidentialAddress  *string `json:"-"`
	Passport            *string `json:"-"`
	Phone               *string `json:"-"`
	BankAccount         *string `json:"-"`

	Status          Status  `json:"status"`
	RejectionReason *string `json:"rejection_reason"`

	FailedLoginAttempts int        `json:"-"`
	LastFailedLoginAt   *time.Time `json:"-"`

	AutopayEnabled         bool    `json:"autopay_enabled"`
	AutopayPaymentMethodID *string `json:"-"`
}

// PersonalFields returns pointers to the stored personal fields keyed by name.
func (u *User) PersonalFields() map[string]**string {
	return map[string]**string{
		FieldFullName:            &u.FullName,
		FieldINN:                 &u.INN,
		FieldRegistrationAddress: &u.RegistrationAddress,
		FieldResidentialAddress:  &u.ResidentialAddress,
		FieldPassport:            &u.Passport,
		FieldPhone:               &u.Phone,
		FieldBankAccount:         &u.BankAccount,
	}
}

// Personal field names
const (
	FieldFullName            = "full_name"
	FieldINN                 = "inn"
	FieldRegistrationAddress = "registration_address"
	FieldResidentialAddress  = "residential_address"
	FieldPassport            = "passport"
	FieldPhone               = "phone"
	FieldBankAccount         = "bank_account"
)

// PersonalFieldNames lists personal fields in display order
var PersonalFieldNames = []string{
	FieldFullName,
	FieldINN,
	FieldRegistrationAddress,
	FieldResidentialAddress,
	FieldPassport,
	FieldPhone,
	FieldBankAccount,
}

// UserDocument is one contract version of a user. Admin fields hold ciphertext.
type UserDocument struct {
	ID     int64 `json:"id"`
	UserID int64 `json:"user_id"`

	ContractNumber *string `json:"-"`
	BikeSerial     *string `json:"-"`
	AKB1Serial     *string `json:"-"`
	AKB2Serial     *string `json:"-"`
	AKB3Serial     *string `json:"-"`
	Amount         *string `json:"-"`
	AmountText     *string `json:"-"`

	WeeksCount   *int       `json:"weeks_count"`
	FilledDate   *time.Time `json:"filled_date"`
	EndDate      *time.Time `json:"end_date"`
	Active       bool       `json:"active"`
	Signed       bool       `json:"signed"`
	ContractText *string    `json:"contract_text"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// HasAdminFields reports whether any contract field was filled by an admin
func (d *UserDocument) HasAdminFields() bool {
	return d.BikeSerial != nil || d.AKB1Serial != nil || d.AKB2Serial != nil ||
		d.AKB3Serial != nil || d.Amount != nil || d.WeeksCount != nil || d.FilledDate != nil
}

// PasswordResetRequest is a one-time code issued to a user
type PasswordResetRequest struct {
	ID          int64
	UserID      int64
	Code        string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Attempts    int
	LockedUntil *time.Time
	IsUsed      bool
}

// Order aggregates payment attempts
type Order struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	Description *string         `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Payments    []Payment       `json:"payments"`
}

// Payment is a single gateway payment attempt
type Payment struct {
	ID                int64           `json:"id"`
	OrderID           int64           `json:"order_id"`
	UserID            int64           `json:"user_id"`
	GatewayPaymentID  *string         `json:"yookassa_payment_id"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ConfirmationURL   *string         `json:"confirmation_url"`
	PaymentMethodID   *string         `json:"payment_method_id"`
	SavePaymentMethod bool            `json:"save_payment_method"`
	IsAutopay         bool            `json:"is_autopay"`
	RawPayload        *string         `json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"-"`
}

// ContractPayment is one weekly installment of a signed contract
type ContractPayment struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	DocumentID    int64           `json:"document_id"`
	PaymentNumber int             `json:"payment_number"`
	DueDate       time.Time       `json:"due_date"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	OrderID       *int64          `json:"order_id"`
	PaymentID     *int64          `json:"payment_id"`
	PaidAt        *time.Time      `json:"paid_at"`
	CreatedAt     time.Time       `json:"-"`
	UpdatedAt     time.Time       `json:"-"`
}

// Gateway payment statuses
const (
	PaymentPending           = "pending"
	PaymentWaitingForCapture = "waiting_for_capture"
	PaymentSucceeded         = "succeeded"
	PaymentCanceled          = "canceled"
)

// Order statuses beyond the mirrored payment statuses
const (
	OrderPending         = "pending"
	OrderSucceeded       = "succeeded"
	OrderCanceled        = "canceled"
	OrderRefundRequired  = "refund_required"
	OrderRequiresPayment = "requires_payment"
	OrderRefunded        = "refunded"
)

// Schedule row statuses
const (
	SchedulePending = "pending"
	SchedulePaid    = "paid"
)

// DefaultCurrency is used when a request omits currency
const DefaultCurrency = "RUB"
