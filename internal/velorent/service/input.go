package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/25x8/velorent/internal/velorent/utils"
)

// Optional distinguishes an absent JSON field from an explicit null
type Optional[T any] struct {
	Set   bool
	Value *T
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Some returns a set Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a set Optional holding null
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// Digits accepts a JSON number or string and keeps its raw text.
// Normalization happens during validation so errors can name the field.
type Digits string

func (d *Digits) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = Digits(s)
		return nil
	}
	*d = Digits(b)
	return nil
}

func (d Digits) normalize(field string) (string, error) {
	n, ok := utils.NormalizeDigits(string(d))
	if !ok {
		return "", apperr.Validation("%s must contain only digits", field)
	}
	return n, nil
}

// Date is a calendar date in YYYY-MM-DD form
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

// dateOnly drops the clock part, keeping the calendar date in UTC
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PersonalDataInput is a user's personal data submission. Nil fields are left unchanged.
type PersonalDataInput struct {
	FullName            *string `json:"full_name"`
	INN                 *Digits `json:"inn"`
	RegistrationAddress *string `json:"registration_address"`
	ResidentialAddress  *string `json:"residential_address"`
	Passport            *Digits `json:"passport"`
	Phone               *string `json:"phone"`
	BankAccount         *Digits `json:"bank_account"`
}

// values validates the provided fields and returns them normalized by field name
func (in PersonalDataInput) values() (map[string]string, error) {
	out := make(map[string]string)

	text := map[string]*string{
		models.FieldFullName:            in.FullName,
		models.FieldRegistrationAddress: in.RegistrationAddress,
		models.FieldResidentialAddress:  in.ResidentialAddress,
	}
	for _, name := range models.PersonalFieldNames {
		v, ok := text[name]
		if !ok || v == nil {
			continue
		}
		s := strings.TrimSpace(*v)
		if s == "" {
			return nil, apperr.Validation("%s must not be empty", name)
		}
		out[name] = s
	}

	digits := map[string]*Digits{
		models.FieldINN:         in.INN,
		models.FieldPassport:    in.Passport,
		models.FieldBankAccount: in.BankAccount,
	}
	for _, name := range models.PersonalFieldNames {
		v, ok := digits[name]
		if !ok || v == nil {
			continue
		}
		n, err := v.normalize(name)
		if err != nil {
			return nil, err
		}
		out[name] = n
	}

	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		if !strings.HasPrefix(phone, "+") {
			return nil, apperr.Validation("phone must start with '+'")
		}
		if !utils.IsPhone(phone) {
			return nil, apperr.Validation("phone must contain only digits after '+'")
		}
		out[models.FieldPhone] = phone
	}

	return out, nil
}

// AdminDocumentUpdate carries contract fields set by an admin. Explicit nulls clear fields.
type AdminDocumentUpdate struct {
	ContractNumber Optional[string] `json:"contract_number"`
	BikeSerial     Optional[string] `json:"bike_serial"`
	AKB1Serial     Optional[string] `json:"akb1_serial"`
	AKB2Serial     Optional[string] `json:"akb2_serial"`
	AKB3Serial     Optional[string] `json:"akb3_serial"`
	Amount         Optional[Digits] `json:"amount"`
	AmountText     Optional[string] `json:"amount_text"`
	WeeksCount     Optional[int]    `json:"weeks_count"`
	FilledDate     Optional[Date]   `json:"filled_date"`
	EndDate        Optional[Date]   `json:"end_date"`
}

func (in AdminDocumentUpdate) validate() error {
	if in.ContractNumber.Value != nil {
		return apperr.Validation("contract_number is generated automatically and must not be passed")
	}
	if in.AmountText.Value != nil {
		return apperr.Validation("amount_text is generated automatically and must not be passed")
	}
	if in.EndDate.Value != nil {
		return apperr.Validation("end_date is generated automatically and must not be passed")
	}
	if in.WeeksCount.Value != nil && *in.WeeksCount.Value < 1 {
		return apperr.Validation("weeks_count must be positive")
	}
	if in.Amount.Value != nil {
		if _, err := in.Amount.Value.normalize("amount"); err != nil {
			return err
		}
	}
	return nil
}

// hasUpdates reports whether any editable field is present
func (in AdminDocumentUpdate) hasUpdates() bool {
	return in.BikeSerial.Set || in.AKB1Serial.Set || in.AKB2Serial.Set || in.AKB3Serial.Set ||
		in.Amount.Set || in.WeeksCount.Set || in.FilledDate.Set
}
