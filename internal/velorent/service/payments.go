package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/config"
	"github.com/25x8/velorent/internal/velorent/gateway"
	"github.com/25x8/velorent/internal/velorent/metrics"
	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/25x8/velorent/internal/velorent/repository"
	"github.com/25x8/velorent/internal/velorent/secure"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const fallbackReturnURL = "https://example.com/return"

// Gateway is the payment provider used by PaymentService
type Gateway interface {
	CreatePayment(ctx context.Context, req *gateway.PaymentRequest) (*gateway.PaymentResponse, error)
	CreateRefund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResponse, error)
}

// PaymentService creates gateway payments and reconciles orders against them
type PaymentService struct {
	repo          repository.Repository
	gateway       Gateway
	cipher        *secure.Cipher
	metrics       *metrics.Metrics
	returnURL     string
	webhookSecret string
	logger        *zap.Logger
	now           func() time.Time
}

// NewPaymentService creates a new payment service
func NewPaymentService(repo repository.Repository, gw Gateway, cipher *secure.Cipher, m *metrics.Metrics, cfg config.GatewayConfig, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		repo:          repo,
		gateway:       gw,
		cipher:        cipher,
		metrics:       m,
		returnURL:     cfg.ReturnURL,
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
		now:           time.Now,
	}
}

// CreatePaymentInput is an interactive payment request
type CreatePaymentInput struct {
	OrderID           *int64           `json:"order_id"`
	SchedulePaymentID *int64           `json:"schedule_payment_id"`
	Amount            *decimal.Decimal `json:"amount"`
	Currency          string           `json:"currency"`
	Description       *string          `json:"description"`
	SavePaymentMethod bool             `json:"save_payment_method"`
	ReturnURL         *string          `json:"return_url"`
}

// AutopayChargeInput is a charge against the stored payment method
type AutopayChargeInput struct {
	OrderID           *int64           `json:"order_id"`
	SchedulePaymentID *int64           `json:"schedule_payment_id"`
	Amount            *decimal.Decimal `json:"amount"`
	Currency          string           `json:"currency"`
	Description       *string          `json:"description"`
}

// PaymentResult describes a created payment
type PaymentResult struct {
	OrderID          int64   `json:"order_id"`
	PaymentID        int64   `json:"payment_id"`
	GatewayPaymentID *string `json:"yookassa_payment_id"`
	Status           string  `json:"status"`
	ConfirmationURL  *string `json:"confirmation_url"`
}

// RecalcInput sets a new target amount for an order
type RecalcInput struct {
	TargetAmount decimal.Decimal `json:"target_amount"`
	Description  *string         `json:"description"`
}

// RecalcResult reports how the order compares to what was paid
type RecalcResult struct {
	Detail           string  `json:"detail"`
	RefundAmount     *string `json:"refund_amount,omitempty"`
	AdditionalAmount *string `json:"additional_amount,omitempty"`
	OrderStatus      string  `json:"order_status"`
}

// AutopayResult is returned by autopay toggles
type AutopayResult struct {
	Detail          string  `json:"detail"`
	PaymentMethodID *string `json:"payment_method_id,omitempty"`
}

// RefundResult describes a refund issued for an overpaid order
type RefundResult struct {
	Detail          string `json:"detail"`
	RefundID        string `json:"refund_id"`
	RefundAmount    string `json:"refund_amount"`
	GatewayStatus   string `json:"refund_status"`
	OrderStatus     string `json:"order_status"`
	SourcePaymentID int64  `json:"payment_id"`
}

// webhookEvent is the part of a gateway notification we read
type webhookEvent struct {
	Object struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PaymentMethod *struct {
			ID string `json:"id"`
		} `json:"payment_method"`
	} `json:"object"`
}

// mapOrderStatus projects a gateway payment status onto an order
func mapOrderStatus(paymentStatus string) string {
	switch paymentStatus {
	case models.PaymentPending, models.PaymentWaitingForCapture:
		return models.OrderPending
	case models.PaymentSucceeded:
		return models.OrderSucceeded
	case models.PaymentCanceled:
		return models.OrderCanceled
	default:
		return paymentStatus
	}
}

func normalizeCurrency(currency string) (string, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return models.DefaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", apperr.Validation("currency must be a 3-letter code")
	}
	return currency, nil
}

// paymentDraft is the common part of interactive and autopay charges
type paymentDraft struct {
	orderID           *int64
	scheduleID        *int64
	amount            *decimal.Decimal
	currency          string
	description       *string
	defaultDesc       string
	savePaymentMethod bool
	autopay           bool
	confirmation      *gateway.Confirmation
}

// CreatePayment starts an interactive payment with a redirect confirmation
func (s *PaymentService) CreatePayment(ctx context.Context, userID int64, in CreatePaymentInput) (*PaymentResult, error) {
	returnURL := s.returnURL
	if in.ReturnURL != nil && *in.ReturnURL != "" {
		returnURL = *in.ReturnURL
	}
	if returnURL == "" {
		returnURL = fallbackReturnURL
	}

	return s.charge(ctx, userID, paymentDraft{
		orderID:           in.OrderID,
		scheduleID:        in.SchedulePaymentID,
		amount:            in.Amount,
		currency:          in.Currency,
		description:       in.Description,
		defaultDesc:       "Order #%d",
		savePaymentMethod: in.SavePaymentMethod,
		confirmation:      &gateway.Confirmation{Type: "redirect", ReturnURL: returnURL},
	})
}

// ChargeAutopay charges the user's stored payment method without a redirect
func (s *PaymentService) ChargeAutopay(ctx context.Context, userID int64, in AutopayChargeInput) (*PaymentResult, error) {
	description := in.Description
	if description == nil {
		d := "Автоплатёж"
		description = &d
	}

	result, err := s.charge(ctx, userID, paymentDraft{
		orderID:           in.OrderID,
		scheduleID:        in.SchedulePaymentID,
		amount:            in.Amount,
		currency:          in.Currency,
		description:       description,
		defaultDesc:       "Autopay order #%d",
		savePaymentMethod: true,
		autopay:           true,
	})
	s.metrics.AutopayCharged(err == nil)
	return result, err
}

func (s *PaymentService) charge(ctx context.Context, userID int64, d paymentDraft) (*PaymentResult, error) {
	currency, err := normalizeCurrency(d.currency)
	if err != nil {
		return nil, err
	}
	if d.amount != nil && !d.amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive")
	}

	var result *PaymentResult
	err = s.repo.InTx(ctx, func(tx repository.Repository) error {
		user, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if d.autopay && (!user.AutopayEnabled || user.AutopayPaymentMethodID == nil) {
			return apperr.Validation("Autopay is not enabled")
		}

		var row *models.ContractPayment
		if d.scheduleID != nil {
			if row, err = scheduleRowForPayment(ctx, tx, userID, *d.scheduleID); err != nil {
				return err
			}
		}

		amount := d.amount
		if amount == nil && row != nil {
			amount = &row.Amount
		}
		if amount == nil {
			return apperr.Validation("amount is required")
		}

		customer := gateway.Customer{Email: user.Email}
		if phone := s.cipher.DecryptPtr(user.Phone); phone != nil {
			customer.Phone = *phone
		}
		if customer.Email == "" && customer.Phone == "" {
			return apperr.Validation("Payment receipt requires user email or phone")
		}

		order, err := resolveOrder(ctx, tx, userID, d.orderID, *amount, currency, d.description)
		if err != nil {
			return err
		}

		description := fmt.Sprintf(d.defaultDesc, order.ID)
		if d.description != nil && *d.description != "" {
			description = *d.description
		}

		req := &gateway.PaymentRequest{
			Amount:            gateway.NewAmount(*amount, currency),
			Capture:           true,
			Confirmation:      d.confirmation,
			Description:       description,
			SavePaymentMethod: d.savePaymentMethod && !d.autopay,
			Metadata: map[string]string{
				"order_id": strconv.FormatInt(order.ID, 10),
				"user_id":  strconv.FormatInt(userID, 10),
			},
			Receipt: &gateway.Receipt{
				Customer: customer,
				Items: []gateway.ReceiptItem{{
					Description:    truncateRunes(description, 128),
					Quantity:       "1.00",
					Amount:         gateway.NewAmount(*amount, currency),
					VatCode:        1,
					PaymentMode:    "full_payment",
					PaymentSubject: "service",
				}},
			},
		}
		if d.autopay {
			req.PaymentMethodID = *user.AutopayPaymentMethodID
			req.Metadata["autopay"] = "1"
		}
		if row != nil {
			req.Metadata["schedule_payment_id"] = strconv.FormatInt(row.ID, 10)
		}

		resp, err := s.gateway.CreatePayment(ctx, req)
		if err != nil {
			s.gatewayFailed("create_payment", err)
			return err
		}

		payment, err := s.storePayment(ctx, tx, user, order, *amount, currency, resp, d)
		if err != nil {
			return err
		}

		order.Status = mapOrderStatus(payment.Status)
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		if row != nil {
			row.OrderID = &order.ID
			row.PaymentID = &payment.ID
			if payment.Status == models.PaymentSucceeded {
				markPaid(row, s.now())
			}
			if err := tx.UpdateScheduleRow(ctx, row); err != nil {
				return fmt.Errorf("link schedule row: %w", err)
			}
		}

		result = &PaymentResult{
			OrderID:          order.ID,
			PaymentID:        payment.ID,
			GatewayPaymentID: payment.GatewayPaymentID,
			Status:           payment.Status,
			ConfirmationURL:  payment.ConfirmationURL,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentCreated(d.autopay)
	s.logger.Info("payment created",
		zap.Int64("user_id", userID),
		zap.Int64("order_id", result.OrderID),
		zap.Int64("payment_id", result.PaymentID),
		zap.String("status", result.Status),
		zap.Bool("autopay", d.autopay))
	return result, nil
}

func (s *PaymentService) gatewayFailed(operation string, err error) {
	e, _ := apperr.As(err)
	s.metrics.GatewayFailed(operation, e != nil && e.Retryable)
	s.logger.Error("payment gateway call failed", zap.String("operation", operation), zap.Error(err))
}

func scheduleRowForPayment(ctx context.Context, repo repository.Repository, userID, rowID int64) (*models.ContractPayment, error) {
	row, err := repo.GetScheduleRow(ctx, rowID)
	if err != nil {
		return nil, fmt.Errorf("load schedule row: %w", err)
	}
	if row == nil || row.UserID != userID {
		return nil, apperr.NotFound("Schedule payment not found")
	}
	if row.Status == models.SchedulePaid {
		return nil, apperr.InvalidState("Schedule payment is already paid")
	}
	return row, nil
}

// resolveOrder reuses the caller's order when orderID points to one, else opens a new pending order
func resolveOrder(ctx context.Context, repo repository.Repository, userID int64, orderID *int64, amount decimal.Decimal, currency string, description *string) (*models.Order, error) {
	if orderID != nil {
		order, err := repo.GetOrderByID(ctx, *orderID)
		if err != nil {
			return nil, fmt.Errorf("load order: %w", err)
		}
		if order != nil && order.UserID == userID {
			order.Amount = amount
			order.Currency = currency
			if description != nil {
				order.Description = description
			}
			return order, nil
		}
	}

	order := &models.Order{
		UserID:      userID,
		Amount:      amount,
		Currency:    currency,
		Status:      models.OrderPending,
		Description: description,
	}
	if _, err := repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

func (s *PaymentService) storePayment(ctx context.Context, tx repository.Repository, user *models.User, order *models.Order,
	amount decimal.Decimal, currency string, resp *gateway.PaymentResponse, d paymentDraft) (*models.Payment, error) {
	status := resp.Status
	if status == "" {
		status = models.PaymentPending
	}

	payment := &models.Payment{
		OrderID:           order.ID,
		UserID:            user.ID,
		Status:            status,
		Amount:            amount,
		Currency:          currency,
		SavePaymentMethod: d.savePaymentMethod,
		IsAutopay:         d.autopay,
	}
	if resp.ID != "" {
		id := resp.ID
		payment.GatewayPaymentID = &id
	}
	if resp.Confirmation != nil && resp.Confirmation.ConfirmationURL != "" {
		url := resp.Confirmation.ConfirmationURL
		payment.ConfirmationURL = &url
	}
	if resp.PaymentMethod != nil && resp.PaymentMethod.ID != "" {
		method := resp.PaymentMethod.ID
		payment.PaymentMethodID = &method
	}
	if resp.Raw != "" {
		raw := resp.Raw
		payment.RawPayload = &raw
	}

	if _, err := tx.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("Payment already registered")
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	if d.savePaymentMethod && payment.PaymentMethodID != nil {
		user.AutopayPaymentMethodID = payment.PaymentMethodID
		if err := tx.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("store payment method: %w", err)
		}
	}
	return payment, nil
}

func markPaid(row *models.ContractPayment, at time.Time) {
	row.Status = models.SchedulePaid
	if row.PaidAt == nil {
		row.PaidAt = &at
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// CheckWebhookAuth verifies the bearer secret. An unset secret disables the check.
func (s *PaymentService) CheckWebhookAuth(authorization string) error {
	if s.webhookSecret == "" {
		return nil
	}
	expected := "Bearer " + s.webhookSecret
	if subtle.ConstantTimeCompare([]byte(authorization), []byte(expected)) != 1 {
		s.metrics.WebhookProcessed("unauthorized")
		return apperr.Unauthorized("Invalid webhook token")
	}
	return nil
}

// HandleWebhook applies a gateway notification. Unknown payments are ignored.
func (s *PaymentService) HandleWebhook(ctx context.Context, authorization string, payload []byte) (string, error) {
	if err := s.CheckWebhookAuth(authorization); err != nil {
		return "", err
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.metrics.WebhookProcessed("invalid")
		return "", apperr.Validation("Invalid JSON body")
	}
	gatewayID := event.Object.ID
	if gatewayID == "" {
		s.metrics.WebhookProcessed("invalid")
		return "", apperr.Validation("Missing payment id")
	}

	ignored, duplicate := false, false
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		payment, err := tx.GetPaymentByGatewayID(ctx, gatewayID)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}
		if payment == nil {
			ignored = true
			return nil
		}

		prevStatus := payment.Status
		if event.Object.Status != "" {
			payment.Status = event.Object.Status
		}
		raw := string(payload)
		payment.RawPayload = &raw
		if pm := event.Object.PaymentMethod; pm != nil && pm.ID != "" {
			method := pm.ID
			payment.PaymentMethodID = &method
		}
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		// a redelivery must not override what Recalc set on the order
		if payment.Status == prevStatus {
			duplicate = true
			return nil
		}

		order, err := tx.GetOrderByID(ctx, payment.OrderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order != nil {
			order.Status = mapOrderStatus(payment.Status)
			if err := tx.UpdateOrder(ctx, order); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
		}

		if payment.Status != models.PaymentSucceeded {
			return nil
		}
		rows, err := tx.GetScheduleRowsByPayment(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("load schedule rows: %w", err)
		}
		for i := range rows {
			if rows[i].Status == models.SchedulePaid {
				continue
			}
			markPaid(&rows[i], s.now())
			if err := tx.UpdateScheduleRow(ctx, &rows[i]); err != nil {
				return fmt.Errorf("mark schedule row paid: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if ignored {
		s.metrics.WebhookProcessed("ignored")
		s.logger.Warn("webhook for unknown payment ignored", zap.String("gateway_payment_id", gatewayID))
		return "Payment not found, ignored", nil
	}
	if duplicate {
		s.metrics.WebhookProcessed("duplicate")
		s.logger.Info("webhook status unchanged",
			zap.String("gateway_payment_id", gatewayID),
			zap.String("status", event.Object.Status))
		return "ok", nil
	}

	s.metrics.WebhookProcessed("ok")
	s.logger.Info("webhook processed",
		zap.String("gateway_payment_id", gatewayID),
		zap.String("status", event.Object.Status))
	return "ok", nil
}

// EnableAutopay turns autopay on with an explicit, stored or last used payment method
func (s *PaymentService) EnableAutopay(ctx context.Context, userID int64, paymentMethodID *string) (*AutopayResult, error) {
	var result *AutopayResult
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		user, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		method := paymentMethodID
		if method == nil || *method == "" {
			method = user.AutopayPaymentMethodID
		}
		if method == nil || *method == "" {
			if method, err = tx.GetLatestSavedPaymentMethod(ctx, userID); err != nil {
				return fmt.Errorf("find saved payment method: %w", err)
			}
		}
		if method == nil || *method == "" {
			return apperr.Validation("No saved payment method found. Complete payment with save_payment_method=true first.")
		}

		user.AutopayEnabled = true
		user.AutopayPaymentMethodID = method
		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		result = &AutopayResult{Detail: "autopay enabled", PaymentMethodID: method}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("autopay enabled", zap.Int64("user_id", userID))
	return result, nil
}

// DisableAutopay turns autopay off and keeps the stored method
func (s *PaymentService) DisableAutopay(ctx context.Context, userID int64) (*AutopayResult, error) {
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		user, err := loadUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		user.AutopayEnabled = false
		if err := tx.UpdateUser(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("autopay disabled", zap.Int64("user_id", userID))
	return &AutopayResult{Detail: "autopay disabled"}, nil
}

func ownedOrder(ctx context.Context, repo repository.Repository, userID, orderID int64) (*models.Order, error) {
	order, err := repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil || order.UserID != userID {
		return nil, apperr.NotFound("Order not found")
	}
	return order, nil
}

// Recalc compares a new target amount with the succeeded payments of an order.
// Nothing is charged or refunded here.
func (s *PaymentService) Recalc(ctx context.Context, userID, orderID int64, in RecalcInput) (*RecalcResult, error) {
	if !in.TargetAmount.IsPositive() {
		return nil, apperr.Validation("target_amount must be positive")
	}
	target := in.TargetAmount

	var result *RecalcResult
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		order, err := ownedOrder(ctx, tx, userID, orderID)
		if err != nil {
			return err
		}
		paid, err := tx.SumSucceededPayments(ctx, orderID)
		if err != nil {
			return fmt.Errorf("sum payments: %w", err)
		}

		order.Amount = target
		switch paid.Cmp(target) {
		case 0:
			order.Status = models.OrderSucceeded
			result = &RecalcResult{Detail: "No recalculation needed"}
		case 1:
			order.Status = models.OrderRefundRequired
			delta := paid.Sub(target).StringFixed(2)
			result = &RecalcResult{Detail: "Refund required", RefundAmount: &delta}
		default:
			order.Status = models.OrderRequiresPayment
			delta := target.Sub(paid).StringFixed(2)
			result = &RecalcResult{Detail: "Additional payment required", AdditionalAmount: &delta}
		}
		result.OrderStatus = order.Status

		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order recalculated",
		zap.Int64("order_id", orderID),
		zap.String("status", result.OrderStatus))
	return result, nil
}

// GetOrder returns the caller's order with its payments, newest first
func (s *PaymentService) GetOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	order, err := ownedOrder(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.GetOrderPayments(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	order.Payments = payments
	return order, nil
}

// RefundOrder returns the overpaid part of a refund_required order through the gateway
func (s *PaymentService) RefundOrder(ctx context.Context, orderID int64) (*RefundResult, error) {
	var result *RefundResult
	err := s.repo.InTx(ctx, func(tx repository.Repository) error {
		order, err := tx.GetOrderByID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order == nil {
			return apperr.NotFound("Order not found")
		}
		if order.Status != models.OrderRefundRequired {
			return apperr.InvalidState("Order does not require a refund, current status is %s", order.Status)
		}

		paid, err := tx.SumSucceededPayments(ctx, orderID)
		if err != nil {
			return fmt.Errorf("sum payments: %w", err)
		}
		delta := paid.Sub(order.Amount)
		if !delta.IsPositive() {
			return apperr.InvalidState("Order is not overpaid")
		}

		payments, err := tx.GetOrderPayments(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load payments: %w", err)
		}
		var source *models.Payment
		for i := range payments {
			p := &payments[i]
			if p.Status == models.PaymentSucceeded && p.GatewayPaymentID != nil && p.Amount.GreaterThanOrEqual(delta) {
				source = p
				break
			}
		}
		if source == nil {
			return apperr.InvalidState("No single succeeded payment covers the refund amount")
		}

		resp, err := s.gateway.CreateRefund(ctx, &gateway.RefundRequest{
			PaymentID:   *source.GatewayPaymentID,
			Amount:      gateway.NewAmount(delta, order.Currency),
			Description: fmt.Sprintf("Refund for order #%d", order.ID),
		})
		if err != nil {
			s.gatewayFailed("create_refund", err)
			return err
		}

		order.Status = models.OrderRefunded
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		result = &RefundResult{
			Detail:          "Refund created",
			RefundID:        resp.ID,
			RefundAmount:    delta.StringFixed(2),
			GatewayStatus:   resp.Status,
			OrderStatus:     order.Status,
			SourcePaymentID: source.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("refund created",
		zap.Int64("order_id", orderID),
		zap.String("refund_id", result.RefundID),
		zap.String("amount", result.RefundAmount))
	return result, nil
}
