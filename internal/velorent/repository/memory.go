package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/shopspring/decimal"
)

type memState struct {
	lastID    int64
	users     map[int64]models.User
	documents map[int64]models.UserDocument
	resets    map[int64]models.PasswordResetRequest
	orders    map[int64]models.Order
	payments  map[int64]models.Payment
	schedule  map[int64]models.ContractPayment
}

func newMemState() *memState {
	return &memState{
		users:     make(map[int64]models.User),
		documents: make(map[int64]models.UserDocument),
		resets:    make(map[int64]models.PasswordResetRequest),
		orders:    make(map[int64]models.Order),
		payments:  make(map[int64]models.Payment),
		schedule:  make(map[int64]models.ContractPayment),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	c.lastID = s.lastID
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	for k, v := range s.resets {
		c.resets[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.schedule {
		c.schedule[k] = v
	}
	return c
}

func (s *memState) nextID() int64 {
	s.lastID++
	return s.lastID
}

// MemoryRepository is an in-process Repository used in development and tests.
// Transactions are serialized and applied atomically on commit.
type MemoryRepository struct {
	mu    *sync.Mutex
	state *memState
	inTx  bool
	now   func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		mu:    &sync.Mutex{},
		state: newMemState(),
		now:   time.Now,
	}
}

// WithClock replaces the clock used for created_at and updated_at stamps
func (r *MemoryRepository) WithClock(now func() time.Time) *MemoryRepository {
	r.now = now
	return r
}

// lock guards single operations outside a transaction; InTx holds the lock itself
func (r *MemoryRepository) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

func (r *MemoryRepository) InTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &MemoryRepository{mu: r.mu, state: r.state.clone(), inTx: true, now: r.now}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.state = tx.state
	return nil
}

func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) (int64, error) {
	defer r.lock()()

	for _, u := range r.state.users {
		if strings.EqualFold(u.Email, user.Email) {
			return 0, ErrDuplicate
		}
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	if user.Status == "" {
		user.Status = models.StatusDraft
	}
	user.ID = r.state.nextID()
	user.CreatedAt = r.now()
	r.state.users[user.ID] = *user
	return user.ID, nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.lock()()

	for _, u := range r.state.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	defer r.lock()()

	u, ok := r.state.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryRepository) ListUsers(ctx context.Context, role string, status *models.Status) ([]models.User, error) {
	defer r.lock()()

	var users []models.User
	for _, u := range r.state.users {
		if role != "" && u.Role != role {
			continue
		}
		if status != nil && u.Status != *status {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *MemoryRepository) UpdateUser(ctx context.Context, user *models.User) error {
	defer r.lock()()

	if _, ok := r.state.users[user.ID]; !ok {
		return errNotFound
	}
	r.state.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) UpdateLoginState(ctx context.Context, userID int64, attempts int, lastFailedAt *time.Time) error {
	defer r.lock()()

	u, ok := r.state.users[userID]
	if !ok {
		return errNotFound
	}
	u.FailedLoginAttempts = attempts
	u.LastFailedLoginAt = nil
	if lastFailedAt != nil {
		t := *lastFailedAt
		u.LastFailedLoginAt = &t
	}
	r.state.users[userID] = u
	return nil
}

func (r *MemoryRepository) CreateDocument(ctx context.Context, userID int64) (*models.UserDocument, error) {
	defer r.lock()()

	doc := models.UserDocument{
		ID:        r.state.nextID(),
		UserID:    userID,
		CreatedAt: r.now(),
	}
	r.state.documents[doc.ID] = doc
	return &doc, nil
}

func (r *MemoryRepository) GetUserDocuments(ctx context.Context, userID int64) ([]models.UserDocument, error) {
	defer r.lock()()

	var docs []models.UserDocument
	for _, d := range r.state.documents {
		if d.UserID == userID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID > docs[j].ID
	})
	return docs, nil
}

func (r *MemoryRepository) ListDocuments(ctx context.Context) ([]models.UserDocument, error) {
	defer r.lock()()

	docs := make([]models.UserDocument, 0, len(r.state.documents))
	for _, d := range r.state.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (r *MemoryRepository) CountUserDocuments(ctx context.Context, userID int64) (int, error) {
	defer r.lock()()

	n := 0
	for _, d := range r.state.documents {
		if d.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) UpdateDocument(ctx context.Context, doc *models.UserDocument) error {
	defer r.lock()()

	if _, ok := r.state.documents[doc.ID]; !ok {
		return errNotFound
	}
	now := r.now()
	doc.UpdatedAt = &now
	r.state.documents[doc.ID] = *doc
	return nil
}

func (r *MemoryRepository) CreateResetRequest(ctx context.Context, req *models.PasswordResetRequest) (int64, error) {
	defer r.lock()()

	req.ID = r.state.nextID()
	r.state.resets[req.ID] = *req
	return req.ID, nil
}

func (r *MemoryRepository) InvalidateResetRequests(ctx context.Context, userID int64) error {
	defer r.lock()()

	for id, req := range r.state.resets {
		if req.UserID == userID && !req.IsUsed {
			req.IsUsed = true
			r.state.resets[id] = req
		}
	}
	return nil
}

func (r *MemoryRepository) GetLatestResetRequest(ctx context.Context, userID int64) (*models.PasswordResetRequest, error) {
	defer r.lock()()

	var latest *models.PasswordResetRequest
	for _, req := range r.state.resets {
		if req.UserID != userID || req.IsUsed {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) ||
			(req.CreatedAt.Equal(latest.CreatedAt) && req.ID > latest.ID) {
			req := req
			latest = &req
		}
	}
	return latest, nil
}

func (r *MemoryRepository) UpdateResetRequest(ctx context.Context, req *models.PasswordResetRequest) error {
	defer r.lock()()

	if _, ok := r.state.resets[req.ID]; !ok {
		return errNotFound
	}
	r.state.resets[req.ID] = *req
	return nil
}

func (r *MemoryRepository) CreateOrder(ctx context.Context, order *models.Order) (int64, error) {
	defer r.lock()()

	order.ID = r.state.nextID()
	order.CreatedAt = r.now()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	stored.Payments = nil
	r.state.orders[order.ID] = stored
	return order.ID, nil
}

func (r *MemoryRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	defer r.lock()()

	o, ok := r.state.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (r *MemoryRepository) UpdateOrder(ctx context.Context, order *models.Order) error {
	defer r.lock()()

	if _, ok := r.state.orders[order.ID]; !ok {
		return errNotFound
	}
	order.UpdatedAt = r.now()
	stored := *order
	stored.Payments = nil
	r.state.orders[order.ID] = stored
	return nil
}

func (r *MemoryRepository) CreatePayment(ctx context.Context, payment *models.Payment) (int64, error) {
	defer r.lock()()

	if payment.GatewayPaymentID != nil {
		for _, p := range r.state.payments {
			if p.GatewayPaymentID != nil && *p.GatewayPaymentID == *payment.GatewayPaymentID {
				return 0, ErrDuplicate
			}
		}
	}
	payment.ID = r.state.nextID()
	payment.CreatedAt = r.now()
	payment.UpdatedAt = payment.CreatedAt
	r.state.payments[payment.ID] = *payment
	return payment.ID, nil
}

func (r *MemoryRepository) GetPaymentByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	defer r.lock()()

	for _, p := range r.state.payments {
		if p.GatewayPaymentID != nil && *p.GatewayPaymentID == gatewayID {
			return &p, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	defer r.lock()()

	if _, ok := r.state.payments[payment.ID]; !ok {
		return errNotFound
	}
	payment.UpdatedAt = r.now()
	r.state.payments[payment.ID] = *payment
	return nil
}

func (r *MemoryRepository) GetOrderPayments(ctx context.Context, orderID int64) ([]models.Payment, error) {
	defer r.lock()()

	var payments []models.Payment
	for _, p := range r.state.payments {
		if p.OrderID == orderID {
			payments = append(payments, p)
		}
	}
	sortPaymentsNewestFirst(payments)
	return payments, nil
}

func (r *MemoryRepository) SumSucceededPayments(ctx context.Context, orderID int64) (decimal.Decimal, error) {
	defer r.lock()()

	sum := decimal.Zero
	for _, p := range r.state.payments {
		if p.OrderID == orderID && p.Status == models.PaymentSucceeded {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r *MemoryRepository) GetLatestSavedPaymentMethod(ctx context.Context, userID int64) (*string, error) {
	defer r.lock()()

	var payments []models.Payment
	for _, p := range r.state.payments {
		if p.UserID == userID && p.Status == models.PaymentSucceeded && p.PaymentMethodID != nil {
			payments = append(payments, p)
		}
	}
	if len(payments) == 0 {
		return nil, nil
	}
	sortPaymentsNewestFirst(payments)
	method := *payments[0].PaymentMethodID
	return &method, nil
}

func sortPaymentsNewestFirst(payments []models.Payment) {
	sort.Slice(payments, func(i, j int) bool {
		if !payments[i].CreatedAt.Equal(payments[j].CreatedAt) {
			return payments[i].CreatedAt.After(payments[j].CreatedAt)
		}
		return payments[i].ID > payments[j].ID
	})
}

func (r *MemoryRepository) ReplaceSchedule(ctx context.Context, userID int64, rows []models.ContractPayment) error {
	defer r.lock()()

	for id, row := range r.state.schedule {
		if row.UserID == userID {
			delete(r.state.schedule, id)
		}
	}
	now := r.now()
	for i := range rows {
		rows[i].ID = r.state.nextID()
		rows[i].UserID = userID
		rows[i].CreatedAt = now
		rows[i].UpdatedAt = now
		r.state.schedule[rows[i].ID] = rows[i]
	}
	return nil
}

func (r *MemoryRepository) GetUserSchedule(ctx context.Context, userID int64) ([]models.ContractPayment, error) {
	defer r.lock()()

	return r.filterSchedule(func(row models.ContractPayment) bool { return row.UserID == userID }), nil
}

func (r *MemoryRepository) GetScheduleRow(ctx context.Context, id int64) (*models.ContractPayment, error) {
	defer r.lock()()

	row, ok := r.state.schedule[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (r *MemoryRepository) GetScheduleRowsByPayment(ctx context.Context, paymentID int64) ([]models.ContractPayment, error) {
	defer r.lock()()

	return r.filterSchedule(func(row models.ContractPayment) bool {
		return row.PaymentID != nil && *row.PaymentID == paymentID
	}), nil
}

func (r *MemoryRepository) UpdateScheduleRow(ctx context.Context, row *models.ContractPayment) error {
	defer r.lock()()

	if _, ok := r.state.schedule[row.ID]; !ok {
		return errNotFound
	}
	row.UpdatedAt = r.now()
	r.state.schedule[row.ID] = *row
	return nil
}

func (r *MemoryRepository) CountPaidScheduleRows(ctx context.Context, userID int64) (int, error) {
	defer r.lock()()

	return len(r.filterSchedule(func(row models.ContractPayment) bool {
		return row.UserID == userID && row.Status == models.SchedulePaid
	})), nil
}

func (r *MemoryRepository) ListDueAutopayRows(ctx context.Context, asOf time.Time) ([]models.ContractPayment, error) {
	defer r.lock()()

	rows := r.filterSchedule(func(row models.ContractPayment) bool {
		if row.Status != models.SchedulePending || row.DueDate.After(asOf) {
			return false
		}
		u, ok := r.state.users[row.UserID]
		if !ok || !u.AutopayEnabled || u.AutopayPaymentMethodID == nil {
			return false
		}
		if row.PaymentID != nil {
			if p, ok := r.state.payments[*row.PaymentID]; ok && p.Status != models.PaymentCanceled {
				return false
			}
		}
		return true
	})
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DueDate.Before(rows[j].DueDate) })
	return rows, nil
}

// filterSchedule expects the caller to hold the lock
func (r *MemoryRepository) filterSchedule(keep func(models.ContractPayment) bool) []models.ContractPayment {
	var rows []models.ContractPayment
	for _, row := range r.state.schedule {
		if keep(row) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PaymentNumber != rows[j].PaymentNumber {
			return rows[i].PaymentNumber < rows[j].PaymentNumber
		}
		return rows[i].ID < rows[j].ID
	})
	return rows
}
