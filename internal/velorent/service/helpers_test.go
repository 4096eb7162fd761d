package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/config"
	"github.com/25x8/velorent/internal/velorent/gateway"
	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/25x8/velorent/internal/velorent/notify"
	"github.com/25x8/velorent/internal/velorent/repository"
	"github.com/25x8/velorent/internal/velorent/secure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	repo     *repository.MemoryRepository
	cipher   *secure.Cipher
	gateway  *fakeGateway
	mailer   *captureMailer
	docs     *DocumentService
	payments *PaymentService
	auth     *AuthService

	mu  sync.Mutex
	now time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := secure.GenerateKey()
	require.NoError(t, err)
	cipher, err := secure.NewCipher(key, zap.NewNop())
	require.NoError(t, err)

	env := &testEnv{
		cipher:  cipher,
		gateway: &fakeGateway{status: models.PaymentPending},
		mailer:  &captureMailer{},
		now:     time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	env.repo = repository.NewMemoryRepository().WithClock(env.clock)

	cfg := &config.Config{
		JWTSecret:        "test-secret",
		AccessTokenTTL:   time.Hour,
		MaxFailedLogins:  3,
		LoginLockout:     20 * time.Second,
		ResetCodeTTL:     15 * time.Minute,
		ResetMaxAttempts: 3,
		ResetLockout:     20 * time.Second,
	}

	env.docs = NewDocumentService(env.repo, cipher, nil, "Великий Новгород", zap.NewNop())
	env.docs.now = env.clock
	env.payments = NewPaymentService(env.repo, env.gateway, cipher, nil, config.GatewayConfig{}, zap.NewNop())
	env.payments.now = env.clock
	env.auth = NewAuthService(env.repo, cipher, env.mailer, notify.NoThrottle{}, nil, cfg, zap.NewNop())
	env.auth.now = env.clock
	return env
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func (e *testEnv) setToday(t *testing.T, day string) {
	t.Helper()
	d, err := time.Parse(dateLayout, day)
	require.NoError(t, err)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = d.Add(12 * time.Hour)
}

func (e *testEnv) createUser(t *testing.T, email string) int64 {
	t.Helper()
	id, err := e.repo.CreateUser(context.Background(), &models.User{Email: email, PasswordHash: "x"})
	require.NoError(t, err)
	return id
}

func fullPersonalData(t *testing.T) PersonalDataInput {
	t.Helper()
	var in PersonalDataInput
	require.NoError(t, json.Unmarshal([]byte(`{
		"full_name": "Ivan Petrov",
		"inn": "1234567890",
		"registration_address": "Novgorod, Lenina 1",
		"residential_address": "Novgorod, Lenina 2",
		"passport": "4510 123456",
		"phone": "+79001234567",
		"bank_account": "40817810099910004312"
	}`), &in))
	return in
}

func (e *testEnv) approvedUser(t *testing.T, email string) int64 {
	t.Helper()
	ctx := context.Background()
	id := e.createUser(t, email)
	_, err := e.docs.UpsertPersonalData(ctx, id, fullPersonalData(t))
	require.NoError(t, err)
	_, err = e.docs.Submit(ctx, id)
	require.NoError(t, err)
	_, err = e.docs.Approve(ctx, id)
	require.NoError(t, err)
	return id
}

func adminUpdate(t *testing.T, body string) AdminDocumentUpdate {
	t.Helper()
	var in AdminDocumentUpdate
	require.NoError(t, json.Unmarshal([]byte(body), &in))
	return in
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

type fakeGateway struct {
	mu       sync.Mutex
	status   string
	methodID string
	err      error
	n        int
	payments []*gateway.PaymentRequest
	refunds  []*gateway.RefundRequest
}

func (g *fakeGateway) CreatePayment(ctx context.Context, req *gateway.PaymentRequest) (*gateway.PaymentResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.payments = append(g.payments, req)
	if g.err != nil {
		return nil, g.err
	}
	g.n++
	id := fmt.Sprintf("pay-%d", g.n)
	resp := &gateway.PaymentResponse{
		ID:     id,
		Status: g.status,
		Raw:    fmt.Sprintf(`{"id":%q}`, id),
	}
	if req.Confirmation != nil {
		resp.Confirmation = &gateway.Confirmation{Type: "redirect", ConfirmationURL: "https://pay.example.com/" + id}
	}
	if g.methodID != "" {
		resp.PaymentMethod = &gateway.PaymentMethod{ID: g.methodID}
	}
	return resp, nil
}

func (g *fakeGateway) CreateRefund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refunds = append(g.refunds, req)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.RefundResponse{ID: "refund-1", Status: "succeeded", PaymentID: req.PaymentID}, nil
}

func (g *fakeGateway) lastPayment() *gateway.PaymentRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.payments) == 0 {
		return nil
	}
	return g.payments[len(g.payments)-1]
}

type sentMail struct {
	to, subject, body string
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *captureMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}
