package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/25x8/velorent/internal/velorent/models"
	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingCharger struct {
	mu    sync.Mutex
	calls []AutopayChargeInput
	fail  map[int64]bool
}

func (c *recordingCharger) ChargeAutopay(ctx context.Context, userID int64, in AutopayChargeInput) (*PaymentResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, in)
	if c.fail[*in.SchedulePaymentID] {
		return nil, errors.New("card declined")
	}
	return &PaymentResult{PaymentID: 1, Status: models.PaymentPending}, nil
}

func enableAutopay(t *testing.T, env *testEnv, userID int64) {
	t.Helper()
	ctx := context.Background()
	user, err := env.repo.GetUserByID(ctx, userID)
	require.NoError(t, err)
	user.AutopayEnabled = true
	user.AutopayPaymentMethodID = strPtr("pm-1")
	require.NoError(t, env.repo.UpdateUser(ctx, user))
}

func TestAutopayProcessor_ProcessDue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, rows := signedSchedule(t, env)
	enableAutopay(t, env, id)

	charger := &recordingCharger{}
	p := NewAutopayProcessor(env.repo, charger, "@every 1h", zap.NewNop())
	p.now = env.clock

	// today is 2025-01-10: the first installment (01-01) and the second (01-08) are due
	charged, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, charged)
	require.Len(t, charger.calls, 2)
	assert.Equal(t, rows[0].ID, *charger.calls[0].SchedulePaymentID)
	assert.Equal(t, rows[1].ID, *charger.calls[1].SchedulePaymentID)

	env.setToday(t, "2025-01-05")
	charger.calls = nil
	charged, err = p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, charged)
}

func TestAutopayProcessor_ContinuesAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, rows := signedSchedule(t, env)
	enableAutopay(t, env, id)

	charger := &recordingCharger{fail: map[int64]bool{rows[0].ID: true}}
	p := NewAutopayProcessor(env.repo, charger, "@every 1h", zap.NewNop())
	p.now = env.clock

	charged, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, charged)
	assert.Len(t, charger.calls, 2)
}

func TestAutopayProcessor_ChargesThroughPaymentService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, rows := signedSchedule(t, env)
	enableAutopay(t, env, id)

	p := NewAutopayProcessor(env.repo, env.payments, "@every 1h", zap.NewNop())
	p.now = env.clock

	charged, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, charged)

	// rows with an in-flight payment are not charged twice
	charged, err = p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, charged)

	row, err := env.repo.GetScheduleRow(ctx, rows[0].ID)
	require.NoError(t, err)
	require.NotNil(t, row.PaymentID)
	assert.Equal(t, "pm-1", env.gateway.lastPayment().PaymentMethodID)
}

// blockingCharger parks every charge until release is closed
type blockingCharger struct {
	recordingCharger
	entered chan struct{}
	release chan struct{}
}

func (c *blockingCharger) ChargeAutopay(ctx context.Context, userID int64, in AutopayChargeInput) (*PaymentResult, error) {
	select {
	case c.entered <- struct{}{}:
	default:
	}
	<-c.release
	return c.recordingCharger.ChargeAutopay(ctx, userID, in)
}

func TestAutopayProcessor_OverlappingPassIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, _ := signedSchedule(t, env)
	enableAutopay(t, env, id)

	charger := &blockingCharger{entered: make(chan struct{}, 1), release: make(chan struct{})}
	p := NewAutopayProcessor(env.repo, charger, "@every 1h", zap.NewNop())
	p.now = env.clock

	done := make(chan int, 1)
	go func() {
		charged, err := p.ProcessDue(ctx)
		assert.NoError(t, err)
		done <- charged
	}()
	<-charger.entered

	charged, err := p.ProcessDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, charged)

	close(charger.release)
	assert.Equal(t, 2, <-done)
	assert.Len(t, charger.calls, 2)
}

func TestCronLogger_SkipIfStillRunning(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	cl := cronLogger{zap.New(core).Sugar()}

	started := make(chan struct{})
	release := make(chan struct{})
	runs := 0
	job := cron.NewChain(cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(func() {
		runs++
		close(started)
		<-release
	}))

	finished := make(chan struct{})
	go func() {
		job.Run()
		close(finished)
	}()
	<-started
	job.Run()
	close(release)
	<-finished

	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, logs.FilterMessage("cron: skip").Len())

	cl.Error(errors.New("boom"), "panic", "job", "autopay")
	entries := logs.FilterMessage("cron: panic").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
}

func TestAutopayProcessor_StartStop(t *testing.T) {
	env := newTestEnv(t)

	bad := NewAutopayProcessor(env.repo, &recordingCharger{}, "not a schedule", zap.NewNop())
	assert.Error(t, bad.Start())

	p := NewAutopayProcessor(env.repo, &recordingCharger{}, "@every 1h", zap.NewNop())
	require.NoError(t, p.Start())
	p.Stop()
}
