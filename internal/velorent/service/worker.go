package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/25x8/velorent/internal/velorent/repository"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// AutopayCharger charges one installment against a stored payment method
type AutopayCharger interface {
	ChargeAutopay(ctx context.Context, userID int64, in AutopayChargeInput) (*PaymentResult, error)
}

// AutopayProcessor charges due installments in the background
type AutopayProcessor struct {
	repo    repository.Repository
	charger AutopayCharger
	logger  *zap.Logger
	now     func() time.Time
	spec    string

	// held for the duration of a pass
	running sync.Mutex

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAutopayProcessor creates a new autopay processor running on a cron spec
func NewAutopayProcessor(repo repository.Repository, charger AutopayCharger, spec string, logger *zap.Logger) *AutopayProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{logger.Sugar()}
	return &AutopayProcessor{
		repo:    repo,
		charger: charger,
		logger:  logger,
		now:     time.Now,
		spec:    spec,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// cronLogger routes cron's own messages to zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

// Start schedules the processor
func (p *AutopayProcessor) Start() error {
	_, err := p.cron.AddFunc(p.spec, func() {
		p.wg.Add(1)
		defer p.wg.Done()
		if _, err := p.ProcessDue(p.ctx); err != nil {
			p.logger.Error("autopay run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule autopay %q: %w", p.spec, err)
	}
	p.cron.Start()
	p.logger.Info("autopay processor started", zap.String("schedule", p.spec))
	return nil
}

// Stop stops the processor and waits for a running pass to finish
func (p *AutopayProcessor) Stop() {
	p.cancel()
	<-p.cron.Stop().Done()
	p.wg.Wait()
}

// ProcessDue charges every pending installment due today or earlier.
// Failures are logged per row and do not stop the pass. A call made while
// another pass is running returns immediately with nothing charged.
func (p *AutopayProcessor) ProcessDue(ctx context.Context) (int, error) {
	if !p.running.TryLock() {
		p.logger.Warn("autopay pass already running, skipped")
		return 0, nil
	}
	defer p.running.Unlock()

	rows, err := p.repo.ListDueAutopayRows(ctx, dateOnly(p.now()))
	if err != nil {
		return 0, fmt.Errorf("list due installments: %w", err)
	}

	charged := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return charged, ctx.Err()
		}

		rowID := row.ID
		result, err := p.charger.ChargeAutopay(ctx, row.UserID, AutopayChargeInput{
			OrderID:           row.OrderID,
			SchedulePaymentID: &rowID,
		})
		if err != nil {
			p.logger.Error("autopay charge failed",
				zap.Int64("user_id", row.UserID),
				zap.Int64("schedule_payment_id", row.ID),
				zap.Error(err))
			continue
		}

		charged++
		p.logger.Info("autopay charged",
			zap.Int64("user_id", row.UserID),
			zap.Int64("schedule_payment_id", row.ID),
			zap.Int64("payment_id", result.PaymentID),
			zap.String("status", result.Status))
	}
	return charged, nil
}
