package services

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/config"
	"ledger-service/internal/models"
	"ledger-service/internal/tasks"
)

const sweepBatch = 500

// SweepService finds gateway transactions stuck in pending and queues them
// for re-verification.
type SweepService struct {
	DB     *gorm.DB
	Config *config.Config
	Log    *zap.Logger
	Tasks  tasks.Enqueuer
	Banks  *BankService
}

func NewSweepService(db *gorm.DB, cfg *config.Config, log *zap.Logger, enqueuer tasks.Enqueuer, banks *BankService) *SweepService {
	return &SweepService{DB: db, Config: cfg, Log: log, Tasks: enqueuer, Banks: banks}
}

// SweepPending queues every pending gateway transaction older than the
// pending TTL and returns how many were queued.
func (s *SweepService) SweepPending(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.Config.Ledger.PendingTTL)
	settleable := make([]models.TransactionType, 0, len(models.TransactionTypes))
	for _, t := range models.TransactionTypes {
		if t.GatewaySettleable() {
			settleable = append(settleable, t)
		}
	}

	var refs []string
	err := s.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("status = ? AND created_at < ?", models.TransactionPending, cutoff).
		Where("fund_source IN ?", []models.FundSource{models.FundSourceBankAccount, models.FundSourceCard}).
		Where("type IN ?", settleable).
		Order("id").
		Limit(sweepBatch).
		Pluck("reference", &refs).Error
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, ref := range refs {
		task, err := tasks.NewReverifyTransactionTask(tasks.ReverifyPayload{Reference: ref})
		if err != nil {
			return queued, err
		}
		_, err = s.Tasks.EnqueueContext(ctx, task)
		switch {
		case err == nil:
			queued++
		case errors.Is(err, asynq.ErrTaskIDConflict), errors.Is(err, asynq.ErrDuplicateTask):
			// still queued from an earlier sweep
		default:
			s.Log.Warn("enqueue reverify", zap.String("reference", ref), zap.Error(err))
		}
	}
	if len(refs) > 0 {
		s.Log.Info("pending sweep", zap.Int("found", len(refs)), zap.Int("queued", queued))
	}
	return queued, nil
}

// StartScheduler registers the sweep and the bank list refresh on a cron
// scheduler and starts it. The caller stops the returned scheduler on shutdown.
func (s *SweepService) StartScheduler() (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddFunc(s.Config.Ledger.SweepSchedule, func() {
		if _, err := s.SweepPending(context.Background()); err != nil {
			s.Log.Error("pending sweep failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	if s.Banks != nil {
		if _, err := c.AddFunc(s.Config.Ledger.BankRefreshSchedule, func() {
			if _, err := s.Banks.RefreshBanks(context.Background(), ""); err != nil {
				s.Log.Error("bank refresh failed", zap.Error(err))
			}
		}); err != nil {
			return nil, err
		}
	}
	c.Start()
	s.Log.Info("scheduler started",
		zap.String("sweep", s.Config.Ledger.SweepSchedule),
		zap.String("bank_refresh", s.Config.Ledger.BankRefreshSchedule))
	return c, nil
}
