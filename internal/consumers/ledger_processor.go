package consumers

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/models"
	"ledger-service/internal/services"
	"ledger-service/internal/tasks"
)

// Mailer delivers transaction notices to members.
type Mailer interface {
	SendTransactionNotice(ctx context.Context, user *models.User, notice tasks.NotificationPayload) error
}

// LogMailer writes notices to the log. Used until a mail provider is configured.
type LogMailer struct {
	Log *zap.Logger
}

func (m LogMailer) SendTransactionNotice(_ context.Context, user *models.User, notice tasks.NotificationPayload) error {
	m.Log.Info("transaction notice",
		zap.String("email", user.Email),
		zap.String("reference", notice.Reference),
		zap.String("type", notice.Type),
		zap.String("status", notice.Status),
		zap.String("amount", notice.Amount),
		zap.String("currency", notice.Currency),
	)
	return nil
}

type LedgerProcessor struct {
	DB             *gorm.DB
	Log            *zap.Logger
	Reconciliation *services.ReconciliationService
	Bonus          *services.BonusService
	Mailer         Mailer
}

func NewLedgerProcessor(db *gorm.DB, log *zap.Logger, recon *services.ReconciliationService, bonus *services.BonusService, mailer Mailer) *LedgerProcessor {
	if mailer == nil {
		mailer = LogMailer{Log: log}
	}
	return &LedgerProcessor{
		DB:             db,
		Log:            log,
		Reconciliation: recon,
		Bonus:          bonus,
		Mailer:         mailer,
	}
}

// ProcessNotification loads the member and hands the notice to the mailer.
// Notices for users the ledger does not know are dropped.
func (p *LedgerProcessor) ProcessNotification(ctx context.Context, notice tasks.NotificationPayload) error {
	var user models.User
	err := p.DB.WithContext(ctx).Where("id = ?", notice.UserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p.Log.Warn("notification for unknown user", zap.Uint("user_id", notice.UserID), zap.String("reference", notice.Reference))
		return nil
	}
	if err != nil {
		return err
	}
	return p.Mailer.SendTransactionNotice(ctx, &user, notice)
}

// ProcessReferralCredit credits the referrer. Validation failures cannot
// succeed on retry and are dropped.
func (p *LedgerProcessor) ProcessReferralCredit(ctx context.Context, payload tasks.ReferralCreditPayload) error {
	err := p.Bonus.CreditReferral(ctx, payload)
	if errors.Is(err, services.ErrValidation) {
		p.Log.Warn("referral credit dropped", zap.String("reference", payload.Reference), zap.Error(err))
		return nil
	}
	if err != nil {
		p.Log.Error("referral credit failed", zap.String("reference", payload.Reference), zap.Error(err))
	}
	return err
}

// ProcessReverify asks the gateway for the outcome of a pending transaction.
// Errors are returned so the task is retried; unknown references are dropped.
func (p *LedgerProcessor) ProcessReverify(ctx context.Context, payload tasks.ReverifyPayload) error {
	err := p.Reconciliation.Reverify(ctx, payload.Reference)
	if errors.Is(err, services.ErrTransactionNotFound) {
		p.Log.Warn("reverify for unknown transaction", zap.String("reference", payload.Reference))
		return nil
	}
	return err
}
