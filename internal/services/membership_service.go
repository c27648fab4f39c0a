package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/config"
	"ledger-service/internal/models"
)

const PaymentRedirectPath = "/payments/complete"

type MembershipService struct {
	DB           *gorm.DB
	Config       *config.Config
	Log          *zap.Logger
	Wallets      *WalletService
	Transactions *TransactionService
}

func NewMembershipService(db *gorm.DB, cfg *config.Config, log *zap.Logger, wallets *WalletService, transactions *TransactionService) *MembershipService {
	return &MembershipService{DB: db, Config: cfg, Log: log, Wallets: wallets, Transactions: transactions}
}

type PayMembershipDTO struct {
	UserID     uint              `json:"-"`
	FundSource models.FundSource `json:"fund_source" binding:"required"`
}

// Pay charges the configured membership fee.
func (s *MembershipService) Pay(ctx context.Context, dto PayMembershipDTO) (*PaymentOutcome, error) {
	if err := payableSource(dto.FundSource); err != nil {
		return nil, err
	}
	user, err := loadUser(s.DB.WithContext(ctx), dto.UserID)
	if err != nil {
		return nil, err
	}
	if user.HasPaidMembershipFee {
		return nil, validationError("You have already paid your membership fee")
	}
	var inFlight int64
	err = s.DB.WithContext(ctx).Model(&models.Transaction{}).
		Where("initiator = ? AND type = ? AND status = ? AND created_at > ?",
			user.ID, models.TxMembershipFee, models.TransactionPending, time.Now().Add(-s.Config.Ledger.PendingTTL)).
		Count(&inFlight).Error
	if err != nil {
		return nil, err
	}
	if inFlight > 0 {
		return nil, validationError("A membership payment is already in progress")
	}
	wallet, err := s.Wallets.ByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	fee := s.Config.Ledger.MembershipFee
	if dto.FundSource == models.FundSourceWallet {
		if _, err := s.Wallets.EnsureBalance(ctx, wallet.ID, fee); err != nil {
			return nil, err
		}
	}

	trx, err := s.Transactions.Create(s.DB.WithContext(ctx), CreateTransactionDTO{
		Initiator:   user.ID,
		WalletID:    wallet.ID,
		Amount:      fee,
		Currency:    wallet.Currency,
		Direction:   models.DirectionOutgoing,
		Type:        models.TxMembershipFee,
		FundSource:  dto.FundSource,
		Description: "Membership fee payment",
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("membership payment started", zap.String("reference", trx.Reference), zap.String("fund_source", string(dto.FundSource)))
	return s.Transactions.Settle(ctx, trx, customerOf(user), PaymentRedirectPath, "Membership fee")
}
