package services

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/config"
	"ledger-service/internal/models"
)

const TopUpRedirectPath = "/wallet/top-up/complete"

type DepositService struct {
	DB           *gorm.DB
	Config       *config.Config
	Log          *zap.Logger
	Wallets      *WalletService
	Transactions *TransactionService
}

func NewDepositService(db *gorm.DB, cfg *config.Config, log *zap.Logger, wallets *WalletService, transactions *TransactionService) *DepositService {
	return &DepositService{DB: db, Config: cfg, Log: log, Wallets: wallets, Transactions: transactions}
}

type TopUpDTO struct {
	UserID     uint              `json:"-"`
	Amount     decimal.Decimal   `json:"amount" binding:"required,gt=0,money"`
	FundSource models.FundSource `json:"fund_source"`
}

// TopUp starts a gateway checkout that credits the wallet once confirmed.
func (s *DepositService) TopUp(ctx context.Context, dto TopUpDTO) (*PaymentOutcome, error) {
	if !dto.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}
	if dto.FundSource == "" {
		dto.FundSource = models.FundSourceBankAccount
	}
	if !dto.FundSource.ViaGateway() {
		return nil, validationError("top-ups must be paid by bank account or card")
	}
	user, err := loadUser(s.DB.WithContext(ctx), dto.UserID)
	if err != nil {
		return nil, err
	}
	wallet, err := s.Wallets.ByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	trx, err := s.Transactions.Create(s.DB.WithContext(ctx), CreateTransactionDTO{
		Initiator:   user.ID,
		WalletID:    wallet.ID,
		Amount:      dto.Amount,
		Currency:    wallet.Currency,
		Direction:   models.DirectionIncoming,
		Type:        models.TxTopup,
		FundSource:  dto.FundSource,
		Description: "Wallet top-up of ₦" + dto.Amount.StringFixed(2),
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("top-up started", zap.String("reference", trx.Reference))
	return s.Transactions.Settle(ctx, trx, customerOf(user), TopUpRedirectPath, "Wallet top-up")
}
