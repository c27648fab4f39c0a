package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/config"
	"ledger-service/internal/models"
)

const WithdrawalCallbackPath = "/wallet/withdrawal/complete"

type WithdrawalService struct {
	DB           *gorm.DB
	Config       *config.Config
	Log          *zap.Logger
	Wallets      *WalletService
	Transactions *TransactionService
	Gateway      Gateway
}

func NewWithdrawalService(db *gorm.DB, cfg *config.Config, log *zap.Logger, wallets *WalletService,
	transactions *TransactionService, gateway Gateway) *WithdrawalService {
	return &WithdrawalService{
		DB:           db,
		Config:       cfg,
		Log:          log,
		Wallets:      wallets,
		Transactions: transactions,
		Gateway:      gateway,
	}
}

type WithdrawRequestDTO struct {
	UserID        uint            `json:"-"`
	Amount        decimal.Decimal `json:"amount" binding:"required,gt=0,money"`
	BankAccountID uint            `json:"bank_account_id" binding:"required"`
}

type WithdrawalResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Withdrawal  *models.Withdrawal  `json:"withdrawal"`
}

// RequestWithdrawal debits the wallet, records an outgoing transaction and
// starts the bank transfer. A transfer the gateway refuses is refunded at once;
// one that timed out stays pending for reconciliation.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, dto WithdrawRequestDTO) (*WithdrawalResult, error) {
	if !dto.Amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}

	user, err := loadUser(s.DB.WithContext(ctx), dto.UserID)
	if err != nil {
		return nil, err
	}
	if !user.KYCApproved() {
		return nil, forbiddenError("Your KYC has not been approved")
	}
	if err := requirePaidMember(user); err != nil {
		return nil, err
	}
	wallet, err := s.Wallets.ByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var account models.BankAccount
	err = s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ? AND wallet_id = ? AND is_active = ?", dto.BankAccountID, user.ID, wallet.ID, true).
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("Bank account not found", ErrEntityNotFound)
	}
	if err != nil {
		return nil, err
	}
	if wallet.Balance.LessThan(dto.Amount) {
		return nil, ErrInsufficientFunds
	}

	result := &WithdrawalResult{}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		debited, err := s.Wallets.Debit(tx, wallet.ID, dto.Amount, CounterNone)
		if err != nil {
			return err
		}
		trx, err := s.Transactions.Create(tx, CreateTransactionDTO{
			Initiator:   user.ID,
			WalletID:    wallet.ID,
			Amount:      dto.Amount,
			Currency:    wallet.Currency,
			Direction:   models.DirectionOutgoing,
			Type:        models.TxWithdrawal,
			FundSource:  models.FundSourceBankAccount,
			Description: fmt.Sprintf("Withdrawal of %s to %s", dto.Amount.StringFixed(2), account.BankName),
		})
		if err != nil {
			return err
		}
		if err := s.Transactions.snapshot(tx, trx, debited); err != nil {
			return err
		}
		w := &models.Withdrawal{
			TransactionID:  trx.ID,
			Reference:      trx.Reference,
			UserID:         user.ID,
			BankAccountID:  account.ID,
			Amount:         dto.Amount,
			AccountNumber:  account.AccountNumber,
			AccountName:    account.AccountName,
			BankCode:       account.BankCode,
			TransferStatus: "PENDING",
		}
		if err := tx.Create(w).Error; err != nil {
			return err
		}
		result.Transaction, result.Withdrawal = trx, w
		return nil
	})
	if err != nil {
		return nil, err
	}

	trx, w := result.Transaction, result.Withdrawal
	transfer, err := s.Gateway.InitiateTransfer(ctx, TransferRequest{
		Reference:     trx.Reference,
		Amount:        trx.Amount,
		Currency:      trx.Currency,
		BankCode:      account.BankCode,
		AccountNumber: account.AccountNumber,
		Narration:     s.Config.AppName + " withdrawal",
		CallbackURL:   strings.TrimRight(s.Config.URLs.ServerURL, "/") + WithdrawalCallbackPath,
	})
	if errors.Is(err, ErrGatewayUnavailable) {
		s.Log.Warn("transfer initiation timed out, left pending", zap.String("reference", trx.Reference), zap.Error(err))
		return result, err
	}
	if err != nil || !transfer.Accepted {
		var reason string
		if err != nil {
			reason = err.Error()
		} else {
			reason = "transfer status " + transfer.Status
		}
		s.Log.Error("withdrawal initiation failed", zap.String("reference", trx.Reference), zap.String("reason", reason))
		if failErr := s.Transactions.Fail(ctx, trx, reason); failErr != nil {
			return result, failErr
		}
		return result, fmt.Errorf("%w: %s", ErrWithdrawalInitiationFailed, reason)
	}

	w.TransferID = transfer.ExternalID
	w.TransferStatus = transfer.Status
	if err := s.DB.WithContext(ctx).Model(&models.Withdrawal{}).Where("id = ?", w.ID).Updates(map[string]interface{}{
		"transfer_id":     w.TransferID,
		"transfer_status": w.TransferStatus,
	}).Error; err != nil {
		s.Log.Error("record transfer id", zap.String("reference", trx.Reference), zap.Error(err))
	}
	s.Log.Info("withdrawal initiated", zap.String("reference", trx.Reference), zap.String("transfer_id", w.TransferID))
	return result, nil
}

// List returns the user's withdrawals, newest first.
func (s *WithdrawalService) List(ctx context.Context, userID uint, offset, limit int) ([]models.Withdrawal, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.Withdrawal{}).Where("user_id = ?", userID)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Withdrawal
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}
