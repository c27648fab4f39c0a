package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledger-service/internal/config"
	"ledger-service/internal/models"
)

// Counter names a cumulative wallet column bumped together with a balance change.
type Counter string

const (
	CounterNone              Counter = ""
	CounterDeposited         Counter = "total_deposited"
	CounterWithdrawn         Counter = "total_withdrawn"
	CounterInvested          Counter = "total_invested"
	CounterInvestedWithdrawn Counter = "total_invested_withdrawn"
	CounterSaved             Counter = "total_saved"
	CounterSavedWithdrawn    Counter = "total_saved_withdrawn"
)

// WalletService owns every balance mutation. Callers pass the *gorm.DB they
// are working in so a mutation can join an enclosing transaction.
type WalletService struct {
	DB     *gorm.DB
	Config *config.Config
}

func NewWalletService(db *gorm.DB, cfg *config.Config) *WalletService {
	return &WalletService{DB: db, Config: cfg}
}

// GetOrCreate returns the user's wallet, creating an empty one if absent.
func (s *WalletService) GetOrCreate(ctx context.Context, userID uint) (*models.Wallet, error) {
	db := s.DB.WithContext(ctx)
	wallet := models.Wallet{
		UserID:   userID,
		Balance:  decimal.Zero,
		Currency: s.Config.Ledger.DefaultCurrency,
	}
	// concurrent first requests race on the unique user_id index
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&wallet).Error; err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return s.ByUser(ctx, userID)
}

func (s *WalletService) ByUser(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (s *WalletService) Get(tx *gorm.DB, walletID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := tx.Where("id = ?", walletID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// EnsureBalance fails with ErrInsufficientFunds when the wallet holds less than amount.
// It is an early rejection only; Debit re-checks atomically.
func (s *WalletService) EnsureBalance(ctx context.Context, walletID uint, amount decimal.Decimal) (*models.Wallet, error) {
	wallet, err := s.Get(s.DB.WithContext(ctx), walletID)
	if err != nil {
		return nil, err
	}
	if wallet.Balance.LessThan(amount) {
		return wallet, ErrInsufficientFunds
	}
	return wallet, nil
}

func (s *WalletService) mutation(sign string, amount decimal.Decimal, counter Counter) map[string]interface{} {
	updates := map[string]interface{}{
		"balance":             gorm.Expr("balance "+sign+" ?", amount),
		"version":             gorm.Expr("version + 1"),
		"last_transaction_at": time.Now(),
	}
	if counter != CounterNone {
		updates[string(counter)] = gorm.Expr(string(counter)+" + ?", amount)
	}
	return updates
}

// Credit adds amount to the balance and returns the wallet as read after the write.
func (s *WalletService) Credit(tx *gorm.DB, walletID uint, amount decimal.Decimal, counter Counter) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}
	res := tx.Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(s.mutation("+", amount, counter))
	if res.Error != nil {
		return nil, fmt.Errorf("credit wallet %d: %w", walletID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrWalletNotFound
	}
	return s.Get(tx, walletID)
}

// Debit subtracts amount only if the balance covers it. The predicate is part
// of the UPDATE so two concurrent debits cannot both pass the check.
func (s *WalletService) Debit(tx *gorm.DB, walletID uint, amount decimal.Decimal, counter Counter) (*models.Wallet, error) {
	if !amount.IsPositive() {
		return nil, validationError("amount must be greater than zero")
	}
	res := tx.Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Updates(s.mutation("-", amount, counter))
	if res.Error != nil {
		return nil, fmt.Errorf("debit wallet %d: %w", walletID, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(tx, walletID); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientFunds
	}
	return s.Get(tx, walletID)
}

// Bump increases a cumulative counter without touching the balance.
func (s *WalletService) Bump(tx *gorm.DB, walletID uint, amount decimal.Decimal, counter Counter) error {
	if counter == CounterNone {
		return nil
	}
	return tx.Model(&models.Wallet{}).
		Where("id = ?", walletID).
		UpdateColumn(string(counter), gorm.Expr(string(counter)+" + ?", amount)).Error
}

func (s *WalletService) Activate(tx *gorm.DB, walletID uint) error {
	return tx.Model(&models.Wallet{}).Where("id = ?", walletID).Update("is_active", true).Error
}
