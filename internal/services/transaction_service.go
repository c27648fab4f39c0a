package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/config"
	"ledger-service/internal/events"
	"ledger-service/internal/models"
	"ledger-service/internal/tasks"
)

// errNotPending aborts a database transaction when another writer already
// moved the ledger transaction out of pending.
var errNotPending = errors.New("transaction is no longer pending")

// FundingAdapter applies a successful transaction to the entity it paid for.
// Implementations must be idempotent on trx.Reference and return
// ErrAlreadyApplied when the reference was seen before.
type FundingAdapter interface {
	ApplyFunding(tx *gorm.DB, trx *models.Transaction) error
}

type FundingAdapters struct {
	Membership    FundingAdapter
	Investment    FundingAdapter
	GoalSavings   FundingAdapter
	LockedSavings FundingAdapter
}

type CreateTransactionDTO struct {
	Initiator   uint
	WalletID    uint
	Amount      decimal.Decimal
	Currency    string
	Direction   models.Direction
	Type        models.TransactionType
	FundSource  models.FundSource
	Description string
	EntityUID   string
}

type TransactionService struct {
	DB      *gorm.DB
	Config  *config.Config
	Log     *zap.Logger
	Helper  *HelperService
	Wallets *WalletService
	Funding FundingAdapters
	Gateway Gateway
	Events  events.Publisher
	Tasks   tasks.Enqueuer
}

func NewTransactionService(db *gorm.DB, cfg *config.Config, log *zap.Logger, helper *HelperService, wallets *WalletService,
	funding FundingAdapters, gateway Gateway, publisher events.Publisher, enqueuer tasks.Enqueuer) *TransactionService {
	return &TransactionService{
		DB:      db,
		Config:  cfg,
		Log:     log,
		Helper:  helper,
		Wallets: wallets,
		Funding: funding,
		Gateway: gateway,
		Events:  publisher,
		Tasks:   enqueuer,
	}
}

func (s *TransactionService) validate(dto CreateTransactionDTO) error {
	if !dto.Amount.IsPositive() {
		return validationError("amount must be greater than zero")
	}
	if !dto.Type.Valid() {
		return validationError(fmt.Sprintf("invalid transaction type %q", dto.Type))
	}
	if !dto.FundSource.Valid() {
		return validationError(fmt.Sprintf("invalid fund source %q", dto.FundSource))
	}
	if !dto.Direction.Valid() {
		return validationError(fmt.Sprintf("invalid direction %q", dto.Direction))
	}
	switch dto.Type {
	case models.TxTopup, models.TxCredit, models.TxWithdrawal, models.TxDebit:
		if dto.FundSource == models.FundSourceWallet {
			return validationError(fmt.Sprintf("%s cannot be funded from the wallet", dto.Type))
		}
	}
	return nil
}

// Create persists a pending transaction with a fresh reference and the
// wallet's current balance as the balance-before snapshot.
func (s *TransactionService) Create(tx *gorm.DB, dto CreateTransactionDTO) (*models.Transaction, error) {
	return s.insert(tx, dto, models.TransactionPending)
}

func (s *TransactionService) insert(tx *gorm.DB, dto CreateTransactionDTO, status models.TransactionStatus) (*models.Transaction, error) {
	if err := s.validate(dto); err != nil {
		return nil, err
	}
	wallet, err := s.Wallets.Get(tx, dto.WalletID)
	if err != nil {
		return nil, err
	}
	ref, err := s.Helper.GenerateReference(tx)
	if err != nil {
		return nil, err
	}
	currency := dto.Currency
	if currency == "" {
		currency = wallet.Currency
	}

	trx := models.Transaction{
		Reference:     ref,
		Initiator:     dto.Initiator,
		WalletID:      dto.WalletID,
		Amount:        dto.Amount,
		Fee:           decimal.Zero,
		Currency:      currency,
		FundSource:    dto.FundSource,
		Direction:     dto.Direction,
		Type:          dto.Type,
		Status:        status,
		EntityUID:     dto.EntityUID,
		BalanceBefore: wallet.Balance,
		Description:   dto.Description,
	}
	if err := tx.Create(&trx).Error; err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	return &trx, nil
}

func (s *TransactionService) ByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	var trx models.Transaction
	err := s.DB.WithContext(ctx).Where("reference = ?", reference).First(&trx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &trx, nil
}

type TransactionFilter struct {
	Type   models.TransactionType
	Status models.TransactionStatus
}

// List returns one page of a wallet's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, walletID uint, filter TransactionFilter, offset, limit int) ([]models.Transaction, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.Transaction{}).Where("wallet_id = ?", walletID)
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Transaction
	err := query.Order("id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

// transition moves trx from pending to status. It reports false when the row
// was no longer pending, which means another writer got there first.
func (s *TransactionService) transition(tx *gorm.DB, trx *models.Transaction, status models.TransactionStatus, externalID string) (bool, error) {
	updates := map[string]interface{}{"status": status}
	if externalID != "" {
		updates["external_id"] = externalID
	}
	res := tx.Model(&models.Transaction{}).
		Where("id = ? AND status = ?", trx.ID, models.TransactionPending).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("transition %s to %s: %w", trx.Reference, status, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	trx.Status = status
	if externalID != "" {
		trx.ExternalID = &externalID
	}
	return true, nil
}

// snapshot stores balances derived from the wallet as read after the mutation.
func (s *TransactionService) snapshot(tx *gorm.DB, trx *models.Transaction, wallet *models.Wallet) error {
	after := wallet.Balance
	before := after.Sub(trx.Amount)
	if trx.Direction == models.DirectionOutgoing {
		before = after.Add(trx.Amount)
	}
	err := tx.Model(&models.Transaction{}).Where("id = ?", trx.ID).Updates(map[string]interface{}{
		"balance_before": before,
		"balance_after":  decimal.NewNullDecimal(after),
	}).Error
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", trx.Reference, err)
	}
	trx.BalanceBefore = before
	trx.BalanceAfter = decimal.NewNullDecimal(after)
	return nil
}

// dispatch runs the single side effect owned by trx.Type. It returns the
// wallet when the balance changed so the caller can snapshot it.
func (s *TransactionService) dispatch(tx *gorm.DB, trx *models.Transaction) (*models.Wallet, error) {
	switch trx.Type {
	case models.TxTopup, models.TxCredit:
		return s.creditOnce(tx, trx, models.EntityWallet, CounterDeposited)

	case models.TxWithdrawal, models.TxDebit:
		// balance left the wallet when the withdrawal was requested
		ok, err := s.Helper.MarkApplied(tx, models.EntityWithdrawalComplete, trx.WalletID, trx.Reference)
		if err != nil || !ok {
			return nil, err
		}
		if err := s.Wallets.Bump(tx, trx.WalletID, trx.Amount, CounterWithdrawn); err != nil {
			return nil, err
		}
		return nil, s.markWithdrawal(tx, trx, "SUCCESSFUL", "")

	case models.TxMembershipFee:
		return nil, s.fund(s.Funding.Membership, tx, trx)

	case models.TxInvestment:
		return nil, s.fund(s.Funding.Investment, tx, trx)

	case models.TxSavingsAddFunds:
		return nil, s.fund(s.Funding.GoalSavings, tx, trx)

	case models.TxLockedSavingsAddFunds:
		return nil, s.fund(s.Funding.LockedSavings, tx, trx)

	case models.TxReferralBonusDeposit, models.TxAffiliateBonusDeposit:
		return s.creditOnce(tx, trx, models.EntityWallet, CounterNone)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTransactionType, trx.Type)
}

func (s *TransactionService) creditOnce(tx *gorm.DB, trx *models.Transaction, entity string, counter Counter) (*models.Wallet, error) {
	ok, err := s.Helper.MarkApplied(tx, entity, trx.WalletID, trx.Reference)
	if err != nil || !ok {
		return nil, err
	}
	return s.Wallets.Credit(tx, trx.WalletID, trx.Amount, counter)
}

func (s *TransactionService) fund(adapter FundingAdapter, tx *gorm.DB, trx *models.Transaction) error {
	if adapter == nil {
		return fmt.Errorf("%w: no funding adapter for %q", ErrUnknownTransactionType, trx.Type)
	}
	err := adapter.ApplyFunding(tx, trx)
	if errors.Is(err, ErrAlreadyApplied) {
		s.Log.Info("funding already applied", zap.String("reference", trx.Reference), zap.String("type", string(trx.Type)))
		return nil
	}
	return err
}

func (s *TransactionService) markWithdrawal(tx *gorm.DB, trx *models.Transaction, status, comment string) error {
	updates := map[string]interface{}{"transfer_status": status}
	if comment != "" {
		updates["comment"] = comment
	}
	return tx.Model(&models.Withdrawal{}).Where("transaction_id = ?", trx.ID).Updates(updates).Error
}

// SettleInTx completes a wallet-funded or internally funded transaction as
// part of the caller's database transaction. The caller must call Announce
// after commit.
func (s *TransactionService) SettleInTx(tx *gorm.DB, trx *models.Transaction) error {
	if trx.FundSource.ViaGateway() {
		return validationError("gateway funded transactions settle through reconciliation")
	}
	ok, err := s.transition(tx, trx, models.TransactionSuccessful, "")
	if err != nil {
		return err
	}
	if !ok {
		return errNotPending
	}

	var wallet *models.Wallet
	if trx.FundSource == models.FundSourceWallet && trx.Direction == models.DirectionOutgoing {
		if wallet, err = s.Wallets.Debit(tx, trx.WalletID, trx.Amount, CounterNone); err != nil {
			return err
		}
	}
	credited, err := s.dispatch(tx, trx)
	if err != nil {
		return err
	}
	if credited != nil {
		wallet = credited
	}
	if wallet != nil {
		return s.snapshot(tx, trx, wallet)
	}
	return nil
}

// SettleFromWallet debits the wallet and applies trx in one database
// transaction. If the balance no longer covers the amount nothing is applied
// and trx is marked failed.
func (s *TransactionService) SettleFromWallet(ctx context.Context, trx *models.Transaction) error {
	if trx.FundSource != models.FundSourceWallet {
		return validationError("transaction is not wallet funded")
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.SettleInTx(tx, trx)
	})
	switch {
	case err == nil:
		s.Announce(ctx, trx)
		return nil
	case errors.Is(err, errNotPending):
		return s.reload(ctx, trx)
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrFundingRejected):
		trx.Status = models.TransactionPending
		if failErr := s.Fail(ctx, trx, err.Error()); failErr != nil {
			s.Log.Error("mark failed after rejected settlement", zap.String("reference", trx.Reference), zap.Error(failErr))
		}
		return err
	}
	s.Log.Error("wallet settlement failed", zap.String("reference", trx.Reference), zap.Error(err))
	trx.Status = models.TransactionPending
	return err
}

// SettleFromGateway asks the gateway for a hosted checkout and leaves trx
// pending until the callback arrives.
func (s *TransactionService) SettleFromGateway(ctx context.Context, trx *models.Transaction, customer Customer, redirectPath, title string) (*PaymentLink, error) {
	if !trx.FundSource.ViaGateway() {
		return nil, validationError("transaction is not gateway funded")
	}
	link, err := s.Gateway.InitiatePayment(ctx, PaymentRequest{
		Reference:   trx.Reference,
		Amount:      trx.Amount,
		Currency:    trx.Currency,
		RedirectURL: strings.TrimRight(s.Config.URLs.ServerURL, "/") + redirectPath,
		Customer:    customer,
		Title:       title,
		Description: trx.Description,
	})
	if err == nil {
		return link, nil
	}
	if errors.Is(err, ErrGatewayUnavailable) {
		s.Log.Warn("gateway unavailable, transaction left pending", zap.String("reference", trx.Reference), zap.Error(err))
		return nil, err
	}
	s.Log.Error("payment initiation rejected", zap.String("reference", trx.Reference), zap.Error(err))
	if failErr := s.Fail(ctx, trx, "payment initiation rejected"); failErr != nil {
		s.Log.Error("mark failed after rejected initiation", zap.String("reference", trx.Reference), zap.Error(failErr))
	}
	return nil, err
}

// Complete marks a verified gateway transaction successful and applies it.
// A transaction that is already terminal is left untouched.
func (s *TransactionService) Complete(ctx context.Context, trx *models.Transaction, externalID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.transition(tx, trx, models.TransactionSuccessful, externalID)
		if err != nil {
			return err
		}
		if !ok {
			return errNotPending
		}
		wallet, err := s.dispatch(tx, trx)
		if err != nil {
			return err
		}
		if wallet != nil {
			return s.snapshot(tx, trx, wallet)
		}
		return nil
	})
	if errors.Is(err, errNotPending) {
		s.Log.Info("duplicate completion ignored", zap.String("reference", trx.Reference))
		return s.reload(ctx, trx)
	}
	if err != nil {
		trx.Status = models.TransactionPending
		trx.ExternalID = nil
		return err
	}
	s.Log.Info("transaction completed", zap.String("reference", trx.Reference), zap.String("type", string(trx.Type)))
	s.Announce(ctx, trx)
	return nil
}

// Fail marks trx failed. Pre-debited withdrawals are refunded to the wallet
// by a separate successful credit transaction in the same commit.
func (s *TransactionService) Fail(ctx context.Context, trx *models.Transaction, reason string) error {
	var reversal *models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.transition(tx, trx, models.TransactionFailed, "")
		if err != nil {
			return err
		}
		if !ok {
			return errNotPending
		}
		if !trx.Type.PreDebited() {
			return nil
		}
		if err := s.markWithdrawal(tx, trx, "FAILED", reason); err != nil {
			return err
		}
		reversal, err = s.reverse(tx, trx)
		return err
	})
	if errors.Is(err, errNotPending) {
		return s.reload(ctx, trx)
	}
	if err != nil {
		trx.Status = models.TransactionPending
		s.Log.Error("mark transaction failed", zap.String("reference", trx.Reference), zap.Error(err))
		return err
	}
	s.Log.Warn("transaction failed", zap.String("reference", trx.Reference), zap.String("reason", reason))
	s.Announce(ctx, trx)
	if reversal != nil {
		s.Announce(ctx, reversal)
	}
	return nil
}

func (s *TransactionService) reverse(tx *gorm.DB, trx *models.Transaction) (*models.Transaction, error) {
	ok, err := s.Helper.MarkApplied(tx, models.EntityWalletReversal, trx.WalletID, trx.Reference)
	if err != nil || !ok {
		return nil, err
	}
	reversal, err := s.insert(tx, CreateTransactionDTO{
		Initiator:   trx.Initiator,
		WalletID:    trx.WalletID,
		Amount:      trx.Amount,
		Currency:    trx.Currency,
		Direction:   models.DirectionIncoming,
		Type:        models.TxCredit,
		FundSource:  models.FundSourceNone,
		Description: "Reversal of withdrawal " + trx.Reference,
	}, models.TransactionSuccessful)
	if err != nil {
		return nil, err
	}
	wallet, err := s.Wallets.Credit(tx, trx.WalletID, trx.Amount, CounterNone)
	if err != nil {
		return nil, err
	}
	s.Log.Info("withdrawal reversed", zap.String("reference", trx.Reference), zap.String("reversal", reversal.Reference))
	return reversal, s.snapshot(tx, reversal, wallet)
}

func (s *TransactionService) reload(ctx context.Context, trx *models.Transaction) error {
	return s.DB.WithContext(ctx).Where("id = ?", trx.ID).First(trx).Error
}

// Announce publishes the terminal outcome and queues follow-up work. Failures
// are logged and never undo the ledger change.
func (s *TransactionService) Announce(ctx context.Context, trx *models.Transaction) {
	if !trx.Status.IsTerminal() {
		return
	}
	evt := events.TransactionEvent{
		Event:      events.TransactionCompleted,
		Reference:  trx.Reference,
		Type:       string(trx.Type),
		Status:     string(trx.Status),
		Amount:     trx.Amount.StringFixed(2),
		Currency:   trx.Currency,
		WalletID:   trx.WalletID,
		UserID:     trx.Initiator,
		OccurredAt: time.Now(),
	}
	if trx.Status == models.TransactionFailed {
		evt.Event = events.TransactionFailed
	}
	if trx.BalanceAfter.Valid {
		evt.BalanceAfter = trx.BalanceAfter.Decimal.StringFixed(2)
	}
	if err := s.Events.Publish(ctx, evt); err != nil {
		s.Log.Warn("publish transaction event", zap.String("reference", trx.Reference), zap.Error(err))
	}

	task, err := tasks.NewNotifyTransactionTask(tasks.NotificationPayload{
		Reference: trx.Reference,
		UserID:    trx.Initiator,
		Type:      string(trx.Type),
		Status:    string(trx.Status),
		Amount:    evt.Amount,
		Currency:  trx.Currency,
	})
	if err == nil {
		_, err = s.Tasks.EnqueueContext(ctx, task)
	}
	if err != nil {
		s.Log.Warn("enqueue notification", zap.String("reference", trx.Reference), zap.Error(err))
	}

	if trx.Type == models.TxMembershipFee && trx.Status == models.TransactionSuccessful {
		s.queueReferralCredit(ctx, trx)
	}
}

func (s *TransactionService) queueReferralCredit(ctx context.Context, trx *models.Transaction) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", trx.Initiator).First(&user).Error; err != nil {
		s.Log.Warn("load referee", zap.Uint("user_id", trx.Initiator), zap.Error(err))
		return
	}
	if user.ReferredBy == "" {
		return
	}
	task, err := tasks.NewCreditReferralTask(tasks.ReferralCreditPayload{
		RefereeID: user.ID,
		Code:      user.ReferredBy,
		Reference: trx.Reference,
	})
	if err == nil {
		_, err = s.Tasks.EnqueueContext(ctx, task)
	}
	if err != nil {
		s.Log.Warn("enqueue referral credit", zap.String("reference", trx.Reference), zap.Error(err))
	}
}

// PaymentOutcome is what a funding request returns: the transaction and, for
// gateway funding, the checkout link the user must follow.
type PaymentOutcome struct {
	Transaction *models.Transaction `json:"transaction"`
	Link        string              `json:"link,omitempty"`
}

// Settle routes trx by its fund source.
func (s *TransactionService) Settle(ctx context.Context, trx *models.Transaction, customer Customer, redirectPath, title string) (*PaymentOutcome, error) {
	out := &PaymentOutcome{Transaction: trx}
	if trx.FundSource == models.FundSourceWallet {
		return out, s.SettleFromWallet(ctx, trx)
	}
	link, err := s.SettleFromGateway(ctx, trx, customer, redirectPath, title)
	if err != nil {
		return out, err
	}
	out.Link = link.Link
	return out, nil
}

// payableSource rejects fund sources a user cannot choose to pay with.
func payableSource(source models.FundSource) error {
	switch source {
	case models.FundSourceWallet, models.FundSourceBankAccount, models.FundSourceCard:
		return nil
	}
	return validationError(fmt.Sprintf("invalid fund source %q", source))
}
