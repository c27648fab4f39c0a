package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ledger-service/internal/config"
	"ledger-service/internal/lock"
	"ledger-service/internal/models"
)

// CallbackDTO is the inbound completion signal from the gateway redirect,
// webhook or internal RPC.
type CallbackDTO struct {
	Status        string `form:"status" json:"status"`
	TxRef         string `form:"tx_ref" json:"tx_ref"`
	TransactionID string `form:"transaction_id" json:"transaction_id"`
}

type claim int

const (
	claimSuccess claim = iota + 1
	claimFailure
)

func parseClaim(status string) (claim, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "successful", "success", "completed":
		return claimSuccess, true
	case "failed", "cancelled", "canceled":
		return claimFailure, true
	}
	return 0, false
}

type ReconciliationService struct {
	DB           *gorm.DB
	Config       *config.Config
	Log          *zap.Logger
	Helper       *HelperService
	Transactions *TransactionService
	Gateway      Gateway
	Locker       lock.Locker
}

func NewReconciliationService(db *gorm.DB, cfg *config.Config, log *zap.Logger, helper *HelperService,
	transactions *TransactionService, gateway Gateway, locker lock.Locker) *ReconciliationService {
	return &ReconciliationService{
		DB:           db,
		Config:       cfg,
		Log:          log,
		Helper:       helper,
		Transactions: transactions,
		Gateway:      gateway,
		Locker:       locker,
	}
}

func lockKey(reference string) string {
	return "ledger:tx:" + reference
}

// HandleCallback applies a gateway completion signal at most once. The
// returned transaction reflects the state after processing, which stays
// pending when the gateway could not confirm the outcome yet.
func (s *ReconciliationService) HandleCallback(ctx context.Context, dto CallbackDTO, requestType string) (*models.Transaction, error) {
	s.Helper.LogCallback(ctx, s.Gateway.Name(), requestType, dto.TxRef, dto, nil, models.CallbackLogSuccess)

	if dto.TxRef == "" {
		return nil, validationError("tx_ref is required")
	}
	kind, ok := parseClaim(dto.Status)
	if !ok {
		return nil, validationError(fmt.Sprintf("unrecognised callback status %q", dto.Status))
	}

	release, err := s.Locker.Obtain(ctx, lockKey(dto.TxRef), s.Config.Ledger.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	defer release()

	trx, err := s.Transactions.ByReference(ctx, dto.TxRef)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			s.Log.Warn("callback for unknown reference", zap.String("reference", dto.TxRef))
		}
		return nil, err
	}
	if trx.Status.IsTerminal() {
		s.Log.Info("duplicate callback", zap.String("reference", trx.Reference), zap.String("status", string(trx.Status)))
		return trx, nil
	}
	if !trx.Type.GatewaySettleable() {
		s.Log.Warn("callback for non gateway transaction", zap.String("reference", trx.Reference), zap.String("type", string(trx.Type)))
		return nil, ErrUnsupportedTransactionType
	}

	if trx.Type.PreDebited() {
		// the callback only prompts a check of our own transfer; its id and status are not trusted
		v, err := s.verifyTransfer(ctx, trx)
		if errors.Is(err, ErrGatewayNotFound) {
			s.Log.Warn("callback for transfer the gateway does not know", zap.String("reference", trx.Reference))
			return trx, nil
		}
		if err != nil {
			return trx, s.unverified(trx, err)
		}
		return trx, s.apply(ctx, trx, v)
	}

	switch kind {
	case claimSuccess:
		if dto.TransactionID == "" {
			return nil, validationError("transaction_id is required")
		}
		v, err := s.verify(ctx, trx, dto.TransactionID)
		if err != nil {
			return trx, s.unverified(trx, err)
		}
		return trx, s.apply(ctx, trx, v)

	default:
		return trx, s.Transactions.Fail(ctx, trx, "gateway reported "+strings.ToLower(dto.Status))
	}
}

func (s *ReconciliationService) verify(ctx context.Context, trx *models.Transaction, externalID string) (*Verification, error) {
	var (
		v   *Verification
		err error
	)
	if trx.Direction == models.DirectionOutgoing && trx.Type.PreDebited() {
		v, err = s.Gateway.VerifyTransfer(ctx, externalID)
	} else {
		v, err = s.Gateway.VerifyTransaction(ctx, externalID)
	}
	s.logVerification(ctx, trx.Reference, externalID, v, err)
	return v, err
}

// verifyTransfer asks the gateway about the transfer recorded for a
// pre-debited transaction. When the initiation response was lost the transfer
// is looked up by reference and its id recorded.
func (s *ReconciliationService) verifyTransfer(ctx context.Context, trx *models.Transaction) (*Verification, error) {
	var w models.Withdrawal
	err := s.DB.WithContext(ctx).Where("transaction_id = ?", trx.ID).First(&w).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if w.TransferID != "" {
		return s.verify(ctx, trx, w.TransferID)
	}

	v, err := s.Gateway.VerifyTransferByReference(ctx, trx.Reference)
	s.logVerification(ctx, trx.Reference, trx.Reference, v, err)
	if err != nil {
		return nil, err
	}
	if w.ID != 0 && v.ExternalID != "" {
		err := s.DB.WithContext(ctx).Model(&models.Withdrawal{}).Where("id = ? AND transfer_id = ?", w.ID, "").
			Updates(map[string]interface{}{"transfer_id": v.ExternalID, "transfer_status": strings.ToUpper(v.RawStatus)}).Error
		if err != nil {
			s.Log.Error("record transfer id", zap.String("reference", trx.Reference), zap.Error(err))
		}
	}
	return v, nil
}

func (s *ReconciliationService) logVerification(ctx context.Context, reference, externalID string, v *Verification, err error) {
	if err != nil {
		s.Helper.LogCallback(ctx, s.Gateway.Name(), "verify", reference, externalID, err, models.CallbackLogFailed)
		return
	}
	s.Helper.LogCallback(ctx, s.Gateway.Name(), "verify", reference, externalID, v.Raw, models.CallbackLogSuccess)
}

// unverified leaves trx pending; the sweep will try again.
func (s *ReconciliationService) unverified(trx *models.Transaction, err error) error {
	s.Log.Error("gateway verification unavailable", zap.String("reference", trx.Reference), zap.Error(err))
	if errors.Is(err, ErrGatewayUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

// apply acts on the gateway's own view of the payment.
func (s *ReconciliationService) apply(ctx context.Context, trx *models.Transaction, v *Verification) error {
	switch {
	case v.Reference != trx.Reference:
		s.Log.Error("verification reference mismatch", zap.String("reference", trx.Reference), zap.String("gateway_reference", v.Reference))
		return s.failMismatch(ctx, trx, fmt.Sprintf("gateway reference %q does not match", v.Reference))
	case v.Status == VerificationFailed:
		return s.Transactions.Fail(ctx, trx, "gateway status "+v.RawStatus)
	case v.Status == VerificationPending:
		s.Log.Info("gateway still processing", zap.String("reference", trx.Reference), zap.String("status", v.RawStatus))
		return nil
	case v.Amount.LessThan(trx.Amount):
		s.Log.Error("verification amount mismatch", zap.String("reference", trx.Reference),
			zap.String("expected", trx.Amount.String()), zap.String("gateway_amount", v.Amount.String()))
		return s.failMismatch(ctx, trx, "gateway amount "+v.Amount.String()+" is below "+trx.Amount.String())
	case v.Currency != "" && !strings.EqualFold(v.Currency, trx.Currency):
		s.Log.Error("verification currency mismatch", zap.String("reference", trx.Reference), zap.String("gateway_currency", v.Currency))
		return s.failMismatch(ctx, trx, "gateway currency "+v.Currency+" does not match")
	}

	err := s.Transactions.Complete(ctx, trx, v.ExternalID)
	if errors.Is(err, ErrFundingRejected) || errors.Is(err, ErrEntityNotFound) {
		// the gateway holds the money; settlement with the payer is manual
		s.Log.Error("verified payment could not be applied", zap.String("reference", trx.Reference), zap.Error(err))
		if failErr := s.Transactions.Fail(ctx, trx, err.Error()); failErr != nil {
			return failErr
		}
		return &AppError{Kind: KindConsistency, Message: "payment could not be applied", Err: err}
	}
	return err
}

func (s *ReconciliationService) failMismatch(ctx context.Context, trx *models.Transaction, reason string) error {
	if trx.Type.PreDebited() {
		// failing would refund money the gateway may have paid out; held for manual review
		s.Log.Error("transfer left pending after mismatch", zap.String("reference", trx.Reference), zap.String("reason", reason))
		return &AppError{Kind: KindConsistency, Message: reason, Err: ErrVerificationMismatch}
	}
	if err := s.Transactions.Fail(ctx, trx, reason); err != nil {
		return err
	}
	return &AppError{Kind: KindConsistency, Message: reason, Err: ErrVerificationMismatch}
}

// Reverify resolves a pending transaction by asking the gateway directly.
// Transactions the gateway has never heard of are failed once they pass the
// configured expiry, which refunds a withdrawal that was never queued.
func (s *ReconciliationService) Reverify(ctx context.Context, reference string) error {
	release, err := s.Locker.Obtain(ctx, lockKey(reference), s.Config.Ledger.LockTTL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	defer release()

	trx, err := s.Transactions.ByReference(ctx, reference)
	if err != nil {
		return err
	}
	if trx.Status.IsTerminal() || !trx.Type.GatewaySettleable() {
		return nil
	}
	expired := time.Since(trx.CreatedAt) > s.Config.Ledger.PendingExpiry

	var v *Verification
	if trx.Type.PreDebited() {
		v, err = s.verifyTransfer(ctx, trx)
	} else {
		v, err = s.Gateway.VerifyByReference(ctx, trx.Reference)
		s.logVerification(ctx, trx.Reference, trx.Reference, v, err)
	}
	if err != nil {
		return s.reverifyError(ctx, trx, expired, err)
	}

	err = s.apply(ctx, trx, v)
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind == KindConsistency {
		// logged at error level; retrying cannot change the outcome
		return nil
	}
	return err
}

func (s *ReconciliationService) reverifyError(ctx context.Context, trx *models.Transaction, expired bool, err error) error {
	if errors.Is(err, ErrGatewayNotFound) {
		if expired {
			return s.Transactions.Fail(ctx, trx, "unknown to the gateway after expiry")
		}
		return nil
	}
	s.Log.Warn("reverify failed", zap.String("reference", trx.Reference), zap.Error(err))
	return err
}
