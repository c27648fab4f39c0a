package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ledger-service/internal/config"
	"ledger-service/internal/database"
	"ledger-service/internal/events"
	"ledger-service/internal/lock"
	"ledger-service/internal/models"
	"ledger-service/internal/tasks"
)

type testEnv struct {
	db     *gorm.DB
	cfg    *config.Config
	gw     *fakeGateway
	tasks  *tasks.Recorder
	events *events.Recorder

	helper      *HelperService
	wallets     *WalletService
	txs         *TransactionService
	recon       *ReconciliationService
	users       *UserService
	membership  *MembershipService
	deposits    *DepositService
	withdrawals *WithdrawalService
	investments *InvestmentService
	savings     *SavingsService
	bonus       *BonusService
	banks       *BankService
	sweep       *SweepService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := config.Default()
	cfg.URLs.ServerURL = "https://api.test"
	cfg.URLs.LandingPageURL = "https://app.test"

	log := zap.NewNop()
	env := &testEnv{
		db:     db,
		cfg:    cfg,
		gw:     newFakeGateway(),
		tasks:  &tasks.Recorder{},
		events: &events.Recorder{},
	}
	env.helper = NewHelperService(db, cfg, log)
	env.wallets = NewWalletService(db, cfg)
	env.txs = NewTransactionService(db, cfg, log, env.helper, env.wallets,
		NewFundingAdapters(env.helper, env.wallets), env.gw, env.events, env.tasks)
	env.recon = NewReconciliationService(db, cfg, log, env.helper, env.txs, env.gw, lock.NewLocalLocker())
	env.users = NewUserService(db, env.wallets, log)
	env.membership = NewMembershipService(db, cfg, log, env.wallets, env.txs)
	env.deposits = NewDepositService(db, cfg, log, env.wallets, env.txs)
	env.withdrawals = NewWithdrawalService(db, cfg, log, env.wallets, env.txs, env.gw)
	env.investments = NewInvestmentService(db, cfg, log, env.wallets, env.txs)
	env.savings = NewSavingsService(db, cfg, log, env.helper, env.wallets, env.txs, env.investments)
	env.bonus = NewBonusService(db, cfg, log, env.helper, env.wallets, env.txs)
	env.banks = NewBankService(db, nil, cfg, log, env.wallets, env.gw)
	env.sweep = NewSweepService(db, cfg, log, env.tasks, env.banks)
	return env
}

var userSeq int

// member registers a KYC approved user who has paid the membership fee and
// funds the wallet with balance.
func (e *testEnv) member(t *testing.T, balance string) (*models.User, *models.Wallet) {
	t.Helper()
	userSeq++
	user, wallet, err := e.users.Register(context.Background(), RegisterUserDTO{
		Email:     fmt.Sprintf("member%d@example.com", userSeq),
		FirstName: "Ada",
		LastName:  "Obi",
		KYCStatus: models.KYCApproved,
	})
	require.NoError(t, err)
	require.NoError(t, e.db.Model(user).Update("has_paid_membership_fee", true).Error)
	user.HasPaidMembershipFee = true
	if amount := decimal.RequireFromString(balance); amount.IsPositive() {
		wallet, err = e.wallets.Credit(e.db, wallet.ID, amount, CounterNone)
		require.NoError(t, err)
	}
	return user, wallet
}

func (e *testEnv) wallet(t *testing.T, id uint) *models.Wallet {
	t.Helper()
	w, err := e.wallets.Get(e.db, id)
	require.NoError(t, err)
	return w
}

func (e *testEnv) transaction(t *testing.T, ref string) *models.Transaction {
	t.Helper()
	trx, err := e.txs.ByReference(context.Background(), ref)
	require.NoError(t, err)
	return trx
}

func (e *testEnv) asset(t *testing.T, price string, units int64) *models.InvestibleAsset {
	t.Helper()
	asset, err := e.investments.CreateAsset(context.Background(), CreateAssetDTO{
		AssetName: "Lekki Plot",
		Price:     decimal.RequireFromString(price),
		Units:     units,
	})
	require.NoError(t, err)
	return asset
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

// fakeGateway is an in-memory Gateway. Payments registered with pay are
// reported back by the verify calls.
type fakeGateway struct {
	mu sync.Mutex

	byExternal map[string]*Verification
	byRef      map[string]*Verification
	transfers  map[string]*Verification
	payments   []PaymentRequest
	transfersQ []TransferRequest
	nextID     int

	PaymentErr  error
	VerifyErr   error
	TransferErr error
	TransferAs  string
	// QueueOnErr queues the transfer even when TransferErr is returned, as a
	// gateway does when the response is lost.
	QueueOnErr  bool
	Banks       []SupportedBank
	BanksErr    error
	AccountName string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		byExternal:  map[string]*Verification{},
		byRef:       map[string]*Verification{},
		transfers:   map[string]*Verification{},
		TransferAs:  "NEW",
		Banks:       []SupportedBank{{Code: "044", Name: "Access Bank"}, {Code: "058", Name: "GTBank"}},
		AccountName: "ADA OBI",
	}
}

// pay records what the gateway will report for reference and returns its id.
func (g *fakeGateway) pay(reference, amount string, status VerificationStatus) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := fmt.Sprintf("%d", 9000+g.nextID)
	v := &Verification{
		ExternalID: id,
		Reference:  reference,
		Status:     status,
		RawStatus:  string(status),
		Amount:     dec(amount),
		Currency:   "NGN",
		Raw:        []byte(`{"status":"` + string(status) + `"}`),
	}
	g.byExternal[id] = v
	g.byRef[reference] = v
	return id
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) InitiatePayment(_ context.Context, req PaymentRequest) (*PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PaymentErr != nil {
		return nil, g.PaymentErr
	}
	g.payments = append(g.payments, req)
	return &PaymentLink{Link: "https://checkout.test/" + req.Reference}, nil
}

func (g *fakeGateway) InitiateTransfer(_ context.Context, req TransferRequest) (*TransferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transfersQ = append(g.transfersQ, req)
	if g.TransferErr != nil && !g.QueueOnErr {
		return nil, g.TransferErr
	}
	g.nextID++
	id := fmt.Sprintf("T%d", g.nextID)
	g.transfers[id] = &Verification{
		ExternalID: id,
		Reference:  req.Reference,
		Status:     VerificationPending,
		RawStatus:  g.TransferAs,
		Amount:     req.Amount,
		Currency:   req.Currency,
	}
	if g.TransferErr != nil {
		return nil, g.TransferErr
	}
	return &TransferResult{ExternalID: id, Status: g.TransferAs, Accepted: acceptedTransferStatuses[g.TransferAs]}, nil
}

// settleTransfer sets the final status the gateway reports for a transfer.
func (g *fakeGateway) settleTransfer(id string, status VerificationStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transfers[id].Status = status
	g.transfers[id].RawStatus = string(status)
}

func (g *fakeGateway) VerifyTransaction(_ context.Context, externalID string) (*Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.VerifyErr != nil {
		return nil, g.VerifyErr
	}
	v, ok := g.byExternal[externalID]
	if !ok {
		return nil, ErrGatewayNotFound
	}
	cp := *v
	return &cp, nil
}

func (g *fakeGateway) VerifyTransfer(_ context.Context, externalID string) (*Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.VerifyErr != nil {
		return nil, g.VerifyErr
	}
	v, ok := g.transfers[externalID]
	if !ok {
		return nil, ErrGatewayNotFound
	}
	cp := *v
	return &cp, nil
}

func (g *fakeGateway) VerifyTransferByReference(_ context.Context, reference string) (*Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.VerifyErr != nil {
		return nil, g.VerifyErr
	}
	for _, v := range g.transfers {
		if v.Reference == reference {
			cp := *v
			return &cp, nil
		}
	}
	return nil, ErrGatewayNotFound
}

func (g *fakeGateway) VerifyByReference(_ context.Context, reference string) (*Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.VerifyErr != nil {
		return nil, g.VerifyErr
	}
	v, ok := g.byRef[reference]
	if !ok {
		return nil, ErrGatewayNotFound
	}
	cp := *v
	return &cp, nil
}

func (g *fakeGateway) ResolveBankAccount(_ context.Context, bankCode, accountNumber string) (*ResolvedAccount, error) {
	if g.AccountName == "" {
		return nil, ErrGateway
	}
	return &ResolvedAccount{AccountNumber: accountNumber, AccountName: g.AccountName}, nil
}

func (g *fakeGateway) ListSupportedBanks(_ context.Context, country string) ([]SupportedBank, error) {
	if g.BanksErr != nil {
		return nil, g.BanksErr
	}
	return g.Banks, nil
}
