package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
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
	"ledger-service/internal/services"
	"ledger-service/internal/tasks"
)

const testSecret = "test-secret"

// stubGateway approves every checkout it issues.
type stubGateway struct {
	mu       sync.Mutex
	payments map[string]*services.Verification
	ids      map[string]string
}

func newStubGateway() *stubGateway {
	return &stubGateway{payments: map[string]*services.Verification{}, ids: map[string]string{}}
}

// idFor returns the gateway id issued for reference.
func (g *stubGateway) idFor(reference string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ids[reference]
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) InitiatePayment(_ context.Context, req services.PaymentRequest) (*services.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprint(7000 + len(g.payments))
	g.ids[req.Reference] = id
	g.payments[id] = &services.Verification{
		ExternalID: id,
		Reference:  req.Reference,
		Status:     services.VerificationSuccessful,
		RawStatus:  "successful",
		Amount:     req.Amount,
		Currency:   req.Currency,
	}
	return &services.PaymentLink{Link: "https://checkout.test/" + req.Reference}, nil
}

func (g *stubGateway) InitiateTransfer(context.Context, services.TransferRequest) (*services.TransferResult, error) {
	return nil, services.ErrGateway
}

func (g *stubGateway) VerifyTransaction(_ context.Context, externalID string) (*services.Verification, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	v, ok := g.payments[externalID]
	if !ok {
		return nil, services.ErrGatewayNotFound
	}
	cp := *v
	return &cp, nil
}

func (g *stubGateway) VerifyTransfer(ctx context.Context, externalID string) (*services.Verification, error) {
	return g.VerifyTransaction(ctx, externalID)
}

func (g *stubGateway) VerifyTransferByReference(context.Context, string) (*services.Verification, error) {
	return nil, services.ErrGatewayNotFound
}

func (g *stubGateway) VerifyByReference(ctx context.Context, reference string) (*services.Verification, error) {
	return g.VerifyTransaction(ctx, g.idFor(reference))
}

func (g *stubGateway) ResolveBankAccount(_ context.Context, _, accountNumber string) (*services.ResolvedAccount, error) {
	return &services.ResolvedAccount{AccountNumber: accountNumber, AccountName: "ADA OBI"}, nil
}

func (g *stubGateway) ListSupportedBanks(context.Context, string) ([]services.SupportedBank, error) {
	return []services.SupportedBank{{Code: "044", Name: "Access Bank"}}, nil
}

type testServer struct {
	db     *gorm.DB
	router *gin.Engine
	h      *Handler
	gw     *stubGateway
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret
	cfg.Gateway.SecretHash = "hook-hash"
	cfg.URLs.ServerURL = "https://api.test"
	cfg.URLs.LandingPageURL = "https://app.test"

	log := zap.NewNop()
	gw := newStubGateway()
	helper := services.NewHelperService(db, cfg, log)
	wallets := services.NewWalletService(db, cfg)
	txs := services.NewTransactionService(db, cfg, log, helper, wallets,
		services.NewFundingAdapters(helper, wallets), gw, events.NopPublisher{}, &tasks.Recorder{})
	investments := services.NewInvestmentService(db, cfg, log, wallets, txs)

	h := &Handler{
		Config:         cfg,
		Log:            log,
		Users:          services.NewUserService(db, wallets, log),
		Wallets:        wallets,
		Transactions:   txs,
		Reconciliation: services.NewReconciliationService(db, cfg, log, helper, txs, gw, lock.NewLocalLocker()),
		Membership:     services.NewMembershipService(db, cfg, log, wallets, txs),
		Deposits:       services.NewDepositService(db, cfg, log, wallets, txs),
		Withdrawals:    services.NewWithdrawalService(db, cfg, log, wallets, txs, gw),
		Investments:    investments,
		Savings:        services.NewSavingsService(db, cfg, log, helper, wallets, txs, investments),
		Bonus:          services.NewBonusService(db, cfg, log, helper, wallets, txs),
		Banks:          services.NewBankService(db, nil, cfg, log, wallets, gw),
		Webhooks:       services.NewFlutterwaveService(&cfg.Gateway, log),
	}
	router := gin.New()
	router.Use(RequestLogger(log))
	h.Register(router)
	return &testServer{db: db, router: router, h: h, gw: gw}
}

func (s *testServer) user(t *testing.T, email string, role models.Role) *models.User {
	t.Helper()
	user, _, err := s.h.Users.Register(context.Background(), services.RegisterUserDTO{
		Email: email, FirstName: "Ada", LastName: "Obi", Role: role, KYCStatus: models.KYCApproved,
	})
	require.NoError(t, err)
	require.NoError(t, s.db.Model(user).Update("has_paid_membership_fee", true).Error)
	return user
}

func token(t *testing.T, userID uint) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   fmt.Sprint(userID),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (s *testServer) do(t *testing.T, method, path string, userID uint, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("Authorization", "Bearer "+token(t, userID))
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Count   int64           `json:"count"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var out envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/wallet", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/wallet", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetWallet(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, "ada@example.com", models.RoleUser)

	w := s.do(t, http.MethodGet, "/wallet", user.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var wallet models.Wallet
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &wallet))
	assert.Equal(t, user.ID, wallet.UserID)
	assert.True(t, wallet.Balance.IsZero())
}

func TestTopUpValidation(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, "ada@example.com", models.RoleUser)

	for _, amount := range []string{"0", "-10", "10.555"} {
		w := s.do(t, http.MethodPost, "/wallet/top-up", user.ID, map[string]interface{}{"amount": json.Number(amount)})
		assert.Equal(t, http.StatusBadRequest, w.Code, amount)
		assert.Equal(t, string(services.KindValidation), decode(t, w).Code)
	}
}

func topUp(t *testing.T, s *testServer, user *models.User, amount string) models.Transaction {
	t.Helper()
	w := s.do(t, http.MethodPost, "/wallet/top-up", user.ID, map[string]interface{}{"amount": json.Number(amount)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Transaction models.Transaction `json:"transaction"`
		Link        string             `json:"link"`
	}
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &out))
	assert.Equal(t, "https://checkout.test/"+out.Transaction.Reference, out.Link)
	return out.Transaction
}

func TestTopUpCallbackRedirects(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, "ada@example.com", models.RoleUser)
	trx := topUp(t, s, user, "2500.50")

	path := fmt.Sprintf("%s?status=successful&tx_ref=%s&transaction_id=%s", services.TopUpRedirectPath, trx.Reference, s.gw.idFor(trx.Reference))
	w := s.do(t, http.MethodGet, path, 0, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://app.test/payment/success?reference="+trx.Reference, w.Header().Get("Location"))

	wallet, err := s.h.Wallets.ByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("2500.50")))

	w = s.do(t, http.MethodGet, services.TopUpRedirectPath+"?status=successful&tx_ref=SFHUNKNOWN&transaction_id=1", 0, nil)
	require.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "https://app.test/payment/failed"))
}

func webhook(t *testing.T, s *testServer, signature string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/flutterwave", strings.NewReader(body))
	req.Header.Set("verif-hash", signature)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestFlutterwaveWebhook(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, "ada@example.com", models.RoleUser)
	trx := topUp(t, s, user, "1000")

	body := fmt.Sprintf(`{"event":"charge.completed","data":{"id":%s,"tx_ref":"%s","status":"successful"}}`, s.gw.idFor(trx.Reference), trx.Reference)
	assert.Equal(t, http.StatusUnauthorized, webhook(t, s, "wrong", body).Code)

	for i := 0; i < 2; i++ {
		w := webhook(t, s, "hook-hash", body)
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	wallet, err := s.h.Wallets.ByUser(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.NewFromInt(1000)), wallet.Balance.String())

	unknown := `{"event":"charge.completed","data":{"id":1,"tx_ref":"SFHNOPE","status":"successful"}}`
	assert.Equal(t, http.StatusOK, webhook(t, s, "hook-hash", unknown).Code)

	ignored := `{"event":"subscription.cancelled","data":{}}`
	assert.Equal(t, http.StatusOK, webhook(t, s, "hook-hash", ignored).Code)
}

func TestTransactionsAreScopedToOwner(t *testing.T) {
	s := newTestServer(t)
	ada := s.user(t, "ada@example.com", models.RoleUser)
	bola := s.user(t, "bola@example.com", models.RoleUser)
	trx := topUp(t, s, ada, "100")
	topUp(t, s, ada, "200")

	w := s.do(t, http.MethodGet, "/wallet/transactions/"+trx.Reference, ada.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/wallet/transactions/"+trx.Reference, bola.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/wallet/transactions?type=topup&limit=1", ada.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	assert.Equal(t, int64(2), page.Count)
	var list []models.Transaction
	require.NoError(t, json.Unmarshal(page.Data, &list))
	assert.Len(t, list, 1)
}

func TestMembershipFromEmptyWallet(t *testing.T) {
	s := newTestServer(t)
	user, _, err := s.h.Users.Register(context.Background(), services.RegisterUserDTO{Email: "new@example.com", KYCStatus: models.KYCApproved})
	require.NoError(t, err)

	w := s.do(t, http.MethodPost, "/membership/pay", user.ID, map[string]string{"fund_source": "wallet"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(services.KindInsufficientFunds), decode(t, w).Code)
}

func TestCreateAssetRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	member := s.user(t, "ada@example.com", models.RoleUser)
	admin := s.user(t, "root@example.com", models.RoleAdmin)
	body := map[string]interface{}{"asset_name": "Lekki Plot", "price": json.Number("100000"), "units": 10}

	w := s.do(t, http.MethodPost, "/investments/assets", member.ID, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPost, "/investments/assets", admin.ID, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/investments/assets", member.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode(t, w).Count)
}

func TestBankAccounts(t *testing.T) {
	s := newTestServer(t)
	user := s.user(t, "ada@example.com", models.RoleUser)

	w := s.do(t, http.MethodGet, "/banks", 0, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/bank-accounts", user.ID, map[string]string{"bank_code": "044", "account_number": "0123456789"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var account models.BankAccount
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &account))
	assert.Equal(t, "ADA OBI", account.AccountName)

	w = s.do(t, http.MethodDelete, fmt.Sprintf("/bank-accounts/%d", account.ID), user.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, "/bank-accounts/abc", user.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidMoney(t *testing.T) {
	RegisterValidators()
	type req struct {
		Amount decimal.Decimal `binding:"required,gt=0,money"`
	}
	for amount, ok := range map[string]bool{"1": true, "10.5": true, "10.55": true, "10.555": false, "0": false} {
		err := binding.Validator.ValidateStruct(req{Amount: decimal.RequireFromString(amount)})
		assert.Equal(t, ok, err == nil, amount)
	}
}

func TestListReferrals(t *testing.T) {
	s := newTestServer(t)
	ada := s.user(t, "ada@example.com", models.RoleUser)
	ctx := context.Background()
	profile, err := s.h.Bonus.ReferralProfile(ctx, ada.ID)
	require.NoError(t, err)
	for i, email := range []string{"bola@example.com", "chidi@example.com"} {
		referee := s.user(t, email, models.RoleUser)
		require.NoError(t, s.h.Bonus.CreditReferral(ctx, tasks.ReferralCreditPayload{
			RefereeID: referee.ID, Code: profile.Code, Reference: fmt.Sprintf("SFHREF%d", i),
		}))
	}

	w := s.do(t, http.MethodGet, "/referrals/referrals?search=bola", ada.ID, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	page := decode(t, w)
	assert.Equal(t, int64(1), page.Count)
	var list []models.Referral
	require.NoError(t, json.Unmarshal(page.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "bola@example.com", list[0].ReferredUserEmail)

	w = s.do(t, http.MethodGet, "/referrals/referrals", ada.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode(t, w).Count)

	w = s.do(t, http.MethodGet, "/affiliates/referrals", ada.ID, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
