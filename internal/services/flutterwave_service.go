package services

import (
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger-service/internal/config"
	"ledger-service/pkg/common"
)

const ProviderFlutterwave = "flutterwave"

type FlutterwaveService struct {
	Config *config.GatewayConfig
	Client *http.Client
	Log    *zap.Logger
}

func NewFlutterwaveService(cfg *config.GatewayConfig, log *zap.Logger) *FlutterwaveService {
	return &FlutterwaveService{
		Config: cfg,
		Client: &http.Client{Timeout: cfg.Timeout},
		Log:    log,
	}
}

func (s *FlutterwaveService) Name() string {
	return ProviderFlutterwave
}

func (s *FlutterwaveService) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.Config.SecretKey}
}

func (s *FlutterwaveService) endpoint(path string) string {
	return strings.TrimRight(s.Config.BaseURL, "/") + path
}

// envelope is the standard Flutterwave response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *FlutterwaveService) call(ctx context.Context, method, path string, payload interface{}, data interface{}) ([]byte, error) {
	var env envelope
	raw, err := common.DoJSON(ctx, s.Client, method, s.endpoint(path), payload, s.headers(), &env)
	if err != nil {
		return raw, s.classify(method+" "+path, err)
	}
	if env.Status != "success" {
		return raw, fmt.Errorf("%w: %s %s: %s", ErrGateway, method, path, env.Message)
	}
	if data != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, data); err != nil {
			return raw, fmt.Errorf("%w: decode %s: %v", ErrGateway, path, err)
		}
	}
	return raw, nil
}

func (s *FlutterwaveService) classify(op string, err error) error {
	var httpErr *common.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Temporary():
			return fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, op, err)
		case httpErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrGatewayNotFound, op)
		}
		return fmt.Errorf("%w: %s: %v", ErrGateway, op, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// transport failures, timeouts and undecodable bodies are retryable
	return fmt.Errorf("%w: %s: %v", ErrGatewayUnavailable, op, err)
}

func (s *FlutterwaveService) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentLink, error) {
	payload := map[string]interface{}{
		"tx_ref":       req.Reference,
		"amount":       req.Amount.InexactFloat64(),
		"currency":     req.Currency,
		"redirect_url": req.RedirectURL,
		"customer": map[string]string{
			"email": req.Customer.Email,
			"name":  req.Customer.Name,
		},
		"customizations": map[string]string{
			"title":       req.Title,
			"description": req.Description,
			"logo":        s.Config.LogoURL,
		},
	}

	var data struct {
		Link string `json:"link"`
	}
	if _, err := s.call(ctx, http.MethodPost, "/payments", payload, &data); err != nil {
		return nil, err
	}
	if data.Link == "" {
		return nil, fmt.Errorf("%w: payment link not found", ErrGateway)
	}
	return &PaymentLink{Link: data.Link}, nil
}

// acceptedTransferStatuses are the states in which Flutterwave has queued a transfer.
var acceptedTransferStatuses = map[string]bool{
	"NEW":        true,
	"PENDING":    true,
	"QUEUED":     true,
	"SUCCESSFUL": true,
}

func (s *FlutterwaveService) InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	payload := map[string]interface{}{
		"account_bank":   req.BankCode,
		"account_number": req.AccountNumber,
		"amount":         req.Amount.InexactFloat64(),
		"narration":      req.Narration,
		"currency":       req.Currency,
		"debit_currency": req.Currency,
		"reference":      req.Reference,
		"callback_url":   req.CallbackURL,
	}

	var data struct {
		ID     json.Number `json:"id"`
		Status string      `json:"status"`
	}
	if _, err := s.call(ctx, http.MethodPost, "/transfers", payload, &data); err != nil {
		return nil, err
	}
	status := strings.ToUpper(data.Status)
	return &TransferResult{
		ExternalID: data.ID.String(),
		Status:     status,
		Accepted:   acceptedTransferStatuses[status],
	}, nil
}

type flwTransaction struct {
	ID        json.Number     `json:"id"`
	TxRef     string          `json:"tx_ref"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
}

func (t flwTransaction) toVerification(raw []byte) *Verification {
	ref := t.TxRef
	if ref == "" {
		ref = t.Reference
	}
	return &Verification{
		ExternalID: t.ID.String(),
		Reference:  ref,
		Status:     normaliseStatus(t.Status),
		RawStatus:  t.Status,
		Amount:     t.Amount,
		Currency:   t.Currency,
		Raw:        raw,
	}
}

func normaliseStatus(status string) VerificationStatus {
	switch strings.ToLower(status) {
	case "successful", "success", "completed":
		return VerificationSuccessful
	case "failed", "cancelled", "canceled", "reversed", "error":
		return VerificationFailed
	}
	return VerificationPending
}

func (s *FlutterwaveService) VerifyTransaction(ctx context.Context, externalID string) (*Verification, error) {
	var data flwTransaction
	raw, err := s.call(ctx, http.MethodGet, "/transactions/"+url.PathEscape(externalID)+"/verify", nil, &data)
	if err != nil {
		return nil, err
	}
	return data.toVerification(raw), nil
}

func (s *FlutterwaveService) VerifyTransfer(ctx context.Context, externalID string) (*Verification, error) {
	var data flwTransaction
	raw, err := s.call(ctx, http.MethodGet, "/transfers/"+url.PathEscape(externalID), nil, &data)
	if err != nil {
		return nil, err
	}
	return data.toVerification(raw), nil
}

func (s *FlutterwaveService) VerifyTransferByReference(ctx context.Context, reference string) (*Verification, error) {
	var data []flwTransaction
	raw, err := s.call(ctx, http.MethodGet, "/transfers?reference="+url.QueryEscape(reference), nil, &data)
	if err != nil {
		return nil, err
	}
	for _, t := range data {
		if t.Reference == reference {
			return t.toVerification(raw), nil
		}
	}
	return nil, fmt.Errorf("%w: transfer %s", ErrGatewayNotFound, reference)
}

func (s *FlutterwaveService) VerifyByReference(ctx context.Context, reference string) (*Verification, error) {
	var data flwTransaction
	raw, err := s.call(ctx, http.MethodGet, "/transactions/verify_by_reference?tx_ref="+url.QueryEscape(reference), nil, &data)
	if err != nil {
		return nil, err
	}
	return data.toVerification(raw), nil
}

func (s *FlutterwaveService) ResolveBankAccount(ctx context.Context, bankCode, accountNumber string) (*ResolvedAccount, error) {
	payload := map[string]string{
		"account_number": accountNumber,
		"account_bank":   bankCode,
	}
	var data struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
	}
	if _, err := s.call(ctx, http.MethodPost, "/accounts/resolve", payload, &data); err != nil {
		return nil, err
	}
	return &ResolvedAccount{AccountNumber: data.AccountNumber, AccountName: data.AccountName}, nil
}

func (s *FlutterwaveService) ListSupportedBanks(ctx context.Context, country string) ([]SupportedBank, error) {
	var data []SupportedBank
	if _, err := s.call(ctx, http.MethodGet, "/banks/"+url.PathEscape(country), nil, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// FlutterwaveWebhook is the subset of the webhook body the ledger reads.
type FlutterwaveWebhook struct {
	Event string `json:"event"`
	Data  struct {
		ID        json.Number `json:"id"`
		TxRef     string      `json:"tx_ref"`
		Reference string      `json:"reference"`
		Status    string      `json:"status"`
	} `json:"data"`
}

var ErrInvalidSignature = errors.New("invalid webhook signature")

// ParseWebhook checks the verif-hash header and converts the body into a callback.
// ok is false for events the ledger does not act on.
func (s *FlutterwaveService) ParseWebhook(signature string, body []byte) (dto CallbackDTO, ok bool, err error) {
	if s.Config.SecretHash == "" || !hmac.Equal([]byte(signature), []byte(s.Config.SecretHash)) {
		return dto, false, ErrInvalidSignature
	}

	var hook FlutterwaveWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return dto, false, validationError("malformed webhook body")
	}

	switch hook.Event {
	case "charge.completed":
		dto.TxRef = hook.Data.TxRef
	case "transfer.completed", "transfer.success", "transfer.failed", "transfer.reversed":
		dto.TxRef = hook.Data.Reference
	default:
		return dto, false, nil
	}
	dto.Status = hook.Data.Status
	dto.TransactionID = hook.Data.ID.String()
	if hook.Event == "transfer.reversed" {
		dto.Status = "failed"
	}
	return dto, true, nil
}
