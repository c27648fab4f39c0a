package services

import (
	"context"

	"github.com/shopspring/decimal"
)

type VerificationStatus string

const (
	VerificationSuccessful VerificationStatus = "successful"
	VerificationPending    VerificationStatus = "pending"
	VerificationFailed     VerificationStatus = "failed"
)

type Customer struct {
	Email string
	Name  string
}

type PaymentRequest struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	RedirectURL string
	Customer    Customer
	Title       string
	Description string
}

type PaymentLink struct {
	Link string
}

type TransferRequest struct {
	Reference     string
	Amount        decimal.Decimal
	Currency      string
	BankCode      string
	AccountNumber string
	Narration     string
	CallbackURL   string
}

type TransferResult struct {
	ExternalID string
	Status     string
	Accepted   bool
}

// Verification is the gateway's authoritative view of a payment or transfer.
type Verification struct {
	ExternalID string
	Reference  string
	Status     VerificationStatus
	RawStatus  string
	Amount     decimal.Decimal
	Currency   string
	Raw        []byte
}

type ResolvedAccount struct {
	AccountNumber string
	AccountName   string
}

type SupportedBank struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Gateway is the payment provider boundary. Transport failures and 5xx
// responses are returned wrapped in ErrGatewayUnavailable; other non-success
// answers wrap ErrGateway (or ErrGatewayNotFound).
type Gateway interface {
	Name() string
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentLink, error)
	InitiateTransfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	VerifyTransaction(ctx context.Context, externalID string) (*Verification, error)
	VerifyTransfer(ctx context.Context, externalID string) (*Verification, error)
	// VerifyTransferByReference finds a transfer by our reference. It returns
	// ErrGatewayNotFound when the gateway never queued one.
	VerifyTransferByReference(ctx context.Context, reference string) (*Verification, error)
	VerifyByReference(ctx context.Context, reference string) (*Verification, error)
	ResolveBankAccount(ctx context.Context, bankCode, accountNumber string) (*ResolvedAccount, error)
	ListSupportedBanks(ctx context.Context, country string) ([]SupportedBank, error)
}
