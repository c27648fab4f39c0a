package services

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation                 = errors.New("validation failed")
	ErrForbidden                  = errors.New("forbidden")
	ErrWalletNotFound             = errors.New("wallet not found")
	ErrUserNotFound               = errors.New("user not found")
	ErrEntityNotFound             = errors.New("entity not found")
	ErrTransactionNotFound        = errors.New("transaction not found")
	ErrInsufficientFunds          = errors.New("insufficient funds")
	ErrUnsupportedTransactionType = errors.New("unsupported transaction type")
	ErrUnknownTransactionType     = errors.New("unknown transaction type")
	ErrVerificationMismatch       = errors.New("gateway verification mismatch")
	ErrGatewayUnavailable         = errors.New("payment gateway unavailable")
	ErrGateway                    = errors.New("payment gateway error")
	ErrGatewayNotFound            = errors.New("payment gateway: not found")
	ErrWithdrawalInitiationFailed = errors.New("withdrawal initiation failed")
	ErrBelowThreshold             = errors.New("below withdrawal threshold")
	ErrConflict                   = errors.New("concurrent update")
	ErrFundingRejected            = errors.New("funding rejected")
	ErrAlreadyApplied             = errors.New("reference already applied")
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindForbidden         ErrorKind = "forbidden"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindConflict          ErrorKind = "conflict"
	KindConsistency       ErrorKind = "consistency"
	KindGatewayDown       ErrorKind = "gateway_unavailable"
	KindGateway           ErrorKind = "gateway"
	KindInternal          ErrorKind = "internal"
)

// AppError is a failure with a message that is safe to show the caller.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func validationError(msg string) error {
	return &AppError{Kind: KindValidation, Message: msg, Err: ErrValidation}
}

func forbiddenError(msg string) error {
	return &AppError{Kind: KindForbidden, Message: msg, Err: ErrForbidden}
}

func notFoundError(msg string, err error) error {
	return &AppError{Kind: KindNotFound, Message: msg, Err: err}
}

// Classify maps any error to a kind and a caller-facing message. Gateway and
// consistency details are replaced by a generic message.
func Classify(err error) (ErrorKind, string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case KindConsistency, KindGateway, KindInternal:
			return appErr.Kind, "We could not complete this transaction. Please try again later."
		}
		return appErr.Kind, appErr.Message
	}

	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation, err.Error()
	case errors.Is(err, ErrWalletNotFound):
		return KindNotFound, "Wallet not found"
	case errors.Is(err, ErrUserNotFound):
		return KindNotFound, "User not found"
	case errors.Is(err, ErrTransactionNotFound):
		return KindNotFound, "Transaction not found"
	case errors.Is(err, ErrEntityNotFound):
		return KindNotFound, "The resource you requested does not exist!"
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds, "You do not have enough balance"
	case errors.Is(err, ErrBelowThreshold):
		return KindValidation, "You have not reached the minimum withdrawal threshold!"
	case errors.Is(err, ErrUnsupportedTransactionType):
		return KindValidation, "Unsupported transaction type"
	case errors.Is(err, ErrConflict):
		return KindConflict, "The resource was modified concurrently. Please retry."
	case errors.Is(err, ErrGatewayUnavailable):
		return KindGatewayDown, "The payment provider is temporarily unavailable. Please retry."
	case errors.Is(err, ErrWithdrawalInitiationFailed):
		return KindGateway, "Your withdrawal could not be initiated. Your wallet has been refunded."
	case errors.Is(err, ErrGateway), errors.Is(err, ErrVerificationMismatch):
		return KindGateway, "We could not complete this transaction. Please try again later."
	case errors.Is(err, ErrForbidden):
		return KindForbidden, "You are not allowed to perform this action"
	}
	return KindInternal, "Something went wrong"
}

// HTTPStatus maps an error kind to a response status.
func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindGatewayDown:
		return http.StatusServiceUnavailable
	case KindGateway, KindConsistency:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
