package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "pending"
	TransactionSuccessful TransactionStatus = "successful"
	TransactionFailed     TransactionStatus = "failed"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionSuccessful || s == TransactionFailed
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionPending, TransactionSuccessful, TransactionFailed:
		return true
	}
	return false
}

type TransactionType string

const (
	TxMembershipFee         TransactionType = "membership_fee"
	TxCredit                TransactionType = "credit"
	TxDebit                 TransactionType = "debit"
	TxTopup                 TransactionType = "topup"
	TxWithdrawal            TransactionType = "withdrawal"
	TxInvestment            TransactionType = "investment"
	TxSavingsAddFunds       TransactionType = "savings_add_funds"
	TxLockedSavingsAddFunds TransactionType = "locked_savings_add_funds"
	TxReferralBonusDeposit  TransactionType = "referral_bonus_deposit"
	TxAffiliateBonusDeposit TransactionType = "affiliate_bonus_deposit"
)

// TransactionTypes lists every known type. Keep in sync with the funding dispatch.
var TransactionTypes = []TransactionType{
	TxMembershipFee, TxCredit, TxDebit, TxTopup, TxWithdrawal, TxInvestment,
	TxSavingsAddFunds, TxLockedSavingsAddFunds, TxReferralBonusDeposit, TxAffiliateBonusDeposit,
}

func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// GatewaySettleable reports whether a gateway callback may complete this type.
// Bonus deposits originate internally and never go through the gateway.
func (t TransactionType) GatewaySettleable() bool {
	switch t {
	case TxMembershipFee, TxCredit, TxDebit, TxTopup, TxWithdrawal, TxInvestment,
		TxSavingsAddFunds, TxLockedSavingsAddFunds:
		return true
	case TxReferralBonusDeposit, TxAffiliateBonusDeposit:
		return false
	}
	return false
}

// PreDebited types take money out of the wallet when initiated, before the gateway confirms.
func (t TransactionType) PreDebited() bool {
	return t == TxWithdrawal || t == TxDebit
}

type FundSource string

const (
	FundSourceWallet      FundSource = "wallet"
	FundSourceBankAccount FundSource = "bank_account"
	FundSourceCard        FundSource = "card"
	FundSourceNone        FundSource = "none"
)

func (f FundSource) Valid() bool {
	switch f {
	case FundSourceWallet, FundSourceBankAccount, FundSourceCard, FundSourceNone:
		return true
	}
	return false
}

// ViaGateway reports whether settlement goes through the payment gateway.
func (f FundSource) ViaGateway() bool {
	return f == FundSourceBankAccount || f == FundSourceCard
}

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

func (d Direction) Valid() bool {
	return d == DirectionIncoming || d == DirectionOutgoing
}

type Transaction struct {
	ID            uint                `gorm:"primaryKey;autoIncrement" json:"id"`
	Reference     string              `gorm:"column:reference;size:64;not null;uniqueIndex" json:"reference"`
	Initiator     uint                `gorm:"column:initiator;not null;index" json:"initiator"`
	WalletID      uint                `gorm:"column:wallet_id;not null;index" json:"wallet_id"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Fee           decimal.Decimal     `gorm:"column:fee;type:decimal(20,2);not null;default:0" json:"fee"`
	Currency      string              `gorm:"column:currency;size:10;not null" json:"currency"`
	FundSource    FundSource          `gorm:"column:fund_source;size:20;not null" json:"fund_source"`
	Direction     Direction           `gorm:"column:direction;size:10;not null" json:"direction"`
	Type          TransactionType     `gorm:"column:type;size:40;not null;index" json:"type"`
	Status        TransactionStatus   `gorm:"column:status;size:20;not null;default:pending;index:idx_trx_status_created" json:"status"`
	ExternalID    *string             `gorm:"column:external_id;size:128" json:"external_id"`
	EntityUID     string              `gorm:"column:entity_uid;size:64;index" json:"entity_uid,omitempty"`
	BalanceBefore decimal.Decimal     `gorm:"column:balance_before;type:decimal(20,2);not null;default:0" json:"balance_before"`
	BalanceAfter  decimal.NullDecimal `gorm:"column:balance_after;type:decimal(20,2)" json:"balance_after"`
	Description   string              `gorm:"column:description;type:text" json:"description"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime;index:idx_trx_status_created" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Conserved reports whether the balance snapshots agree with amount and direction.
// Transactions without a balance-after snapshot trivially conserve.
func (t *Transaction) Conserved() bool {
	if !t.BalanceAfter.Valid {
		return true
	}
	want := t.BalanceBefore.Add(t.Amount)
	if t.Direction == DirectionOutgoing {
		want = t.BalanceBefore.Sub(t.Amount)
	}
	return t.BalanceAfter.Decimal.Equal(want)
}
