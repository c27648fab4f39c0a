package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal records where a withdrawal transaction was sent.
type Withdrawal struct {
	ID             uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionID  uint            `gorm:"column:transaction_id;not null;uniqueIndex" json:"transaction_id"`
	Reference      string          `gorm:"column:reference;size:64;not null;index" json:"reference"`
	UserID         uint            `gorm:"column:user_id;not null;index" json:"user_id"`
	BankAccountID  uint            `gorm:"column:bank_account_id;not null" json:"bank_account_id"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	AccountNumber  string          `gorm:"column:account_number;size:20" json:"account_number"`
	AccountName    string          `gorm:"column:account_name;size:250" json:"account_name"`
	BankCode       string          `gorm:"column:bank_code;size:20" json:"bank_code"`
	TransferID     string          `gorm:"column:transfer_id;size:64" json:"transfer_id"`
	TransferStatus string          `gorm:"column:transfer_status;size:40" json:"transfer_status"`
	Comment        string          `gorm:"column:comment;type:text" json:"comment"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Withdrawal) TableName() string {
	return "withdrawals"
}
