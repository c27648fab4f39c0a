package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID                     uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID                 uint            `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Balance                decimal.Decimal `gorm:"column:balance;type:decimal(20,2);not null;default:0" json:"balance"`
	Currency               string          `gorm:"column:currency;size:10;not null" json:"currency"`
	IsActive               bool            `gorm:"column:is_active;default:false" json:"is_active"`
	TotalDeposited         decimal.Decimal `gorm:"column:total_deposited;type:decimal(20,2);not null;default:0" json:"total_deposited"`
	TotalWithdrawn         decimal.Decimal `gorm:"column:total_withdrawn;type:decimal(20,2);not null;default:0" json:"total_withdrawn"`
	TotalInvested          decimal.Decimal `gorm:"column:total_invested;type:decimal(20,2);not null;default:0" json:"total_invested"`
	TotalInvestedWithdrawn decimal.Decimal `gorm:"column:total_invested_withdrawn;type:decimal(20,2);not null;default:0" json:"total_invested_withdrawn"`
	TotalSaved             decimal.Decimal `gorm:"column:total_saved;type:decimal(20,2);not null;default:0" json:"total_saved"`
	TotalSavedWithdrawn    decimal.Decimal `gorm:"column:total_saved_withdrawn;type:decimal(20,2);not null;default:0" json:"total_saved_withdrawn"`
	LastTransactionAt      *time.Time      `gorm:"column:last_transaction_at" json:"last_transaction_at"`
	Version                int64           `gorm:"column:version;not null;default:0" json:"-"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}
