package models

import (
	"time"
)

// Bank caches the gateway's supported bank list per country.
type Bank struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Code      string    `gorm:"column:code;size:20;not null;uniqueIndex:idx_bank_country_code" json:"code"`
	Name      string    `gorm:"column:name;size:150;not null" json:"name"`
	Country   string    `gorm:"column:country;size:8;not null;default:NG;uniqueIndex:idx_bank_country_code" json:"country"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (Bank) TableName() string {
	return "banks"
}

type BankAccount struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint      `gorm:"column:user_id;not null;index" json:"user_id"`
	WalletID      uint      `gorm:"column:wallet_id;not null;index" json:"wallet_id"`
	BankCode      string    `gorm:"column:bank_code;size:20;not null" json:"bank_code"`
	BankName      string    `gorm:"column:bank_name;size:150" json:"bank_name"`
	AccountNumber string    `gorm:"column:account_number;size:20;not null" json:"account_number"`
	AccountName   string    `gorm:"column:account_name;size:250" json:"account_name"`
	IsActive      bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (BankAccount) TableName() string {
	return "bank_accounts"
}
