package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OwnerClub string

const (
	OwnerClubAll    OwnerClub = "all"
	OwnerClubGold   OwnerClub = "gold"
	OwnerClubSilver OwnerClub = "silver"
	OwnerClubBronze OwnerClub = "bronze"
)

func (c OwnerClub) Valid() bool {
	switch c {
	case OwnerClubAll, OwnerClubGold, OwnerClubSilver, OwnerClubBronze:
		return true
	}
	return false
}

type InvestibleAsset struct {
	ID             uint            `gorm:"primaryKey;autoIncrement" json:"-"`
	UID            string          `gorm:"column:uid;size:36;not null;uniqueIndex" json:"uid"`
	AssetName      string          `gorm:"column:asset_name;size:255;not null" json:"asset_name"`
	Location       string          `gorm:"column:location;size:255" json:"location"`
	About          string          `gorm:"column:about;type:text" json:"about"`
	Price          decimal.Decimal `gorm:"column:price;type:decimal(20,2);not null" json:"price"`
	Units          int64           `gorm:"column:units;not null" json:"units"`
	AvailableUnits int64           `gorm:"column:available_units;not null" json:"available_units"`
	OwnerClub      OwnerClub       `gorm:"column:owner_club;size:20;not null;default:all;index" json:"owner_club"`
	ROI            decimal.Decimal `gorm:"column:roi;type:decimal(10,2);not null;default:0" json:"roi"`
	MaturityDate   *time.Time      `gorm:"column:maturity_date" json:"maturity_date"`
	InvestmentExit string          `gorm:"column:investment_exit;size:255" json:"investment_exit"`
	InvestorCount  int64           `gorm:"column:investor_count;not null;default:0" json:"investor_count"`
	IsActive       bool            `gorm:"column:is_active;default:true" json:"is_active"`
	SoldOut        bool            `gorm:"column:sold_out;default:false" json:"sold_out"`
	AuthorID       uint            `gorm:"column:author_id" json:"author_id"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (InvestibleAsset) TableName() string {
	return "investible_assets"
}

func (a *InvestibleAsset) BeforeCreate(tx *gorm.DB) error {
	if a.UID == "" {
		a.UID = uuid.NewString()
	}
	return nil
}

// PricePerUnit is price divided by the total number of units.
func (a *InvestibleAsset) PricePerUnit() decimal.Decimal {
	if a.Units <= 0 {
		return decimal.Zero
	}
	return a.Price.Div(decimal.NewFromInt(a.Units)).Round(2)
}

type Investment struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"-"`
	UID       string          `gorm:"column:uid;size:36;not null;uniqueIndex" json:"uid"`
	AssetID   uint            `gorm:"column:asset_id;not null;index" json:"-"`
	UserID    uint            `gorm:"column:user_id;not null;index" json:"user_id"`
	WalletID  uint            `gorm:"column:wallet_id;not null" json:"wallet_id"`
	Units     int64           `gorm:"column:units;not null" json:"units"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(20,2);not null" json:"amount"`
	Reference string          `gorm:"column:reference;size:64;index" json:"reference"`
	IsActive  bool            `gorm:"column:is_active;default:false" json:"is_active"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Asset *InvestibleAsset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

func (Investment) TableName() string {
	return "investments"
}

func (i *Investment) BeforeCreate(tx *gorm.DB) error {
	if i.UID == "" {
		i.UID = uuid.NewString()
	}
	return nil
}

// AssetInvestor is the investor set of an asset.
type AssetInvestor struct {
	AssetID   uint      `gorm:"primaryKey;column:asset_id"`
	UserID    uint      `gorm:"primaryKey;column:user_id"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (AssetInvestor) TableName() string {
	return "asset_investors"
}
