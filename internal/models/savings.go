package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type SavingsInterval string

const (
	IntervalDaily     SavingsInterval = "daily"
	IntervalWeekly    SavingsInterval = "weekly"
	IntervalMonthly   SavingsInterval = "monthly"
	IntervalQuarterly SavingsInterval = "quarterly"
	IntervalYearly    SavingsInterval = "yearly"
)

func (i SavingsInterval) Valid() bool {
	switch i {
	case IntervalDaily, IntervalWeekly, IntervalMonthly, IntervalQuarterly, IntervalYearly:
		return true
	}
	return false
}

type PaymentMode string

const (
	PaymentModeManual PaymentMode = "manual"
	PaymentModeAuto   PaymentMode = "auto"
)

type GoalSavingsPlan struct {
	ID                     uint            `gorm:"primaryKey;autoIncrement" json:"-"`
	UID                    string          `gorm:"column:uid;size:36;not null;uniqueIndex" json:"uid"`
	UserID                 uint            `gorm:"column:user_id;not null;index" json:"user_id"`
	WalletID               uint            `gorm:"column:wallet_id;not null" json:"wallet_id"`
	GoalName               string          `gorm:"column:goal_name;size:255;not null" json:"goal_name"`
	GoalDescription        string          `gorm:"column:goal_description;type:text" json:"goal_description"`
	GoalAmount             decimal.Decimal `gorm:"column:goal_amount;type:decimal(20,2);not null" json:"goal_amount"`
	FundSource             FundSource      `gorm:"column:fund_source;size:20;not null" json:"fund_source"`
	Interval               SavingsInterval `gorm:"column:interval;size:20;not null" json:"interval"`
	PaymentMode            PaymentMode     `gorm:"column:payment_mode;size:10;not null;default:manual" json:"payment_mode"`
	StartDate              time.Time       `gorm:"column:start_date" json:"start_date"`
	EndDate                time.Time       `gorm:"column:end_date" json:"end_date"`
	Cycles                 int             `gorm:"column:cycles;not null;default:1" json:"cycles"`
	AmountToSaveAtInterval decimal.Decimal `gorm:"column:amount_to_save_at_interval;type:decimal(20,2);not null;default:0" json:"amount_to_save_at_interval"`
	AmountSaved            decimal.Decimal `gorm:"column:amount_saved;type:decimal(20,2);not null;default:0" json:"amount_saved"`
	AmountWithdrawn        decimal.Decimal `gorm:"column:amount_withdrawn;type:decimal(20,2);not null;default:0" json:"amount_withdrawn"`
	IsActive               bool            `gorm:"column:is_active;default:true" json:"is_active"`
	IsCompleted            bool            `gorm:"column:is_completed;default:false" json:"is_completed"`
	IsWithdrawn            bool            `gorm:"column:is_withdrawn;default:false" json:"is_withdrawn"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	PaymentReferences []string `gorm:"-" json:"payment_references"`
}

func (GoalSavingsPlan) TableName() string {
	return "goal_savings_plans"
}

func (p *GoalSavingsPlan) BeforeCreate(tx *gorm.DB) error {
	if p.UID == "" {
		p.UID = uuid.NewString()
	}
	return nil
}

type LockedSavingsPlan struct {
	ID                 uint            `gorm:"primaryKey;autoIncrement" json:"-"`
	UID                string          `gorm:"column:uid;size:36;not null;uniqueIndex" json:"uid"`
	UserID             uint            `gorm:"column:user_id;not null;index" json:"user_id"`
	WalletID           uint            `gorm:"column:wallet_id;not null" json:"wallet_id"`
	AssetID            uint            `gorm:"column:asset_id;not null;index" json:"-"`
	LockName           string          `gorm:"column:lock_name;size:255;not null" json:"lock_name"`
	Units              int64           `gorm:"column:units;not null;default:1" json:"units"`
	TargetAmount       decimal.Decimal `gorm:"column:target_amount;type:decimal(20,2);not null" json:"target_amount"`
	AmountSaved        decimal.Decimal `gorm:"column:amount_saved;type:decimal(20,2);not null;default:0" json:"amount_saved"`
	AmountWithdrawn    decimal.Decimal `gorm:"column:amount_withdrawn;type:decimal(20,2);not null;default:0" json:"amount_withdrawn"`
	IsActive           bool            `gorm:"column:is_active;default:true" json:"is_active"`
	ReadyForInvestment bool            `gorm:"column:ready_for_investment;default:false" json:"ready_for_investment"`
	Invested           bool            `gorm:"column:invested;default:false" json:"invested"`
	IsWithdrawn        bool            `gorm:"column:is_withdrawn;default:false" json:"is_withdrawn"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`

	Asset             *InvestibleAsset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	PaymentReferences []string         `gorm:"-" json:"payment_references"`
}

func (LockedSavingsPlan) TableName() string {
	return "locked_savings_plans"
}

func (p *LockedSavingsPlan) BeforeCreate(tx *gorm.DB) error {
	if p.UID == "" {
		p.UID = uuid.NewString()
	}
	return nil
}
