package models

import (
	"time"
)

// Entity kinds an applied reference can guard.
const (
	EntityWallet             = "wallet"
	EntityWalletReversal     = "wallet_reversal"
	EntityMembership         = "membership"
	EntityInvestment         = "investment"
	EntityGoalSavingsPlan    = "goal_savings_plan"
	EntityLockedSavingsPlan  = "locked_savings_plan"
	EntityReferralCode       = "referral_code"
	EntityAffiliateCode      = "affiliate_code"
	EntityWithdrawalComplete = "withdrawal"
)

// AppliedReference marks that a payment reference has been applied to an entity.
// The unique index makes the insert the idempotency guard.
type AppliedReference struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	EntityType string    `gorm:"column:entity_type;size:40;not null;uniqueIndex:idx_applied_entity_ref"`
	EntityID   uint      `gorm:"column:entity_id;not null;index"`
	Reference  string    `gorm:"column:reference;size:64;not null;uniqueIndex:idx_applied_entity_ref"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (AppliedReference) TableName() string {
	return "applied_references"
}
