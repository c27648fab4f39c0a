package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferralProfile struct {
	ID                 uint            `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID             uint            `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Code               string          `gorm:"column:code;size:16;not null;uniqueIndex" json:"referral_code"`
	ReferralCount      int64           `gorm:"column:referral_count;not null;default:0" json:"referral_count"`
	ReferralBonus      decimal.Decimal `gorm:"column:referral_bonus;type:decimal(20,2);not null;default:0" json:"referral_bonus"`
	TotalReferralBonus decimal.Decimal `gorm:"column:total_referral_bonus;type:decimal(20,2);not null;default:0" json:"total_referral_bonus"`
	IsActive           bool            `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ReferralProfile) TableName() string {
	return "referral_profiles"
}

type AffiliateProfile struct {
	ID        uint            `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    uint            `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	IsActive  bool            `gorm:"column:is_active;default:true" json:"is_active"`
	Codes     []AffiliateCode `gorm:"foreignKey:AffiliateID" json:"referral_codes"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (AffiliateProfile) TableName() string {
	return "affiliate_profiles"
}

// ReferralCount sums the per-code counts.
func (p *AffiliateProfile) ReferralCount() int64 {
	var n int64
	for _, c := range p.Codes {
		n += c.Count
	}
	return n
}

// ReferralBonus sums the unwithdrawn per-code bonuses.
func (p *AffiliateProfile) ReferralBonus() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Codes {
		total = total.Add(c.Bonus)
	}
	return total
}

func (p *AffiliateProfile) TotalReferralBonus() decimal.Decimal {
	total := decimal.Zero
	for _, c := range p.Codes {
		total = total.Add(c.TotalBonus)
	}
	return total
}

type AffiliateCode struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	AffiliateID uint            `gorm:"column:affiliate_id;not null;index" json:"-"`
	Code        string          `gorm:"column:code;size:16;not null;uniqueIndex" json:"code"`
	Count       int64           `gorm:"column:count;not null;default:0" json:"count"`
	Bonus       decimal.Decimal `gorm:"column:bonus;type:decimal(20,2);not null;default:0" json:"bonus"`
	TotalBonus  decimal.Decimal `gorm:"column:total_bonus;type:decimal(20,2);not null;default:0" json:"total_bonus"`
	IsActive    bool            `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (AffiliateCode) TableName() string {
	return "affiliate_codes"
}

// Referral records one member credited to a referral profile.
type Referral struct {
	ID                uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProfileID         uint            `gorm:"column:profile_id;not null;index" json:"-"`
	ReferredBy        uint            `gorm:"column:referred_by;not null;index" json:"referred_by"`
	ReferredUserID    uint            `gorm:"column:referred_user_id;not null;index" json:"referred_user_id"`
	ReferredUserEmail string          `gorm:"column:referred_user_email;size:255" json:"referred_user_email"`
	ReferredUserName  string          `gorm:"column:referred_user_name;size:300" json:"referred_user_name"`
	Code              string          `gorm:"column:code;size:16;not null" json:"referral_code"`
	Reference         string          `gorm:"column:reference;size:64;not null;uniqueIndex" json:"reference"`
	Bonus             decimal.Decimal `gorm:"column:bonus;type:decimal(20,2);not null;default:0" json:"referral_bonus"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (Referral) TableName() string {
	return "referrals"
}

// AffiliateReferral records one member credited to an affiliate code.
type AffiliateReferral struct {
	ID                uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	AffiliateID       uint            `gorm:"column:affiliate_id;not null;index" json:"-"`
	Affiliate         uint            `gorm:"column:affiliate_user_id;not null;index" json:"affiliate"`
	CodeID            uint            `gorm:"column:code_id;not null;index" json:"referral_code_id"`
	Code              string          `gorm:"column:code;size:16;not null" json:"referral_code"`
	ReferredUserID    uint            `gorm:"column:referred_user_id;not null;index" json:"referred_user_id"`
	ReferredUserEmail string          `gorm:"column:referred_user_email;size:255" json:"referred_user_email"`
	ReferredUserName  string          `gorm:"column:referred_user_name;size:300" json:"referred_user_name"`
	Reference         string          `gorm:"column:reference;size:64;not null;uniqueIndex" json:"reference"`
	Bonus             decimal.Decimal `gorm:"column:bonus;type:decimal(20,2);not null;default:0" json:"referral_bonus"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}

func (AffiliateReferral) TableName() string {
	return "affiliate_referrals"
}
