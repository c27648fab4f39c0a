package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleUser      Role = "user"
	RoleGuest     Role = "guest"
	RoleAffiliate Role = "affiliate"
)

type KYCStatus string

const (
	KYCApproved KYCStatus = "approved"
	KYCPending  KYCStatus = "pending"
	KYCRejected KYCStatus = "rejected"
)

// User mirrors the identity service record. Only the fields the ledger
// needs to enforce its preconditions are kept here.
type User struct {
	ID                   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email                string    `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	FirstName            string    `gorm:"column:first_name;size:150" json:"first_name"`
	LastName             string    `gorm:"column:last_name;size:150" json:"last_name"`
	Role                 Role      `gorm:"column:role;size:20;not null;default:user" json:"role"`
	KYCStatus            KYCStatus `gorm:"column:kyc_status;size:20;not null;default:pending" json:"kyc_status"`
	HasPaidMembershipFee bool      `gorm:"column:has_paid_membership_fee;default:false" json:"has_paid_membership_fee"`
	ReferredBy           string    `gorm:"column:referred_by;size:16;index" json:"referred_by,omitempty"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u *User) KYCApproved() bool {
	return u.KYCStatus == KYCApproved
}
