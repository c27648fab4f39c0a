package models

import (
	"time"
)

const (
	CallbackLogFailed  = 0
	CallbackLogSuccess = 1
)

type CallbackLog struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Provider    string    `gorm:"column:provider;size:50;not null" json:"provider"`
	RequestType string    `gorm:"column:request_type;size:50" json:"request_type"` // callback, webhook, verify
	Reference   string    `gorm:"column:reference;size:64;index" json:"reference"`
	Request     string    `gorm:"column:request;type:longtext" json:"request"`
	Response    string    `gorm:"column:response;type:longtext" json:"response"`
	Status      int       `gorm:"column:status;default:0" json:"status"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CallbackLog) TableName() string {
	return "callback_logs"
}
