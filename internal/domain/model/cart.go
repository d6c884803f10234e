package model

import "time"

type CartStatus string

const (
	CartStatusActive     CartStatus = "ACTIVE"
	CartStatusCheckedOut CartStatus = "CHECKED_OUT"
	CartStatusAbandoned  CartStatus = "ABANDONED"
)

// cartクッキーのトークン1つにつきカート1つ
type Cart struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Token        string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"token"`
	Status       CartStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	DiscountCode string     `gorm:"type:varchar(64);not null;default:''" json:"discount_code"`
	Note         string     `gorm:"type:text" json:"note"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
