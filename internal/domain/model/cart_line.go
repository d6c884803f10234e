package model

import "time"

// カートの明細
// Keyは「variantID:ランダム」で、/cart/change.js と /cart/update.js の指定に使う。
type CartLine struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64     `gorm:"not null;index" json:"cart_id"`
	VariantID         int64     `gorm:"not null;index" json:"variant_id"`
	Key               string    `gorm:"type:varchar(128);not null;uniqueIndex;column:line_key" json:"key"`
	Quantity          int64     `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot int64     `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	Properties        string    `gorm:"type:text" json:"-"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
