package model

import (
	"time"

	"gorm.io/gorm"
)

// 商品バリアント。IDはホスト側のvariant_idそのもの（14桁程度）を使う。
type Variant struct {
	ID        int64          `gorm:"primaryKey;autoIncrement:false" json:"id" yaml:"id"`
	Title     string         `gorm:"type:varchar(255);not null" json:"title" yaml:"title"`
	Price     int64          `gorm:"not null" json:"price" yaml:"price"`
	Stock     int64          `gorm:"not null" json:"stock" yaml:"stock"`
	Available bool           `gorm:"not null;default:false" json:"available" yaml:"available"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at" yaml:"-"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at" yaml:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-" yaml:"-"`
}
