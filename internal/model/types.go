// Package model defines domain types used by the service.
package model

import (
	"time"

	"gorm.io/datatypes"
)

// Product is one customized sneaker record.
//
// TotalPrice is derived: BasePrice plus the price of every option in Features.
type Product struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name       string         `gorm:"size:255;not null;index:idx_sneakers_name" json:"name"`
	BasePrice  float64        `gorm:"type:decimal(10,2);not null;default:0" json:"base_price"`
	Features   datatypes.JSON `json:"features"`
	TotalPrice float64        `gorm:"type:decimal(10,2);not null;default:0" json:"total_price"`
	CreatedAt  time.Time      `gorm:"index:idx_sneakers_created,sort:desc" json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (Product) TableName() string { return "sneakers" }

// IndexOpKind selects the ownership index mutation.
type IndexOpKind string

const (
	IndexAdd    IndexOpKind = "add"
	IndexRemove IndexOpKind = "remove"
)

// IndexOp is a queued ownership index mutation.
type IndexOp struct {
	Kind      IndexOpKind `json:"kind"`
	ID        int64       `json:"id"`
	RequestID string      `json:"request_id,omitempty"`
	Sequence  uint64      `json:"-"`
}
