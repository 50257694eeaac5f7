package models

import (
	"time"

	"gorm.io/datatypes"
)

// OfflineSale is a sale draft captured while the backend was
// unreachable. Rows are immutable after capture except for Synced.
type OfflineSale struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Draft      datatypes.JSON `gorm:"not null" json:"draft"`
	ReceiptRef string         `gorm:"type:varchar(64);not null" json:"receipt_ref"`
	CapturedAt time.Time      `gorm:"not null;index:idx_offline_sales_captured" json:"captured_at"`
	Synced     bool           `gorm:"not null;default:false;index:idx_offline_sales_synced" json:"synced"`
}

// TableName specifies the table name
func (OfflineSale) TableName() string {
	return "offline_sales"
}

// OfflineProduct is one row of the offline product cache. The cache is
// a full snapshot of the last successful catalog fetch, replaced
// wholesale on refresh.
type OfflineProduct struct {
	ID      int            `gorm:"primaryKey" json:"id"`
	Name    string         `gorm:"type:varchar(255);index:idx_offline_products_name" json:"name"`
	Barcode string         `gorm:"type:varchar(64);uniqueIndex:idx_offline_products_barcode" json:"barcode"`
	Data    datatypes.JSON `gorm:"not null" json:"data"`
}

// TableName specifies the table name
func (OfflineProduct) TableName() string {
	return "offline_products"
}
