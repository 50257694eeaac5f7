package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Coupon discount kinds as the backend reports them
const (
	CouponTypePercentage  = "percentage"
	CouponTypeFixedAmount = "fixed_amount"
)

// Payment methods accepted at the terminal
const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
)

// Product is a catalog entry as served by the backend
type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Barcode     string          `json:"barcode"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	CategoryID  int             `json:"category_id"`
	WarehouseID int             `json:"warehouse_id"`
}

// EntityID implements store.Entity
func (p Product) EntityID() int { return p.ID }

// Warehouse is a stock location
type Warehouse struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
}

func (w Warehouse) EntityID() int { return w.ID }

// InventoryRecord is a per-warehouse stock level
type InventoryRecord struct {
	ID          int       `json:"id"`
	ProductID   int       `json:"product_id"`
	WarehouseID int       `json:"warehouse_id"`
	Quantity    int       `json:"quantity"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r InventoryRecord) EntityID() int { return r.ID }

// Customer is a registered buyer
type Customer struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func (c Customer) EntityID() int { return c.ID }

// Coupon is a discount voucher verified against the backend
type Coupon struct {
	ID            int             `json:"id"`
	Code          string          `json:"code"`
	CouponType    string          `json:"coupon_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	StartDate     time.Time       `json:"start_date"`
	EndDate       time.Time       `json:"end_date"`
	IsValid       bool            `json:"is_valid"`
	UsedCount     int             `json:"used_count"`
	MaxUsageCount int             `json:"max_usage_count"`
}

// SaleItem is one cart line of a completed or draft sale
type SaleItem struct {
	ID        int             `json:"id,omitempty"`
	ProductID int             `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Sale is a completed sale as served by the backend
type Sale struct {
	ID             int             `json:"id"`
	ReceiptNumber  string          `json:"receipt_number"`
	CashierID      int             `json:"cashier_id"`
	CustomerID     int             `json:"customer_id,omitempty"`
	WarehouseID    int             `json:"warehouse_id"`
	Items          []SaleItem      `json:"items"`
	SubTotal       decimal.Decimal `json:"sub_total"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaymentMethod  string          `json:"payment_method"`
	AmountTendered decimal.Decimal `json:"amount_tendered"`
	ChangeDue      decimal.Decimal `json:"change_due"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (s Sale) EntityID() int { return s.ID }

// SaleDraft is the payload the terminal submits to create a sale.
// It carries everything the backend needs and everything the offline
// queue must preserve for a later replay.
type SaleDraft struct {
	CashierID      int             `json:"cashier_id"`
	CustomerID     int             `json:"customer_id,omitempty"`
	WarehouseID    int             `json:"warehouse_id"`
	Items          []SaleItem      `json:"items"`
	SubTotal       decimal.Decimal `json:"sub_total"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	PaymentMethod  string          `json:"payment_method"`
	AmountTendered decimal.Decimal `json:"amount_tendered"`
	ChangeDue      decimal.Decimal `json:"change_due"`
	CouponCode     string          `json:"coupon_code,omitempty"`
}
