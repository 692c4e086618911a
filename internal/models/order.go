package models

import (
	"merch_shop/internal/money"
	"time"
)

type Order struct {
	ID               uint          `json:"id" gorm:"primaryKey"`
	ClientID         int64         `json:"client_id" gorm:"index;not null"`
	Product          string        `json:"product" gorm:"not null"`
	Quantity         int           `json:"quantity" gorm:"not null"`
	DesignText       string        `json:"design_text"`
	DesignAssetRef   string        `json:"design_asset_ref"`
	LocationLat      *float64      `json:"location_lat"`
	LocationLon      *float64      `json:"location_lon"`
	DeliveryComment  string        `json:"delivery_comment"`
	Status           OrderStatus   `json:"status" gorm:"not null"`
	UnitPrice        *money.Amount `json:"unit_price"`
	TotalAmount      *money.Amount `json:"total_amount"`
	MerchantTransID  *string       `json:"merchant_trans_id" gorm:"uniqueIndex"`
	GatewayPrepareID *string       `json:"gateway_prepare_id"`
	PaymentURL       string        `json:"payment_url"`
	IsPaid           bool          `json:"is_paid" gorm:"not null;default:false"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

type OrderStatus string

const (
	OrderAwaitingApproval     OrderStatus = "awaiting_approval"
	OrderAwaitingPrice        OrderStatus = "awaiting_price"
	OrderAwaitingConfirmation OrderStatus = "awaiting_client_confirmation"
	OrderAwaitingPayment      OrderStatus = "awaiting_payment"
	OrderProcessing           OrderStatus = "processing"
	OrderCompleted            OrderStatus = "completed"
	OrderRejectedByAdmin      OrderStatus = "rejected_by_admin"
	OrderCancelledByClient    OrderStatus = "cancelled_by_client"
)

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderRejectedByAdmin, OrderCancelledByClient:
		return true
	}
	return false
}

// PrePayment reports whether the order can still be cancelled by the client.
func (s OrderStatus) PrePayment() bool {
	switch s {
	case OrderAwaitingApproval, OrderAwaitingPrice, OrderAwaitingConfirmation, OrderAwaitingPayment:
		return true
	}
	return false
}
