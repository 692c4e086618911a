// Package fiscal builds the tax-authority line items submitted to the
// gateway after a payment is captured.
package fiscal

import (
	"fmt"

	"merch_shop/internal/models"
	"merch_shop/internal/money"
)

// VATPercent is the inclusive VAT rate mandated for these goods.
const VATPercent = 12

// LineItem is one sold good in the OFD submission. Field names and casing
// are fixed by the gateway's fiscal API.
type LineItem struct {
	Name           string         `json:"Name"`
	SPIC           string         `json:"SPIC"`
	PackageCode    string         `json:"PackageCode"`
	GoodPrice      int64          `json:"GoodPrice"`
	Price          int64          `json:"Price"`
	Amount         int            `json:"Amount"`
	VAT            int64          `json:"VAT"`
	VATPercent     int            `json:"VATPercent"`
	CommissionInfo CommissionInfo `json:"CommissionInfo"`
}

type CommissionInfo struct {
	TIN string `json:"TIN"`
}

// ComputeLineItem builds the fiscal record for a sale. All monetary inputs
// and outputs are in tiyin; the line item carries the real ordered quantity
// and the quantity-scaled total.
func ComputeLineItem(productName string, quantity int, unitPrice money.Amount) (LineItem, error) {
	entry, ok := models.Catalog[productName]
	if !ok {
		return LineItem{}, fmt.Errorf("%w: %s", models.ErrUnknownProduct, productName)
	}
	if quantity <= 0 {
		return LineItem{}, fmt.Errorf("%w: quantity must be positive, got %d", models.ErrInvalidInput, quantity)
	}
	if unitPrice <= 0 {
		return LineItem{}, fmt.Errorf("%w: unit price must be positive, got %d", models.ErrInvalidInput, unitPrice)
	}

	total := unitPrice.Mul(quantity)
	return LineItem{
		Name:           entry.Name,
		SPIC:           entry.SPIC,
		PackageCode:    entry.PackageCode,
		GoodPrice:      int64(unitPrice),
		Price:          int64(total),
		Amount:         quantity,
		VAT:            InclusiveVAT(total),
		VATPercent:     VATPercent,
		CommissionInfo: CommissionInfo{TIN: entry.CommissionTIN},
	}, nil
}

// InclusiveVAT extracts the VAT portion from a total that already includes
// the tax: round(total / 1.12 * 0.12), rounding half up. Integer arithmetic
// keeps the result exact for any tiyin total.
func InclusiveVAT(total money.Amount) int64 {
	return (int64(total)*VATPercent + (100+VATPercent)/2) / (100 + VATPercent)
}
