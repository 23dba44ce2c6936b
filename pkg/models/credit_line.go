package models

import (
	"time"

	"github.com/komgo/credit-lines/pkg/database"
)

// CreditLine holds one counterparty's credit-line terms for a product context.
// At most one row exists per (product, sub-product, counterparty).
type CreditLine struct {
	StaticID             string                         `db:"static_id" json:"staticId"`
	CounterpartyStaticID string                         `db:"counterparty_static_id" json:"counterpartyStaticId"`
	ProductID            string                         `db:"product_id" json:"productId"`
	SubProductID         string                         `db:"sub_product_id" json:"subProductId"`
	Appetite             bool                           `db:"appetite" json:"appetite"`
	Currency             string                         `db:"currency" json:"currency"`
	CreditLimit          *int64                         `db:"credit_limit" json:"creditLimit,omitempty"`
	Availability         bool                           `db:"availability" json:"availability"`
	AvailabilityAmount   *int64                         `db:"availability_amount" json:"availabilityAmount,omitempty"`
	Data                 database.JSONB[map[string]any] `db:"data" json:"data"`
	CreatedAt            time.Time                      `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time                      `db:"updated_at" json:"updatedAt"`
}

func (CreditLine) TableName() string {
	return "credit_lines"
}

// Context returns the product context the line belongs to.
func (c *CreditLine) Context() ProductContext {
	return ProductContext{ProductID: c.ProductID, SubProductID: c.SubProductID}
}

// CreditLineView is a credit line joined with its current shared set.
type CreditLineView struct {
	CreditLine
	SharedCreditLines []SharedCreditLine `json:"sharedCreditLines"`
}
