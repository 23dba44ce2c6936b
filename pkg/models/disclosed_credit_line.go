package models

import (
	"time"

	"github.com/komgo/credit-lines/pkg/database"
)

// DisclosureStatus tracks whether a received disclosure is still live.
type DisclosureStatus string

const (
	DisclosureStatusDisclosed DisclosureStatus = "DISCLOSED"
	DisclosureStatusRevoked   DisclosureStatus = "REVOKED"
)

// DisclosedCreditLine is the receive-side record of what another company has
// disclosed to us about a counterparty. One row per
// (owner, counterparty, product context); updated exclusively by inbound
// messaging, the REST surface is read-only.
type DisclosedCreditLine struct {
	StaticID             string                         `db:"static_id" json:"staticId"`
	OwnerStaticID        string                         `db:"owner_static_id" json:"ownerStaticId"`
	CounterpartyStaticID string                         `db:"counterparty_static_id" json:"counterpartyStaticId"`
	ProductID            string                         `db:"product_id" json:"productId"`
	SubProductID         string                         `db:"sub_product_id" json:"subProductId"`
	Appetite             bool                           `db:"appetite" json:"appetite"`
	Currency             string                         `db:"currency" json:"currency"`
	CreditLimit          *int64                         `db:"credit_limit" json:"creditLimit,omitempty"`
	Availability         bool                           `db:"availability" json:"availability"`
	AvailabilityAmount   *int64                         `db:"availability_amount" json:"availabilityAmount,omitempty"`
	Data                 database.JSONB[map[string]any] `db:"data" json:"data"`
	Status               DisclosureStatus               `db:"status" json:"status"`
	CreatedAt            time.Time                      `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time                      `db:"updated_at" json:"updatedAt"`
}

func (DisclosedCreditLine) TableName() string {
	return "disclosed_credit_lines"
}

// Context returns the product context of the disclosure.
func (d *DisclosedCreditLine) Context() ProductContext {
	return ProductContext{ProductID: d.ProductID, SubProductID: d.SubProductID}
}
