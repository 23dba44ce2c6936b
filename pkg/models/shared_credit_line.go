package models

import (
	"time"

	"github.com/komgo/credit-lines/pkg/database"
)

// SharedFlag marks a single credit-line field as disclosed or withheld.
type SharedFlag struct {
	Shared bool `json:"shared"`
}

// SharedCreditLineData lists which fields of the parent credit line are
// disclosed to the receiving company. Each field is flagged independently.
type SharedCreditLineData struct {
	Appetite           SharedFlag `json:"appetite"`
	CreditLimit        SharedFlag `json:"creditLimit"`
	Availability       SharedFlag `json:"availability"`
	AvailabilityAmount SharedFlag `json:"availabilityAmount"`
}

// SharedCreditLine records the disclosure of a credit line to one company.
// It always references a live parent; orphans are deleted, never kept.
type SharedCreditLine struct {
	StaticID             string                               `db:"static_id" json:"staticId"`
	CreditLineStaticID   string                               `db:"credit_line_static_id" json:"creditLineStaticId"`
	CounterpartyStaticID string                               `db:"counterparty_static_id" json:"counterpartyStaticId"`
	SharedWithStaticID   string                               `db:"shared_with_static_id" json:"sharedWithStaticId"`
	Data                 database.JSONB[SharedCreditLineData] `db:"data" json:"data"`
	CreatedAt            time.Time                            `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time                            `db:"updated_at" json:"updatedAt"`
}

func (SharedCreditLine) TableName() string {
	return "shared_credit_lines"
}
