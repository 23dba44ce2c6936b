package models

import "time"

// DepositLoanType distinguishes the two exposure directions.
type DepositLoanType string

const (
	DepositLoanTypeDeposit DepositLoanType = "DEPOSIT"
	DepositLoanTypeLoan    DepositLoanType = "LOAN"
)

// DepositLoanPeriod is the tenor bucket of a deposit/loan record.
type DepositLoanPeriod string

const (
	PeriodOvernight DepositLoanPeriod = "OVERNIGHT"
	PeriodWeeks     DepositLoanPeriod = "WEEKS"
	PeriodMonths    DepositLoanPeriod = "MONTHS"
	PeriodYears     DepositLoanPeriod = "YEARS"
)

// DepositLoan is a currency/tenor appetite record shared between
// counterparties. Unique per (type, currency, period, periodDuration).
type DepositLoan struct {
	StaticID       string            `db:"static_id" json:"staticId"`
	Type           DepositLoanType   `db:"type" json:"type"`
	Currency       string            `db:"currency" json:"currency"`
	Period         DepositLoanPeriod `db:"period" json:"period"`
	PeriodDuration *int              `db:"period_duration" json:"periodDuration,omitempty"`
	Appetite       bool              `db:"appetite" json:"appetite"`
	Pricing        *float64          `db:"pricing" json:"pricing,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updatedAt"`
}

func (DepositLoan) TableName() string {
	return "deposit_loans"
}

// SharedDepositLoan records the disclosure of a deposit/loan record to one
// company, with per-field share flags like shared credit lines.
type SharedDepositLoan struct {
	StaticID            string    `db:"static_id" json:"staticId"`
	DepositLoanStaticID string    `db:"deposit_loan_static_id" json:"depositLoanStaticId"`
	SharedWithStaticID  string    `db:"shared_with_static_id" json:"sharedWithStaticId"`
	AppetiteShared      bool      `db:"appetite_shared" json:"appetiteShared"`
	PricingShared       bool      `db:"pricing_shared" json:"pricingShared"`
	CreatedAt           time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time `db:"updated_at" json:"updatedAt"`
}

func (SharedDepositLoan) TableName() string {
	return "shared_deposit_loans"
}
