package models

// SharedCreditLineSave is the per-recipient share block of a save payload.
type SharedCreditLineSave struct {
	StaticID           string               `json:"staticId,omitempty"`
	SharedWithStaticID string               `json:"sharedWithStaticId" validate:"required"`
	Data               SharedCreditLineData `json:"data"`
}

// CreditLineSave is the payload for creating or replacing a credit line
// together with its full shared set.
type CreditLineSave struct {
	Context              ProductContext         `json:"context" validate:"required"`
	CounterpartyStaticID string                 `json:"counterpartyStaticId" validate:"required"`
	Appetite             bool                   `json:"appetite"`
	Currency             string                 `json:"currency" validate:"required,len=3"`
	CreditLimit          *int64                 `json:"creditLimit,omitempty" validate:"omitempty,min=0"`
	Availability         bool                   `json:"availability"`
	AvailabilityAmount   *int64                 `json:"availabilityAmount,omitempty" validate:"omitempty,min=0"`
	Data                 map[string]any         `json:"data,omitempty"`
	SharedCreditLines    []SharedCreditLineSave `json:"sharedCreditLines,omitempty" validate:"dive"`
}

// CreateCreditLineRequest is the payload for asking one or more companies to
// disclose their credit line for a counterparty.
type CreateCreditLineRequest struct {
	Context              ProductContext `json:"context" validate:"required"`
	Comment              string         `json:"comment,omitempty" validate:"max=1000"`
	CounterpartyStaticID string         `json:"counterpartyStaticId" validate:"required"`
	CompanyIDs           []string       `json:"companyIds" validate:"required,min=1,dive,required"`
}

// CloseRequests is the payload for declining pending received requests.
// With no RequestIDs every open request for the counterparty is declined.
type CloseRequests struct {
	Context              ProductContext `json:"context" validate:"required"`
	CounterpartyStaticID string         `json:"counterpartyStaticId" validate:"required"`
	RequestIDs           []string       `json:"requestIds,omitempty"`
}

// SharedDepositLoanSave is the per-recipient share block of a deposit/loan
// save payload.
type SharedDepositLoanSave struct {
	StaticID           string `json:"staticId,omitempty"`
	SharedWithStaticID string `json:"sharedWithStaticId" validate:"required"`
	AppetiteShared     bool   `json:"appetiteShared"`
	PricingShared      bool   `json:"pricingShared"`
}

// DepositLoanSave is the payload for creating or replacing a deposit/loan
// record together with its shared set.
type DepositLoanSave struct {
	Type               DepositLoanType         `json:"type" validate:"required,oneof=DEPOSIT LOAN"`
	Currency           string                  `json:"currency" validate:"required,len=3"`
	Period             DepositLoanPeriod       `json:"period" validate:"required,oneof=OVERNIGHT WEEKS MONTHS YEARS"`
	PeriodDuration     *int                    `json:"periodDuration,omitempty" validate:"omitempty,min=1"`
	Appetite           bool                    `json:"appetite"`
	Pricing            *float64                `json:"pricing,omitempty" validate:"omitempty,min=0"`
	SharedDepositLoans []SharedDepositLoanSave `json:"sharedDepositLoans,omitempty" validate:"dive"`
}
