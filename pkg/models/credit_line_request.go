package models

import "time"

// CreditLineRequestType records which side of the ask this row represents.
// It is fixed at creation and never mutated.
type CreditLineRequestType string

const (
	RequestTypeRequested CreditLineRequestType = "REQUESTED"
	RequestTypeReceived  CreditLineRequestType = "RECEIVED"
)

// CreditLineRequestStatus is the request lifecycle state. Transitions are
// one-way: PENDING -> DECLINED or PENDING -> DISCLOSED.
type CreditLineRequestStatus string

const (
	RequestStatusPending   CreditLineRequestStatus = "PENDING"
	RequestStatusDeclined  CreditLineRequestStatus = "DECLINED"
	RequestStatusDisclosed CreditLineRequestStatus = "DISCLOSED"
)

// CreditLineRequest is a one-directional ask for credit-line disclosure
// between two companies in a product context. Requests are status-flagged,
// never hard-deleted.
type CreditLineRequest struct {
	StaticID             string                  `db:"static_id" json:"staticId"`
	RequestType          CreditLineRequestType   `db:"request_type" json:"requestType"`
	ProductID            string                  `db:"product_id" json:"productId"`
	SubProductID         string                  `db:"sub_product_id" json:"subProductId"`
	Comment              string                  `db:"comment" json:"comment"`
	CounterpartyStaticID string                  `db:"counterparty_static_id" json:"counterpartyStaticId"`
	CompanyStaticID      string                  `db:"company_static_id" json:"companyStaticId"`
	Status               CreditLineRequestStatus `db:"status" json:"status"`
	CreatedAt            time.Time               `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time               `db:"updated_at" json:"updatedAt"`
}

func (CreditLineRequest) TableName() string {
	return "credit_line_requests"
}

// Context returns the product context of the request.
func (r *CreditLineRequest) Context() ProductContext {
	return ProductContext{ProductID: r.ProductID, SubProductID: r.SubProductID}
}
