package models

import "fmt"

// Product identifiers recognised by the platform.
const (
	ProductTradeFinance = "tradeFinance"

	SubProductRiskCover      = "riskCover"
	SubProductLetterOfCredit = "letterOfCredit"
)

// FeatureType distinguishes which exposure feature a message or task concerns.
type FeatureType string

const (
	FeatureCreditLine  FeatureType = "creditLine"
	FeatureDepositLoan FeatureType = "depositLoan"
)

// ProductContext identifies the product/sub-product a record belongs to.
type ProductContext struct {
	ProductID    string `json:"productId" validate:"required"`
	SubProductID string `json:"subProductId" validate:"required"`
}

// Key returns a stable string form used for lock keys and log fields.
func (c ProductContext) Key() string {
	return fmt.Sprintf("%s:%s", c.ProductID, c.SubProductID)
}
