package services

import (
	"github.com/Gobusters/ectologger"

	"github.com/komgo/credit-lines/pkg/errors"
	"github.com/komgo/credit-lines/pkg/models"
)

// CreditLineValidationFactory resolves the validator for a product context.
// Risk cover lines belong to corporate counterparties, bank lines to
// financial institutions; a context outside those two is rejected outright.
type CreditLineValidationFactory struct {
	riskCover *CreditLineValidationService
	bankLine  *CreditLineValidationService
}

func NewCreditLineValidationFactory(base *ValidationServiceBase, logger ectologger.Logger) *CreditLineValidationFactory {
	return &CreditLineValidationFactory{
		riskCover: NewCreditLineValidationService(base, false, logger),
		bankLine:  NewCreditLineValidationService(base, true, logger),
	}
}

// ForContext returns the validator for the given product context
func (f *CreditLineValidationFactory) ForContext(productContext models.ProductContext) (CreditLineValidator, error) {
	if productContext.ProductID != models.ProductTradeFinance {
		return nil, errors.NewValidationError("validation failed").
			AddFieldError("context", "unsupported product "+productContext.ProductID)
	}

	switch productContext.SubProductID {
	case models.SubProductRiskCover:
		return f.riskCover, nil
	case models.SubProductLetterOfCredit:
		return f.bankLine, nil
	default:
		return nil, errors.NewValidationError("validation failed").
			AddFieldError("context", "unsupported sub-product "+productContext.SubProductID)
	}
}
