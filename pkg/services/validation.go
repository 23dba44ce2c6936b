package services

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/komgo/credit-lines/pkg/errors"
	"github.com/komgo/credit-lines/pkg/models"
)

// CreditLineValidator checks a save or request payload against the business
// rules of one product context.
type CreditLineValidator interface {
	ValidateSave(ctx context.Context, payload *models.CreditLineSave) error
	ValidateRequest(ctx context.Context, payload *models.CreateCreditLineRequest) error
	ValidateRequester(ctx context.Context, requesterStaticID string) error
}

// CreditLineValidationService validates payloads for one product context.
// Risk cover forbids financial-institution counterparties, bank lines
// require them.
type CreditLineValidationService struct {
	*ValidationServiceBase
	counterpartyIsFinancial bool
	logger                  ectologger.Logger
}

func NewCreditLineValidationService(base *ValidationServiceBase, counterpartyIsFinancial bool, logger ectologger.Logger) *CreditLineValidationService {
	return &CreditLineValidationService{
		ValidationServiceBase:   base,
		counterpartyIsFinancial: counterpartyIsFinancial,
		logger:                  logger,
	}
}

// ValidateSave checks a credit line save payload
func (v *CreditLineValidationService) ValidateSave(ctx context.Context, payload *models.CreditLineSave) error {
	if err := v.ValidateStruct(payload); err != nil {
		return err
	}

	if err := v.CheckCompany(ctx, payload.CounterpartyStaticID, v.counterpartyIsFinancial); err != nil {
		return err
	}

	sharedWith := make([]string, 0, len(payload.SharedCreditLines))
	for _, shared := range payload.SharedCreditLines {
		sharedWith = append(sharedWith, shared.SharedWithStaticID)
	}
	missing, err := v.CheckCounterparties(ctx, sharedWith, nil)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return errors.NewValidationError("validation failed").
			AddFieldError("sharedCreditLines", "unknown counterparties: "+strings.Join(missing, ", "))
	}

	return nil
}

// ValidateRequest checks a create-request payload. Recipients must be
// financial institutions since only banks hold disclosable lines.
func (v *CreditLineValidationService) ValidateRequest(ctx context.Context, payload *models.CreateCreditLineRequest) error {
	if err := v.ValidateStruct(payload); err != nil {
		return err
	}

	if err := v.CheckCompany(ctx, payload.CounterpartyStaticID, v.counterpartyIsFinancial); err != nil {
		return err
	}

	isFinancial := true
	missing, err := v.CheckCounterparties(ctx, payload.CompanyIDs, &isFinancial)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return errors.NewValidationError("validation failed").
			AddFieldError("companyIds", "not financial-institution counterparties: "+strings.Join(missing, ", "))
	}

	return nil
}

// ValidateRequester checks the sender of an inbound request, who must never
// be a financial institution.
func (v *CreditLineValidationService) ValidateRequester(ctx context.Context, requesterStaticID string) error {
	return v.CheckCompany(ctx, requesterStaticID, false)
}
