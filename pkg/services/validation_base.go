package services

import (
	"context"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"

	"github.com/komgo/credit-lines/pkg/errors"
	"github.com/komgo/credit-lines/pkg/registry"
)

// CompanyRegistry is the reference-data surface validation needs.
type CompanyRegistry interface {
	GetCompanyByStaticID(ctx context.Context, staticID string) (*registry.Company, error)
	GetCompanies(ctx context.Context, staticIDs []string) ([]registry.Company, error)
	GetCounterparties(ctx context.Context) ([]registry.Company, error)
}

// ValidationServiceBase holds the checks shared by every validation flavour.
type ValidationServiceBase struct {
	registry CompanyRegistry
	validate *validator.Validate
	logger   ectologger.Logger
}

func NewValidationServiceBase(companyRegistry CompanyRegistry, logger ectologger.Logger) *ValidationServiceBase {
	return &ValidationServiceBase{
		registry: companyRegistry,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// ValidateStruct runs tag-based validation, converting violations into a
// field-keyed ValidationError.
func (v *ValidationServiceBase) ValidateStruct(payload any) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.NewValidationError(err.Error())
	}

	result := errors.NewValidationError("validation failed")
	for _, fieldError := range validationErrors {
		result.AddFieldError(fieldError.Field(), fieldError.Tag())
	}
	return result
}

// CheckCompany verifies the company exists and matches the wanted
// institution type.
func (v *ValidationServiceBase) CheckCompany(ctx context.Context, staticID string, isFinancialInstitution bool) error {
	company, err := v.registry.GetCompanyByStaticID(ctx, staticID)
	if err != nil {
		return err
	}
	if company == nil {
		return errors.NewInvalidDataError("Company with %s doesn't exist in registry", staticID)
	}
	if company.IsFinancialInstitution != isFinancialInstitution {
		if isFinancialInstitution {
			return errors.NewInvalidDataError("Company with %s must be financial institution", staticID)
		}
		return errors.NewInvalidDataError("Company with %s can't be  financial institution", staticID)
	}
	return nil
}

// CheckCounterparties returns the ids that are not known counterparties, or
// are counterparties of the wrong institution type when isFinancial is set.
func (v *ValidationServiceBase) CheckCounterparties(ctx context.Context, staticIDs []string, isFinancial *bool) ([]string, error) {
	counterparties, err := v.registry.GetCounterparties(ctx)
	if err != nil {
		return nil, err
	}

	missing := make([]string, 0)
	for _, staticID := range staticIDs {
		match := ectolinq.Find(counterparties, func(company registry.Company) bool {
			if company.StaticID != staticID {
				return false
			}
			if isFinancial != nil && company.IsFinancialInstitution != *isFinancial {
				return false
			}
			return true
		})
		if match.StaticID == "" {
			missing = append(missing, staticID)
		}
	}

	return missing, nil
}
