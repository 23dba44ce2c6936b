package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komgo/credit-lines/pkg/errors"
	"github.com/komgo/credit-lines/pkg/models"
)

func riskCoverContext() models.ProductContext {
	return models.ProductContext{
		ProductID:    models.ProductTradeFinance,
		SubProductID: models.SubProductRiskCover,
	}
}

func letterOfCreditContext() models.ProductContext {
	return models.ProductContext{
		ProductID:    models.ProductTradeFinance,
		SubProductID: models.SubProductLetterOfCredit,
	}
}

func TestValidationFactory_ForContext(t *testing.T) {
	factory := NewCreditLineValidationFactory(NewValidationServiceBase(newFakeRegistry(), testLogger()), testLogger())

	t.Run("risk cover", func(t *testing.T) {
		validator, err := factory.ForContext(riskCoverContext())
		require.NoError(t, err)
		assert.NotNil(t, validator)
	})

	t.Run("letter of credit", func(t *testing.T) {
		validator, err := factory.ForContext(letterOfCreditContext())
		require.NoError(t, err)
		assert.NotNil(t, validator)
	})

	t.Run("unknown sub-product", func(t *testing.T) {
		_, err := factory.ForContext(models.ProductContext{
			ProductID:    models.ProductTradeFinance,
			SubProductID: "somethingElse",
		})
		require.Error(t, err)
		var validationErr *errors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Fields["context"], "unsupported sub-product somethingElse")
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := factory.ForContext(models.ProductContext{
			ProductID:    "kyc",
			SubProductID: models.SubProductRiskCover,
		})
		require.Error(t, err)
		var validationErr *errors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Fields["context"], "unsupported product kyc")
	})
}

func TestValidationBase_CheckCompany(t *testing.T) {
	companies := newFakeRegistry()
	companies.addCompany("corp-1", "Corp One", false)
	companies.addCompany("bank-1", "Bank One", true)

	base := NewValidationServiceBase(companies, testLogger())
	ctx := context.Background()

	t.Run("unknown company", func(t *testing.T) {
		err := base.CheckCompany(ctx, "ghost-1", false)
		require.Error(t, err)
		assert.Equal(t, "Company with ghost-1 doesn't exist in registry", err.Error())
	})

	t.Run("must be financial", func(t *testing.T) {
		err := base.CheckCompany(ctx, "corp-1", true)
		require.Error(t, err)
		assert.Equal(t, "Company with corp-1 must be financial institution", err.Error())
	})

	t.Run("must not be financial", func(t *testing.T) {
		err := base.CheckCompany(ctx, "bank-1", false)
		require.Error(t, err)
		assert.Equal(t, "Company with bank-1 can't be  financial institution", err.Error())
	})

	t.Run("matching type", func(t *testing.T) {
		assert.NoError(t, base.CheckCompany(ctx, "bank-1", true))
		assert.NoError(t, base.CheckCompany(ctx, "corp-1", false))
	})
}

func TestValidationBase_CheckCounterparties(t *testing.T) {
	companies := newFakeRegistry()
	companies.addCounterparty("bank-1", "Bank One", true)
	companies.addCounterparty("corp-1", "Corp One", false)

	base := NewValidationServiceBase(companies, testLogger())
	ctx := context.Background()

	t.Run("all known", func(t *testing.T) {
		missing, err := base.CheckCounterparties(ctx, []string{"bank-1", "corp-1"}, nil)
		require.NoError(t, err)
		assert.Empty(t, missing)
	})

	t.Run("unknown id reported", func(t *testing.T) {
		missing, err := base.CheckCounterparties(ctx, []string{"bank-1", "ghost-1"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"ghost-1"}, missing)
	})

	t.Run("institution type filter", func(t *testing.T) {
		isFinancial := true
		missing, err := base.CheckCounterparties(ctx, []string{"bank-1", "corp-1"}, &isFinancial)
		require.NoError(t, err)
		assert.Equal(t, []string{"corp-1"}, missing)
	})
}

func TestValidationService_ValidateSave(t *testing.T) {
	companies := newFakeRegistry()
	companies.addCompany("corp-1", "Corp One", false)
	companies.addCounterparty("bank-2", "Bank Two", true)

	factory := NewCreditLineValidationFactory(NewValidationServiceBase(companies, testLogger()), testLogger())
	validator, err := factory.ForContext(riskCoverContext())
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("valid payload", func(t *testing.T) {
		err := validator.ValidateSave(ctx, &models.CreditLineSave{
			Context:              riskCoverContext(),
			CounterpartyStaticID: "corp-1",
			Currency:             "USD",
			SharedCreditLines: []models.SharedCreditLineSave{
				{SharedWithStaticID: "bank-2"},
			},
		})
		assert.NoError(t, err)
	})

	t.Run("struct validation failure", func(t *testing.T) {
		err := validator.ValidateSave(ctx, &models.CreditLineSave{
			Context:              riskCoverContext(),
			CounterpartyStaticID: "corp-1",
			Currency:             "US",
		})
		require.Error(t, err)
		var validationErr *errors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, validationErr.Fields, "Currency")
	})

	t.Run("unknown share recipient", func(t *testing.T) {
		err := validator.ValidateSave(ctx, &models.CreditLineSave{
			Context:              riskCoverContext(),
			CounterpartyStaticID: "corp-1",
			Currency:             "USD",
			SharedCreditLines: []models.SharedCreditLineSave{
				{SharedWithStaticID: "ghost-1"},
			},
		})
		require.Error(t, err)
		var validationErr *errors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, fmt.Sprint(validationErr.Fields["sharedCreditLines"]), "ghost-1")
	})

	t.Run("risk cover rejects financial counterparty", func(t *testing.T) {
		err := validator.ValidateSave(ctx, &models.CreditLineSave{
			Context:              riskCoverContext(),
			CounterpartyStaticID: "bank-2",
			Currency:             "USD",
		})
		require.Error(t, err)
		assert.Equal(t, "Company with bank-2 can't be  financial institution", err.Error())
	})
}

func TestValidationService_ValidateRequest(t *testing.T) {
	companies := newFakeRegistry()
	companies.addCompany("corp-1", "Corp One", false)
	companies.addCounterparty("bank-2", "Bank Two", true)
	companies.addCounterparty("corp-3", "Corp Three", false)

	factory := NewCreditLineValidationFactory(NewValidationServiceBase(companies, testLogger()), testLogger())
	validator, err := factory.ForContext(riskCoverContext())
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("valid payload", func(t *testing.T) {
		err := validator.ValidateRequest(ctx, &models.CreateCreditLineRequest{
			Context:              riskCoverContext(),
			CounterpartyStaticID: "corp-1",
			CompanyIDs:           []string{"bank-2"},
		})
		assert.NoError(t, err)
	})

	t.Run("recipients must be financial", func(t *testing.T) {
		err := validator.ValidateRequest(ctx, &models.CreateCreditLineRequest{
			Context:              riskCoverContext(),
			CounterpartyStaticID: "corp-1",
			CompanyIDs:           []string{"corp-3"},
		})
		require.Error(t, err)
		var validationErr *errors.ValidationError
		require.ErrorAs(t, err, &validationErr)
		assert.Contains(t, fmt.Sprint(validationErr.Fields["companyIds"]), "corp-3")
	})

	t.Run("empty recipients rejected", func(t *testing.T) {
		err := validator.ValidateRequest(ctx, &models.CreateCreditLineRequest{
			Context:              riskCoverContext(),
			CounterpartyStaticID: "corp-1",
		})
		require.Error(t, err)
	})
}
