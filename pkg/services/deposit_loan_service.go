package services

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/komgo/credit-lines/pkg/errors"
	"github.com/komgo/credit-lines/pkg/messaging"
	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/repositories"
	"github.com/komgo/credit-lines/pkg/tracing"
)

// depositLoanContext is the product context deposit/loan disclosures travel
// under. Deposit/loans are currency records rather than counterparty
// exposures, so the context is fixed.
var depositLoanContext = models.ProductContext{
	ProductID:    models.ProductTradeFinance,
	SubProductID: models.SubProductRiskCover,
}

// DepositLoanService owns deposit/loan CRUD and the disclosure messaging of
// shares, mirroring credit lines without the request lifecycle.
type DepositLoanService struct {
	depositLoans    repositories.DepositLoanStore
	base            *ValidationServiceBase
	publisher       Publisher
	companyStaticID string
	logger          ectologger.Logger
}

func NewDepositLoanService(
	depositLoans repositories.DepositLoanStore,
	base *ValidationServiceBase,
	publisher Publisher,
	companyStaticID string,
	logger ectologger.Logger,
) *DepositLoanService {
	return &DepositLoanService{
		depositLoans:    depositLoans,
		base:            base,
		publisher:       publisher,
		companyStaticID: companyStaticID,
		logger:          logger,
	}
}

// Create persists a new deposit/loan record and discloses it to every
// recipient whose appetite share flag is set.
func (s *DepositLoanService) Create(ctx context.Context, payload *models.DepositLoanSave) (*models.DepositLoan, error) {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanService.Create")
	defer span.End()

	if err := s.validate(ctx, payload); err != nil {
		return nil, err
	}

	dl := &models.DepositLoan{
		StaticID:       uuid.New().String(),
		Type:           payload.Type,
		Currency:       payload.Currency,
		Period:         payload.Period,
		PeriodDuration: payload.PeriodDuration,
		Appetite:       payload.Appetite,
		Pricing:        payload.Pricing,
	}
	if err := s.depositLoans.Create(ctx, dl); err != nil {
		return nil, err
	}

	for _, save := range payload.SharedDepositLoans {
		shared := &models.SharedDepositLoan{
			StaticID:            uuid.New().String(),
			DepositLoanStaticID: dl.StaticID,
			SharedWithStaticID:  save.SharedWithStaticID,
			AppetiteShared:      save.AppetiteShared,
			PricingShared:       save.PricingShared,
		}
		if err := s.depositLoans.CreateShared(ctx, shared); err != nil {
			return dl, err
		}
		if err := s.processShare(ctx, dl, nil, shared); err != nil {
			return dl, err
		}
	}

	return dl, nil
}

// Update replaces the terms of an existing record and reconciles its shared
// set by recipient. The (type, currency, period) key is pinned.
func (s *DepositLoanService) Update(ctx context.Context, staticID string, payload *models.DepositLoanSave) (*models.DepositLoan, error) {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanService.Update")
	defer span.End()

	if err := s.validate(ctx, payload); err != nil {
		return nil, err
	}

	dl, err := s.depositLoans.GetByStaticID(ctx, staticID)
	if err != nil {
		return nil, err
	}

	dl.Appetite = payload.Appetite
	dl.Pricing = payload.Pricing
	if err := s.depositLoans.Update(ctx, dl); err != nil {
		return nil, err
	}

	existing, err := s.depositLoans.FindShared(ctx, dl.StaticID)
	if err != nil {
		return nil, err
	}
	existingByRecipient := make(map[string]*models.SharedDepositLoan, len(existing))
	for i := range existing {
		existingByRecipient[existing[i].SharedWithStaticID] = &existing[i]
	}

	seen := make(map[string]bool, len(payload.SharedDepositLoans))
	for _, save := range payload.SharedDepositLoans {
		seen[save.SharedWithStaticID] = true

		old := existingByRecipient[save.SharedWithStaticID]
		if old == nil {
			shared := &models.SharedDepositLoan{
				StaticID:            uuid.New().String(),
				DepositLoanStaticID: dl.StaticID,
				SharedWithStaticID:  save.SharedWithStaticID,
				AppetiteShared:      save.AppetiteShared,
				PricingShared:       save.PricingShared,
			}
			if err := s.depositLoans.CreateShared(ctx, shared); err != nil {
				return dl, err
			}
			if err := s.processShare(ctx, dl, nil, shared); err != nil {
				return dl, err
			}
			continue
		}

		previous := *old
		updated := *old
		updated.AppetiteShared = save.AppetiteShared
		updated.PricingShared = save.PricingShared
		if err := s.depositLoans.UpdateShared(ctx, &updated); err != nil {
			return dl, err
		}
		if err := s.processShare(ctx, dl, &previous, &updated); err != nil {
			return dl, err
		}
	}

	var removedIDs []string
	for recipient, old := range existingByRecipient {
		if !seen[recipient] {
			removedIDs = append(removedIDs, old.StaticID)
		}
	}
	if len(removedIDs) > 0 {
		if err := s.depositLoans.DeleteSharedByStaticIDs(ctx, removedIDs); err != nil {
			return dl, err
		}
		for recipient, old := range existingByRecipient {
			if !seen[recipient] {
				if err := s.processShare(ctx, dl, old, nil); err != nil {
					return dl, err
				}
			}
		}
	}

	return dl, nil
}

// Delete removes a record and revokes every disclosure of it
func (s *DepositLoanService) Delete(ctx context.Context, staticID string) error {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanService.Delete")
	defer span.End()

	dl, err := s.depositLoans.GetByStaticID(ctx, staticID)
	if err != nil {
		return err
	}
	shares, err := s.depositLoans.FindShared(ctx, staticID)
	if err != nil {
		return err
	}

	if err := s.depositLoans.Delete(ctx, staticID); err != nil {
		return err
	}

	for i := range shares {
		if err := s.processShare(ctx, dl, &shares[i], nil); err != nil {
			return err
		}
	}

	return nil
}

// Get returns one record with its shared set
func (s *DepositLoanService) Get(ctx context.Context, staticID string) (*models.DepositLoan, []models.SharedDepositLoan, error) {
	dl, err := s.depositLoans.GetByStaticID(ctx, staticID)
	if err != nil {
		return nil, nil, err
	}
	shares, err := s.depositLoans.FindShared(ctx, staticID)
	if err != nil {
		return nil, nil, err
	}
	return dl, shares, nil
}

// FindByType returns all records of one exposure direction
func (s *DepositLoanService) FindByType(ctx context.Context, dlType models.DepositLoanType) ([]models.DepositLoan, error) {
	return s.depositLoans.FindByType(ctx, dlType)
}

func (s *DepositLoanService) validate(ctx context.Context, payload *models.DepositLoanSave) error {
	if err := s.base.ValidateStruct(payload); err != nil {
		return err
	}
	if payload.Period != models.PeriodOvernight && payload.PeriodDuration == nil {
		return errors.NewValidationError("validation failed").
			AddFieldError("periodDuration", "required for period "+string(payload.Period))
	}

	sharedWith := make([]string, 0, len(payload.SharedDepositLoans))
	for _, shared := range payload.SharedDepositLoans {
		sharedWith = append(sharedWith, shared.SharedWithStaticID)
	}
	isFinancial := true
	missing, err := s.base.CheckCounterparties(ctx, sharedWith, &isFinancial)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		result := errors.NewValidationError("validation failed")
		for _, staticID := range missing {
			result.AddFieldError("sharedDepositLoans", "not a financial-institution counterparty: "+staticID)
		}
		return result
	}
	return nil
}

// processShare publishes the disclosure or revocation implied by one
// recipient's old and new share flags.
func (s *DepositLoanService) processShare(ctx context.Context, dl *models.DepositLoan, oldShared, newShared *models.SharedDepositLoan) error {
	wasDisclosed := oldShared != nil && oldShared.AppetiteShared
	isDisclosed := newShared != nil && newShared.AppetiteShared

	switch {
	case isDisclosed:
		payload := &messaging.DepositLoanTermsPayload{
			Type:           dl.Type,
			Currency:       dl.Currency,
			Period:         dl.Period,
			PeriodDuration: dl.PeriodDuration,
			Appetite:       &dl.Appetite,
		}
		if newShared.PricingShared {
			payload.Pricing = dl.Pricing
		}

		envelope := messaging.NewEnvelope(messaging.TypeShareCreditLine, depositLoanContext,
			s.companyStaticID, newShared.SharedWithStaticID, newShared.SharedWithStaticID)
		envelope.FeatureType = models.FeatureDepositLoan
		envelope, err := envelope.WithPayload(payload)
		if err != nil {
			return err
		}
		return s.publisher.Publish(ctx, envelope)
	case wasDisclosed:
		envelope := messaging.NewEnvelope(messaging.TypeRevokeCreditLine, depositLoanContext,
			s.companyStaticID, oldShared.SharedWithStaticID, oldShared.SharedWithStaticID)
		envelope.FeatureType = models.FeatureDepositLoan
		return s.publisher.Publish(ctx, envelope)
	default:
		return nil
	}
}
