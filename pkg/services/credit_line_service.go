package services

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/komgo/credit-lines/pkg/database"
	"github.com/komgo/credit-lines/pkg/metrics"
	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/repositories"
	"github.com/komgo/credit-lines/pkg/tracing"
)

const (
	lockTTL         = 30 * time.Second
	lockWaitTimeout = 10 * time.Second
)

// ContextLocker serialises mutations per (context, counterparty) key.
type ContextLocker interface {
	WithLock(ctx context.Context, key string, ttl, timeout time.Duration, fn func() error) error
}

// RequestCloser resolves pending received requests after a credit line
// mutation settles their outcome.
type RequestCloser interface {
	GetPendingRequest(ctx context.Context, companyStaticID, counterpartyStaticID string, productContext models.ProductContext) (*models.CreditLineRequest, error)
	MarkCompleted(ctx context.Context, request *models.CreditLineRequest, status models.CreditLineRequestStatus) error
	CloseAllPendingRequests(ctx context.Context, counterpartyStaticID string, productContext models.ProductContext, requestIDs []string) ([]string, error)
}

// CreditLineService owns credit line CRUD and the disclosure cascades each
// mutation triggers. Mutations for one (context, counterparty) pair are
// serialised on a distributed lock; the cascade itself is not transactional,
// so a crash mid-cascade is repaired by the next mutation rather than rolled
// back.
type CreditLineService struct {
	creditLines repositories.CreditLineStore
	shared      repositories.SharedCreditLineStore
	validation  *CreditLineValidationFactory
	shares      *ShareCreditLineService
	requests    RequestCloser
	locker      ContextLocker
	logger      ectologger.Logger
}

func NewCreditLineService(
	creditLines repositories.CreditLineStore,
	shared repositories.SharedCreditLineStore,
	validation *CreditLineValidationFactory,
	shares *ShareCreditLineService,
	requests RequestCloser,
	locker ContextLocker,
	logger ectologger.Logger,
) *CreditLineService {
	return &CreditLineService{
		creditLines: creditLines,
		shared:      shared,
		validation:  validation,
		shares:      shares,
		requests:    requests,
		locker:      locker,
		logger:      logger,
	}
}

// Create persists a new credit line and discloses it to every recipient in
// the shared set, then settles any pending received requests.
func (s *CreditLineService) Create(ctx context.Context, payload *models.CreditLineSave) (*models.CreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineService.Create")
	defer span.End()

	validator, err := s.validation.ForContext(payload.Context)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateSave(ctx, payload); err != nil {
		return nil, err
	}

	line := &models.CreditLine{
		StaticID:             uuid.New().String(),
		CounterpartyStaticID: payload.CounterpartyStaticID,
		ProductID:            payload.Context.ProductID,
		SubProductID:         payload.Context.SubProductID,
		Appetite:             payload.Appetite,
		Currency:             payload.Currency,
		CreditLimit:          payload.CreditLimit,
		Availability:         payload.Availability,
		AvailabilityAmount:   payload.AvailabilityAmount,
		Data:                 database.NewJSONB(payload.Data),
	}

	err = s.withContextLock(ctx, payload.Context, payload.CounterpartyStaticID, func() error {
		if err := s.creditLines.Create(ctx, line); err != nil {
			return err
		}

		if err := s.createShares(ctx, line, payload.SharedCreditLines); err != nil {
			return err
		}

		return s.settlePendingRequests(ctx, line)
	})
	if err != nil {
		metrics.CreditLineMutationsTotal.WithLabelValues("create", "error").Inc()
		return nil, err
	}

	metrics.CreditLineMutationsTotal.WithLabelValues("create", "success").Inc()
	return line, nil
}

// Update replaces the terms of an existing line and reconciles its shared
// set against the payload. The product context and counterparty are pinned
// to the stored values; payloads cannot move a line between contexts.
func (s *CreditLineService) Update(ctx context.Context, staticID string, payload *models.CreditLineSave) (*models.CreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineService.Update")
	defer span.End()

	existing, err := s.creditLines.GetByStaticID(ctx, staticID)
	if err != nil {
		return nil, err
	}

	payload.Context = existing.Context()
	payload.CounterpartyStaticID = existing.CounterpartyStaticID

	validator, err := s.validation.ForContext(payload.Context)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateSave(ctx, payload); err != nil {
		return nil, err
	}

	previous := *existing

	line := existing
	line.Appetite = payload.Appetite
	line.Currency = payload.Currency
	line.CreditLimit = payload.CreditLimit
	line.Availability = payload.Availability
	line.AvailabilityAmount = payload.AvailabilityAmount
	line.Data = database.NewJSONB(payload.Data)

	err = s.withContextLock(ctx, line.Context(), line.CounterpartyStaticID, func() error {
		if err := s.creditLines.Update(ctx, line); err != nil {
			return err
		}

		if err := s.reconcileShares(ctx, line, &previous, payload.SharedCreditLines); err != nil {
			return err
		}

		return s.settlePendingRequests(ctx, line)
	})
	if err != nil {
		metrics.CreditLineMutationsTotal.WithLabelValues("update", "error").Inc()
		return nil, err
	}

	metrics.CreditLineMutationsTotal.WithLabelValues("update", "success").Inc()
	return line, nil
}

// Delete removes a line, revokes every disclosure of it, and declines any
// still-pending received requests for the counterparty.
func (s *CreditLineService) Delete(ctx context.Context, staticID string) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineService.Delete")
	defer span.End()

	line, err := s.creditLines.GetByStaticID(ctx, staticID)
	if err != nil {
		return err
	}

	err = s.withContextLock(ctx, line.Context(), line.CounterpartyStaticID, func() error {
		shares, err := s.shared.FindByCreditLine(ctx, staticID)
		if err != nil {
			return err
		}

		if err := s.creditLines.Delete(ctx, staticID); err != nil {
			return err
		}
		if err := s.shared.DeleteByCreditLine(ctx, staticID); err != nil {
			return err
		}

		for i := range shares {
			if err := s.shares.Process(ctx, line, nil, &shares[i], nil); err != nil {
				return err
			}
		}

		_, err = s.requests.CloseAllPendingRequests(ctx, line.CounterpartyStaticID, line.Context(), nil)
		return err
	})
	if err != nil {
		metrics.CreditLineMutationsTotal.WithLabelValues("delete", "error").Inc()
		return err
	}

	metrics.CreditLineMutationsTotal.WithLabelValues("delete", "success").Inc()
	return nil
}

// Get returns one credit line with its shared set
func (s *CreditLineService) Get(ctx context.Context, staticID string) (*models.CreditLineView, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineService.Get")
	defer span.End()

	line, err := s.creditLines.GetByStaticID(ctx, staticID)
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, line)
}

// FindOne returns the line for a counterparty in a product context
func (s *CreditLineService) FindOne(ctx context.Context, productContext models.ProductContext, counterpartyStaticID string) (*models.CreditLineView, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineService.FindOne")
	defer span.End()

	line, err := s.creditLines.FindOne(ctx, repositories.CreditLineFilter{
		ProductID:            productContext.ProductID,
		SubProductID:         productContext.SubProductID,
		CounterpartyStaticID: counterpartyStaticID,
	})
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, line)
}

// Find returns the lines in a product context with their shared sets
func (s *CreditLineService) Find(ctx context.Context, productContext models.ProductContext) ([]models.CreditLineView, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineService.Find")
	defer span.End()

	lines, err := s.creditLines.Find(ctx, repositories.CreditLineFilter{
		ProductID:    productContext.ProductID,
		SubProductID: productContext.SubProductID,
	})
	if err != nil {
		return nil, err
	}

	views := make([]models.CreditLineView, 0, len(lines))
	for i := range lines {
		view, err := s.toView(ctx, &lines[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// createShares persists and discloses the initial shared set. Recipients are
// independent, so their disclosures run concurrently.
func (s *CreditLineService) createShares(ctx context.Context, line *models.CreditLine, saves []models.SharedCreditLineSave) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, save := range saves {
		shared := &models.SharedCreditLine{
			StaticID:             uuid.New().String(),
			CreditLineStaticID:   line.StaticID,
			CounterpartyStaticID: line.CounterpartyStaticID,
			SharedWithStaticID:   save.SharedWithStaticID,
			Data:                 database.NewJSONB(save.Data),
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			err := s.shared.Create(ctx, shared)
			if err == nil {
				err = s.shares.Process(ctx, line, nil, nil, shared)
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return firstErr
}

// reconcileShares diffs the stored shared set against the payload by
// recipient: shared updates in place, missing recipients are added, absent
// ones are removed and revoked. previousLine holds the line terms before the
// update so matched recipients re-disclose on value changes.
func (s *CreditLineService) reconcileShares(ctx context.Context, line, previousLine *models.CreditLine, saves []models.SharedCreditLineSave) error {
	existing, err := s.shared.FindByCreditLine(ctx, line.StaticID)
	if err != nil {
		return err
	}

	existingByRecipient := make(map[string]*models.SharedCreditLine, len(existing))
	for i := range existing {
		existingByRecipient[existing[i].SharedWithStaticID] = &existing[i]
	}

	seen := make(map[string]bool, len(saves))
	for _, save := range saves {
		seen[save.SharedWithStaticID] = true

		old := existingByRecipient[save.SharedWithStaticID]
		if old == nil {
			shared := &models.SharedCreditLine{
				StaticID:             uuid.New().String(),
				CreditLineStaticID:   line.StaticID,
				CounterpartyStaticID: line.CounterpartyStaticID,
				SharedWithStaticID:   save.SharedWithStaticID,
				Data:                 database.NewJSONB(save.Data),
			}
			if err := s.shared.Create(ctx, shared); err != nil {
				return err
			}
			if err := s.shares.Process(ctx, line, nil, nil, shared); err != nil {
				return err
			}
			continue
		}

		before := *old
		updated := *old
		updated.Data = database.NewJSONB(save.Data)
		if err := s.shared.Update(ctx, &updated); err != nil {
			return err
		}
		if err := s.shares.Process(ctx, line, previousLine, &before, &updated); err != nil {
			return err
		}
	}

	var removedIDs []string
	for recipient, old := range existingByRecipient {
		if seen[recipient] {
			continue
		}
		removedIDs = append(removedIDs, old.StaticID)
	}
	if len(removedIDs) > 0 {
		if err := s.shared.DeleteByStaticIDs(ctx, removedIDs); err != nil {
			return err
		}
		for recipient, old := range existingByRecipient {
			if seen[recipient] {
				continue
			}
			if err := s.shares.Process(ctx, line, previousLine, old, nil); err != nil {
				return err
			}
		}
	}

	return nil
}

// settlePendingRequests closes every pending received request for the
// counterparty: requesters now covered by a live disclosure complete as
// DISCLOSED, everyone else is declined.
func (s *CreditLineService) settlePendingRequests(ctx context.Context, line *models.CreditLine) error {
	shares, err := s.shared.FindByCreditLine(ctx, line.StaticID)
	if err != nil {
		return err
	}

	for i := range shares {
		share := shares[i]
		if !share.Data.GetValue().Appetite.Shared {
			continue
		}

		pending, err := s.requests.GetPendingRequest(ctx, share.SharedWithStaticID, line.CounterpartyStaticID, line.Context())
		if err != nil {
			return err
		}
		if pending == nil {
			continue
		}
		if err := s.requests.MarkCompleted(ctx, pending, models.RequestStatusDisclosed); err != nil {
			return err
		}
	}

	_, err = s.requests.CloseAllPendingRequests(ctx, line.CounterpartyStaticID, line.Context(), nil)
	return err
}

func (s *CreditLineService) toView(ctx context.Context, line *models.CreditLine) (*models.CreditLineView, error) {
	shares, err := s.shared.FindByCreditLine(ctx, line.StaticID)
	if err != nil {
		return nil, err
	}
	return &models.CreditLineView{
		CreditLine:        *line,
		SharedCreditLines: shares,
	}, nil
}

func (s *CreditLineService) withContextLock(ctx context.Context, productContext models.ProductContext, counterpartyStaticID string, fn func() error) error {
	key := productContext.Key() + ":" + counterpartyStaticID
	return s.locker.WithLock(ctx, key, lockTTL, lockWaitTimeout, fn)
}
