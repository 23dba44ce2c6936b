package services

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/komgo/credit-lines/pkg/database"
	"github.com/komgo/credit-lines/pkg/messaging"
	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/notify"
	"github.com/komgo/credit-lines/pkg/repositories"
	"github.com/komgo/credit-lines/pkg/tracing"
)

// SentRequestCloser settles this company's sent requests when the asked
// company answers with a disclosure or revocation.
type SentRequestCloser interface {
	ClosePendingSentRequest(ctx context.Context, companyStaticID, counterpartyStaticID string, productContext models.ProductContext, disclosed bool) error
}

// DisclosedCreditLineService keeps the receive-side picture of what other
// companies have disclosed to us. Rows are written exclusively from inbound
// messages; the REST surface only reads them.
type DisclosedCreditLineService struct {
	disclosed     repositories.DisclosedCreditLineStore
	requests      SentRequestCloser
	registry      CompanyRegistry
	notifications Notifier
	logger        ectologger.Logger
}

func NewDisclosedCreditLineService(
	disclosed repositories.DisclosedCreditLineStore,
	requests SentRequestCloser,
	companyRegistry CompanyRegistry,
	notifications Notifier,
	logger ectologger.Logger,
) *DisclosedCreditLineService {
	return &DisclosedCreditLineService{
		disclosed:     disclosed,
		requests:      requests,
		registry:      companyRegistry,
		notifications: notifications,
		logger:        logger,
	}
}

// Disclosed handles an inbound ShareCreditLine message: upsert the disclosed
// record, settle the matching sent request, and notify. Replays are safe,
// the upsert is keyed by (owner, counterparty, context).
func (s *DisclosedCreditLineService) Disclosed(ctx context.Context, envelope *messaging.Envelope) error {
	ctx, span := tracing.StartSpan(ctx, "DisclosedCreditLineService.Disclosed")
	defer span.End()

	var terms messaging.SharedTermsPayload
	if err := envelope.DecodePayload(&terms); err != nil {
		return err
	}

	record := &models.DisclosedCreditLine{
		StaticID:             uuid.New().String(),
		OwnerStaticID:        envelope.CompanyStaticID,
		CounterpartyStaticID: envelope.CounterpartyStaticID,
		ProductID:            envelope.Context.ProductID,
		SubProductID:         envelope.Context.SubProductID,
		Currency:             terms.Currency,
		CreditLimit:          terms.CreditLimit,
		AvailabilityAmount:   terms.AvailabilityAmount,
		Data:                 database.NewJSONB(terms.Data),
		Status:               models.DisclosureStatusDisclosed,
	}
	if terms.Appetite != nil {
		record.Appetite = *terms.Appetite
	}
	if terms.Availability != nil {
		record.Availability = *terms.Availability
	}

	if err := s.disclosed.Upsert(ctx, record); err != nil {
		return err
	}

	if err := s.requests.ClosePendingSentRequest(ctx, envelope.CompanyStaticID,
		envelope.CounterpartyStaticID, envelope.Context, true); err != nil {
		return err
	}

	return s.notifyDisclosure(ctx, envelope, "disclosed credit line information for")
}

// Revoked handles an inbound RevokeCreditLine message: mark the disclosure
// revoked and settle the matching sent request as declined. A revocation for
// a disclosure we never stored is logged and dropped.
func (s *DisclosedCreditLineService) Revoked(ctx context.Context, envelope *messaging.Envelope) error {
	ctx, span := tracing.StartSpan(ctx, "DisclosedCreditLineService.Revoked")
	defer span.End()

	record, err := s.disclosed.SetStatus(ctx, envelope.CompanyStaticID, envelope.CounterpartyStaticID,
		envelope.Context, models.DisclosureStatusRevoked)
	if err != nil {
		return err
	}
	if record == nil {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"owner":        envelope.CompanyStaticID,
			"counterparty": envelope.CounterpartyStaticID,
		}).Warn("revocation received for an unknown disclosure")
		return nil
	}

	if err := s.requests.ClosePendingSentRequest(ctx, envelope.CompanyStaticID,
		envelope.CounterpartyStaticID, envelope.Context, false); err != nil {
		return err
	}

	return s.notifyDisclosure(ctx, envelope, "revoked credit line information for")
}

// Get returns one disclosed credit line by identity
func (s *DisclosedCreditLineService) Get(ctx context.Context, staticID string) (*models.DisclosedCreditLine, error) {
	return s.disclosed.GetByStaticID(ctx, staticID)
}

// Find returns disclosed credit lines in a product context, optionally
// narrowed to one counterparty.
func (s *DisclosedCreditLineService) Find(ctx context.Context, productContext models.ProductContext, counterpartyStaticID string) ([]models.DisclosedCreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "DisclosedCreditLineService.Find")
	defer span.End()

	return s.disclosed.Find(ctx, repositories.DisclosedCreditLineFilter{
		ProductID:            productContext.ProductID,
		SubProductID:         productContext.SubProductID,
		CounterpartyStaticID: counterpartyStaticID,
	})
}

func (s *DisclosedCreditLineService) notifyDisclosure(ctx context.Context, envelope *messaging.Envelope, action string) error {
	ownerName := envelope.CompanyStaticID
	counterpartyName := envelope.CounterpartyStaticID
	if owner, err := s.registry.GetCompanyByStaticID(ctx, envelope.CompanyStaticID); err == nil && owner != nil {
		ownerName = owner.CommonName
	}
	if counterparty, err := s.registry.GetCompanyByStaticID(ctx, envelope.CounterpartyStaticID); err == nil && counterparty != nil {
		counterpartyName = counterparty.CommonName
	}

	return s.notifications.Send(ctx, notify.Notification{
		ProductID: envelope.Context.ProductID,
		Type:      "CL.DisclosedRiskCover.info",
		Level:     notify.NotificationLevelInfo,
		Message:   fmt.Sprintf("%s %s %s", ownerName, action, counterpartyName),
		RequiredPermission: notify.RequiredPermission{
			ProductID: envelope.Context.ProductID,
			ActionID:  "manageCreditLines",
		},
	})
}
