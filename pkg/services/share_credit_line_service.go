package services

import (
	"context"
	"reflect"

	"github.com/Gobusters/ectologger"

	"github.com/komgo/credit-lines/pkg/messaging"
	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/tracing"
)

// Publisher sends envelopes to counterparty nodes.
type Publisher interface {
	Publish(ctx context.Context, envelope *messaging.Envelope) error
}

// ShareCreditLineService compares the previous and next shared state of one
// recipient and publishes the disclosure or revocation that difference
// implies. Publishing happens after the local write; failures are returned
// but never roll the write back.
type ShareCreditLineService struct {
	publisher       Publisher
	companyStaticID string
	logger          ectologger.Logger
}

func NewShareCreditLineService(publisher Publisher, companyStaticID string, logger ectologger.Logger) *ShareCreditLineService {
	return &ShareCreditLineService{
		publisher:       publisher,
		companyStaticID: companyStaticID,
		logger:          logger,
	}
}

// Process evaluates one recipient's old and new share. Either side may be
// nil: nil old means a fresh share, nil new means the share (or the whole
// line) was removed. previousLine carries the line's terms before the
// mutation so that value changes to already-disclosed fields re-disclose;
// nil previousLine treats the line terms as unchanged.
func (s *ShareCreditLineService) Process(ctx context.Context, line, previousLine *models.CreditLine, oldShared, newShared *models.SharedCreditLine) error {
	ctx, span := tracing.StartSpan(ctx, "ShareCreditLineService.Process")
	defer span.End()

	wasDisclosed := oldShared != nil && oldShared.Data.GetValue().Appetite.Shared
	isDisclosed := newShared != nil && newShared.Data.GetValue().Appetite.Shared

	switch {
	case isDisclosed:
		if wasDisclosed && !s.termsChanged(line, previousLine, oldShared, newShared) {
			return nil
		}
		return s.sendDisclosure(ctx, line, newShared)
	case wasDisclosed:
		return s.sendRevocation(ctx, line, oldShared)
	default:
		return nil
	}
}

// termsChanged reports whether the recipient would observe a difference
// between the old and new disclosure, comparing the payloads each state
// would put on the wire rather than the share flags alone.
func (s *ShareCreditLineService) termsChanged(line, previousLine *models.CreditLine, oldShared, newShared *models.SharedCreditLine) bool {
	if previousLine == nil {
		previousLine = line
	}
	oldPayload := s.buildPayload(previousLine, oldShared.Data.GetValue())
	newPayload := s.buildPayload(line, newShared.Data.GetValue())
	return !reflect.DeepEqual(oldPayload, newPayload)
}

func (s *ShareCreditLineService) sendDisclosure(ctx context.Context, line *models.CreditLine, shared *models.SharedCreditLine) error {
	payload := s.buildPayload(line, shared.Data.GetValue())

	envelope := messaging.NewEnvelope(messaging.TypeShareCreditLine, line.Context(),
		s.companyStaticID, line.CounterpartyStaticID, shared.SharedWithStaticID)
	envelope, err := envelope.WithPayload(payload)
	if err != nil {
		return err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"credit_line": line.StaticID,
		"shared_with": shared.SharedWithStaticID,
	}).Info("disclosing credit line")

	return s.publisher.Publish(ctx, envelope)
}

func (s *ShareCreditLineService) sendRevocation(ctx context.Context, line *models.CreditLine, shared *models.SharedCreditLine) error {
	envelope := messaging.NewEnvelope(messaging.TypeRevokeCreditLine, line.Context(),
		s.companyStaticID, line.CounterpartyStaticID, shared.SharedWithStaticID)

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"credit_line": line.StaticID,
		"shared_with": shared.SharedWithStaticID,
	}).Info("revoking credit line disclosure")

	return s.publisher.Publish(ctx, envelope)
}

// buildPayload projects the line through the share flags. Appetite gates the
// whole disclosure; the other fields only travel when flagged.
func (s *ShareCreditLineService) buildPayload(line *models.CreditLine, flags models.SharedCreditLineData) *messaging.SharedTermsPayload {
	payload := &messaging.SharedTermsPayload{
		Appetite: &line.Appetite,
		Currency: line.Currency,
	}
	if flags.CreditLimit.Shared {
		payload.CreditLimit = line.CreditLimit
	}
	if flags.Availability.Shared {
		payload.Availability = &line.Availability
	}
	if flags.AvailabilityAmount.Shared {
		payload.AvailabilityAmount = line.AvailabilityAmount
	}
	if data := line.Data.GetValue(); len(data) > 0 {
		payload.Data = data
	}
	return payload
}
