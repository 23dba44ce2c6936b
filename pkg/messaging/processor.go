package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/komgo/credit-lines/pkg/metrics"
	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/tracing"
)

// RequestHandler reacts to inbound request lifecycle messages.
type RequestHandler interface {
	RequestReceived(ctx context.Context, envelope *Envelope) error
	RequestDeclined(ctx context.Context, envelope *Envelope) error
}

// DisclosureHandler reacts to inbound disclosure messages.
type DisclosureHandler interface {
	Disclosed(ctx context.Context, envelope *Envelope) error
	Revoked(ctx context.Context, envelope *Envelope) error
}

// Processor routes inbound envelopes to the service that owns each message
// type.
type Processor struct {
	requests    RequestHandler
	disclosures DisclosureHandler
	logger      ectologger.Logger
}

func NewProcessor(requests RequestHandler, disclosures DisclosureHandler, logger ectologger.Logger) *Processor {
	return &Processor{
		requests:    requests,
		disclosures: disclosures,
		logger:      logger,
	}
}

// Process dispatches one envelope on its message type and feature. Unknown
// message types are rejected by envelope validation before this point.
// Disclosures for features without an inbound handler are acknowledged and
// dropped so a depositLoan share never lands in the credit line records.
func (p *Processor) Process(ctx context.Context, envelope *Envelope) error {
	ctx, span := tracing.StartSpan(ctx, "Processor.Process")
	defer span.End()

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"message_type": envelope.MessageType,
		"feature_type": envelope.FeatureType,
		"company":      envelope.CompanyStaticID,
		"counterparty": envelope.CounterpartyStaticID,
	}).Info("processing inbound message")

	if !p.handlesFeature(envelope.FeatureType) {
		p.logger.WithContext(ctx).WithFields(map[string]any{
			"message_type": envelope.MessageType,
			"feature_type": envelope.FeatureType,
		}).Warn("no inbound handler for feature, dropping message")
		metrics.MessagesConsumedTotal.WithLabelValues(string(envelope.MessageType), "dropped").Inc()
		return nil
	}

	start := time.Now()
	var err error
	switch envelope.MessageType {
	case TypeCreditLineRequest:
		err = p.requests.RequestReceived(ctx, envelope)
	case TypeCreditLineRequestDeclined:
		err = p.requests.RequestDeclined(ctx, envelope)
	case TypeShareCreditLine:
		err = p.disclosures.Disclosed(ctx, envelope)
	case TypeRevokeCreditLine:
		err = p.disclosures.Revoked(ctx, envelope)
	default:
		err = fmt.Errorf("no handler for message type %q", envelope.MessageType)
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.MessagesConsumedTotal.WithLabelValues(string(envelope.MessageType), outcome).Inc()
	metrics.MessageProcessingDuration.WithLabelValues(string(envelope.MessageType)).Observe(time.Since(start).Seconds())

	return err
}

// handlesFeature reports whether inbound handlers exist for the feature. An
// empty feature is read as creditLine for envelopes from older senders.
func (p *Processor) handlesFeature(feature models.FeatureType) bool {
	return feature == models.FeatureCreditLine || feature == ""
}
