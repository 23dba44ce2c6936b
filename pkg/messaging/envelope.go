package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/komgo/credit-lines/pkg/models"
)

// MessageType identifies the intent of an envelope.
type MessageType string

const (
	TypeCreditLineRequest         MessageType = "KOMGO.CreditLines.RequestCreditLine"
	TypeCreditLineRequestDeclined MessageType = "KOMGO.CreditLines.RequestDeclined"
	TypeShareCreditLine           MessageType = "KOMGO.CreditLines.ShareCreditLine"
	TypeRevokeCreditLine          MessageType = "KOMGO.CreditLines.RevokeCreditLine"
)

const envelopeVersion = 1

// Envelope is the wire format exchanged between company nodes. The
// recepientStaticId field name is part of the wire contract and kept as is.
type Envelope struct {
	Version              int                   `json:"version"`
	MessageType          MessageType           `json:"messageType"`
	Context              models.ProductContext `json:"context"`
	CompanyStaticID      string                `json:"companyStaticId"`
	CounterpartyStaticID string                `json:"counterpartyStaticId"`
	RecepientStaticID    string                `json:"recepientStaticId"`
	Comment              string                `json:"comment,omitempty"`
	FeatureType          models.FeatureType    `json:"featureType"`
	Payload              json.RawMessage       `json:"payload,omitempty"`
}

// NewEnvelope builds an envelope with the current wire version
func NewEnvelope(messageType MessageType, productContext models.ProductContext, companyStaticID, counterpartyStaticID, recipientStaticID string) *Envelope {
	return &Envelope{
		Version:              envelopeVersion,
		MessageType:          messageType,
		Context:              productContext,
		CompanyStaticID:      companyStaticID,
		CounterpartyStaticID: counterpartyStaticID,
		RecepientStaticID:    recipientStaticID,
		FeatureType:          models.FeatureCreditLine,
	}
}

// WithPayload attaches a JSON payload to the envelope
func (e *Envelope) WithPayload(payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	e.Payload = data
	return e, nil
}

// DecodePayload unmarshals the envelope payload into v
func (e *Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("envelope has no payload")
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// Validate checks the envelope carries the fields every message type needs
func (e *Envelope) Validate() error {
	switch e.MessageType {
	case TypeCreditLineRequest, TypeCreditLineRequestDeclined, TypeShareCreditLine, TypeRevokeCreditLine:
	default:
		return fmt.Errorf("unknown message type %q", e.MessageType)
	}
	if e.CompanyStaticID == "" {
		return fmt.Errorf("envelope is missing companyStaticId")
	}
	if e.CounterpartyStaticID == "" {
		return fmt.Errorf("envelope is missing counterpartyStaticId")
	}
	if e.Context.ProductID == "" || e.Context.SubProductID == "" {
		return fmt.Errorf("envelope is missing product context")
	}
	return nil
}

// ParseEnvelope decodes a raw message into an Envelope
func ParseEnvelope(data []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	return &envelope, nil
}

// SharedTermsPayload carries the disclosed fields of a ShareCreditLine
// message. Withheld fields stay nil.
type SharedTermsPayload struct {
	Appetite           *bool          `json:"appetite,omitempty"`
	Currency           string         `json:"currency,omitempty"`
	CreditLimit        *int64         `json:"creditLimit,omitempty"`
	Availability       *bool          `json:"availability,omitempty"`
	AvailabilityAmount *int64         `json:"availabilityAmount,omitempty"`
	Data               map[string]any `json:"data,omitempty"`
}

// DepositLoanTermsPayload carries the disclosed fields of a deposit/loan
// share. Sent with featureType depositLoan on the credit-line message types.
type DepositLoanTermsPayload struct {
	Type           models.DepositLoanType   `json:"type"`
	Currency       string                   `json:"currency"`
	Period         models.DepositLoanPeriod `json:"period"`
	PeriodDuration *int                     `json:"periodDuration,omitempty"`
	Appetite       *bool                    `json:"appetite,omitempty"`
	Pricing        *float64                 `json:"pricing,omitempty"`
}

// RequestReferencePayload carries the request identity between nodes. The
// receiving side stores the same staticId, so a later decline names the
// exact row on the requester's side.
type RequestReferencePayload struct {
	RequestStaticID string `json:"requestStaticId"`
}
