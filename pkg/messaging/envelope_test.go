package messaging

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komgo/credit-lines/pkg/models"
)

func tradeFinanceContext() models.ProductContext {
	return models.ProductContext{
		ProductID:    models.ProductTradeFinance,
		SubProductID: models.SubProductRiskCover,
	}
}

func TestNewEnvelope_DefaultsToCreditLineFeature(t *testing.T) {
	envelope := NewEnvelope(TypeShareCreditLine, tradeFinanceContext(), "company-1", "counterparty-1", "recipient-1")

	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, models.FeatureCreditLine, envelope.FeatureType)
	require.NoError(t, envelope.Validate())
}

func TestEnvelope_RecipientFieldSpelling(t *testing.T) {
	envelope := NewEnvelope(TypeShareCreditLine, tradeFinanceContext(), "company-1", "counterparty-1", "recipient-1")

	data, err := json.Marshal(envelope)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "recipient-1", raw["recepientStaticId"])
	assert.NotContains(t, raw, "recipientStaticId")
}

func TestEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *Envelope)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(e *Envelope) {},
			wantErr: "",
		},
		{
			name:    "unknown message type",
			mutate:  func(e *Envelope) { e.MessageType = "KOMGO.CreditLines.Nonsense" },
			wantErr: "unknown message type",
		},
		{
			name:    "missing company",
			mutate:  func(e *Envelope) { e.CompanyStaticID = "" },
			wantErr: "companyStaticId",
		},
		{
			name:    "missing counterparty",
			mutate:  func(e *Envelope) { e.CounterpartyStaticID = "" },
			wantErr: "counterpartyStaticId",
		},
		{
			name:    "missing context",
			mutate:  func(e *Envelope) { e.Context.SubProductID = "" },
			wantErr: "product context",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope := NewEnvelope(TypeCreditLineRequest, tradeFinanceContext(), "company-1", "counterparty-1", "recipient-1")
			tt.mutate(envelope)

			err := envelope.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvelope_PayloadRoundTrip(t *testing.T) {
	envelope := NewEnvelope(TypeCreditLineRequestDeclined, tradeFinanceContext(), "company-1", "counterparty-1", "recipient-1")
	envelope, err := envelope.WithPayload(RequestReferencePayload{RequestStaticID: "req-123"})
	require.NoError(t, err)

	var decoded RequestReferencePayload
	require.NoError(t, envelope.DecodePayload(&decoded))
	assert.Equal(t, "req-123", decoded.RequestStaticID)
}

func TestEnvelope_DecodePayload_Empty(t *testing.T) {
	envelope := NewEnvelope(TypeRevokeCreditLine, tradeFinanceContext(), "company-1", "counterparty-1", "recipient-1")

	var decoded RequestReferencePayload
	err := envelope.DecodePayload(&decoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no payload")
}

func TestParseEnvelope(t *testing.T) {
	raw := []byte(`{
		"version": 1,
		"messageType": "KOMGO.CreditLines.ShareCreditLine",
		"context": {"productId": "tradeFinance", "subProductId": "riskCover"},
		"companyStaticId": "company-1",
		"counterpartyStaticId": "counterparty-1",
		"recepientStaticId": "recipient-1",
		"featureType": "creditLine",
		"payload": {"appetite": true, "currency": "USD"}
	}`)

	envelope, err := ParseEnvelope(raw)
	require.NoError(t, err)
	require.NoError(t, envelope.Validate())
	assert.Equal(t, TypeShareCreditLine, envelope.MessageType)
	assert.Equal(t, "recipient-1", envelope.RecepientStaticID)

	var terms SharedTermsPayload
	require.NoError(t, envelope.DecodePayload(&terms))
	require.NotNil(t, terms.Appetite)
	assert.True(t, *terms.Appetite)
	assert.Equal(t, "USD", terms.Currency)
	assert.Nil(t, terms.CreditLimit)
}

func TestParseEnvelope_Malformed(t *testing.T) {
	_, err := ParseEnvelope([]byte(`{"messageType":`))
	require.Error(t, err)
}
