package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komgo/credit-lines/pkg/database"
	"github.com/komgo/credit-lines/pkg/messaging"
	"github.com/komgo/credit-lines/pkg/models"
)

func testCreditLine() *models.CreditLine {
	limit := int64(500000)
	amount := int64(250000)
	return &models.CreditLine{
		StaticID:             "line-1",
		CounterpartyStaticID: "corp-1",
		ProductID:            models.ProductTradeFinance,
		SubProductID:         models.SubProductRiskCover,
		Appetite:             true,
		Currency:             "USD",
		CreditLimit:          &limit,
		Availability:         true,
		AvailabilityAmount:   &amount,
	}
}

func testShare(sharedWith string, data models.SharedCreditLineData) *models.SharedCreditLine {
	return &models.SharedCreditLine{
		StaticID:             "share-" + sharedWith,
		CreditLineStaticID:   "line-1",
		CounterpartyStaticID: "corp-1",
		SharedWithStaticID:   sharedWith,
		Data:                 database.NewJSONB(data),
	}
}

func allShared() models.SharedCreditLineData {
	return models.SharedCreditLineData{
		Appetite:           models.SharedFlag{Shared: true},
		CreditLimit:        models.SharedFlag{Shared: true},
		Availability:       models.SharedFlag{Shared: true},
		AvailabilityAmount: models.SharedFlag{Shared: true},
	}
}

func appetiteOnly() models.SharedCreditLineData {
	return models.SharedCreditLineData{
		Appetite: models.SharedFlag{Shared: true},
	}
}

func TestShareService_NewShareDiscloses(t *testing.T) {
	publisher := &fakePublisher{}
	service := NewShareCreditLineService(publisher, "bank-1", testLogger())

	err := service.Process(context.Background(), testCreditLine(), nil, nil, testShare("bank-2", allShared()))
	require.NoError(t, err)

	require.Len(t, publisher.published, 1)
	envelope := publisher.published[0]
	assert.Equal(t, messaging.TypeShareCreditLine, envelope.MessageType)
	assert.Equal(t, "bank-1", envelope.CompanyStaticID)
	assert.Equal(t, "corp-1", envelope.CounterpartyStaticID)
	assert.Equal(t, "bank-2", envelope.RecepientStaticID)

	var terms messaging.SharedTermsPayload
	require.NoError(t, envelope.DecodePayload(&terms))
	require.NotNil(t, terms.Appetite)
	assert.True(t, *terms.Appetite)
	require.NotNil(t, terms.CreditLimit)
	assert.Equal(t, int64(500000), *terms.CreditLimit)
	require.NotNil(t, terms.AvailabilityAmount)
	assert.Equal(t, int64(250000), *terms.AvailabilityAmount)
}

func TestShareService_AppetiteNotSharedIsNoop(t *testing.T) {
	publisher := &fakePublisher{}
	service := NewShareCreditLineService(publisher, "bank-1", testLogger())

	err := service.Process(context.Background(), testCreditLine(), nil, nil, testShare("bank-2", models.SharedCreditLineData{}))
	require.NoError(t, err)
	assert.Empty(t, publisher.published)
}

func TestShareService_WithheldFieldsStayOut(t *testing.T) {
	publisher := &fakePublisher{}
	service := NewShareCreditLineService(publisher, "bank-1", testLogger())

	err := service.Process(context.Background(), testCreditLine(), nil, nil, testShare("bank-2", appetiteOnly()))
	require.NoError(t, err)

	require.Len(t, publisher.published, 1)
	var terms messaging.SharedTermsPayload
	require.NoError(t, publisher.published[0].DecodePayload(&terms))
	require.NotNil(t, terms.Appetite)
	assert.Equal(t, "USD", terms.Currency)
	assert.Nil(t, terms.CreditLimit)
	assert.Nil(t, terms.Availability)
	assert.Nil(t, terms.AvailabilityAmount)
}

func TestShareService_UnchangedTermsAreNoop(t *testing.T) {
	publisher := &fakePublisher{}
	service := NewShareCreditLineService(publisher, "bank-1", testLogger())

	line := testCreditLine()
	share := testShare("bank-2", allShared())
	err := service.Process(context.Background(), line, line, share, share)
	require.NoError(t, err)
	assert.Empty(t, publisher.published)
}

func TestShareService_ChangedLineTermsRedisclose(t *testing.T) {
	publisher := &fakePublisher{}
	service := NewShareCreditLineService(publisher, "bank-1", testLogger())

	previous := testCreditLine()
	line := testCreditLine()
	newLimit := int64(999999)
	line.CreditLimit = &newLimit

	share := testShare("bank-2", allShared())
	err := service.Process(context.Background(), line, previous, share, share)
	require.NoError(t, err)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, messaging.TypeShareCreditLine, publisher.published[0].MessageType)

	var terms messaging.SharedTermsPayload
	require.NoError(t, publisher.published[0].DecodePayload(&terms))
	require.NotNil(t, terms.CreditLimit)
	assert.Equal(t, int64(999999), *terms.CreditLimit)
}

func TestShareService_ChangedWithheldTermStaysQuiet(t *testing.T) {
	publisher := &fakePublisher{}
	service := NewShareCreditLineService(publisher, "bank-1", testLogger())

	previous := testCreditLine()
	line := testCreditLine()
	newLimit := int64(999999)
	line.CreditLimit = &newLimit

	share := testShare("bank-2", appetiteOnly())
	err := service.Process(context.Background(), line, previous, share, share)
	require.NoError(t, err)
	assert.Empty(t, publisher.published)
}

func TestShareService_ChangedFlagsRedisclose(t *testing.T) {
	publisher := &fakePublisher{}
	service := NewShareCreditLineService(publisher, "bank-1", testLogger())

	line := testCreditLine()
	err := service.Process(context.Background(), line, line,
		testShare("bank-2", appetiteOnly()), testShare("bank-2", allShared()))
	require.NoError(t, err)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, messaging.TypeShareCreditLine, publisher.published[0].MessageType)
}

func TestShareService_RemovedShareRevokes(t *testing.T) {
	publisher := &fakePublisher{}
	service := NewShareCreditLineService(publisher, "bank-1", testLogger())

	err := service.Process(context.Background(), testCreditLine(), nil, testShare("bank-2", allShared()), nil)
	require.NoError(t, err)

	require.Len(t, publisher.published, 1)
	envelope := publisher.published[0]
	assert.Equal(t, messaging.TypeRevokeCreditLine, envelope.MessageType)
	assert.Equal(t, "bank-2", envelope.RecepientStaticID)
	assert.Empty(t, envelope.Payload)
}

func TestShareService_AppetiteWithdrawnRevokes(t *testing.T) {
	publisher := &fakePublisher{}
	service := NewShareCreditLineService(publisher, "bank-1", testLogger())

	line := testCreditLine()
	err := service.Process(context.Background(), line, line,
		testShare("bank-2", allShared()), testShare("bank-2", models.SharedCreditLineData{}))
	require.NoError(t, err)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, messaging.TypeRevokeCreditLine, publisher.published[0].MessageType)
}

func TestShareService_NeverSharedRemovalIsNoop(t *testing.T) {
	publisher := &fakePublisher{}
	service := NewShareCreditLineService(publisher, "bank-1", testLogger())

	err := service.Process(context.Background(), testCreditLine(), nil, testShare("bank-2", models.SharedCreditLineData{}), nil)
	require.NoError(t, err)
	assert.Empty(t, publisher.published)
}
