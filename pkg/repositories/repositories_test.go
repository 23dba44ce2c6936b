package repositories_test

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komgo/credit-lines/pkg/database"
	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/repositories"
)

func getTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func getTestDB(t *testing.T) database.DB {
	// Use environment variables or defaults for test DB
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "creditlines"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewInstance(db, getTestLogger())
}

// assertNotFound asserts that err is an HTTP 404 error
func assertNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err), "expected 404, got: %d", httperror.GetStatusCode(err))
}

// assertConflict asserts that err is an HTTP 409 error
func assertConflict(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err), "expected 409, got: %d", httperror.GetStatusCode(err))
}

func newTestCreditLine(counterpartyStaticID string) *models.CreditLine {
	limit := int64(500000)
	return &models.CreditLine{
		StaticID:             uuid.New().String(),
		CounterpartyStaticID: counterpartyStaticID,
		ProductID:            models.ProductTradeFinance,
		SubProductID:         models.SubProductRiskCover,
		Appetite:             true,
		Currency:             "USD",
		CreditLimit:          &limit,
		Data:                 database.NewJSONB(map[string]any{"maximumTenor": float64(30)}),
	}
}

func TestCreditLineRepository_CRUD(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := repositories.NewCreditLineRepository(db, getTestLogger())
	ctx := context.Background()

	counterparty := uuid.New().String()
	line := newTestCreditLine(counterparty)

	require.NoError(t, repo.Create(ctx, line))
	assert.False(t, line.CreatedAt.IsZero())
	assert.False(t, line.UpdatedAt.IsZero())

	// a second line for the same context and counterparty must conflict
	assertConflict(t, repo.Create(ctx, newTestCreditLine(counterparty)))

	fetched, err := repo.GetByStaticID(ctx, line.StaticID)
	require.NoError(t, err)
	assert.Equal(t, counterparty, fetched.CounterpartyStaticID)
	assert.Equal(t, "USD", fetched.Currency)
	require.NotNil(t, fetched.CreditLimit)
	assert.Equal(t, int64(500000), *fetched.CreditLimit)
	assert.Equal(t, float64(30), fetched.Data.GetValue()["maximumTenor"])

	found, err := repo.FindOne(ctx, repositories.CreditLineFilter{
		ProductID:            models.ProductTradeFinance,
		SubProductID:         models.SubProductRiskCover,
		CounterpartyStaticID: counterparty,
	})
	require.NoError(t, err)
	assert.Equal(t, line.StaticID, found.StaticID)

	count, err := repo.Count(ctx, repositories.CreditLineFilter{CounterpartyStaticID: counterparty})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	newLimit := int64(750000)
	line.CreditLimit = &newLimit
	line.Appetite = false
	require.NoError(t, repo.Update(ctx, line))

	fetched, err = repo.GetByStaticID(ctx, line.StaticID)
	require.NoError(t, err)
	assert.False(t, fetched.Appetite)
	require.NotNil(t, fetched.CreditLimit)
	assert.Equal(t, int64(750000), *fetched.CreditLimit)

	missing := newTestCreditLine(uuid.New().String())
	assertNotFound(t, repo.Update(ctx, missing))

	require.NoError(t, repo.Delete(ctx, line.StaticID))
	_, err = repo.GetByStaticID(ctx, line.StaticID)
	assertNotFound(t, err)
	assertNotFound(t, repo.Delete(ctx, line.StaticID))
}

func TestSharedCreditLineRepository_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	lines := repositories.NewCreditLineRepository(db, logger)
	repo := repositories.NewSharedCreditLineRepository(db, logger)
	ctx := context.Background()

	counterparty := uuid.New().String()
	line := newTestCreditLine(counterparty)
	require.NoError(t, lines.Create(ctx, line))

	recipient := uuid.New().String()
	shared := &models.SharedCreditLine{
		StaticID:             uuid.New().String(),
		CreditLineStaticID:   line.StaticID,
		CounterpartyStaticID: counterparty,
		SharedWithStaticID:   recipient,
		Data: database.NewJSONB(models.SharedCreditLineData{
			Appetite: models.SharedFlag{Shared: true},
		}),
	}
	require.NoError(t, repo.Create(ctx, shared))

	// same line and recipient again must conflict
	duplicate := *shared
	duplicate.StaticID = uuid.New().String()
	assertConflict(t, repo.Create(ctx, &duplicate))

	shared.Data = database.NewJSONB(models.SharedCreditLineData{
		Appetite:    models.SharedFlag{Shared: true},
		CreditLimit: models.SharedFlag{Shared: true},
	})
	require.NoError(t, repo.Update(ctx, shared))

	match, err := repo.FindOneByCreditLineAndSharedWith(ctx, line.StaticID, recipient)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.True(t, match.Data.GetValue().CreditLimit.Shared)

	none, err := repo.FindOneByCreditLineAndSharedWith(ctx, line.StaticID, uuid.New().String())
	require.NoError(t, err)
	assert.Nil(t, none)

	byLine, err := repo.FindByCreditLine(ctx, line.StaticID)
	require.NoError(t, err)
	require.Len(t, byLine, 1)

	byCounterparty, err := repo.FindByCounterpartyAndContext(ctx, counterparty, line.Context())
	require.NoError(t, err)
	require.Len(t, byCounterparty, 1)
	assert.Equal(t, shared.StaticID, byCounterparty[0].StaticID)

	require.NoError(t, repo.DeleteByStaticIDs(ctx, nil))
	require.NoError(t, repo.DeleteByCreditLine(ctx, line.StaticID))

	byLine, err = repo.FindByCreditLine(ctx, line.StaticID)
	require.NoError(t, err)
	assert.Empty(t, byLine)
}

func TestCreditLineRequestRepository_PendingLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := repositories.NewCreditLineRequestRepository(db, getTestLogger())
	ctx := context.Background()

	counterparty := uuid.New().String()
	company := uuid.New().String()
	productContext := models.ProductContext{
		ProductID:    models.ProductTradeFinance,
		SubProductID: models.SubProductRiskCover,
	}

	request := &models.CreditLineRequest{
		StaticID:             uuid.New().String(),
		RequestType:          models.RequestTypeReceived,
		ProductID:            productContext.ProductID,
		SubProductID:         productContext.SubProductID,
		Comment:              "please share your appetite",
		CounterpartyStaticID: counterparty,
		CompanyStaticID:      company,
		Status:               models.RequestStatusPending,
	}
	require.NoError(t, repo.Create(ctx, request))

	// the partial unique index allows only one pending row per key
	duplicate := *request
	duplicate.StaticID = uuid.New().String()
	assertConflict(t, repo.Create(ctx, &duplicate))

	pending, err := repo.FirstPending(ctx, models.RequestTypeReceived, counterparty, company, productContext)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, request.StaticID, pending.StaticID)

	received, err := repo.FindPendingReceived(ctx, counterparty, productContext)
	require.NoError(t, err)
	require.Len(t, received, 1)

	require.NoError(t, repo.UpdateComment(ctx, request.StaticID, "second ask"))
	fetched, err := repo.GetByStaticID(ctx, request.StaticID)
	require.NoError(t, err)
	assert.Equal(t, "second ask", fetched.Comment)

	resolved, err := repo.UpdateStatus(ctx, request.StaticID, models.RequestStatusDeclined)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, models.RequestStatusDeclined, resolved.Status)

	// already resolved, so no pending row matches
	again, err := repo.UpdateStatus(ctx, request.StaticID, models.RequestStatusDisclosed)
	require.NoError(t, err)
	assert.Nil(t, again)

	// resolution frees the pending slot for a fresh ask
	fresh := *request
	fresh.StaticID = uuid.New().String()
	require.NoError(t, repo.Create(ctx, &fresh))

	byCounterparty, err := repo.FindByCounterparty(ctx, models.RequestTypeReceived, counterparty, productContext)
	require.NoError(t, err)
	assert.Len(t, byCounterparty, 2)
}

func TestDisclosedCreditLineRepository_UpsertReplay(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := repositories.NewDisclosedCreditLineRepository(db, getTestLogger())
	ctx := context.Background()

	owner := uuid.New().String()
	counterparty := uuid.New().String()
	limit := int64(250000)

	disclosed := &models.DisclosedCreditLine{
		StaticID:             uuid.New().String(),
		OwnerStaticID:        owner,
		CounterpartyStaticID: counterparty,
		ProductID:            models.ProductTradeFinance,
		SubProductID:         models.SubProductRiskCover,
		Appetite:             true,
		Currency:             "EUR",
		CreditLimit:          &limit,
		Status:               models.DisclosureStatusDisclosed,
	}
	require.NoError(t, repo.Upsert(ctx, disclosed))
	firstStaticID := disclosed.StaticID

	// a replayed disclosure lands on the same row with the new terms
	newLimit := int64(400000)
	replay := *disclosed
	replay.StaticID = uuid.New().String()
	replay.CreditLimit = &newLimit
	require.NoError(t, repo.Upsert(ctx, &replay))
	assert.Equal(t, firstStaticID, replay.StaticID)

	fetched, err := repo.GetByStaticID(ctx, firstStaticID)
	require.NoError(t, err)
	require.NotNil(t, fetched.CreditLimit)
	assert.Equal(t, int64(400000), *fetched.CreditLimit)

	all, err := repo.Find(ctx, repositories.DisclosedCreditLineFilter{
		OwnerStaticID:        owner,
		CounterpartyStaticID: counterparty,
	})
	require.NoError(t, err)
	require.Len(t, all, 1)

	revoked, err := repo.SetStatus(ctx, owner, counterparty, disclosed.Context(), models.DisclosureStatusRevoked)
	require.NoError(t, err)
	require.NotNil(t, revoked)
	assert.Equal(t, models.DisclosureStatusRevoked, revoked.Status)

	unknown, err := repo.SetStatus(ctx, uuid.New().String(), counterparty, disclosed.Context(), models.DisclosureStatusRevoked)
	require.NoError(t, err)
	assert.Nil(t, unknown)

	_, err = repo.GetByStaticID(ctx, uuid.New().String())
	assertNotFound(t, err)
}

func TestDepositLoanRepository_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := repositories.NewDepositLoanRepository(db, getTestLogger())
	ctx := context.Background()

	duration := 3
	pricing := 1.25
	dl := &models.DepositLoan{
		StaticID:       uuid.New().String(),
		Type:           models.DepositLoanTypeDeposit,
		Currency:       "USD",
		Period:         models.PeriodMonths,
		PeriodDuration: &duration,
		Appetite:       true,
		Pricing:        &pricing,
	}
	t.Cleanup(func() { _ = repo.Delete(ctx, dl.StaticID) })
	require.NoError(t, repo.Create(ctx, dl))

	// same (type, currency, period, duration) key must conflict
	duplicate := *dl
	duplicate.StaticID = uuid.New().String()
	assertConflict(t, repo.Create(ctx, &duplicate))

	deposits, err := repo.FindByType(ctx, models.DepositLoanTypeDeposit)
	require.NoError(t, err)
	require.NotEmpty(t, deposits)

	newPricing := 2.5
	dl.Pricing = &newPricing
	require.NoError(t, repo.Update(ctx, dl))

	fetched, err := repo.GetByStaticID(ctx, dl.StaticID)
	require.NoError(t, err)
	require.NotNil(t, fetched.Pricing)
	assert.Equal(t, 2.5, *fetched.Pricing)

	recipient := uuid.New().String()
	shared := &models.SharedDepositLoan{
		StaticID:            uuid.New().String(),
		DepositLoanStaticID: dl.StaticID,
		SharedWithStaticID:  recipient,
		AppetiteShared:      true,
	}
	require.NoError(t, repo.CreateShared(ctx, shared))

	duplicateShare := *shared
	duplicateShare.StaticID = uuid.New().String()
	assertConflict(t, repo.CreateShared(ctx, &duplicateShare))

	shared.PricingShared = true
	require.NoError(t, repo.UpdateShared(ctx, shared))

	shares, err := repo.FindShared(ctx, dl.StaticID)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	assert.True(t, shares[0].PricingShared)

	// deleting the record takes its shares with it
	require.NoError(t, repo.Delete(ctx, dl.StaticID))
	_, err = repo.GetByStaticID(ctx, dl.StaticID)
	assertNotFound(t, err)

	shares, err = repo.FindShared(ctx, dl.StaticID)
	require.NoError(t, err)
	assert.Empty(t, shares)

	assertNotFound(t, repo.Delete(ctx, dl.StaticID))
}
