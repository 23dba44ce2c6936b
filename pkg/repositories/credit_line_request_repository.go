package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/komgo/credit-lines/pkg/database"
	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/tracing"
)

const creditLineRequestsTable = "credit_line_requests"

var creditLineRequestStruct = database.NewStruct(new(models.CreditLineRequest))

// CreditLineRequestRepository is the data agent for the credit_line_requests collection
type CreditLineRequestRepository struct {
	*Repository
}

func NewCreditLineRequestRepository(db database.DB, logger ectologger.Logger) *CreditLineRequestRepository {
	return &CreditLineRequestRepository{Repository: NewRepository(db, logger)}
}

// Create inserts a new request. A partial unique index rejects a second
// pending request for the same (type, context, counterparty, company).
func (r *CreditLineRequestRepository) Create(ctx context.Context, request *models.CreditLineRequest) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestRepository.Create")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(creditLineRequestsTable).
		Cols("static_id", "request_type", "product_id", "sub_product_id", "comment",
			"counterparty_static_id", "company_static_id", "status", "created_at", "updated_at").
		Values(request.StaticID, request.RequestType, request.ProductID, request.SubProductID, request.Comment,
			request.CounterpartyStaticID, request.CompanyStaticID, request.Status,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&request.CreatedAt, &request.UpdatedAt)
	if IsDuplicateKey(err) {
		return Conflict("a pending %s request already exists for counterparty %s",
			request.RequestType, request.CounterpartyStaticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": request.StaticID,
		}).Error("failed to create credit line request")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create credit line request")
	}

	return nil
}

// GetByStaticID retrieves a request by its identity
func (r *CreditLineRequestRepository) GetByStaticID(ctx context.Context, staticID string) (*models.CreditLineRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestRepository.GetByStaticID")
	defer span.End()

	sb := creditLineRequestStruct.SelectFrom(creditLineRequestsTable)
	sb.Where(sb.Equal("static_id", staticID))

	query, args := sb.Build()
	var request models.CreditLineRequest
	err := r.DB().GetContext(ctx, &request, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("credit line request %s does not exist", staticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": staticID,
		}).Error("failed to get credit line request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get credit line request")
	}

	return &request, nil
}

// UpdateStatus moves a request from PENDING to the given terminal status.
// Returns the updated row, or nil when no pending row matched.
func (r *CreditLineRequestRepository) UpdateStatus(ctx context.Context, staticID string, status models.CreditLineRequestStatus) (*models.CreditLineRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestRepository.UpdateStatus")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(creditLineRequestsTable).
		Set(
			ub.Assign("status", status),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(
			ub.Equal("static_id", staticID),
			ub.Equal("status", models.RequestStatusPending),
		)
	ub.SQL("RETURNING static_id, request_type, product_id, sub_product_id, comment, counterparty_static_id, company_static_id, status, created_at, updated_at")

	query, args := ub.Build()
	var request models.CreditLineRequest
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(
		&request.StaticID, &request.RequestType, &request.ProductID, &request.SubProductID,
		&request.Comment, &request.CounterpartyStaticID, &request.CompanyStaticID,
		&request.Status, &request.CreatedAt, &request.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": staticID,
			"status":    status,
		}).Error("failed to update credit line request status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update credit line request")
	}

	return &request, nil
}

// UpdateComment merges a repeated request into the existing pending row by
// refreshing its comment.
func (r *CreditLineRequestRepository) UpdateComment(ctx context.Context, staticID, comment string) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestRepository.UpdateComment")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(creditLineRequestsTable).
		Set(
			ub.Assign("comment", comment),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("static_id", staticID))

	query, args := ub.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": staticID,
		}).Error("failed to update credit line request comment")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update credit line request")
	}

	return nil
}

// FindByTypeAndContext returns all requests of one type in a product context,
// newest first.
func (r *CreditLineRequestRepository) FindByTypeAndContext(ctx context.Context, requestType models.CreditLineRequestType, productContext models.ProductContext) ([]models.CreditLineRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestRepository.FindByTypeAndContext")
	defer span.End()

	sb := creditLineRequestStruct.SelectFrom(creditLineRequestsTable)
	sb.Where(
		sb.Equal("request_type", requestType),
		sb.Equal("product_id", productContext.ProductID),
		sb.Equal("sub_product_id", productContext.SubProductID),
	)
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	var requests []models.CreditLineRequest
	if err := r.DB().SelectContext(ctx, &requests, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list credit line requests")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list credit line requests")
	}

	return requests, nil
}

// FindByCounterparty returns all requests of one type for a counterparty in a
// product context, newest first.
func (r *CreditLineRequestRepository) FindByCounterparty(ctx context.Context, requestType models.CreditLineRequestType, counterpartyStaticID string, productContext models.ProductContext) ([]models.CreditLineRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestRepository.FindByCounterparty")
	defer span.End()

	sb := creditLineRequestStruct.SelectFrom(creditLineRequestsTable)
	sb.Where(
		sb.Equal("request_type", requestType),
		sb.Equal("counterparty_static_id", counterpartyStaticID),
		sb.Equal("product_id", productContext.ProductID),
		sb.Equal("sub_product_id", productContext.SubProductID),
	)
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	var requests []models.CreditLineRequest
	if err := r.DB().SelectContext(ctx, &requests, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list credit line requests")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list credit line requests")
	}

	return requests, nil
}

// FirstPending returns the single pending request matching the key, or nil
// when none exists. The partial unique index guarantees at most one row.
func (r *CreditLineRequestRepository) FirstPending(ctx context.Context, requestType models.CreditLineRequestType, counterpartyStaticID, companyStaticID string, productContext models.ProductContext) (*models.CreditLineRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestRepository.FirstPending")
	defer span.End()

	sb := creditLineRequestStruct.SelectFrom(creditLineRequestsTable)
	sb.Where(
		sb.Equal("request_type", requestType),
		sb.Equal("counterparty_static_id", counterpartyStaticID),
		sb.Equal("company_static_id", companyStaticID),
		sb.Equal("product_id", productContext.ProductID),
		sb.Equal("sub_product_id", productContext.SubProductID),
		sb.Equal("status", models.RequestStatusPending),
	)

	query, args := sb.Build()
	var request models.CreditLineRequest
	err := r.DB().GetContext(ctx, &request, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to find pending credit line request")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find pending credit line request")
	}

	return &request, nil
}

// FindPendingReceived returns the pending received requests for a
// counterparty in a product context, one per requesting company.
func (r *CreditLineRequestRepository) FindPendingReceived(ctx context.Context, counterpartyStaticID string, productContext models.ProductContext) ([]models.CreditLineRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestRepository.FindPendingReceived")
	defer span.End()

	sb := creditLineRequestStruct.SelectFrom(creditLineRequestsTable)
	sb.Where(
		sb.Equal("request_type", models.RequestTypeReceived),
		sb.Equal("counterparty_static_id", counterpartyStaticID),
		sb.Equal("product_id", productContext.ProductID),
		sb.Equal("sub_product_id", productContext.SubProductID),
		sb.Equal("status", models.RequestStatusPending),
	)
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	var requests []models.CreditLineRequest
	if err := r.DB().SelectContext(ctx, &requests, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list pending credit line requests")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending credit line requests")
	}

	return requests, nil
}
