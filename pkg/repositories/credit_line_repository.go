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

const creditLinesTable = "credit_lines"

var creditLineStruct = database.NewStruct(new(models.CreditLine))

// CreditLineFilter narrows credit-line queries. Zero-valued fields are ignored.
type CreditLineFilter struct {
	ProductID            string
	SubProductID         string
	CounterpartyStaticID string
}

// CreditLineRepository is the data agent for the credit_lines collection
type CreditLineRepository struct {
	*Repository
}

func NewCreditLineRepository(db database.DB, logger ectologger.Logger) *CreditLineRepository {
	return &CreditLineRepository{Repository: NewRepository(db, logger)}
}

// Create inserts a new credit line. A second line for the same
// (context, counterparty) pair fails with a conflict error.
func (r *CreditLineRepository) Create(ctx context.Context, line *models.CreditLine) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRepository.Create")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(creditLinesTable).
		Cols("static_id", "counterparty_static_id", "product_id", "sub_product_id", "appetite",
			"currency", "credit_limit", "availability", "availability_amount", "data", "created_at", "updated_at").
		Values(line.StaticID, line.CounterpartyStaticID, line.ProductID, line.SubProductID, line.Appetite,
			line.Currency, line.CreditLimit, line.Availability, line.AvailabilityAmount, line.Data,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&line.CreatedAt, &line.UpdatedAt)
	if IsDuplicateKey(err) {
		return Conflict("credit line for counterparty %s already exists in context %s/%s",
			line.CounterpartyStaticID, line.ProductID, line.SubProductID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": line.StaticID,
		}).Error("failed to create credit line")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create credit line")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"static_id": line.StaticID,
	}).Debugf("Created %s", creditLinesTable)
	return nil
}

// GetByStaticID retrieves a credit line by its identity
func (r *CreditLineRepository) GetByStaticID(ctx context.Context, staticID string) (*models.CreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRepository.GetByStaticID")
	defer span.End()

	sb := creditLineStruct.SelectFrom(creditLinesTable)
	sb.Where(sb.Equal("static_id", staticID))

	query, args := sb.Build()
	var line models.CreditLine
	err := r.DB().GetContext(ctx, &line, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("credit line %s does not exist", staticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": staticID,
		}).Error("failed to get credit line")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get credit line")
	}

	return &line, nil
}

// FindOne retrieves the credit line matching the filter, or a 404 error
func (r *CreditLineRepository) FindOne(ctx context.Context, filter CreditLineFilter) (*models.CreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRepository.FindOne")
	defer span.End()

	sb := creditLineStruct.SelectFrom(creditLinesTable)
	applyCreditLineFilter(sb.SelectBuilder, filter)

	query, args := sb.Build()
	var line models.CreditLine
	err := r.DB().GetContext(ctx, &line, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("no credit line matches the given filter")
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to find credit line")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find credit line")
	}

	return &line, nil
}

// Find retrieves all credit lines matching the filter, newest first
func (r *CreditLineRepository) Find(ctx context.Context, filter CreditLineFilter) ([]models.CreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRepository.Find")
	defer span.End()

	sb := creditLineStruct.SelectFrom(creditLinesTable)
	applyCreditLineFilter(sb.SelectBuilder, filter)
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	var lines []models.CreditLine
	err := r.DB().SelectContext(ctx, &lines, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list credit lines")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list credit lines")
	}

	return lines, nil
}

// Count returns the number of credit lines matching the filter
func (r *CreditLineRepository) Count(ctx context.Context, filter CreditLineFilter) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRepository.Count")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From(creditLinesTable)
	applyCreditLineFilter(sb.SelectBuilder, filter)

	query, args := sb.Build()
	var count int
	if err := r.DB().GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count credit lines")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count credit lines")
	}

	return count, nil
}

// Update persists changed terms for an existing credit line
func (r *CreditLineRepository) Update(ctx context.Context, line *models.CreditLine) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRepository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(creditLinesTable).
		Set(
			ub.Assign("appetite", line.Appetite),
			ub.Assign("currency", line.Currency),
			ub.Assign("credit_limit", line.CreditLimit),
			ub.Assign("availability", line.Availability),
			ub.Assign("availability_amount", line.AvailabilityAmount),
			ub.Assign("data", line.Data),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("static_id", line.StaticID))
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&line.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("credit line %s does not exist", line.StaticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": line.StaticID,
		}).Error("failed to update credit line")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update credit line")
	}

	return nil
}

// Delete removes a credit line by identity
func (r *CreditLineRepository) Delete(ctx context.Context, staticID string) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRepository.Delete")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(creditLinesTable).Where(db.Equal("static_id", staticID))

	query, args := db.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": staticID,
		}).Error("failed to delete credit line")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete credit line")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete credit line")
	}
	if rows == 0 {
		return NotFound("credit line %s does not exist", staticID)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"static_id": staticID,
	}).Debugf("Deleted %s", creditLinesTable)
	return nil
}

func applyCreditLineFilter(sb *sqlbuilder.SelectBuilder, filter CreditLineFilter) {
	if filter.ProductID != "" {
		sb.Where(sb.Equal("product_id", filter.ProductID))
	}
	if filter.SubProductID != "" {
		sb.Where(sb.Equal("sub_product_id", filter.SubProductID))
	}
	if filter.CounterpartyStaticID != "" {
		sb.Where(sb.Equal("counterparty_static_id", filter.CounterpartyStaticID))
	}
}
