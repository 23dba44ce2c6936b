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

const sharedCreditLinesTable = "shared_credit_lines"

var sharedCreditLineStruct = database.NewStruct(new(models.SharedCreditLine))

// SharedCreditLineRepository is the data agent for the shared_credit_lines collection
type SharedCreditLineRepository struct {
	*Repository
}

func NewSharedCreditLineRepository(db database.DB, logger ectologger.Logger) *SharedCreditLineRepository {
	return &SharedCreditLineRepository{Repository: NewRepository(db, logger)}
}

// Create inserts a new shared credit line
func (r *SharedCreditLineRepository) Create(ctx context.Context, shared *models.SharedCreditLine) error {
	ctx, span := tracing.StartSpan(ctx, "SharedCreditLineRepository.Create")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(sharedCreditLinesTable).
		Cols("static_id", "credit_line_static_id", "counterparty_static_id", "shared_with_static_id",
			"data", "created_at", "updated_at").
		Values(shared.StaticID, shared.CreditLineStaticID, shared.CounterpartyStaticID, shared.SharedWithStaticID,
			shared.Data, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&shared.CreatedAt, &shared.UpdatedAt)
	if IsDuplicateKey(err) {
		return Conflict("credit line %s is already shared with %s", shared.CreditLineStaticID, shared.SharedWithStaticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": shared.StaticID,
		}).Error("failed to create shared credit line")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create shared credit line")
	}

	return nil
}

// Update replaces the share flags on an existing shared credit line
func (r *SharedCreditLineRepository) Update(ctx context.Context, shared *models.SharedCreditLine) error {
	ctx, span := tracing.StartSpan(ctx, "SharedCreditLineRepository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(sharedCreditLinesTable).
		Set(
			ub.Assign("data", shared.Data),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("static_id", shared.StaticID))
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&shared.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("shared credit line %s does not exist", shared.StaticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": shared.StaticID,
		}).Error("failed to update shared credit line")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update shared credit line")
	}

	return nil
}

// FindByCreditLine returns all shares of one credit line, newest first
func (r *SharedCreditLineRepository) FindByCreditLine(ctx context.Context, creditLineStaticID string) ([]models.SharedCreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "SharedCreditLineRepository.FindByCreditLine")
	defer span.End()

	sb := sharedCreditLineStruct.SelectFrom(sharedCreditLinesTable)
	sb.Where(sb.Equal("credit_line_static_id", creditLineStaticID))
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	var shares []models.SharedCreditLine
	if err := r.DB().SelectContext(ctx, &shares, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list shared credit lines")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list shared credit lines")
	}

	return shares, nil
}

// FindOneByCreditLineAndSharedWith returns the single share of a credit line
// with one company, or nil when the line was never shared with it.
func (r *SharedCreditLineRepository) FindOneByCreditLineAndSharedWith(ctx context.Context, creditLineStaticID, sharedWithStaticID string) (*models.SharedCreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "SharedCreditLineRepository.FindOneByCreditLineAndSharedWith")
	defer span.End()

	sb := sharedCreditLineStruct.SelectFrom(sharedCreditLinesTable)
	sb.Where(
		sb.Equal("credit_line_static_id", creditLineStaticID),
		sb.Equal("shared_with_static_id", sharedWithStaticID),
	)

	query, args := sb.Build()
	var shared models.SharedCreditLine
	err := r.DB().GetContext(ctx, &shared, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to find shared credit line")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find shared credit line")
	}

	return &shared, nil
}

// FindByCounterpartyAndContext returns the shares of the credit line held for
// a counterparty in the given product context.
func (r *SharedCreditLineRepository) FindByCounterpartyAndContext(ctx context.Context, counterpartyStaticID string, productContext models.ProductContext) ([]models.SharedCreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "SharedCreditLineRepository.FindByCounterpartyAndContext")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("s.static_id", "s.credit_line_static_id", "s.counterparty_static_id",
		"s.shared_with_static_id", "s.data", "s.created_at", "s.updated_at").
		From(sharedCreditLinesTable+" s").
		Join(creditLinesTable+" c", "c.static_id = s.credit_line_static_id").
		Where(
			sb.Equal("s.counterparty_static_id", counterpartyStaticID),
			sb.Equal("c.product_id", productContext.ProductID),
			sb.Equal("c.sub_product_id", productContext.SubProductID),
		)

	query, args := sb.Build()
	var shares []models.SharedCreditLine
	if err := r.DB().SelectContext(ctx, &shares, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to find shared credit lines by counterparty")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find shared credit lines")
	}

	return shares, nil
}

// DeleteByStaticIDs removes the given shares. Used when an update to the
// parent line drops companies from the share list.
func (r *SharedCreditLineRepository) DeleteByStaticIDs(ctx context.Context, staticIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "SharedCreditLineRepository.DeleteByStaticIDs")
	defer span.End()

	if len(staticIDs) == 0 {
		return nil
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(sharedCreditLinesTable).Where(db.In("static_id", sqlbuilder.List(staticIDs)))

	query, args := db.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete shared credit lines")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete shared credit lines")
	}

	return nil
}

// DeleteByCreditLine removes every share of a credit line. Called when the
// parent line itself is deleted so no orphans remain.
func (r *SharedCreditLineRepository) DeleteByCreditLine(ctx context.Context, creditLineStaticID string) error {
	ctx, span := tracing.StartSpan(ctx, "SharedCreditLineRepository.DeleteByCreditLine")
	defer span.End()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(sharedCreditLinesTable).Where(db.Equal("credit_line_static_id", creditLineStaticID))

	query, args := db.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"credit_line_static_id": creditLineStaticID,
		}).Error("failed to delete shared credit lines")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete shared credit lines")
	}

	return nil
}
