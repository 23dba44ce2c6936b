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

const disclosedCreditLinesTable = "disclosed_credit_lines"

var disclosedCreditLineStruct = database.NewStruct(new(models.DisclosedCreditLine))

// DisclosedCreditLineFilter narrows disclosed-credit-line queries.
// Zero-valued fields are ignored.
type DisclosedCreditLineFilter struct {
	OwnerStaticID        string
	CounterpartyStaticID string
	ProductID            string
	SubProductID         string
}

// DisclosedCreditLineRepository is the data agent for the disclosed_credit_lines collection
type DisclosedCreditLineRepository struct {
	*Repository
}

func NewDisclosedCreditLineRepository(db database.DB, logger ectologger.Logger) *DisclosedCreditLineRepository {
	return &DisclosedCreditLineRepository{Repository: NewRepository(db, logger)}
}

// Upsert writes a disclosure keyed by (owner, counterparty, context). Inbound
// messages replay safely: a repeat disclosure overwrites the stored terms.
func (r *DisclosedCreditLineRepository) Upsert(ctx context.Context, disclosed *models.DisclosedCreditLine) error {
	ctx, span := tracing.StartSpan(ctx, "DisclosedCreditLineRepository.Upsert")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(disclosedCreditLinesTable).
		Cols("static_id", "owner_static_id", "counterparty_static_id", "product_id", "sub_product_id",
			"appetite", "currency", "credit_limit", "availability", "availability_amount", "data",
			"status", "created_at", "updated_at").
		Values(disclosed.StaticID, disclosed.OwnerStaticID, disclosed.CounterpartyStaticID,
			disclosed.ProductID, disclosed.SubProductID, disclosed.Appetite, disclosed.Currency,
			disclosed.CreditLimit, disclosed.Availability, disclosed.AvailabilityAmount, disclosed.Data,
			disclosed.Status, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()"))
	ub := ib.OnConflict("owner_static_id", "counterparty_static_id", "product_id", "sub_product_id")
	ub.Set(
		ub.Assign("appetite", database.Excluded("appetite")),
		ub.Assign("currency", database.Excluded("currency")),
		ub.Assign("credit_limit", database.Excluded("credit_limit")),
		ub.Assign("availability", database.Excluded("availability")),
		ub.Assign("availability_amount", database.Excluded("availability_amount")),
		ub.Assign("data", database.Excluded("data")),
		ub.Assign("status", database.Excluded("status")),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ib.SQL("RETURNING static_id, created_at, updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&disclosed.StaticID, &disclosed.CreatedAt, &disclosed.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"owner_static_id":        disclosed.OwnerStaticID,
			"counterparty_static_id": disclosed.CounterpartyStaticID,
		}).Error("failed to upsert disclosed credit line")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert disclosed credit line")
	}

	return nil
}

// GetByStaticID retrieves a disclosed credit line by its identity
func (r *DisclosedCreditLineRepository) GetByStaticID(ctx context.Context, staticID string) (*models.DisclosedCreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "DisclosedCreditLineRepository.GetByStaticID")
	defer span.End()

	sb := disclosedCreditLineStruct.SelectFrom(disclosedCreditLinesTable)
	sb.Where(sb.Equal("static_id", staticID))

	query, args := sb.Build()
	var disclosed models.DisclosedCreditLine
	err := r.DB().GetContext(ctx, &disclosed, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("disclosed credit line %s does not exist", staticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": staticID,
		}).Error("failed to get disclosed credit line")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get disclosed credit line")
	}

	return &disclosed, nil
}

// Find retrieves all disclosed credit lines matching the filter, newest first
func (r *DisclosedCreditLineRepository) Find(ctx context.Context, filter DisclosedCreditLineFilter) ([]models.DisclosedCreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "DisclosedCreditLineRepository.Find")
	defer span.End()

	sb := disclosedCreditLineStruct.SelectFrom(disclosedCreditLinesTable)
	applyDisclosedFilter(sb.SelectBuilder, filter)
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	var disclosed []models.DisclosedCreditLine
	if err := r.DB().SelectContext(ctx, &disclosed, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list disclosed credit lines")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list disclosed credit lines")
	}

	return disclosed, nil
}

// SetStatus marks a disclosure as revoked or re-disclosed for the keyed row.
// Returns nil, nil when no disclosure exists for the key.
func (r *DisclosedCreditLineRepository) SetStatus(ctx context.Context, ownerStaticID, counterpartyStaticID string, productContext models.ProductContext, status models.DisclosureStatus) (*models.DisclosedCreditLine, error) {
	ctx, span := tracing.StartSpan(ctx, "DisclosedCreditLineRepository.SetStatus")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(disclosedCreditLinesTable).
		Set(
			ub.Assign("status", status),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(
			ub.Equal("owner_static_id", ownerStaticID),
			ub.Equal("counterparty_static_id", counterpartyStaticID),
			ub.Equal("product_id", productContext.ProductID),
			ub.Equal("sub_product_id", productContext.SubProductID),
		)
	ub.SQL("RETURNING static_id, owner_static_id, counterparty_static_id, product_id, sub_product_id, appetite, currency, credit_limit, availability, availability_amount, data, status, created_at, updated_at")

	query, args := ub.Build()
	var disclosed models.DisclosedCreditLine
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(
		&disclosed.StaticID, &disclosed.OwnerStaticID, &disclosed.CounterpartyStaticID,
		&disclosed.ProductID, &disclosed.SubProductID, &disclosed.Appetite, &disclosed.Currency,
		&disclosed.CreditLimit, &disclosed.Availability, &disclosed.AvailabilityAmount,
		&disclosed.Data, &disclosed.Status, &disclosed.CreatedAt, &disclosed.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"owner_static_id":        ownerStaticID,
			"counterparty_static_id": counterpartyStaticID,
		}).Error("failed to set disclosed credit line status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update disclosed credit line")
	}

	return &disclosed, nil
}

func applyDisclosedFilter(sb *sqlbuilder.SelectBuilder, filter DisclosedCreditLineFilter) {
	if filter.OwnerStaticID != "" {
		sb.Where(sb.Equal("owner_static_id", filter.OwnerStaticID))
	}
	if filter.CounterpartyStaticID != "" {
		sb.Where(sb.Equal("counterparty_static_id", filter.CounterpartyStaticID))
	}
	if filter.ProductID != "" {
		sb.Where(sb.Equal("product_id", filter.ProductID))
	}
	if filter.SubProductID != "" {
		sb.Where(sb.Equal("sub_product_id", filter.SubProductID))
	}
}
