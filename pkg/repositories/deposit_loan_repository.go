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

const (
	depositLoansTable       = "deposit_loans"
	sharedDepositLoansTable = "shared_deposit_loans"
)

var (
	depositLoanStruct       = database.NewStruct(new(models.DepositLoan))
	sharedDepositLoanStruct = database.NewStruct(new(models.SharedDepositLoan))
)

// DepositLoanRepository is the data agent for the deposit_loans and
// shared_deposit_loans collections.
type DepositLoanRepository struct {
	*Repository
}

func NewDepositLoanRepository(db database.DB, logger ectologger.Logger) *DepositLoanRepository {
	return &DepositLoanRepository{Repository: NewRepository(db, logger)}
}

// Create inserts a new deposit/loan record. A second record for the same
// (type, currency, period, periodDuration) key fails with a conflict error.
func (r *DepositLoanRepository) Create(ctx context.Context, dl *models.DepositLoan) error {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanRepository.Create")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(depositLoansTable).
		Cols("static_id", "type", "currency", "period", "period_duration", "appetite", "pricing",
			"created_at", "updated_at").
		Values(dl.StaticID, dl.Type, dl.Currency, dl.Period, dl.PeriodDuration, dl.Appetite, dl.Pricing,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&dl.CreatedAt, &dl.UpdatedAt)
	if IsDuplicateKey(err) {
		return Conflict("a %s record already exists for %s %s", dl.Type, dl.Currency, dl.Period)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": dl.StaticID,
		}).Error("failed to create deposit/loan")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create deposit/loan")
	}

	return nil
}

// GetByStaticID retrieves a deposit/loan record by its identity
func (r *DepositLoanRepository) GetByStaticID(ctx context.Context, staticID string) (*models.DepositLoan, error) {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanRepository.GetByStaticID")
	defer span.End()

	sb := depositLoanStruct.SelectFrom(depositLoansTable)
	sb.Where(sb.Equal("static_id", staticID))

	query, args := sb.Build()
	var dl models.DepositLoan
	err := r.DB().GetContext(ctx, &dl, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NotFound("deposit/loan %s does not exist", staticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": staticID,
		}).Error("failed to get deposit/loan")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get deposit/loan")
	}

	return &dl, nil
}

// FindByType returns all records of one exposure direction, newest first
func (r *DepositLoanRepository) FindByType(ctx context.Context, dlType models.DepositLoanType) ([]models.DepositLoan, error) {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanRepository.FindByType")
	defer span.End()

	sb := depositLoanStruct.SelectFrom(depositLoansTable)
	sb.Where(sb.Equal("type", dlType))
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	var dls []models.DepositLoan
	if err := r.DB().SelectContext(ctx, &dls, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list deposit/loans")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list deposit/loans")
	}

	return dls, nil
}

// Update persists changed terms for an existing deposit/loan record
func (r *DepositLoanRepository) Update(ctx context.Context, dl *models.DepositLoan) error {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanRepository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(depositLoansTable).
		Set(
			ub.Assign("appetite", dl.Appetite),
			ub.Assign("pricing", dl.Pricing),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("static_id", dl.StaticID))
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&dl.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("deposit/loan %s does not exist", dl.StaticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": dl.StaticID,
		}).Error("failed to update deposit/loan")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update deposit/loan")
	}

	return nil
}

// Delete removes a deposit/loan record and all of its shares
func (r *DepositLoanRepository) Delete(ctx context.Context, staticID string) error {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanRepository.Delete")
	defer span.End()

	sdb := database.NewDeleteBuilder()
	sdb.DeleteFrom(sharedDepositLoansTable).Where(sdb.Equal("deposit_loan_static_id", staticID))
	query, args := sdb.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete shared deposit/loans")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete deposit/loan")
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(depositLoansTable).Where(db.Equal("static_id", staticID))
	query, args = db.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": staticID,
		}).Error("failed to delete deposit/loan")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete deposit/loan")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete deposit/loan")
	}
	if rows == 0 {
		return NotFound("deposit/loan %s does not exist", staticID)
	}

	return nil
}

// CreateShared inserts a new share of a deposit/loan record
func (r *DepositLoanRepository) CreateShared(ctx context.Context, shared *models.SharedDepositLoan) error {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanRepository.CreateShared")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto(sharedDepositLoansTable).
		Cols("static_id", "deposit_loan_static_id", "shared_with_static_id",
			"appetite_shared", "pricing_shared", "created_at", "updated_at").
		Values(shared.StaticID, shared.DepositLoanStaticID, shared.SharedWithStaticID,
			shared.AppetiteShared, shared.PricingShared,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&shared.CreatedAt, &shared.UpdatedAt)
	if IsDuplicateKey(err) {
		return Conflict("deposit/loan %s is already shared with %s", shared.DepositLoanStaticID, shared.SharedWithStaticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": shared.StaticID,
		}).Error("failed to create shared deposit/loan")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create shared deposit/loan")
	}

	return nil
}

// UpdateShared replaces the share flags on an existing share
func (r *DepositLoanRepository) UpdateShared(ctx context.Context, shared *models.SharedDepositLoan) error {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanRepository.UpdateShared")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update(sharedDepositLoansTable).
		Set(
			ub.Assign("appetite_shared", shared.AppetiteShared),
			ub.Assign("pricing_shared", shared.PricingShared),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("static_id", shared.StaticID))
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&shared.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound("shared deposit/loan %s does not exist", shared.StaticID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"static_id": shared.StaticID,
		}).Error("failed to update shared deposit/loan")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update shared deposit/loan")
	}

	return nil
}

// FindShared returns all shares of a deposit/loan record, newest first
func (r *DepositLoanRepository) FindShared(ctx context.Context, depositLoanStaticID string) ([]models.SharedDepositLoan, error) {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanRepository.FindShared")
	defer span.End()

	sb := sharedDepositLoanStruct.SelectFrom(sharedDepositLoansTable)
	sb.Where(sb.Equal("deposit_loan_static_id", depositLoanStaticID))
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	var shares []models.SharedDepositLoan
	if err := r.DB().SelectContext(ctx, &shares, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list shared deposit/loans")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list shared deposit/loans")
	}

	return shares, nil
}

// DeleteSharedByStaticIDs removes the given shares
func (r *DepositLoanRepository) DeleteSharedByStaticIDs(ctx context.Context, staticIDs []string) error {
	ctx, span := tracing.StartSpan(ctx, "DepositLoanRepository.DeleteSharedByStaticIDs")
	defer span.End()

	if len(staticIDs) == 0 {
		return nil
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(sharedDepositLoansTable).Where(db.In("static_id", sqlbuilder.List(staticIDs)))

	query, args := db.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete shared deposit/loans")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete shared deposit/loans")
	}

	return nil
}
