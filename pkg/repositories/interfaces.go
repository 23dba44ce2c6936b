package repositories

import (
	"context"

	"github.com/komgo/credit-lines/pkg/models"
)

// CreditLineStore is the persistence surface the credit-line service needs.
type CreditLineStore interface {
	Create(ctx context.Context, line *models.CreditLine) error
	GetByStaticID(ctx context.Context, staticID string) (*models.CreditLine, error)
	FindOne(ctx context.Context, filter CreditLineFilter) (*models.CreditLine, error)
	Find(ctx context.Context, filter CreditLineFilter) ([]models.CreditLine, error)
	Update(ctx context.Context, line *models.CreditLine) error
	Delete(ctx context.Context, staticID string) error
}

// SharedCreditLineStore is the persistence surface for disclosure shares.
type SharedCreditLineStore interface {
	Create(ctx context.Context, shared *models.SharedCreditLine) error
	Update(ctx context.Context, shared *models.SharedCreditLine) error
	FindByCreditLine(ctx context.Context, creditLineStaticID string) ([]models.SharedCreditLine, error)
	FindOneByCreditLineAndSharedWith(ctx context.Context, creditLineStaticID, sharedWithStaticID string) (*models.SharedCreditLine, error)
	FindByCounterpartyAndContext(ctx context.Context, counterpartyStaticID string, productContext models.ProductContext) ([]models.SharedCreditLine, error)
	DeleteByStaticIDs(ctx context.Context, staticIDs []string) error
	DeleteByCreditLine(ctx context.Context, creditLineStaticID string) error
}

// CreditLineRequestStore is the persistence surface for the request lifecycle.
type CreditLineRequestStore interface {
	Create(ctx context.Context, request *models.CreditLineRequest) error
	GetByStaticID(ctx context.Context, staticID string) (*models.CreditLineRequest, error)
	UpdateStatus(ctx context.Context, staticID string, status models.CreditLineRequestStatus) (*models.CreditLineRequest, error)
	UpdateComment(ctx context.Context, staticID, comment string) error
	FindByTypeAndContext(ctx context.Context, requestType models.CreditLineRequestType, productContext models.ProductContext) ([]models.CreditLineRequest, error)
	FindByCounterparty(ctx context.Context, requestType models.CreditLineRequestType, counterpartyStaticID string, productContext models.ProductContext) ([]models.CreditLineRequest, error)
	FirstPending(ctx context.Context, requestType models.CreditLineRequestType, counterpartyStaticID, companyStaticID string, productContext models.ProductContext) (*models.CreditLineRequest, error)
	FindPendingReceived(ctx context.Context, counterpartyStaticID string, productContext models.ProductContext) ([]models.CreditLineRequest, error)
}

// DisclosedCreditLineStore is the persistence surface for received disclosures.
type DisclosedCreditLineStore interface {
	Upsert(ctx context.Context, disclosed *models.DisclosedCreditLine) error
	GetByStaticID(ctx context.Context, staticID string) (*models.DisclosedCreditLine, error)
	Find(ctx context.Context, filter DisclosedCreditLineFilter) ([]models.DisclosedCreditLine, error)
	SetStatus(ctx context.Context, ownerStaticID, counterpartyStaticID string, productContext models.ProductContext, status models.DisclosureStatus) (*models.DisclosedCreditLine, error)
}

// DepositLoanStore is the persistence surface for deposit/loan records.
type DepositLoanStore interface {
	Create(ctx context.Context, dl *models.DepositLoan) error
	GetByStaticID(ctx context.Context, staticID string) (*models.DepositLoan, error)
	FindByType(ctx context.Context, dlType models.DepositLoanType) ([]models.DepositLoan, error)
	Update(ctx context.Context, dl *models.DepositLoan) error
	Delete(ctx context.Context, staticID string) error
	CreateShared(ctx context.Context, shared *models.SharedDepositLoan) error
	UpdateShared(ctx context.Context, shared *models.SharedDepositLoan) error
	FindShared(ctx context.Context, depositLoanStaticID string) ([]models.SharedDepositLoan, error)
	DeleteSharedByStaticIDs(ctx context.Context, staticIDs []string) error
}
