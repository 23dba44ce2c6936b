package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/komgo/credit-lines/pkg/messaging"
	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/notify"
	"github.com/komgo/credit-lines/pkg/registry"
	"github.com/komgo/credit-lines/pkg/repositories"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type fakeRegistry struct {
	companies      map[string]registry.Company
	counterparties []registry.Company
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{companies: map[string]registry.Company{}}
}

func (f *fakeRegistry) addCompany(staticID, name string, financial bool) {
	f.companies[staticID] = registry.Company{
		StaticID:               staticID,
		CommonName:             name,
		IsFinancialInstitution: financial,
	}
}

func (f *fakeRegistry) addCounterparty(staticID, name string, financial bool) {
	f.addCompany(staticID, name, financial)
	f.counterparties = append(f.counterparties, f.companies[staticID])
}

func (f *fakeRegistry) GetCompanyByStaticID(ctx context.Context, staticID string) (*registry.Company, error) {
	company, ok := f.companies[staticID]
	if !ok {
		return nil, nil
	}
	return &company, nil
}

func (f *fakeRegistry) GetCompanies(ctx context.Context, staticIDs []string) ([]registry.Company, error) {
	result := make([]registry.Company, 0, len(staticIDs))
	for _, staticID := range staticIDs {
		if company, ok := f.companies[staticID]; ok {
			result = append(result, company)
		}
	}
	return result, nil
}

func (f *fakeRegistry) GetCounterparties(ctx context.Context) ([]registry.Company, error) {
	return f.counterparties, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*messaging.Envelope
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, envelope *messaging.Envelope) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, envelope)
	return nil
}

func (f *fakePublisher) byType(messageType messaging.MessageType) []*messaging.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*messaging.Envelope
	for _, envelope := range f.published {
		if envelope.MessageType == messageType {
			result = append(result, envelope)
		}
	}
	return result
}

type fakeTasks struct {
	mu      sync.Mutex
	created []notify.Task
	updates []notify.TaskStatusUpdate
}

func (f *fakeTasks) CreateTask(ctx context.Context, task notify.Task, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, task)
	return nil
}

func (f *fakeTasks) UpdateTaskStatus(ctx context.Context, update notify.TaskStatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Send(ctx context.Context, notification notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification)
	return nil
}

type fakeLocker struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeLocker) WithLock(ctx context.Context, key string, ttl, timeout time.Duration, fn func() error) error {
	f.mu.Lock()
	f.keys = append(f.keys, key)
	f.mu.Unlock()
	return fn()
}

type fakeRequestStore struct {
	mu       sync.Mutex
	requests map[string]*models.CreditLineRequest
}

func newFakeRequestStore() *fakeRequestStore {
	return &fakeRequestStore{requests: map[string]*models.CreditLineRequest{}}
}

func (f *fakeRequestStore) Create(ctx context.Context, request *models.CreditLineRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.requests {
		if existing.Status == models.RequestStatusPending &&
			existing.RequestType == request.RequestType &&
			existing.ProductID == request.ProductID &&
			existing.SubProductID == request.SubProductID &&
			existing.CounterpartyStaticID == request.CounterpartyStaticID &&
			existing.CompanyStaticID == request.CompanyStaticID {
			return fmt.Errorf("a pending %s request already exists for the company and counterparty", request.RequestType)
		}
	}
	request.CreatedAt = time.Now()
	request.UpdatedAt = request.CreatedAt
	clone := *request
	f.requests[request.StaticID] = &clone
	return nil
}

func (f *fakeRequestStore) GetByStaticID(ctx context.Context, staticID string) (*models.CreditLineRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[staticID]
	if !ok {
		return nil, fmt.Errorf("credit line request %s does not exist", staticID)
	}
	clone := *request
	return &clone, nil
}

func (f *fakeRequestStore) UpdateStatus(ctx context.Context, staticID string, status models.CreditLineRequestStatus) (*models.CreditLineRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[staticID]
	if !ok || request.Status != models.RequestStatusPending {
		return nil, nil
	}
	request.Status = status
	request.UpdatedAt = time.Now()
	clone := *request
	return &clone, nil
}

func (f *fakeRequestStore) UpdateComment(ctx context.Context, staticID, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	request, ok := f.requests[staticID]
	if !ok {
		return fmt.Errorf("credit line request %s does not exist", staticID)
	}
	request.Comment = comment
	return nil
}

func (f *fakeRequestStore) FindByTypeAndContext(ctx context.Context, requestType models.CreditLineRequestType, productContext models.ProductContext) ([]models.CreditLineRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.CreditLineRequest
	for _, request := range f.requests {
		if request.RequestType == requestType &&
			request.ProductID == productContext.ProductID &&
			request.SubProductID == productContext.SubProductID {
			result = append(result, *request)
		}
	}
	return result, nil
}

func (f *fakeRequestStore) FindByCounterparty(ctx context.Context, requestType models.CreditLineRequestType, counterpartyStaticID string, productContext models.ProductContext) ([]models.CreditLineRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.CreditLineRequest
	for _, request := range f.requests {
		if request.RequestType == requestType &&
			request.CounterpartyStaticID == counterpartyStaticID &&
			request.ProductID == productContext.ProductID &&
			request.SubProductID == productContext.SubProductID {
			result = append(result, *request)
		}
	}
	return result, nil
}

func (f *fakeRequestStore) FirstPending(ctx context.Context, requestType models.CreditLineRequestType, counterpartyStaticID, companyStaticID string, productContext models.ProductContext) (*models.CreditLineRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, request := range f.requests {
		if request.RequestType == requestType &&
			request.Status == models.RequestStatusPending &&
			request.CounterpartyStaticID == counterpartyStaticID &&
			request.CompanyStaticID == companyStaticID &&
			request.ProductID == productContext.ProductID &&
			request.SubProductID == productContext.SubProductID {
			clone := *request
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeRequestStore) FindPendingReceived(ctx context.Context, counterpartyStaticID string, productContext models.ProductContext) ([]models.CreditLineRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.CreditLineRequest
	for _, request := range f.requests {
		if request.RequestType == models.RequestTypeReceived &&
			request.Status == models.RequestStatusPending &&
			request.CounterpartyStaticID == counterpartyStaticID &&
			request.ProductID == productContext.ProductID &&
			request.SubProductID == productContext.SubProductID {
			result = append(result, *request)
		}
	}
	return result, nil
}

type fakeSharedStore struct {
	mu     sync.Mutex
	shares map[string]*models.SharedCreditLine
}

func newFakeSharedStore() *fakeSharedStore {
	return &fakeSharedStore{shares: map[string]*models.SharedCreditLine{}}
}

func (f *fakeSharedStore) Create(ctx context.Context, shared *models.SharedCreditLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *shared
	f.shares[shared.StaticID] = &clone
	return nil
}

func (f *fakeSharedStore) Update(ctx context.Context, shared *models.SharedCreditLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.shares[shared.StaticID]; !ok {
		return fmt.Errorf("shared credit line %s does not exist", shared.StaticID)
	}
	clone := *shared
	f.shares[shared.StaticID] = &clone
	return nil
}

func (f *fakeSharedStore) FindByCreditLine(ctx context.Context, creditLineStaticID string) ([]models.SharedCreditLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.SharedCreditLine
	for _, shared := range f.shares {
		if shared.CreditLineStaticID == creditLineStaticID {
			result = append(result, *shared)
		}
	}
	return result, nil
}

func (f *fakeSharedStore) FindOneByCreditLineAndSharedWith(ctx context.Context, creditLineStaticID, sharedWithStaticID string) (*models.SharedCreditLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, shared := range f.shares {
		if shared.CreditLineStaticID == creditLineStaticID && shared.SharedWithStaticID == sharedWithStaticID {
			clone := *shared
			return &clone, nil
		}
	}
	return nil, nil
}

func (f *fakeSharedStore) FindByCounterpartyAndContext(ctx context.Context, counterpartyStaticID string, productContext models.ProductContext) ([]models.SharedCreditLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.SharedCreditLine
	for _, shared := range f.shares {
		if shared.CounterpartyStaticID == counterpartyStaticID {
			result = append(result, *shared)
		}
	}
	return result, nil
}

func (f *fakeSharedStore) DeleteByStaticIDs(ctx context.Context, staticIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, staticID := range staticIDs {
		delete(f.shares, staticID)
	}
	return nil
}

func (f *fakeSharedStore) DeleteByCreditLine(ctx context.Context, creditLineStaticID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for staticID, shared := range f.shares {
		if shared.CreditLineStaticID == creditLineStaticID {
			delete(f.shares, staticID)
		}
	}
	return nil
}

type fakeCreditLineStore struct {
	mu    sync.Mutex
	lines map[string]*models.CreditLine
}

func newFakeCreditLineStore() *fakeCreditLineStore {
	return &fakeCreditLineStore{lines: map[string]*models.CreditLine{}}
}

func (f *fakeCreditLineStore) Create(ctx context.Context, line *models.CreditLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.lines {
		if existing.ProductID == line.ProductID &&
			existing.SubProductID == line.SubProductID &&
			existing.CounterpartyStaticID == line.CounterpartyStaticID {
			return fmt.Errorf("a credit line already exists for the counterparty in this context")
		}
	}
	clone := *line
	f.lines[line.StaticID] = &clone
	return nil
}

func (f *fakeCreditLineStore) GetByStaticID(ctx context.Context, staticID string) (*models.CreditLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line, ok := f.lines[staticID]
	if !ok {
		return nil, fmt.Errorf("credit line %s does not exist", staticID)
	}
	clone := *line
	return &clone, nil
}

func (f *fakeCreditLineStore) FindOne(ctx context.Context, filter repositories.CreditLineFilter) (*models.CreditLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, line := range f.lines {
		if line.ProductID == filter.ProductID &&
			line.SubProductID == filter.SubProductID &&
			line.CounterpartyStaticID == filter.CounterpartyStaticID {
			clone := *line
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("credit line does not exist")
}

func (f *fakeCreditLineStore) Find(ctx context.Context, filter repositories.CreditLineFilter) ([]models.CreditLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.CreditLine
	for _, line := range f.lines {
		if line.ProductID == filter.ProductID && line.SubProductID == filter.SubProductID {
			result = append(result, *line)
		}
	}
	return result, nil
}

func (f *fakeCreditLineStore) Update(ctx context.Context, line *models.CreditLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lines[line.StaticID]; !ok {
		return fmt.Errorf("credit line %s does not exist", line.StaticID)
	}
	clone := *line
	f.lines[line.StaticID] = &clone
	return nil
}

func (f *fakeCreditLineStore) Delete(ctx context.Context, staticID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.lines[staticID]; !ok {
		return fmt.Errorf("credit line %s does not exist", staticID)
	}
	delete(f.lines, staticID)
	return nil
}

type fakeDisclosedStore struct {
	mu        sync.Mutex
	disclosed map[string]*models.DisclosedCreditLine
}

func newFakeDisclosedStore() *fakeDisclosedStore {
	return &fakeDisclosedStore{disclosed: map[string]*models.DisclosedCreditLine{}}
}

func (f *fakeDisclosedStore) Upsert(ctx context.Context, disclosed *models.DisclosedCreditLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.disclosed {
		if existing.OwnerStaticID == disclosed.OwnerStaticID &&
			existing.CounterpartyStaticID == disclosed.CounterpartyStaticID &&
			existing.ProductID == disclosed.ProductID &&
			existing.SubProductID == disclosed.SubProductID {
			disclosed.StaticID = existing.StaticID
			clone := *disclosed
			f.disclosed[existing.StaticID] = &clone
			return nil
		}
	}
	clone := *disclosed
	f.disclosed[disclosed.StaticID] = &clone
	return nil
}

func (f *fakeDisclosedStore) GetByStaticID(ctx context.Context, staticID string) (*models.DisclosedCreditLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	disclosed, ok := f.disclosed[staticID]
	if !ok {
		return nil, fmt.Errorf("disclosed credit line %s does not exist", staticID)
	}
	clone := *disclosed
	return &clone, nil
}

func (f *fakeDisclosedStore) Find(ctx context.Context, filter repositories.DisclosedCreditLineFilter) ([]models.DisclosedCreditLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.DisclosedCreditLine
	for _, disclosed := range f.disclosed {
		if filter.ProductID != "" && disclosed.ProductID != filter.ProductID {
			continue
		}
		if filter.SubProductID != "" && disclosed.SubProductID != filter.SubProductID {
			continue
		}
		if filter.CounterpartyStaticID != "" && disclosed.CounterpartyStaticID != filter.CounterpartyStaticID {
			continue
		}
		result = append(result, *disclosed)
	}
	return result, nil
}

func (f *fakeDisclosedStore) SetStatus(ctx context.Context, ownerStaticID, counterpartyStaticID string, productContext models.ProductContext, status models.DisclosureStatus) (*models.DisclosedCreditLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, disclosed := range f.disclosed {
		if disclosed.OwnerStaticID == ownerStaticID &&
			disclosed.CounterpartyStaticID == counterpartyStaticID &&
			disclosed.ProductID == productContext.ProductID &&
			disclosed.SubProductID == productContext.SubProductID {
			disclosed.Status = status
			clone := *disclosed
			return &clone, nil
		}
	}
	return nil, nil
}

type fakeDepositLoanStore struct {
	mu      sync.Mutex
	records map[string]*models.DepositLoan
	shares  map[string]*models.SharedDepositLoan
}

func newFakeDepositLoanStore() *fakeDepositLoanStore {
	return &fakeDepositLoanStore{
		records: map[string]*models.DepositLoan{},
		shares:  map[string]*models.SharedDepositLoan{},
	}
}

func (f *fakeDepositLoanStore) Create(ctx context.Context, dl *models.DepositLoan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *dl
	f.records[dl.StaticID] = &clone
	return nil
}

func (f *fakeDepositLoanStore) GetByStaticID(ctx context.Context, staticID string) (*models.DepositLoan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	dl, ok := f.records[staticID]
	if !ok {
		return nil, fmt.Errorf("deposit loan %s does not exist", staticID)
	}
	clone := *dl
	return &clone, nil
}

func (f *fakeDepositLoanStore) FindByType(ctx context.Context, dlType models.DepositLoanType) ([]models.DepositLoan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.DepositLoan
	for _, dl := range f.records {
		if dl.Type == dlType {
			result = append(result, *dl)
		}
	}
	return result, nil
}

func (f *fakeDepositLoanStore) Update(ctx context.Context, dl *models.DepositLoan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[dl.StaticID]; !ok {
		return fmt.Errorf("deposit loan %s does not exist", dl.StaticID)
	}
	clone := *dl
	f.records[dl.StaticID] = &clone
	return nil
}

func (f *fakeDepositLoanStore) Delete(ctx context.Context, staticID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[staticID]; !ok {
		return fmt.Errorf("deposit loan %s does not exist", staticID)
	}
	delete(f.records, staticID)
	for shareID, shared := range f.shares {
		if shared.DepositLoanStaticID == staticID {
			delete(f.shares, shareID)
		}
	}
	return nil
}

func (f *fakeDepositLoanStore) CreateShared(ctx context.Context, shared *models.SharedDepositLoan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *shared
	f.shares[shared.StaticID] = &clone
	return nil
}

func (f *fakeDepositLoanStore) UpdateShared(ctx context.Context, shared *models.SharedDepositLoan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.shares[shared.StaticID]; !ok {
		return fmt.Errorf("shared deposit loan %s does not exist", shared.StaticID)
	}
	clone := *shared
	f.shares[shared.StaticID] = &clone
	return nil
}

func (f *fakeDepositLoanStore) FindShared(ctx context.Context, depositLoanStaticID string) ([]models.SharedDepositLoan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []models.SharedDepositLoan
	for _, shared := range f.shares {
		if shared.DepositLoanStaticID == depositLoanStaticID {
			result = append(result, *shared)
		}
	}
	return result, nil
}

func (f *fakeDepositLoanStore) DeleteSharedByStaticIDs(ctx context.Context, staticIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, staticID := range staticIDs {
		delete(f.shares, staticID)
	}
	return nil
}
