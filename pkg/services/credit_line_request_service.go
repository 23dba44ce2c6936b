package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/komgo/credit-lines/pkg/errors"
	"github.com/komgo/credit-lines/pkg/messaging"
	"github.com/komgo/credit-lines/pkg/metrics"
	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/notify"
	"github.com/komgo/credit-lines/pkg/repositories"
	"github.com/komgo/credit-lines/pkg/tracing"
)

// TaskManager raises and resolves review tasks.
type TaskManager interface {
	CreateTask(ctx context.Context, task notify.Task, message string) error
	UpdateTaskStatus(ctx context.Context, update notify.TaskStatusUpdate) error
}

// Notifier delivers user-facing notifications.
type Notifier interface {
	Send(ctx context.Context, notification notify.Notification) error
}

// CreditLineRequestService owns the request lifecycle on both sides: the
// requests this company sends (REQUESTED) and the ones it receives
// (RECEIVED). Requests are status-flagged, never deleted.
type CreditLineRequestService struct {
	requests        repositories.CreditLineRequestStore
	shared          repositories.SharedCreditLineStore
	registry        CompanyRegistry
	validation      *CreditLineValidationFactory
	publisher       Publisher
	tasks           TaskManager
	notifications   Notifier
	companyStaticID string
	logger          ectologger.Logger
}

func NewCreditLineRequestService(
	requests repositories.CreditLineRequestStore,
	shared repositories.SharedCreditLineStore,
	companyRegistry CompanyRegistry,
	validation *CreditLineValidationFactory,
	publisher Publisher,
	tasks TaskManager,
	notifications Notifier,
	companyStaticID string,
	logger ectologger.Logger,
) *CreditLineRequestService {
	return &CreditLineRequestService{
		requests:        requests,
		shared:          shared,
		registry:        companyRegistry,
		validation:      validation,
		publisher:       publisher,
		tasks:           tasks,
		notifications:   notifications,
		companyStaticID: companyStaticID,
		logger:          logger,
	}
}

// Create validates the payload, persists one REQUESTED/PENDING row per
// recipient, then fans out one request message per recipient. Messaging is
// best-effort after the writes: a publish failure surfaces as an error but
// the persisted requests stand.
func (s *CreditLineRequestService) Create(ctx context.Context, payload *models.CreateCreditLineRequest) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestService.Create")
	defer span.End()

	validator, err := s.validation.ForContext(payload.Context)
	if err != nil {
		return nil, err
	}
	if err := validator.ValidateRequest(ctx, payload); err != nil {
		return nil, err
	}

	staticIDs := make([]string, 0, len(payload.CompanyIDs))
	for _, companyID := range payload.CompanyIDs {
		request := &models.CreditLineRequest{
			StaticID:             uuid.New().String(),
			RequestType:          models.RequestTypeRequested,
			ProductID:            payload.Context.ProductID,
			SubProductID:         payload.Context.SubProductID,
			Comment:              payload.Comment,
			CounterpartyStaticID: payload.CounterpartyStaticID,
			CompanyStaticID:      companyID,
			Status:               models.RequestStatusPending,
		}
		if err := s.requests.Create(ctx, request); err != nil {
			return staticIDs, err
		}
		metrics.RequestTransitionsTotal.WithLabelValues(string(request.RequestType), string(request.Status)).Inc()
		staticIDs = append(staticIDs, request.StaticID)
	}

	for i, companyID := range payload.CompanyIDs {
		envelope := messaging.NewEnvelope(messaging.TypeCreditLineRequest, payload.Context,
			s.companyStaticID, payload.CounterpartyStaticID, companyID)
		envelope.Comment = payload.Comment
		envelope, err := envelope.WithPayload(messaging.RequestReferencePayload{RequestStaticID: staticIDs[i]})
		if err != nil {
			return staticIDs, err
		}
		if err := s.publisher.Publish(ctx, envelope); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"recipient": companyID,
			}).Error("failed to send credit line request")
			return staticIDs, err
		}
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"counterparty": payload.CounterpartyStaticID,
		"recipients":   len(payload.CompanyIDs),
	}).Info("created credit line requests")

	return staticIDs, nil
}

// GetPendingRequest returns the open received request from one company for
// one counterparty, or nil when there is none.
func (s *CreditLineRequestService) GetPendingRequest(ctx context.Context, companyStaticID, counterpartyStaticID string, productContext models.ProductContext) (*models.CreditLineRequest, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestService.GetPendingRequest")
	defer span.End()

	return s.requests.FirstPending(ctx, models.RequestTypeReceived, counterpartyStaticID, companyStaticID, productContext)
}

// Get returns one request by identity
func (s *CreditLineRequestService) Get(ctx context.Context, staticID string) (*models.CreditLineRequest, error) {
	return s.requests.GetByStaticID(ctx, staticID)
}

// Find returns the requests of one type in a product context
func (s *CreditLineRequestService) Find(ctx context.Context, requestType models.CreditLineRequestType, productContext models.ProductContext) ([]models.CreditLineRequest, error) {
	return s.requests.FindByTypeAndContext(ctx, requestType, productContext)
}

// RequestReceived handles an inbound request message. A repeat request from
// the same company merges into the open row instead of duplicating it.
func (s *CreditLineRequestService) RequestReceived(ctx context.Context, envelope *messaging.Envelope) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestService.RequestReceived")
	defer span.End()

	validator, err := s.validation.ForContext(envelope.Context)
	if err != nil {
		return err
	}
	if err := validator.ValidateRequester(ctx, envelope.CompanyStaticID); err != nil {
		return err
	}

	existing, err := s.requests.FirstPending(ctx, models.RequestTypeReceived,
		envelope.CounterpartyStaticID, envelope.CompanyStaticID, envelope.Context)
	if err != nil {
		return err
	}
	if existing != nil {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"static_id": existing.StaticID,
		}).Info("merging repeated credit line request")
		return s.requests.UpdateComment(ctx, existing.StaticID, envelope.Comment)
	}

	// The row keeps the requester's staticId so both sides name the same
	// request in later decline messages.
	var reference messaging.RequestReferencePayload
	if err := envelope.DecodePayload(&reference); err != nil || reference.RequestStaticID == "" {
		reference.RequestStaticID = uuid.New().String()
	}

	request := &models.CreditLineRequest{
		StaticID:             reference.RequestStaticID,
		RequestType:          models.RequestTypeReceived,
		ProductID:            envelope.Context.ProductID,
		SubProductID:         envelope.Context.SubProductID,
		Comment:              envelope.Comment,
		CounterpartyStaticID: envelope.CounterpartyStaticID,
		CompanyStaticID:      envelope.CompanyStaticID,
		Status:               models.RequestStatusPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return err
	}

	return s.raiseReviewTask(ctx, request)
}

// raiseReviewTask opens a ReviewCLR task naming the requester and
// counterparty, noting whether a share already exists for the pair.
func (s *CreditLineRequestService) raiseReviewTask(ctx context.Context, request *models.CreditLineRequest) error {
	requesterName, counterpartyName := s.resolveNames(ctx, request.CompanyStaticID, request.CounterpartyStaticID)

	summary := fmt.Sprintf("%s has requested disclosure of your credit line for %s", requesterName, counterpartyName)

	shares, err := s.shared.FindByCounterpartyAndContext(ctx, request.CounterpartyStaticID, request.Context())
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("failed to look up existing shares for review task")
	}
	for _, share := range shares {
		if share.SharedWithStaticID == request.CompanyStaticID {
			summary = fmt.Sprintf("%s (already disclosed to %s)", summary, requesterName)
			break
		}
	}

	task := notify.Task{
		Summary:  summary,
		TaskType: notify.TaskTypeReviewCLR,
		Status:   notify.TaskStatusToDo,
		Context:  s.taskContext(request),
		RequiredPermission: notify.RequiredPermission{
			ProductID: request.ProductID,
			ActionID:  "manageCreditLines",
		},
	}
	return s.tasks.CreateTask(ctx, task, summary)
}

// RequestDeclined handles an inbound decline of a request this company sent.
// The declined row is addressed by its staticId from the payload so repeated
// request/decline rounds for the same pair stay unambiguous.
func (s *CreditLineRequestService) RequestDeclined(ctx context.Context, envelope *messaging.Envelope) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestService.RequestDeclined")
	defer span.End()

	var payload messaging.RequestReferencePayload
	if err := envelope.DecodePayload(&payload); err != nil {
		return err
	}

	declined, err := s.requests.UpdateStatus(ctx, payload.RequestStaticID, models.RequestStatusDeclined)
	if err != nil {
		return err
	}
	if declined == nil {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"static_id": payload.RequestStaticID,
		}).Warn("decline received for a request that is not pending")
		return nil
	}
	metrics.RequestTransitionsTotal.WithLabelValues(string(declined.RequestType), string(declined.Status)).Inc()

	companyName, counterpartyName := s.resolveNames(ctx, envelope.CompanyStaticID, envelope.CounterpartyStaticID)
	return s.notifications.Send(ctx, notify.Notification{
		ProductID: declined.ProductID,
		Type:      "CL.DeclineRequest.info",
		Level:     notify.NotificationLevelInfo,
		Message:   fmt.Sprintf("%s declined to disclose credit line information for %s", companyName, counterpartyName),
		RequiredPermission: notify.RequiredPermission{
			ProductID: declined.ProductID,
			ActionID:  "manageCreditLines",
		},
	})
}

// ClosePendingSentRequest resolves the sent request matching a disclosure or
// revocation that just arrived from a company.
func (s *CreditLineRequestService) ClosePendingSentRequest(ctx context.Context, companyStaticID, counterpartyStaticID string, productContext models.ProductContext, disclosed bool) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestService.ClosePendingSentRequest")
	defer span.End()

	pending, err := s.requests.FirstPending(ctx, models.RequestTypeRequested, counterpartyStaticID, companyStaticID, productContext)
	if err != nil {
		return err
	}
	if pending == nil {
		return nil
	}

	status := models.RequestStatusDeclined
	if disclosed {
		status = models.RequestStatusDisclosed
	}
	updated, err := s.requests.UpdateStatus(ctx, pending.StaticID, status)
	if updated != nil {
		metrics.RequestTransitionsTotal.WithLabelValues(string(updated.RequestType), string(updated.Status)).Inc()
	}
	return err
}

// MarkCompleted closes a received request and resolves its review task. The
// status write is authoritative: a task failure is reported but the request
// stays closed.
func (s *CreditLineRequestService) MarkCompleted(ctx context.Context, request *models.CreditLineRequest, status models.CreditLineRequestStatus) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestService.MarkCompleted")
	defer span.End()

	updated, err := s.requests.UpdateStatus(ctx, request.StaticID, status)
	if err != nil {
		return err
	}
	if updated == nil {
		return nil
	}
	metrics.RequestTransitionsTotal.WithLabelValues(string(updated.RequestType), string(updated.Status)).Inc()

	return s.tasks.UpdateTaskStatus(ctx, notify.TaskStatusUpdate{
		Status:   notify.TaskStatusDone,
		TaskType: notify.TaskTypeReviewCLR,
		Context:  s.taskContext(request),
		Outcome:  status == models.RequestStatusDisclosed,
	})
}

// Decline closes one received request and tells the requester. The comment
// travels with the decline message.
func (s *CreditLineRequestService) Decline(ctx context.Context, staticID, comment string) error {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestService.Decline")
	defer span.End()

	request, err := s.requests.GetByStaticID(ctx, staticID)
	if err != nil {
		return err
	}
	if request.RequestType != models.RequestTypeReceived {
		return errors.NewInvalidDataError("only received requests can be declined")
	}
	if request.Status != models.RequestStatusPending {
		return errors.NewInvalidDataError("request is already resolved")
	}

	if err := s.MarkCompleted(ctx, request, models.RequestStatusDeclined); err != nil {
		return err
	}

	envelope := messaging.NewEnvelope(messaging.TypeCreditLineRequestDeclined, request.Context(),
		s.companyStaticID, request.CounterpartyStaticID, request.CompanyStaticID)
	envelope.Comment = comment
	envelope, err = envelope.WithPayload(messaging.RequestReferencePayload{RequestStaticID: request.StaticID})
	if err != nil {
		return err
	}
	return s.publisher.Publish(ctx, envelope)
}

// CloseAllPendingRequests declines pending received requests for a
// counterparty. With explicit requestIDs, every id must be in the open set;
// otherwise nothing is declined and the offending ids are reported together.
func (s *CreditLineRequestService) CloseAllPendingRequests(ctx context.Context, counterpartyStaticID string, productContext models.ProductContext, requestIDs []string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "CreditLineRequestService.CloseAllPendingRequests")
	defer span.End()

	open, err := s.requests.FindPendingReceived(ctx, counterpartyStaticID, productContext)
	if err != nil {
		return nil, err
	}

	toDecline := open
	if len(requestIDs) > 0 {
		openByID := make(map[string]models.CreditLineRequest, len(open))
		for _, request := range open {
			openByID[request.StaticID] = request
		}

		var unknown []string
		toDecline = make([]models.CreditLineRequest, 0, len(requestIDs))
		for _, id := range requestIDs {
			request, ok := openByID[id]
			if !ok {
				unknown = append(unknown, id)
				continue
			}
			toDecline = append(toDecline, request)
		}
		if len(unknown) > 0 {
			return nil, errors.NewValidationError("validation failed").
				AddFieldError("requestIds", "not open requests for the counterparty: "+strings.Join(unknown, ", "))
		}
	}

	declined := make([]string, 0, len(toDecline))
	for i := range toDecline {
		request := toDecline[i]
		if err := s.MarkCompleted(ctx, &request, models.RequestStatusDeclined); err != nil {
			return declined, err
		}

		envelope := messaging.NewEnvelope(messaging.TypeCreditLineRequestDeclined, productContext,
			s.companyStaticID, counterpartyStaticID, request.CompanyStaticID)
		envelope, err := envelope.WithPayload(messaging.RequestReferencePayload{RequestStaticID: request.StaticID})
		if err != nil {
			return declined, err
		}
		if err := s.publisher.Publish(ctx, envelope); err != nil {
			return declined, err
		}

		declined = append(declined, request.StaticID)
	}

	return declined, nil
}

func (s *CreditLineRequestService) taskContext(request *models.CreditLineRequest) map[string]string {
	return map[string]string{
		"requestStaticId": request.StaticID,
		"counterpartyId":  request.CounterpartyStaticID,
		"productId":       request.ProductID,
		"subProductId":    request.SubProductID,
	}
}

// resolveNames fetches display names, falling back to the static ids when
// the registry is unavailable.
func (s *CreditLineRequestService) resolveNames(ctx context.Context, companyStaticID, counterpartyStaticID string) (string, string) {
	companyName := companyStaticID
	counterpartyName := counterpartyStaticID

	if company, err := s.registry.GetCompanyByStaticID(ctx, companyStaticID); err == nil && company != nil {
		companyName = company.CommonName
	}
	if counterparty, err := s.registry.GetCompanyByStaticID(ctx, counterpartyStaticID); err == nil && counterparty != nil {
		counterpartyName = counterparty.CommonName
	}

	return companyName, counterpartyName
}
