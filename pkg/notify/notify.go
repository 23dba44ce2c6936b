package notify

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/komgo/credit-lines/pkg/errors"
	"github.com/komgo/credit-lines/pkg/httpclient"
	"github.com/komgo/credit-lines/pkg/metrics"
	"github.com/komgo/credit-lines/pkg/tracing"
)

const (
	tasksServiceName         = "api-tasks"
	notificationsServiceName = "api-notifications"

	// TaskTypeReviewCLR asks a user to review an inbound credit line request
	TaskTypeReviewCLR = "CL.ReviewRequest"

	TaskStatusToDo = "To Do"
	TaskStatusDone = "Done"

	NotificationLevelInfo = "info"
)

// Task is a work item raised for manual review.
type Task struct {
	Summary  string            `json:"summary"`
	TaskType string            `json:"taskType"`
	Status   string            `json:"status"`
	Context  map[string]string `json:"context"`
	RequiredPermission
}

// RequiredPermission names the role needed to act on a task.
type RequiredPermission struct {
	ProductID string `json:"productId"`
	ActionID  string `json:"actionId"`
}

// TaskStatusUpdate resolves an open task identified by its type and context.
type TaskStatusUpdate struct {
	Status   string            `json:"status"`
	TaskType string            `json:"taskType"`
	Context  map[string]string `json:"context"`
	Outcome  bool              `json:"outcome"`
	Comment  string            `json:"comment,omitempty"`
}

// Notification is a user-facing message delivered through the platform.
type Notification struct {
	ProductID string            `json:"productId"`
	Type      string            `json:"type"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
	RequiredPermission
}

// TaskClient raises and resolves review tasks. Calls are best-effort after
// the local mutation; failures never roll anything back.
type TaskClient struct {
	http    *httpclient.Client
	baseURL string
	logger  ectologger.Logger
}

func NewTaskClient(http *httpclient.Client, baseURL string, logger ectologger.Logger) *TaskClient {
	return &TaskClient{http: http, baseURL: baseURL, logger: logger}
}

// CreateTask raises a task together with its announcement notification
func (c *TaskClient) CreateTask(ctx context.Context, task Task, message string) error {
	ctx, span := tracing.StartSpan(ctx, "notify.CreateTask")
	defer span.End()

	payload := map[string]any{
		"task":    task,
		"message": message,
	}
	if err := c.http.PostJSON(ctx, c.baseURL+"/v0/tasks", payload, nil); err != nil {
		metrics.CollaboratorCallsTotal.WithLabelValues(tasksServiceName, "error").Inc()
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"task_type": task.TaskType,
		}).Error("failed to create task")
		return errors.NewMicroserviceClientError(tasksServiceName, "failed to create task", err)
	}

	metrics.CollaboratorCallsTotal.WithLabelValues(tasksServiceName, "success").Inc()
	return nil
}

// UpdateTaskStatus resolves the task matching the update's type and context
func (c *TaskClient) UpdateTaskStatus(ctx context.Context, update TaskStatusUpdate) error {
	ctx, span := tracing.StartSpan(ctx, "notify.UpdateTaskStatus")
	defer span.End()

	if err := c.http.PatchJSON(ctx, c.baseURL+"/v0/tasks", update); err != nil {
		metrics.CollaboratorCallsTotal.WithLabelValues(tasksServiceName, "error").Inc()
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"task_type": update.TaskType,
			"status":    update.Status,
		}).Error("failed to update task status")
		return errors.NewMicroserviceClientError(tasksServiceName, "failed to update task status", err)
	}

	metrics.CollaboratorCallsTotal.WithLabelValues(tasksServiceName, "success").Inc()
	return nil
}

// NotificationClient sends user-facing notifications. Best-effort, same
// contract as TaskClient.
type NotificationClient struct {
	http    *httpclient.Client
	baseURL string
	logger  ectologger.Logger
}

func NewNotificationClient(http *httpclient.Client, baseURL string, logger ectologger.Logger) *NotificationClient {
	return &NotificationClient{http: http, baseURL: baseURL, logger: logger}
}

// Send delivers a notification
func (c *NotificationClient) Send(ctx context.Context, notification Notification) error {
	ctx, span := tracing.StartSpan(ctx, "notify.Send")
	defer span.End()

	if err := c.http.PostJSON(ctx, c.baseURL+"/v0/notifications", notification, nil); err != nil {
		metrics.CollaboratorCallsTotal.WithLabelValues(notificationsServiceName, "error").Inc()
		c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"type": notification.Type,
		}).Error("failed to send notification")
		return errors.NewMicroserviceClientError(notificationsServiceName, "failed to send notification", err)
	}

	metrics.CollaboratorCallsTotal.WithLabelValues(notificationsServiceName, "success").Inc()
	return nil
}
