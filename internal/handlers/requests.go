package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/services"
)

// RequestHandler exposes the credit line request lifecycle
type RequestHandler struct {
	service *services.CreditLineRequestService
}

func NewRequestHandler(service *services.CreditLineRequestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// DeclineRequest carries an optional comment back to the requester.
type DeclineRequest struct {
	Comment string `json:"comment,omitempty" validate:"max=1000"`
}

// RegisterRoutes registers the request routes
func (h *RequestHandler) RegisterRoutes(g *echo.Group) {
	requests := g.Group("/requests")
	requests.POST("", h.Create)
	requests.POST("/close", h.Close)
	requests.POST("/:staticId/decline", h.Decline)
	requests.GET("/:staticId", h.Get)
	requests.GET("/type/:requestType/product/:productId/sub-product/:subProductId", h.Find)
}

// Create handles POST /requests
func (h *RequestHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var payload models.CreateCreditLineRequest
	if err := Bind(c, &payload); err != nil {
		return err
	}

	staticIDs, err := h.service.Create(ctx, &payload)
	if err != nil {
		return err
	}

	return CreatedResponse(c, map[string]any{"staticIds": staticIDs})
}

// Close handles POST /requests/close
func (h *RequestHandler) Close(c echo.Context) error {
	ctx := c.Request().Context()

	var payload models.CloseRequests
	if err := Bind(c, &payload); err != nil {
		return err
	}

	declined, err := h.service.CloseAllPendingRequests(ctx, payload.CounterpartyStaticID, payload.Context, payload.RequestIDs)
	if err != nil {
		return err
	}

	return SuccessResponse(c, map[string]any{"declined": declined})
}

// Decline handles POST /requests/:staticId/decline
func (h *RequestHandler) Decline(c echo.Context) error {
	ctx := c.Request().Context()

	staticID, err := StaticIDParam(c)
	if err != nil {
		return err
	}

	var payload DeclineRequest
	if err := Bind(c, &payload); err != nil {
		return err
	}

	if err := h.service.Decline(ctx, staticID, payload.Comment); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Get handles GET /requests/:staticId
func (h *RequestHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	staticID, err := StaticIDParam(c)
	if err != nil {
		return err
	}

	request, err := h.service.Get(ctx, staticID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, request)
}

// Find handles GET /requests/type/:requestType/product/:productId/sub-product/:subProductId
func (h *RequestHandler) Find(c echo.Context) error {
	ctx := c.Request().Context()

	requestType := models.CreditLineRequestType(c.Param("requestType"))
	if requestType != models.RequestTypeRequested && requestType != models.RequestTypeReceived {
		return BadRequest("requestType must be REQUESTED or RECEIVED")
	}

	productContext, err := ProductContextParams(c)
	if err != nil {
		return err
	}

	requests, err := h.service.Find(ctx, requestType, productContext)
	if err != nil {
		return err
	}

	return SuccessResponse(c, requests)
}
