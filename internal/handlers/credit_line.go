package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/services"
)

// CreditLineHandler exposes credit line CRUD
type CreditLineHandler struct {
	service *services.CreditLineService
}

func NewCreditLineHandler(service *services.CreditLineService) *CreditLineHandler {
	return &CreditLineHandler{service: service}
}

// RegisterRoutes registers the credit line routes
func (h *CreditLineHandler) RegisterRoutes(g *echo.Group) {
	lines := g.Group("/credit-lines")
	lines.POST("", h.Create)
	lines.PUT("/:staticId", h.Update)
	lines.DELETE("/:staticId", h.Delete)
	lines.GET("/:staticId", h.Get)
	lines.GET("/product/:productId/sub-product/:subProductId", h.Find)
	lines.GET("/product/:productId/sub-product/:subProductId/:counterpartyStaticId", h.FindOne)
}

// Create handles POST /credit-lines
func (h *CreditLineHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var payload models.CreditLineSave
	if err := Bind(c, &payload); err != nil {
		return err
	}

	line, err := h.service.Create(ctx, &payload)
	if err != nil {
		return err
	}

	return CreatedResponse(c, line)
}

// Update handles PUT /credit-lines/:staticId
func (h *CreditLineHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	staticID, err := StaticIDParam(c)
	if err != nil {
		return err
	}

	var payload models.CreditLineSave
	if err := Bind(c, &payload); err != nil {
		return err
	}

	line, err := h.service.Update(ctx, staticID, &payload)
	if err != nil {
		return err
	}

	return SuccessResponse(c, line)
}

// Delete handles DELETE /credit-lines/:staticId
func (h *CreditLineHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	staticID, err := StaticIDParam(c)
	if err != nil {
		return err
	}

	if err := h.service.Delete(ctx, staticID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Get handles GET /credit-lines/:staticId
func (h *CreditLineHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	staticID, err := StaticIDParam(c)
	if err != nil {
		return err
	}

	view, err := h.service.Get(ctx, staticID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, view)
}

// Find handles GET /credit-lines/product/:productId/sub-product/:subProductId
func (h *CreditLineHandler) Find(c echo.Context) error {
	ctx := c.Request().Context()

	productContext, err := ProductContextParams(c)
	if err != nil {
		return err
	}

	views, err := h.service.Find(ctx, productContext)
	if err != nil {
		return err
	}

	return SuccessResponse(c, views)
}

// FindOne handles GET /credit-lines/product/:productId/sub-product/:subProductId/:counterpartyStaticId
func (h *CreditLineHandler) FindOne(c echo.Context) error {
	ctx := c.Request().Context()

	productContext, err := ProductContextParams(c)
	if err != nil {
		return err
	}
	counterpartyStaticID := c.Param("counterpartyStaticId")
	if counterpartyStaticID == "" {
		return BadRequest("missing counterpartyStaticId")
	}

	view, err := h.service.FindOne(ctx, productContext, counterpartyStaticID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, view)
}
