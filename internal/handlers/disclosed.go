package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/komgo/credit-lines/pkg/services"
)

// DisclosedCreditLineHandler exposes read access to the terms counterparties
// have disclosed to this company.
type DisclosedCreditLineHandler struct {
	service *services.DisclosedCreditLineService
}

func NewDisclosedCreditLineHandler(service *services.DisclosedCreditLineService) *DisclosedCreditLineHandler {
	return &DisclosedCreditLineHandler{service: service}
}

// RegisterRoutes registers the disclosed credit line routes
func (h *DisclosedCreditLineHandler) RegisterRoutes(g *echo.Group) {
	disclosed := g.Group("/disclosed-credit-lines")
	disclosed.GET("/:staticId", h.Get)
	disclosed.GET("/product/:productId/sub-product/:subProductId", h.Find)
	disclosed.GET("/product/:productId/sub-product/:subProductId/:counterpartyStaticId", h.FindForCounterparty)
}

// Get handles GET /disclosed-credit-lines/:staticId
func (h *DisclosedCreditLineHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	staticID, err := StaticIDParam(c)
	if err != nil {
		return err
	}

	disclosed, err := h.service.Get(ctx, staticID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, disclosed)
}

// Find handles GET /disclosed-credit-lines/product/:productId/sub-product/:subProductId
func (h *DisclosedCreditLineHandler) Find(c echo.Context) error {
	ctx := c.Request().Context()

	productContext, err := ProductContextParams(c)
	if err != nil {
		return err
	}

	disclosed, err := h.service.Find(ctx, productContext, "")
	if err != nil {
		return err
	}

	return SuccessResponse(c, disclosed)
}

// FindForCounterparty handles GET /disclosed-credit-lines/product/:productId/sub-product/:subProductId/:counterpartyStaticId
func (h *DisclosedCreditLineHandler) FindForCounterparty(c echo.Context) error {
	ctx := c.Request().Context()

	productContext, err := ProductContextParams(c)
	if err != nil {
		return err
	}
	counterpartyStaticID := c.Param("counterpartyStaticId")
	if counterpartyStaticID == "" {
		return BadRequest("missing counterpartyStaticId")
	}

	disclosed, err := h.service.Find(ctx, productContext, counterpartyStaticID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, disclosed)
}
