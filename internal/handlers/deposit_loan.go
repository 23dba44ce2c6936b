package handlers

import (
	"github.com/labstack/echo/v4"

	"github.com/komgo/credit-lines/pkg/models"
	"github.com/komgo/credit-lines/pkg/services"
)

// DepositLoanHandler exposes deposit/loan CRUD
type DepositLoanHandler struct {
	service *services.DepositLoanService
}

func NewDepositLoanHandler(service *services.DepositLoanService) *DepositLoanHandler {
	return &DepositLoanHandler{service: service}
}

// DepositLoanView is a deposit/loan record with its shared set.
type DepositLoanView struct {
	models.DepositLoan
	SharedDepositLoans []models.SharedDepositLoan `json:"sharedDepositLoans"`
}

// RegisterRoutes registers the deposit/loan routes
func (h *DepositLoanHandler) RegisterRoutes(g *echo.Group) {
	depositLoans := g.Group("/deposit-loans")
	depositLoans.POST("", h.Create)
	depositLoans.PUT("/:staticId", h.Update)
	depositLoans.DELETE("/:staticId", h.Delete)
	depositLoans.GET("/:staticId", h.Get)
	depositLoans.GET("/type/:type", h.FindByType)
}

// Create handles POST /deposit-loans
func (h *DepositLoanHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var payload models.DepositLoanSave
	if err := Bind(c, &payload); err != nil {
		return err
	}

	dl, err := h.service.Create(ctx, &payload)
	if err != nil {
		return err
	}

	return CreatedResponse(c, dl)
}

// Update handles PUT /deposit-loans/:staticId
func (h *DepositLoanHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	staticID, err := StaticIDParam(c)
	if err != nil {
		return err
	}

	var payload models.DepositLoanSave
	if err := Bind(c, &payload); err != nil {
		return err
	}

	dl, err := h.service.Update(ctx, staticID, &payload)
	if err != nil {
		return err
	}

	return SuccessResponse(c, dl)
}

// Delete handles DELETE /deposit-loans/:staticId
func (h *DepositLoanHandler) Delete(c echo.Context) error {
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

// Get handles GET /deposit-loans/:staticId
func (h *DepositLoanHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	staticID, err := StaticIDParam(c)
	if err != nil {
		return err
	}

	dl, shares, err := h.service.Get(ctx, staticID)
	if err != nil {
		return err
	}

	return SuccessResponse(c, DepositLoanView{
		DepositLoan:        *dl,
		SharedDepositLoans: shares,
	})
}

// FindByType handles GET /deposit-loans/type/:type
func (h *DepositLoanHandler) FindByType(c echo.Context) error {
	ctx := c.Request().Context()

	dlType := models.DepositLoanType(c.Param("type"))
	if dlType != models.DepositLoanTypeDeposit && dlType != models.DepositLoanTypeLoan {
		return BadRequest("type must be DEPOSIT or LOAN")
	}

	records, err := h.service.FindByType(ctx, dlType)
	if err != nil {
		return err
	}

	return SuccessResponse(c, records)
}
