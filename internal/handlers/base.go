package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/komgo/credit-lines/pkg/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind decodes the request body into payload and runs struct validation.
func Bind(c echo.Context, payload any) error {
	if err := c.Bind(payload); err != nil {
		return BadRequest("invalid request body")
	}
	if err := validate.Struct(payload); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// ProductContextParams reads the product context from path parameters.
func ProductContextParams(c echo.Context) (models.ProductContext, error) {
	productContext := models.ProductContext{
		ProductID:    c.Param("productId"),
		SubProductID: c.Param("subProductId"),
	}
	if productContext.ProductID == "" || productContext.SubProductID == "" {
		return productContext, BadRequest("productId and subProductId are required")
	}
	return productContext, nil
}

// StaticIDParam reads the record identity from the path.
func StaticIDParam(c echo.Context) (string, error) {
	staticID := c.Param("staticId")
	if staticID == "" {
		return "", BadRequest("missing staticId")
	}
	return staticID, nil
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// CreatedResponse returns a 201 Created with data
func CreatedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, data)
}

// NoContentResponse returns a 204 No Content
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}
