package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komgo/credit-lines/pkg/models"
)

func jsonContext(t *testing.T, body string) echo.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestBind(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		var payload models.CreateCreditLineRequest
		err := Bind(jsonContext(t, `{
			"context": {"productId": "tradeFinance", "subProductId": "riskCover"},
			"counterpartyStaticId": "corp-1",
			"companyIds": ["bank-2"]
		}`), &payload)
		require.NoError(t, err)
		assert.Equal(t, "corp-1", payload.CounterpartyStaticID)
		assert.Equal(t, []string{"bank-2"}, payload.CompanyIDs)
	})

	t.Run("malformed body", func(t *testing.T) {
		var payload models.CreateCreditLineRequest
		err := Bind(jsonContext(t, `{"context":`), &payload)
		require.Error(t, err)
		require.True(t, httperror.IsHTTPError(err))
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})

	t.Run("missing required fields", func(t *testing.T) {
		var payload models.CreateCreditLineRequest
		err := Bind(jsonContext(t, `{"companyIds": ["bank-2"]}`), &payload)
		require.Error(t, err)
		require.True(t, httperror.IsHTTPError(err))
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}

func TestProductContextParams(t *testing.T) {
	e := echo.New()

	t.Run("both params present", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("productId", "subProductId")
		c.SetParamValues("tradeFinance", "riskCover")

		productContext, err := ProductContextParams(c)
		require.NoError(t, err)
		assert.Equal(t, models.ProductContext{ProductID: "tradeFinance", SubProductID: "riskCover"}, productContext)
	})

	t.Run("missing sub-product", func(t *testing.T) {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("productId")
		c.SetParamValues("tradeFinance")

		_, err := ProductContextParams(c)
		require.Error(t, err)
	})
}

func TestStaticIDParam(t *testing.T) {
	e := echo.New()

	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("staticId")
	c.SetParamValues("line-1")

	staticID, err := StaticIDParam(c)
	require.NoError(t, err)
	assert.Equal(t, "line-1", staticID)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, err = StaticIDParam(c)
	require.Error(t, err)
}
