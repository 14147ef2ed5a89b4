package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"PriceForecaster/internal/model"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorDetail describes one failure in Data.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Field   string         `json:"field,omitempty"`
	Message string         `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

func dataResponse(c echo.Context, status int, data any) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

func successResponse(c echo.Context, data any) error {
	return dataResponse(c, http.StatusOK, data)
}

func badRequestResponse(c echo.Context, details []ErrorDetail) error {
	return dataResponse(c, http.StatusBadRequest, details)
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	switch model.ErrorKind(err) {
	case "ok":
		return http.StatusOK
	case "no_data":
		return http.StatusNotFound
	case "schema", "column_not_found", "empty_series", "model_fit":
		return http.StatusUnprocessableEntity
	case "invalid_request":
		return http.StatusBadRequest
	case "fetch":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// pipelineErrorResponse reports a failed run. Internal errors hide their text.
func pipelineErrorResponse(c echo.Context, err error) error {
	status := StatusFor(err)
	kind := model.ErrorKind(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Something went wrong"
	}
	return dataResponse(c, status, []ErrorDetail{{Code: "ERR_" + strings.ToUpper(kind), Message: msg}})
}
