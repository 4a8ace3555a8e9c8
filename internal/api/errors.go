package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/auth"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// classify maps an error onto a status code, a stable error code and a
// message that is safe to show to clients.
func classify(err error) (int, string, string) {
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		return he.Code, codeForStatus(he.Code), fmt.Sprint(he.Message)
	case errors.Is(err, auth.ErrUserExists):
		return http.StatusConflict, "operator_exists", err.Error()
	case errors.Is(err, auth.ErrInvalidCreds):
		return http.StatusUnauthorized, "invalid_credentials", "Invalid credentials"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusUnprocessableEntity, "validation_failed", err.Error()
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "conflict", err.Error()
	case errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway, "upstream_failed", err.Error()
	default:
		return http.StatusInternalServerError, "internal", "Internal server error"
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	}
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

// handleError writes every failure in the same envelope.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request error", "path", c.Path(), "status", status, "error", err)
	}

	body := errorEnvelope{Error: errorBody{
		Code:      code,
		Message:   message,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.log.Warn("failed to write error response", "error", err)
	}
}
