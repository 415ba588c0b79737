package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/store"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorBody{Code: code, Message: message}}
}

// writeError maps chat and store errors to an HTTP status and error code.
func writeError(c echo.Context, err error) error {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, chat.ErrInvalidParticipants), errors.Is(err, chat.ErrEmptyBody):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, chat.ErrNotParticipant):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, chat.ErrStoreUnavailable):
		status, code = http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	}
	return c.JSON(status, NewErrorResponse(code, err.Error()))
}
