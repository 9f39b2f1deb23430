package http

import (
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"

	"bookings/entity"
)

type errorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Unrecoverable bool   `json:"unrecoverable"`
}

var errorCodes = []struct {
	err    error
	code   string
	status int
}{
	{entity.ErrInvalidInput, "invalid_input", http.StatusBadRequest},
	{entity.ErrNotFound, "not_found", http.StatusNotFound},
	{entity.ErrInvalidTransition, "invalid_transition", http.StatusConflict},
	{entity.ErrAlreadySubmitted, "already_submitted", http.StatusConflict},
	{entity.ErrNoActiveChallenge, "no_active_challenge", http.StatusConflict},
	{entity.ErrInvalidCode, "invalid_code", http.StatusUnprocessableEntity},
	{entity.ErrDispatchFailure, "dispatch_failure", http.StatusBadGateway},
}

// HandleError maps domain errors to status codes. Everything else is left to echo.
func HandleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	for _, mapping := range errorCodes {
		if !errors.Is(err, mapping.err) {
			continue
		}

		if mapping.status >= http.StatusInternalServerError {
			log.FromContext(c.Request().Context()).WithError(err).Error("Request failed")
		}

		resp := errorResponse{
			Error:         mapping.code,
			Message:       err.Error(),
			Unrecoverable: entity.IsUnrecoverable(err),
		}
		if err := c.JSON(mapping.status, resp); err != nil {
			log.FromContext(c.Request().Context()).WithError(err).Error("Could not write error response")
		}
		return
	}

	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		log.FromContext(c.Request().Context()).WithError(err).Error("Request failed")
	}

	c.Echo().DefaultHTTPErrorHandler(err, c)
}
