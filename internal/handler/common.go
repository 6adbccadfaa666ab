// Package handler defines the HTTP handlers for the accommodation API. All
// handlers assume JWT authentication and role validation have been applied
// by middleware; business rules live in the repository and service layers
// and are translated into HTTP status codes here.
package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dhq-platform/accommodation/internal/repository"
)

// getUserID extracts the authenticated user's ID from the echo context.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses the numeric :id path parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}

// writeDomainErr translates repository and engine sentinel errors into HTTP
// responses. Unrecognised errors become an opaque 500.
func writeDomainErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrQueueEntryNotFound),
		errors.Is(err, repository.ErrUnitNotFound),
		errors.Is(err, repository.ErrRequestNotFound),
		errors.Is(err, sql.ErrNoRows):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrAlreadyRequested),
		errors.Is(err, repository.ErrUnitNotVacant),
		errors.Is(err, repository.ErrNotPending),
		errors.Is(err, repository.ErrNotApproved),
		errors.Is(err, repository.ErrSequenceConflict),
		errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrCategoryMismatch):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// auditJSON renders v for an audit old_data/new_data column; marshalling
// problems degrade to an empty string rather than failing the request.
func auditJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
