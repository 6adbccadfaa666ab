package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhq-platform/accommodation/internal/repository"
)

func TestWriteDomainErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"queue entry not found", repository.ErrQueueEntryNotFound, http.StatusNotFound},
		{"unit not found", repository.ErrUnitNotFound, http.StatusNotFound},
		{"request not found", repository.ErrRequestNotFound, http.StatusNotFound},
		{"no rows", sql.ErrNoRows, http.StatusNotFound},
		{"already requested", repository.ErrAlreadyRequested, http.StatusConflict},
		{"unit not vacant", repository.ErrUnitNotVacant, http.StatusConflict},
		{"not pending", repository.ErrNotPending, http.StatusConflict},
		{"not approved", repository.ErrNotApproved, http.StatusConflict},
		{"generic conflict", repository.ErrConflict, http.StatusConflict},
		{"category mismatch", repository.ErrCategoryMismatch, http.StatusUnprocessableEntity},
		{"forbidden", repository.ErrForbidden, http.StatusForbidden},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			require.NoError(t, writeDomainErr(c, tc.err))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestGetUserID(t *testing.T) {
	e := echo.New()
	newCtx := func(v interface{}) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if v != nil {
			c.Set("user_id", v)
		}
		return c
	}

	// The JWT middleware stores the sub claim as float64.
	id, err := getUserID(newCtx(float64(42)))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	id, err = getUserID(newCtx("17"))
	require.NoError(t, err)
	assert.Equal(t, uint64(17), id)

	_, err = getUserID(newCtx(nil))
	assert.Error(t, err)

	_, err = getUserID(newCtx("not-a-number"))
	assert.Error(t, err)
}
