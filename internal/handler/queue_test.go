package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhq-platform/accommodation/internal/model"
)

func postJSON(t *testing.T, h echo.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	return rec
}

func TestIntakeValidation(t *testing.T) {
	h := NewQueueHandler(nil, nil) // repositories untouched on validation failure

	t.Run("missing required fields", func(t *testing.T) {
		rec := postJSON(t, h.Intake, `{"category":"NCO"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		rec := postJSON(t, h.Intake,
			`{"full_name":"John Okoro","svc_no":"DHQ/1234","rank":"Sergeant","category":"CIVILIAN"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad entry date", func(t *testing.T) {
		rec := postJSON(t, h.Intake,
			`{"full_name":"John Okoro","svc_no":"DHQ/1234","rank":"Sergeant","category":"NCO","entry_date":"yesterday"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestQueueEntryRequestToModel(t *testing.T) {
	req := queueEntryRequest{
		FullName:  "  John Okoro  ",
		SvcNo:     "DHQ/1234",
		Rank:      "Sergeant",
		Category:  "nco",
		EntryDate: "2025-04-01",
	}
	e, err := req.toModel()
	require.NoError(t, err)
	assert.Equal(t, "John Okoro", e.FullName)
	assert.Equal(t, model.CategoryNCO, e.Category)
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), e.EntryDate)
	assert.NoError(t, req.validate(e))
}

func TestQueueEntryRequestDefaultsEntryDate(t *testing.T) {
	req := queueEntryRequest{FullName: "John Okoro", SvcNo: "DHQ/1234", Rank: "Sergeant", Category: "NCO"}
	e, err := req.toModel()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), e.EntryDate, 5*time.Second)
}
