package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dhq-platform/accommodation/internal/model"
	"github.com/dhq-platform/accommodation/internal/repository"
)

// PastAllocationHandler serves the occupancy archive.
type PastAllocationHandler struct {
	Archive *repository.PastAllocationRepo
	Audit   *repository.AuditRepo
}

// NewPastAllocationHandler wires the archive endpoints.
func NewPastAllocationHandler(archive *repository.PastAllocationRepo, audit *repository.AuditRepo) *PastAllocationHandler {
	return &PastAllocationHandler{Archive: archive, Audit: audit}
}

// List returns the archive, most recent deallocation first.
func (h *PastAllocationHandler) List(c echo.Context) error {
	rows, err := h.Archive.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list past allocations"})
	}
	out := make([]pastAllocationResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, toPastAllocationResponse(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "past_allocations": out})
}

// Delete tombstones one archive row. Restricted to SUPERADMIN by the
// router.
func (h *PastAllocationHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx := c.Request().Context()
	if err := h.Archive.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "past allocation not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete past allocation"})
	}
	h.audit(c, "past_allocation.delete", id)
	return c.NoContent(http.StatusNoContent)
}

type bulkDeleteBody struct {
	IDs []uint64 `json:"ids"`
}

// BulkDelete tombstones several archive rows at once. Restricted to
// SUPERADMIN by the router.
func (h *PastAllocationHandler) BulkDelete(c echo.Context) error {
	var body bulkDeleteBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(body.IDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ids is required"})
	}
	ctx := c.Request().Context()
	n, err := h.Archive.SoftDeleteBulk(ctx, body.IDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete past allocations"})
	}
	for _, id := range body.IDs {
		h.audit(c, "past_allocation.delete", id)
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

func (h *PastAllocationHandler) audit(c echo.Context, action string, id uint64) {
	userID, err := getUserID(c)
	if err != nil {
		return
	}
	h.Audit.Record(c.Request().Context(), model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: "past_allocation",
		EntityID:   id,
	})
}
