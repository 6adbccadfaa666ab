package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dhq-platform/accommodation/internal/model"
	"github.com/dhq-platform/accommodation/internal/repository"
)

// UnitHandler serves the living-unit registry.
type UnitHandler struct {
	Units *repository.UnitRepo
	Audit *repository.AuditRepo
}

// NewUnitHandler wires the unit endpoints.
func NewUnitHandler(units *repository.UnitRepo, audit *repository.AuditRepo) *UnitHandler {
	return &UnitHandler{Units: units, Audit: audit}
}

type unitRequest struct {
	QuarterName string `json:"quarter_name"`
	BlockName   string `json:"block_name"`
	RoomLabel   string `json:"room_label"`
	Category    string `json:"category"`
	NumRooms    uint32 `json:"num_rooms"`
	UnitType    string `json:"unit_type"`
	Status      string `json:"status"`
}

type unitResponse struct {
	ID                 uint64  `json:"id"`
	QuarterName        string  `json:"quarter_name"`
	BlockName          string  `json:"block_name"`
	RoomLabel          string  `json:"room_label"`
	Category           string  `json:"category"`
	NumRooms           uint32  `json:"num_rooms"`
	UnitType           string  `json:"unit_type"`
	Status             string  `json:"status"`
	OccupantName       *string `json:"occupant_name,omitempty"`
	OccupantRank       *string `json:"occupant_rank,omitempty"`
	OccupantSvcNo      *string `json:"occupant_svc_no,omitempty"`
	OccupantID         *uint64 `json:"occupant_id,omitempty"`
	OccupancyStartDate *string `json:"occupancy_start_date,omitempty"`
}

func toUnitResponse(u model.LivingUnit) unitResponse {
	resp := unitResponse{
		ID:            u.ID,
		QuarterName:   u.QuarterName,
		BlockName:     u.BlockName,
		RoomLabel:     u.RoomLabel,
		Category:      u.Category,
		NumRooms:      u.NumRooms,
		UnitType:      u.UnitType,
		Status:        u.Status,
		OccupantName:  u.OccupantName,
		OccupantRank:  u.OccupantRank,
		OccupantSvcNo: u.OccupantSvcNo,
		OccupantID:    u.OccupantID,
	}
	if u.OccupancyStartDate != nil {
		s := u.OccupancyStartDate.UTC().Format(time.RFC3339)
		resp.OccupancyStartDate = &s
	}
	return resp
}

func (r *unitRequest) normalize() {
	r.QuarterName = strings.TrimSpace(r.QuarterName)
	r.BlockName = strings.TrimSpace(r.BlockName)
	r.RoomLabel = strings.TrimSpace(r.RoomLabel)
	r.Category = strings.ToUpper(strings.TrimSpace(r.Category))
	r.UnitType = strings.TrimSpace(r.UnitType)
	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
}

func (r *unitRequest) validate() string {
	if r.QuarterName == "" || r.RoomLabel == "" {
		return "quarter_name and room_label are required"
	}
	if r.Category != model.CategoryNCO && r.Category != model.CategoryOfficer {
		return "category must be NCO or OFFICER"
	}
	if r.Status != "" && !model.ValidUnitStatus(r.Status) {
		return "unknown status"
	}
	return ""
}

// Create registers a new living unit. New units start VACANT unless
// NOT_IN_USE is supplied; OCCUPIED cannot be set directly.
func (h *UnitHandler) Create(c echo.Context) error {
	var req unitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.normalize()
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if req.Status == model.UnitOccupied {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "occupancy is managed by the allocation workflow"})
	}
	unit := model.LivingUnit{
		QuarterName: req.QuarterName,
		BlockName:   req.BlockName,
		RoomLabel:   req.RoomLabel,
		Category:    req.Category,
		NumRooms:    req.NumRooms,
		UnitType:    req.UnitType,
		Status:      req.Status,
	}
	ctx := c.Request().Context()
	if err := h.Units.Create(ctx, &unit); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create unit"})
	}
	h.audit(c, "unit.create", unit.ID, "", auditJSON(unit))
	return c.JSON(http.StatusCreated, toUnitResponse(unit))
}

// Update edits the descriptive fields of a unit. Occupancy cannot be
// entered or left through this endpoint.
func (h *UnitHandler) Update(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req unitRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.normalize()
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx := c.Request().Context()
	old, err := h.Units.GetByID(ctx, id)
	if err != nil {
		return writeDomainErr(c, err)
	}
	status := req.Status
	if status == "" {
		status = old.Status
	}
	unit := model.LivingUnit{
		ID:          id,
		QuarterName: req.QuarterName,
		BlockName:   req.BlockName,
		RoomLabel:   req.RoomLabel,
		Category:    req.Category,
		NumRooms:    req.NumRooms,
		UnitType:    req.UnitType,
		Status:      status,
	}
	if err := h.Units.Update(ctx, &unit); err != nil {
		return writeDomainErr(c, err)
	}
	h.audit(c, "unit.update", id, auditJSON(old), auditJSON(unit))
	updated, err := h.Units.GetByID(ctx, id)
	if err != nil {
		return writeDomainErr(c, err)
	}
	return c.JSON(http.StatusOK, toUnitResponse(updated))
}

// Get returns one unit.
func (h *UnitHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	unit, err := h.Units.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeDomainErr(c, err)
	}
	return c.JSON(http.StatusOK, toUnitResponse(unit))
}

// List returns units filtered by optional status, category and free-text
// search over quarter, block and room label.
func (h *UnitHandler) List(c echo.Context) error {
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	if status != "" && !model.ValidUnitStatus(status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	category := strings.ToUpper(strings.TrimSpace(c.QueryParam("category")))
	units, err := h.Units.List(c.Request().Context(), status, category, c.QueryParam("q"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list units"})
	}
	out := make([]unitResponse, 0, len(units))
	for _, u := range units {
		out = append(out, toUnitResponse(u))
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "units": out})
}

// Delete removes a unit. Occupied units are rejected unless force=true is
// supplied, which also removes dependent requests and archive rows. The
// force path is restricted to SUPERADMIN by the router.
func (h *UnitHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	force := c.QueryParam("force") == "true"
	if force {
		if role, _ := c.Get("role").(string); role != model.RoleSuperadmin {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
	ctx := c.Request().Context()
	old, err := h.Units.GetByID(ctx, id)
	if err != nil {
		return writeDomainErr(c, err)
	}
	if err := h.Units.Delete(ctx, id, force); err != nil {
		return writeDomainErr(c, err)
	}
	h.audit(c, "unit.delete", id, auditJSON(old), "")
	return c.NoContent(http.StatusNoContent)
}

func (h *UnitHandler) audit(c echo.Context, action string, id uint64, oldData, newData string) {
	userID, err := getUserID(c)
	if err != nil {
		return
	}
	h.Audit.Record(c.Request().Context(), model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: "unit",
		EntityID:   id,
		OldData:    oldData,
		NewData:    newData,
	})
}
