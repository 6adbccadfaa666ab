package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dhq-platform/accommodation/internal/model"
	q "github.com/dhq-platform/accommodation/internal/queue"
	"github.com/dhq-platform/accommodation/internal/repository"
	"github.com/dhq-platform/accommodation/internal/service"
)

// AllocationHandler drives the allocation request workflow. State
// transitions go through the allocation engine; this layer only validates
// input, maps errors and emits audit and broker events.
type AllocationHandler struct {
	Engine   *service.AllocationService
	Requests *repository.AllocationRepo
	Queue    *repository.QueueRepo
	Audit    *repository.AuditRepo
}

// NewAllocationHandler wires the allocation endpoints.
func NewAllocationHandler(engine *service.AllocationService, requests *repository.AllocationRepo, queue *repository.QueueRepo, audit *repository.AuditRepo) *AllocationHandler {
	return &AllocationHandler{Engine: engine, Requests: requests, Queue: queue, Audit: audit}
}

type createRequestBody struct {
	QueueEntryID uint64 `json:"queue_entry_id"`
	UnitID       uint64 `json:"unit_id"`
	LetterID     string `json:"letter_id"` // optional, generated when empty
}

type decisionBody struct {
	Reason string `json:"reason"`
}

type directDeallocationBody struct {
	UnitID      uint64 `json:"unit_id"`
	PersonnelID uint64 `json:"personnel_id"`
	FullName    string `json:"full_name"`
	Rank        string `json:"rank"`
	SvcNo       string `json:"svc_no"`
	StartDate   string `json:"start_date"` // RFC 3339, optional
	Reason      string `json:"reason"`
}

type requestResponse struct {
	ID            uint64  `json:"id"`
	PersonnelID   uint64  `json:"personnel_id"`
	UnitID        uint64  `json:"unit_id"`
	LetterID      string  `json:"letter_id"`
	PersonnelData string  `json:"personnel_data"`
	UnitData      string  `json:"unit_data"`
	Status        string  `json:"status"`
	ApprovedBy    *uint64 `json:"approved_by,omitempty"`
	ApprovedAt    *string `json:"approved_at,omitempty"`
	RefusalReason *string `json:"refusal_reason,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func toRequestResponse(a model.AllocationRequest) requestResponse {
	resp := requestResponse{
		ID:            a.ID,
		PersonnelID:   a.PersonnelID,
		UnitID:        a.UnitID,
		LetterID:      a.LetterID,
		PersonnelData: a.PersonnelData,
		UnitData:      a.UnitData,
		Status:        a.Status,
		ApprovedBy:    a.ApprovedBy,
		RefusalReason: a.RefusalReason,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.ApprovedAt != nil {
		s := a.ApprovedAt.UTC().Format(time.RFC3339)
		resp.ApprovedAt = &s
	}
	return resp
}

type pastAllocationResponse struct {
	ID                  uint64 `json:"id"`
	PersonnelID         uint64 `json:"personnel_id"`
	UnitID              uint64 `json:"unit_id"`
	LetterID            string `json:"letter_id,omitempty"`
	PersonnelData       string `json:"personnel_data"`
	UnitData            string `json:"unit_data"`
	AllocationStartDate string `json:"allocation_start_date"`
	AllocationEndDate   string `json:"allocation_end_date"`
	DeallocationDate    string `json:"deallocation_date"`
	ReasonForLeaving    string `json:"reason_for_leaving"`
}

func toPastAllocationResponse(p model.PastAllocation) pastAllocationResponse {
	return pastAllocationResponse{
		ID:                  p.ID,
		PersonnelID:         p.PersonnelID,
		UnitID:              p.UnitID,
		LetterID:            p.LetterID,
		PersonnelData:       p.PersonnelData,
		UnitData:            p.UnitData,
		AllocationStartDate: p.AllocationStartDate.UTC().Format(time.RFC3339),
		AllocationEndDate:   p.AllocationEndDate.UTC().Format(time.RFC3339),
		DeallocationDate:    p.DeallocationDate.UTC().Format(time.RFC3339),
		ReasonForLeaving:    p.ReasonForLeaving,
	}
}

// Create converts a waiting-list entry into a pending allocation request.
func (h *AllocationHandler) Create(c echo.Context) error {
	var body createRequestBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if body.QueueEntryID == 0 || body.UnitID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "queue_entry_id and unit_id are required"})
	}
	ctx := c.Request().Context()
	req, err := h.Engine.CreateRequest(ctx, body.QueueEntryID, body.UnitID, strings.TrimSpace(body.LetterID))
	if err != nil {
		return writeDomainErr(c, err)
	}
	h.audit(c, "allocation.create", req.ID, "", auditJSON(req))
	h.publishQueueUpdated(c, "request_created")
	return c.JSON(http.StatusCreated, toRequestResponse(req))
}

// Approve transitions a pending request to APPROVED and occupies the unit,
// archiving and vacating any previous unit the person held.
func (h *AllocationHandler) Approve(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	old, err := h.Requests.GetByID(ctx, id)
	if err != nil {
		return writeDomainErr(c, err)
	}
	req, transferred, err := h.Engine.Approve(ctx, id, userID)
	if err != nil {
		return writeDomainErr(c, err)
	}
	h.audit(c, "allocation.approve", req.ID, auditJSON(old), auditJSON(req))
	h.publishDecision(c, req, model.RequestApproved, userID, "", transferred)
	return c.JSON(http.StatusOK, toRequestResponse(req))
}

// Refuse transitions a pending request to REFUSED and returns the person to
// the front of the waiting list.
func (h *AllocationHandler) Refuse(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body decisionBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason is required"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	old, err := h.Requests.GetByID(ctx, id)
	if err != nil {
		return writeDomainErr(c, err)
	}
	req, err := h.Engine.Refuse(ctx, id, reason)
	if err != nil {
		return writeDomainErr(c, err)
	}
	h.audit(c, "allocation.refuse", req.ID, auditJSON(old), auditJSON(req))
	h.publishDecision(c, req, model.RequestRefused, userID, reason, false)
	h.publishQueueUpdated(c, "refusal_requeue")
	return c.JSON(http.StatusOK, toRequestResponse(req))
}

// Deallocate ends the occupancy tracked by an approved request, writing one
// archive row and vacating the unit.
func (h *AllocationHandler) Deallocate(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var body decisionBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	past, err := h.Engine.Deallocate(ctx, id, strings.TrimSpace(body.Reason))
	if err != nil {
		return writeDomainErr(c, err)
	}
	h.audit(c, "allocation.deallocate", id, "", auditJSON(past))
	req := model.AllocationRequest{ID: id, PersonnelID: past.PersonnelID, UnitID: past.UnitID, LetterID: past.LetterID}
	h.publishDecision(c, req, model.RequestDeallocated, userID, past.ReasonForLeaving, false)
	return c.JSON(http.StatusOK, toPastAllocationResponse(past))
}

// DeallocateDirect vacates an occupied unit that has no tracked request,
// for occupancies predating the system.
func (h *AllocationHandler) DeallocateDirect(c echo.Context) error {
	var body directDeallocationBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if body.UnitID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unit_id is required"})
	}
	in := service.DirectDeallocation{
		UnitID:      body.UnitID,
		PersonnelID: body.PersonnelID,
		Personnel: model.PersonnelSnapshot{
			FullName: strings.TrimSpace(body.FullName),
			Rank:     strings.TrimSpace(body.Rank),
			SvcNo:    strings.TrimSpace(body.SvcNo),
		},
		Reason: strings.TrimSpace(body.Reason),
	}
	if s := strings.TrimSpace(body.StartDate); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_date must be RFC 3339"})
		}
		t = t.UTC()
		in.StartDate = &t
	}
	ctx := c.Request().Context()
	past, err := h.Engine.DeallocateDirect(ctx, in)
	if err != nil {
		return writeDomainErr(c, err)
	}
	h.audit(c, "allocation.deallocate_direct", past.UnitID, "", auditJSON(past))
	return c.JSON(http.StatusOK, toPastAllocationResponse(past))
}

// Get returns one allocation request.
func (h *AllocationHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	req, err := h.Requests.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeDomainErr(c, err)
	}
	return c.JSON(http.StatusOK, toRequestResponse(req))
}

// List returns allocation requests, optionally filtered by ?status=.
func (h *AllocationHandler) List(c echo.Context) error {
	status := strings.ToUpper(strings.TrimSpace(c.QueryParam("status")))
	if status != "" && status != model.RequestPending && status != model.RequestApproved &&
		status != model.RequestRefused && status != model.RequestDeallocated {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	requests, err := h.Requests.List(c.Request().Context(), status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list requests"})
	}
	out := make([]requestResponse, 0, len(requests))
	for _, a := range requests {
		out = append(out, toRequestResponse(a))
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "requests": out})
}

// NextLetterID previews the next allocation letter reference.
func (h *AllocationHandler) NextLetterID(c echo.Context) error {
	id, err := h.Engine.GenerateLetterID(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not generate letter id"})
	}
	return c.JSON(http.StatusOK, echo.Map{"letter_id": id})
}

// AuditTrail returns the audit entries recorded for one allocation request.
func (h *AllocationHandler) AuditTrail(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	entries, err := h.Audit.ListByEntity(c.Request().Context(), "allocation_request", id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not load audit trail"})
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(entries), "entries": entries})
}

func (h *AllocationHandler) audit(c echo.Context, action string, id uint64, oldData, newData string) {
	userID, err := getUserID(c)
	if err != nil {
		return
	}
	h.Audit.Record(c.Request().Context(), model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: "allocation_request",
		EntityID:   id,
		OldData:    oldData,
		NewData:    newData,
	})
}

func (h *AllocationHandler) publishDecision(c echo.Context, req model.AllocationRequest, decision string, decidedBy uint64, reason string, transfer bool) {
	_ = service.PublishAllocationDecided(context.WithoutCancel(c.Request().Context()), q.AllocationDecidedEvent{
		RequestID:   req.ID,
		PersonnelID: req.PersonnelID,
		UnitID:      req.UnitID,
		LetterID:    req.LetterID,
		Decision:    decision,
		DecidedBy:   decidedBy,
		Reason:      reason,
		Transfer:    transfer,
		DecidedAt:   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *AllocationHandler) publishQueueUpdated(c echo.Context, cause string) {
	ctx := c.Request().Context()
	count, err := h.Queue.CountActive(ctx)
	if err != nil {
		return
	}
	_ = service.PublishQueueUpdated(context.WithoutCancel(ctx), q.QueueUpdatedEvent{
		WaitingCount: count,
		Cause:        cause,
		EmittedAt:    time.Now().UTC().Format(time.RFC3339),
	})
}
