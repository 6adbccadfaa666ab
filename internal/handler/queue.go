package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dhq-platform/accommodation/internal/model"
	q "github.com/dhq-platform/accommodation/internal/queue"
	"github.com/dhq-platform/accommodation/internal/repository"
	"github.com/dhq-platform/accommodation/internal/service"
)

// QueueHandler serves the accommodation waiting list.
type QueueHandler struct {
	Queue *repository.QueueRepo
	Audit *repository.AuditRepo
}

// NewQueueHandler wires the queue endpoints.
func NewQueueHandler(queue *repository.QueueRepo, audit *repository.AuditRepo) *QueueHandler {
	return &QueueHandler{Queue: queue, Audit: audit}
}

type queueEntryRequest struct {
	FullName      string `json:"full_name"`
	SvcNo         string `json:"svc_no"`
	Rank          string `json:"rank"`
	Category      string `json:"category"`
	Gender        string `json:"gender"`
	MaritalStatus string `json:"marital_status"`
	Dependents    uint32 `json:"dependents"`
	CurrentUnit   string `json:"current_unit"`
	Appointment   string `json:"appointment"`
	EntryDate     string `json:"entry_date"` // RFC 3339 date, defaults to now
}

type queueEntryResponse struct {
	ID            uint64 `json:"id"`
	Sequence      uint32 `json:"sequence"`
	FullName      string `json:"full_name"`
	SvcNo         string `json:"svc_no"`
	Rank          string `json:"rank"`
	Category      string `json:"category"`
	Gender        string `json:"gender"`
	MaritalStatus string `json:"marital_status"`
	Dependents    uint32 `json:"dependents"`
	CurrentUnit   string `json:"current_unit"`
	Appointment   string `json:"appointment"`
	EntryDate     string `json:"entry_date"`
	CreatedAt     string `json:"created_at"`
}

func toQueueEntryResponse(e model.QueueEntry) queueEntryResponse {
	return queueEntryResponse{
		ID:            e.ID,
		Sequence:      e.Sequence,
		FullName:      e.FullName,
		SvcNo:         e.SvcNo,
		Rank:          e.Rank,
		Category:      e.Category,
		Gender:        e.Gender,
		MaritalStatus: e.MaritalStatus,
		Dependents:    e.Dependents,
		CurrentUnit:   e.CurrentUnit,
		Appointment:   e.Appointment,
		EntryDate:     e.EntryDate.UTC().Format(time.RFC3339),
		CreatedAt:     e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (r *queueEntryRequest) toModel() (model.QueueEntry, error) {
	entryDate := time.Now().UTC()
	if s := strings.TrimSpace(r.EntryDate); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			if t, err = time.Parse("2006-01-02", s); err != nil {
				return model.QueueEntry{}, errors.New("entry_date must be RFC 3339 or YYYY-MM-DD")
			}
		}
		entryDate = t.UTC()
	}
	return model.QueueEntry{
		FullName:      strings.TrimSpace(r.FullName),
		SvcNo:         strings.TrimSpace(r.SvcNo),
		Rank:          strings.TrimSpace(r.Rank),
		Category:      strings.ToUpper(strings.TrimSpace(r.Category)),
		Gender:        strings.TrimSpace(r.Gender),
		MaritalStatus: strings.TrimSpace(r.MaritalStatus),
		Dependents:    r.Dependents,
		CurrentUnit:   strings.TrimSpace(r.CurrentUnit),
		Appointment:   strings.TrimSpace(r.Appointment),
		EntryDate:     entryDate,
	}, nil
}

func (r *queueEntryRequest) validate(e model.QueueEntry) error {
	if e.FullName == "" || e.SvcNo == "" || e.Rank == "" {
		return errors.New("full_name, svc_no and rank are required")
	}
	if e.Category != model.CategoryNCO && e.Category != model.CategoryOfficer {
		return errors.New("category must be NCO or OFFICER")
	}
	return nil
}

// Intake appends a person to the back of the waiting list.
func (h *QueueHandler) Intake(c echo.Context) error {
	var req queueEntryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	entry, err := req.toModel()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := req.validate(entry); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	if err := h.Queue.Append(ctx, &entry); err != nil {
		return writeDomainErr(c, err)
	}
	h.afterChange(c, "intake", "queue.intake", entry)
	return c.JSON(http.StatusCreated, toQueueEntryResponse(entry))
}

// InsertFront places a person at the head of the waiting list, shifting
// every waiting entry back by one. Restricted to SUPERADMIN by the router.
func (h *QueueHandler) InsertFront(c echo.Context) error {
	var req queueEntryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	entry, err := req.toModel()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if err := req.validate(entry); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx := c.Request().Context()
	if err := h.Queue.InsertAtFront(ctx, &entry); err != nil {
		return writeDomainErr(c, err)
	}
	h.afterChange(c, "insert_front", "queue.insert_front", entry)
	return c.JSON(http.StatusCreated, toQueueEntryResponse(entry))
}

// List returns the waiting list in wait order, excluding entries that have
// already been converted into allocation requests.
func (h *QueueHandler) List(c echo.Context) error {
	entries, err := h.Queue.ListActive(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list queue"})
	}
	out := make([]queueEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toQueueEntryResponse(e))
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(out), "entries": out})
}

// Remove tombstones a waiting entry on behalf of an administrator.
func (h *QueueHandler) Remove(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx := c.Request().Context()
	if err := h.Queue.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "queue entry not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not remove entry"})
	}
	h.afterChange(c, "remove", "queue.remove", model.QueueEntry{ID: id})
	return c.NoContent(http.StatusNoContent)
}

// afterChange records the audit entry and emits an advisory queue.updated
// event. Both are best-effort and never fail the request.
func (h *QueueHandler) afterChange(c echo.Context, cause, action string, entry model.QueueEntry) {
	ctx := c.Request().Context()
	if userID, err := getUserID(c); err == nil {
		h.Audit.Record(ctx, model.AuditLog{
			UserID:     userID,
			Action:     action,
			EntityType: "queue_entry",
			EntityID:   entry.ID,
			NewData:    auditJSON(entry),
		})
	}
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
