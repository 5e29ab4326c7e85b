package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/sopflow/sopflow/pkg/models"
	"github.com/sopflow/sopflow/pkg/services"
	"github.com/sopflow/sopflow/pkg/tags"
)

type APIHandlers struct {
	processService *services.Process
	sessionService *services.Session
	oracle         tags.Oracle
	validator      *validator.Validate
}

func NewAPIHandlers(
	processService *services.Process,
	sessionService *services.Session,
	oracle tags.Oracle,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		processService: processService,
		sessionService: sessionService,
		oracle:         oracle,
		validator:      validate,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.processService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "SOPFlow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "SOPFlow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) GetProcesses(c fiber.Ctx) error {
	summaries, err := h.processService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summaries)
}

func (h *APIHandlers) GetProcess(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	process, err := h.processService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(process)
}

func (h *APIHandlers) CreateProcess(c fiber.Ctx) error {
	var req SaveProcessRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.processService.Create(c.Context(), &models.Process{
		Name:       req.Name,
		XMLContent: req.XMLContent,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateProcess(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	var req SaveProcessRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	updated, err := h.processService.Update(c.Context(), id, &models.Process{
		Name:       req.Name,
		XMLContent: req.XMLContent,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteProcess(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	if err := h.processService.Delete(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) GetSession(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	view, err := h.sessionService.Current(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) OpenSession(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	view, err := h.sessionService.Open(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) StartElement(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	var req StartElementRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.sessionService.StartElement(c.Context(), id, req.ElementID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) CompleteElement(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	var req CompleteElementRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.sessionService.CompleteElement(c.Context(), id, req.ElementID, req.Note)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

// FinishSession ends the run explicitly and records the system finish
// entry, independent of whether a final end was reached.
func (h *APIHandlers) FinishSession(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	view, err := h.sessionService.Finish(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) AbortSession(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	var req AbortRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	view, err := h.sessionService.Abort(c.Context(), id, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) RestartSession(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	view, err := h.sessionService.Restart(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

func (h *APIHandlers) EditNote(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	var req EditNoteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	view, err := h.sessionService.EditNote(c.Context(), id, req.LogIndex, req.Note)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

// GetGates reports which elements may currently be started, so the client
// disables blocked steps up front rather than surfacing a rejection.
func (h *APIHandlers) GetGates(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	gates, err := h.sessionService.CanEnter(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(gates)
}

func (h *APIHandlers) ExportSessionCSV(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	data, filename, err := h.sessionService.ExportCSV(c.Context(), id, time.Now())
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))

	return c.Send(data)
}

func (h *APIHandlers) ReviewSession(c fiber.Ctx) error {
	id, err := processID(c)
	if err != nil {
		return badRequest(c, "Process ID must be a number")
	}

	var req ReviewRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	parsed, status, warnings, err := h.sessionService.ReviewFile(c.Context(), id, []byte(req.Content))
	if err != nil {
		return handleServiceError(c, err)
	}

	if warnings == nil {
		warnings = []string{}
	}

	return c.JSON(fiber.Map{
		"entries":  parsed.Entries,
		"status":   status,
		"warnings": warnings,
	})
}

func (h *APIHandlers) GetTagValues(c fiber.Ctx) error {
	tagExpr := c.Query("tag")
	if tagExpr == "" {
		return badRequest(c, "Query parameter 'tag' is required")
	}

	readings := tags.FetchOrSentinel(c.Context(), h.oracle, tagExpr)
	if readings == nil {
		readings = []models.TagReading{}
	}

	return c.JSON(readings)
}

func (h *APIHandlers) GetOracleStatus(c fiber.Ctx) error {
	status := tags.StatusNotConfigured
	if h.oracle != nil {
		status = h.oracle.Status(c.Context())
	}

	return c.JSON(fiber.Map{"status": status})
}

func (h *APIHandlers) Heartbeat(c fiber.Ctx) error {
	var req HeartbeatRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	count, err := h.sessionService.Heartbeat(c.Context(), req.ProcessID, req.ViewerID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(HeartbeatResponse{OnlineCount: count})
}

func processID(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}
