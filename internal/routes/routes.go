package routes

import (
	"context"
	"errors"
	"time"

	rbac "github.com/bohemiyan/insights-rbac"
	"github.com/bohemiyan/insights-rbac/internal/auth"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

type handler struct {
	svc *rbac.RBACService
	log *zap.SugaredLogger
}

// Setup mounts the health, metrics and authenticated API routes.
func Setup(app *fiber.App, svc *rbac.RBACService, issuer *auth.Issuer, gatherer prometheus.Gatherer, log *zap.SugaredLogger) {
	h := &handler{svc: svc, log: log}

	app.Get("/healthz", h.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api/v1", issuer.Middleware(log))
	api.Post("/query", h.query)
	api.Get("/employees/:id", h.viewEmployee)
	api.Get("/tasks", h.listTasks)
	api.Post("/tasks", h.createTask)
	api.Get("/tasks/:id", h.viewTask)
	api.Patch("/tasks/:id", h.updateTask)
	api.Get("/meetings/:id", h.viewMeeting)
	api.Post("/access/check", h.checkBulk)
	api.Get("/access-logs", svc.RbacMiddleware(rbac.PermViewAllEmployees, rbac.ResourceEmployees), h.hrOnly, h.accessLogs)
}

func (h *handler) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if err := h.svc.Ping(ctx); err != nil {
		h.log.Warnw("health check failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// toHTTPError maps service errors to status codes without leaking internals.
func (h *handler) toHTTPError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, rbac.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "not found")
	case errors.Is(err, rbac.ErrPermissionDenied):
		return fiber.NewError(fiber.StatusForbidden, "access denied")
	case errors.Is(err, rbac.ErrInvalidInput):
		return fiber.NewError(fiber.StatusBadRequest, "invalid request")
	default:
		h.log.Errorw("request failed", "path", c.Path(), "error", err)
		return fiber.NewError(fiber.StatusInternalServerError, "internal error")
	}
}

func actor(c *fiber.Ctx) (uint, error) {
	id, ok := rbac.ActorFromCtx(c)
	if !ok {
		return 0, fiber.NewError(fiber.StatusUnauthorized, "unauthenticated")
	}
	return id, nil
}

func paramID(c *fiber.Ctx) (uint, error) {
	id, err := cast.ToUintE(c.Params("id"))
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type queryBody struct {
	Query string `json:"query"`
}

func (h *handler) query(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	var body queryBody
	if err := c.BodyParser(&body); err != nil || body.Query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "query is required")
	}
	return c.JSON(h.svc.ProcessQuery(c.UserContext(), body.Query, actorID))
}

func (h *handler) viewEmployee(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	emp, err := h.svc.ViewEmployee(c.UserContext(), actorID, id)
	if err != nil {
		return h.toHTTPError(c, err)
	}
	return c.JSON(emp)
}

func (h *handler) listTasks(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	tasks, err := h.svc.FilterTasksForActor(c.UserContext(), actorID)
	if err != nil {
		return h.toHTTPError(c, err)
	}
	return c.JSON(tasks)
}

func (h *handler) viewTask(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	task, err := h.svc.ViewTask(c.UserContext(), actorID, id)
	if err != nil {
		return h.toHTTPError(c, err)
	}
	return c.JSON(task)
}

type taskBody struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	Deadline     *time.Time `json:"deadline"`
	AssignedToID uint       `json:"assigned_to_id"`
	TeamID       *uint      `json:"team_id"`
}

func (h *handler) createTask(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	var body taskBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	task, err := h.svc.CreateTask(c.UserContext(), actorID, rbac.TaskInput{
		Title:        body.Title,
		Description:  body.Description,
		Status:       body.Status,
		Priority:     body.Priority,
		Deadline:     body.Deadline,
		AssignedToID: body.AssignedToID,
		TeamID:       body.TeamID,
	})
	if err != nil {
		return h.toHTTPError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

type taskPatch struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Status       *string    `json:"status"`
	Priority     *string    `json:"priority"`
	Deadline     *time.Time `json:"deadline"`
	AssignedToID *uint      `json:"assigned_to_id"`
	TeamID       *uint      `json:"team_id"`
}

func (h *handler) updateTask(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var body taskPatch
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	task, err := h.svc.UpdateTask(c.UserContext(), actorID, id, rbac.TaskUpdate(body))
	if err != nil {
		return h.toHTTPError(c, err)
	}
	return c.JSON(task)
}

func (h *handler) viewMeeting(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	meeting, err := h.svc.ViewMeeting(c.UserContext(), actorID, c.Params("id"))
	if err != nil {
		return h.toHTTPError(c, err)
	}
	return c.JSON(meeting)
}

type bulkBody struct {
	Refs []rbac.ResourceRef `json:"refs"`
}

func (h *handler) checkBulk(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	var body bulkBody
	if err := c.BodyParser(&body); err != nil || len(body.Refs) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "refs are required")
	}
	return c.JSON(h.svc.CheckBulk(c.UserContext(), actorID, body.Refs))
}

func (h *handler) hrOnly(c *fiber.Ctx) error {
	actorID, err := actor(c)
	if err != nil {
		return err
	}
	ok, err := h.svc.HasRole(c.UserContext(), actorID, rbac.RoleHR)
	if err != nil {
		return h.toHTTPError(c, err)
	}
	if !ok {
		return fiber.NewError(fiber.StatusForbidden, "access denied")
	}
	return c.Next()
}

func (h *handler) accessLogs(c *fiber.Ctx) error {
	filter := rbac.AccessLogFilter{
		ResourceType: rbac.ResourceType(c.Query("resource_type")),
		Action:       c.Query("action"),
		Limit:        c.QueryInt("limit", 100),
	}
	if v := c.Query("employee_id"); v != "" {
		id, err := cast.ToUintE(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid employee_id")
		}
		filter.EmployeeID = &id
	}
	if v := c.Query("success"); v != "" {
		ok, err := cast.ToBoolE(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid success")
		}
		filter.Success = &ok
	}
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid since")
		}
		filter.Since = &t
	}

	logs, err := h.svc.ListAccessLogs(c.UserContext(), filter)
	if err != nil {
		return h.toHTTPError(c, err)
	}
	return c.JSON(logs)
}
