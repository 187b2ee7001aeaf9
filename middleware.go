package rbac

import (
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cast"
)

// LocalsEmployeeID is the fiber.Ctx locals key holding the authenticated actor.
const LocalsEmployeeID = "employee_id"

// ActorFromCtx returns the authenticated employee id placed in locals by the
// auth layer.
func ActorFromCtx(c *fiber.Ctx) (uint, bool) {
	v := c.Locals(LocalsEmployeeID)
	if v == nil {
		return 0, false
	}
	id, err := cast.ToUintE(v)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// RbacMiddleware rejects requests whose actor lacks permission on rt. The check
// is logged like any other decision.
func (s *RBACService) RbacMiddleware(permission string, rt ResourceType) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		actorID, ok := ActorFromCtx(c)
		if !ok {
			s.logAccess(ctx, 0, rt, BulkResourceID, ActionView, false)
			return fiber.NewError(fiber.StatusUnauthorized, "employee_id not found in context")
		}

		allowed, err := s.HasPermission(ctx, actorID, permission, rt)
		if err != nil {
			s.log.Errorw("middleware permission check failed", "actor_id", actorID, "permission", permission, "error", err)
			s.logAccess(ctx, actorID, rt, BulkResourceID, ActionView, false)
			return fiber.NewError(fiber.StatusInternalServerError, "authorization unavailable")
		}
		s.logAccess(ctx, actorID, rt, BulkResourceID, ActionView, allowed)
		if !allowed {
			return fiber.NewError(fiber.StatusForbidden, ErrPermissionDenied.Error())
		}
		return c.Next()
	}
}
