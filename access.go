package rbac

import (
	"context"

	"github.com/spf13/cast"
)

// Actions recorded in AccessLog.
const (
	ActionView   = "view"
	ActionCreate = "create"
	ActionUpdate = "update"
)

func idString(id uint) string {
	return cast.ToString(id)
}

// decide pins the actor's grants for the duration of one decision.
func (s *RBACService) decide(ctx context.Context, actorID uint) (context.Context, *grantSet, error) {
	g, err := s.loadGrants(ctx, actorID)
	if err != nil {
		return ctx, nil, err
	}
	return withGrants(ctx, actorID, g), g, nil
}

// CanViewEmployee allows self, the target's direct manager, and HR holding view_all_employees.
// Anything else is denied. A missing target yields ErrNotFound and a failed log row.
func (s *RBACService) CanViewEmployee(ctx context.Context, actorID, targetID uint) (bool, error) {
	rid := idString(targetID)

	target, err := s.findEmployee(ctx, targetID)
	if err != nil {
		s.logAccess(ctx, actorID, ResourceEmployees, rid, ActionView, false)
		return false, err
	}

	if actorID == target.ID || (target.ManagerID != nil && *target.ManagerID == actorID) {
		s.logAccess(ctx, actorID, ResourceEmployees, rid, ActionView, true)
		return true, nil
	}

	_, g, err := s.decide(ctx, actorID)
	if err != nil {
		s.log.Errorw("employee access check failed", "actor_id", actorID, "target_id", targetID, "error", err)
		s.logAccess(ctx, actorID, ResourceEmployees, rid, ActionView, false)
		return false, err
	}

	allowed := g.hasRoleAndPermission(RoleHR, PermViewAllEmployees, ResourceEmployees)
	if !allowed {
		s.log.Infow("employee access denied", "actor_id", actorID, "target_id", targetID)
	}
	s.logAccess(ctx, actorID, ResourceEmployees, rid, ActionView, allowed)
	return allowed, nil
}

// ViewEmployee returns the employee record when the actor may see it.
func (s *RBACService) ViewEmployee(ctx context.Context, actorID, targetID uint) (*Employee, error) {
	allowed, err := s.CanViewEmployee(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}
	return s.findEmployee(ctx, targetID)
}

// CanViewPerformance allows the actor's team scope and HR holding view_all_performance.
func (s *RBACService) CanViewPerformance(ctx context.Context, actorID, targetID uint) (bool, error) {
	return s.canViewTeamResource(ctx, actorID, targetID, ResourcePerformance, PermViewAllPerformance)
}

// CanViewRecommendations allows the actor's team scope and HR holding view_all_recommendations.
func (s *RBACService) CanViewRecommendations(ctx context.Context, actorID, targetID uint) (bool, error) {
	return s.canViewTeamResource(ctx, actorID, targetID, ResourceRecommendations, PermViewAllRecommendations)
}

func (s *RBACService) canViewTeamResource(ctx context.Context, actorID, targetID uint, rt ResourceType, allPerm string) (bool, error) {
	rid := idString(targetID)

	if _, err := s.findEmployee(ctx, targetID); err != nil {
		s.logAccess(ctx, actorID, rt, rid, ActionView, false)
		return false, err
	}

	ctx, g, err := s.decide(ctx, actorID)
	if err != nil {
		s.logAccess(ctx, actorID, rt, rid, ActionView, false)
		return false, err
	}
	if g.hasRoleAndPermission(RoleHR, allPerm, rt) {
		s.logAccess(ctx, actorID, rt, rid, ActionView, true)
		return true, nil
	}

	scope, err := s.TeamScope(ctx, actorID)
	if err != nil {
		s.log.Errorw("team scope lookup failed", "actor_id", actorID, "resource_type", rt, "error", err)
		s.logAccess(ctx, actorID, rt, rid, ActionView, false)
		return false, err
	}

	allowed := containsID(scope, targetID)
	s.logAccess(ctx, actorID, rt, rid, ActionView, allowed)
	return allowed, nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
