package rbac

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// grant is one (permission, resource type) pair reachable through an employee's roles.
type grant struct {
	Name         string       `json:"name"`
	ResourceType ResourceType `json:"resource_type"`
}

// grantSet is the snapshot of an employee's roles and grants used for one decision.
type grantSet struct {
	Roles       []string `json:"roles"`
	Permissions []grant  `json:"permissions"`
}

func (g *grantSet) hasRole(name string) bool {
	for _, r := range g.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// hasPermission matches by name and, when rt is non-empty, by resource type.
// Roles compose by union: any matching grant allows.
func (g *grantSet) hasPermission(name string, rt ResourceType) bool {
	for _, p := range g.Permissions {
		if p.Name != name {
			continue
		}
		if rt == "" || p.ResourceType == rt {
			return true
		}
	}
	return false
}

// hasRoleAndPermission is the HR-style bypass check: role held AND permission granted.
func (g *grantSet) hasRoleAndPermission(role, perm string, rt ResourceType) bool {
	return g.hasRole(role) && g.hasPermission(perm, rt)
}

type grantsCtxKey struct{}

type ctxGrants struct {
	empID uint
	g     *grantSet
}

// withGrants pins a snapshot to ctx so every check inside one decision sees the same grants.
func withGrants(ctx context.Context, empID uint, g *grantSet) context.Context {
	return context.WithValue(ctx, grantsCtxKey{}, ctxGrants{empID: empID, g: g})
}

// loadGrants computes actor -> UserRole -> RolePermission -> Permission once.
// Unknown actors get an empty snapshot.
func (s *RBACService) loadGrants(ctx context.Context, empID uint) (*grantSet, error) {
	if empID == 0 {
		return &grantSet{}, nil
	}
	if pinned, ok := ctx.Value(grantsCtxKey{}).(ctxGrants); ok && pinned.empID == empID {
		return pinned.g, nil
	}

	if cached, err := s.getCachedGrants(ctx, empID); err != nil {
		s.log.Warnw("grants cache read failed", "employee_id", empID, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	g := &grantSet{}
	if err := s.db.WithContext(ctx).Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.employee_id = ?", empID).
		Order("roles.name").
		Pluck("roles.name", &g.Roles).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch employee roles: %w", err)
	}

	if err := s.db.WithContext(ctx).Table("permissions").
		Select("DISTINCT permissions.name AS name, permissions.resource_type AS resource_type").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.employee_id = ?", empID).
		Scan(&g.Permissions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch employee permissions: %w", err)
	}

	if err := s.setCachedGrants(ctx, empID, g); err != nil {
		s.log.Warnw("grants cache write failed", "employee_id", empID, "error", err)
	}
	return g, nil
}

// HasPermission reports whether any of the employee's roles grants permName,
// restricted to rt when rt is non-empty. Unknown employees have no permissions.
func (s *RBACService) HasPermission(ctx context.Context, empID uint, permName string, rt ResourceType) (bool, error) {
	if permName == "" {
		return false, ErrInvalidInput
	}
	g, err := s.loadGrants(ctx, empID)
	if err != nil {
		return false, err
	}
	return g.hasPermission(permName, rt), nil
}

// HasRole reports whether the employee holds the named role.
func (s *RBACService) HasRole(ctx context.Context, empID uint, roleName string) (bool, error) {
	if roleName == "" {
		return false, ErrInvalidInput
	}
	g, err := s.loadGrants(ctx, empID)
	if err != nil {
		return false, err
	}
	return g.hasRole(roleName), nil
}

// GetEmployeePermissions retrieves all permission grants for an employee as "name:resource_type".
func (s *RBACService) GetEmployeePermissions(ctx context.Context, empID uint) ([]string, error) {
	g, err := s.loadGrants(ctx, empID)
	if err != nil {
		return nil, err
	}
	perms := make([]string, 0, len(g.Permissions))
	for _, p := range g.Permissions {
		perms = append(perms, p.Name+":"+string(p.ResourceType))
	}
	return perms, nil
}

// CreatePermission creates a new permission bound to a resource type.
func (s *RBACService) CreatePermission(ctx context.Context, name string, rt ResourceType, description string) (*Permission, error) {
	if name == "" || !rt.Valid() {
		return nil, ErrInvalidInput
	}

	perm := &Permission{Name: name, ResourceType: rt, Description: description}
	if err := s.db.WithContext(ctx).Create(perm).Error; err != nil {
		return nil, fmt.Errorf("failed to create permission: %w", err)
	}

	s.log.Infow("permission created", "permission", name, "resource_type", rt)
	return perm, nil
}

// GetPermissionByName retrieves a permission by name and resource type.
func (s *RBACService) GetPermissionByName(ctx context.Context, name string, rt ResourceType) (*Permission, error) {
	if name == "" || !rt.Valid() {
		return nil, ErrInvalidInput
	}

	var perm Permission
	if err := s.db.WithContext(ctx).Where("name = ? AND resource_type = ?", name, rt).First(&perm).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &perm, nil
}

// ListPermissions retrieves all permissions, optionally for one resource type.
func (s *RBACService) ListPermissions(ctx context.Context, rt ResourceType) ([]Permission, error) {
	var perms []Permission
	query := s.db.WithContext(ctx).Order("resource_type, name")
	if rt != "" {
		query = query.Where("resource_type = ?", rt)
	}
	if err := query.Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// GrantPermission attaches a permission to a role.
func (s *RBACService) GrantPermission(ctx context.Context, roleID, permID uint) error {
	if roleID == 0 || permID == 0 {
		return ErrInvalidInput
	}

	var role Role
	if err := s.db.WithContext(ctx).First(&role, roleID).Error; err != nil {
		return ErrNotFound
	}
	var perm Permission
	if err := s.db.WithContext(ctx).First(&perm, permID).Error; err != nil {
		return ErrNotFound
	}

	rp := &RolePermission{RoleID: roleID, PermissionID: permID}
	if err := s.db.WithContext(ctx).Where(rp).FirstOrCreate(rp).Error; err != nil {
		return fmt.Errorf("failed to grant permission: %w", err)
	}

	s.invalidateGrants(ctx, 0)
	s.log.Infow("permission granted", "role", role.Name, "permission", perm.Name, "resource_type", perm.ResourceType)
	return nil
}

// RevokePermission detaches a permission from a role.
func (s *RBACService) RevokePermission(ctx context.Context, roleID, permID uint) error {
	if roleID == 0 || permID == 0 {
		return ErrInvalidInput
	}

	res := s.db.WithContext(ctx).Where("role_id = ? AND permission_id = ?", roleID, permID).Delete(&RolePermission{})
	if res.Error != nil {
		return fmt.Errorf("failed to revoke permission: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.invalidateGrants(ctx, 0)
	s.log.Infow("permission revoked", "role_id", roleID, "permission_id", permID)
	return nil
}
