package rbac

import (
	"context"
	"fmt"
)

// AssignRole creates a new employee-role mapping. Assigning a held role is a no-op.
func (s *RBACService) AssignRole(ctx context.Context, empID, roleID uint) error {
	if empID == 0 || roleID == 0 {
		return ErrInvalidInput
	}

	var emp Employee
	if err := s.db.WithContext(ctx).First(&emp, empID).Error; err != nil {
		return ErrNotFound
	}
	var role Role
	if err := s.db.WithContext(ctx).First(&role, roleID).Error; err != nil {
		return ErrNotFound
	}

	ur := &UserRole{EmployeeID: empID, RoleID: roleID}
	if err := s.db.WithContext(ctx).Where(ur).FirstOrCreate(ur).Error; err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	s.invalidateGrants(ctx, empID)
	s.log.Infow("role assigned", "employee_id", empID, "role", role.Name)
	return nil
}

// AssignRolesByNames assigns roles to an employee by role names
func (s *RBACService) AssignRolesByNames(ctx context.Context, empID uint, roleNames []string) error {
	for _, name := range roleNames {
		role, err := s.GetRoleByName(ctx, name)
		if err != nil {
			return fmt.Errorf("role %s: %w", name, err)
		}
		if err := s.AssignRole(ctx, empID, role.ID); err != nil {
			return err
		}
	}
	return nil
}

// RevokeRole removes a role from an employee.
func (s *RBACService) RevokeRole(ctx context.Context, empID, roleID uint) error {
	if empID == 0 || roleID == 0 {
		return ErrInvalidInput
	}

	res := s.db.WithContext(ctx).Where("employee_id = ? AND role_id = ?", empID, roleID).Delete(&UserRole{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove role: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.invalidateGrants(ctx, empID)
	s.log.Infow("role revoked", "employee_id", empID, "role_id", roleID)
	return nil
}

// ListEmployeeRoleNames retrieves role names for an employee
func (s *RBACService) ListEmployeeRoleNames(ctx context.Context, empID uint) ([]string, error) {
	if empID == 0 {
		return nil, ErrInvalidInput
	}
	g, err := s.loadGrants(ctx, empID)
	if err != nil {
		return nil, err
	}
	return g.Roles, nil
}
