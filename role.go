package rbac

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// CreateRole creates a new role.
func (s *RBACService) CreateRole(ctx context.Context, name, description string) (*Role, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}

	role := &Role{Name: name, Description: description}
	if err := s.db.WithContext(ctx).Create(role).Error; err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.log.Infow("role created", "role", name)
	return role, nil
}

// CreateRoleWithPermissions creates a role and grants it the given permissions in one transaction.
func (s *RBACService) CreateRoleWithPermissions(ctx context.Context, name, description string, permIDs []uint) (*Role, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}

	role := &Role{Name: name, Description: description}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(role).Error; err != nil {
			return fmt.Errorf("failed to create role: %w", err)
		}
		for _, permID := range permIDs {
			var perm Permission
			if err := tx.First(&perm, permID).Error; err != nil {
				return fmt.Errorf("permission %d: %w", permID, ErrNotFound)
			}
			if err := tx.Create(&RolePermission{RoleID: role.ID, PermissionID: permID}).Error; err != nil {
				return fmt.Errorf("failed to assign permission: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateGrants(ctx, 0)
	s.log.Infow("role created", "role", name, "permissions", len(permIDs))
	return role, nil
}

// GetRoleByName retrieves a role by name.
func (s *RBACService) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}

	var role Role
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// ListRoles retrieves all roles.
func (s *RBACService) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := s.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// DeleteRole removes a role together with its grants and assignments.
func (s *RBACService) DeleteRole(ctx context.Context, id uint) error {
	if id == 0 {
		return ErrInvalidInput
	}

	var role Role
	if err := s.db.WithContext(ctx).First(&role, id).Error; err != nil {
		return ErrNotFound
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&RolePermission{}).Error; err != nil {
			return fmt.Errorf("failed to delete role-permission mappings: %w", err)
		}
		if err := tx.Where("role_id = ?", id).Delete(&UserRole{}).Error; err != nil {
			return fmt.Errorf("failed to delete employee-role mappings: %w", err)
		}
		if err := tx.Delete(&role).Error; err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidateGrants(ctx, 0)
	s.log.Infow("role deleted", "role", role.Name)
	return nil
}
