package rbac

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// CreateEmployee inserts an employee. A zero ID lets the store assign one.
func (s *RBACService) CreateEmployee(ctx context.Context, emp *Employee) error {
	if emp == nil || emp.Name == "" {
		return ErrInvalidInput
	}
	if emp.ManagerID != nil {
		if _, err := s.findEmployee(ctx, *emp.ManagerID); err != nil {
			return fmt.Errorf("manager %d: %w", *emp.ManagerID, err)
		}
	}
	if emp.Status == "" {
		emp.Status = "active"
	}

	if err := s.db.WithContext(ctx).Create(emp).Error; err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}

	s.log.Infow("employee created", "employee_id", emp.ID, "name", emp.Name)
	return nil
}

// SetManager re-points an employee's reporting line. A nil managerID clears it.
func (s *RBACService) SetManager(ctx context.Context, empID uint, managerID *uint) error {
	if empID == 0 || (managerID != nil && *managerID == empID) {
		return ErrInvalidInput
	}

	emp, err := s.findEmployee(ctx, empID)
	if err != nil {
		return err
	}
	if managerID != nil {
		if _, err := s.findEmployee(ctx, *managerID); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Model(emp).Update("manager_id", managerID).Error; err != nil {
		return fmt.Errorf("failed to update manager: %w", err)
	}

	s.log.Infow("reporting line changed", "employee_id", empID, "manager_id", managerID)
	return nil
}

// GetEmployeeByEmail looks an employee up by login email. No authorization is applied.
func (s *RBACService) GetEmployeeByEmail(ctx context.Context, email string) (*Employee, error) {
	if email == "" {
		return nil, ErrInvalidInput
	}

	var emp Employee
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&emp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &emp, nil
}

// findEmployee loads an employee without authorization.
func (s *RBACService) findEmployee(ctx context.Context, id uint) (*Employee, error) {
	if id == 0 {
		return nil, ErrNotFound
	}

	var emp Employee
	if err := s.db.WithContext(ctx).First(&emp, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &emp, nil
}
