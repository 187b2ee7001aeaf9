package rbac

import "context"

// GetSubordinateIDs returns employees whose manager_id is empID. One level only.
func (s *RBACService) GetSubordinateIDs(ctx context.Context, empID uint) ([]uint, error) {
	if empID == 0 {
		return nil, ErrInvalidInput
	}

	var ids []uint
	if err := s.db.WithContext(ctx).Model(&Employee{}).
		Where("manager_id = ?", empID).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
