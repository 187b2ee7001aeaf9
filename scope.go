package rbac

import "context"

// EmployeeTeams returns the ids of every team the employee belongs to.
func (s *RBACService) EmployeeTeams(ctx context.Context, empID uint) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&TeamMember{}).
		Where("employee_id = ?", empID).
		Order("team_id").
		Pluck("team_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// IsTeamManager reports whether the employee carries the manager flag on the team.
// The "manager" role plays no part here.
func (s *RBACService) IsTeamManager(ctx context.Context, empID, teamID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&TeamMember{}).
		Where("employee_id = ? AND team_id = ? AND is_manager = ?", empID, teamID, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ManagedTeams returns the teams on which the employee carries the manager flag.
func (s *RBACService) ManagedTeams(ctx context.Context, empID uint) ([]uint, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&TeamMember{}).
		Where("employee_id = ? AND is_manager = ?", empID, true).
		Order("team_id").
		Pluck("team_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// TeamScope is the employee's scope over team resources: self, direct reports,
// and the other members of every team the employee flag-manages. Only existing
// employees are returned.
func (s *RBACService) TeamScope(ctx context.Context, empID uint) ([]uint, error) {
	managed, err := s.ManagedTeams(ctx, empID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&Employee{}).
		Where("id = ? OR manager_id = ?", empID, empID)
	if len(managed) > 0 {
		members := s.db.WithContext(ctx).Model(&TeamMember{}).Select("employee_id").Where("team_id IN ?", managed)
		query = query.Or("id IN (?)", members)
	}

	var ids []uint
	if err := query.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
