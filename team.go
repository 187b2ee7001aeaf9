package rbac

import (
	"context"
	"fmt"
)

// CreateTeam creates a new team.
func (s *RBACService) CreateTeam(ctx context.Context, name string) (*Team, error) {
	if name == "" {
		return nil, ErrInvalidInput
	}

	team := &Team{Name: name}
	if err := s.db.WithContext(ctx).Create(team).Error; err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	s.log.Infow("team created", "team_id", team.ID, "name", name)
	return team, nil
}

// AddTeamMember places an employee on a team, optionally as one of its managers.
// Re-adding an existing member updates the manager flag.
func (s *RBACService) AddTeamMember(ctx context.Context, teamID, empID uint, isManager bool) error {
	if teamID == 0 || empID == 0 {
		return ErrInvalidInput
	}

	var team Team
	if err := s.db.WithContext(ctx).First(&team, teamID).Error; err != nil {
		return ErrNotFound
	}
	if _, err := s.findEmployee(ctx, empID); err != nil {
		return err
	}

	member := TeamMember{TeamID: teamID, EmployeeID: empID}
	if err := s.db.WithContext(ctx).
		Where(TeamMember{TeamID: teamID, EmployeeID: empID}).
		Assign(map[string]interface{}{"is_manager": isManager}).
		FirstOrCreate(&member).Error; err != nil {
		return fmt.Errorf("failed to add team member: %w", err)
	}

	s.log.Infow("team member added", "team", team.Name, "employee_id", empID, "is_manager", isManager)
	return nil
}

// RemoveTeamMember takes an employee off a team.
func (s *RBACService) RemoveTeamMember(ctx context.Context, teamID, empID uint) error {
	if teamID == 0 || empID == 0 {
		return ErrInvalidInput
	}

	res := s.db.WithContext(ctx).Where("team_id = ? AND employee_id = ?", teamID, empID).Delete(&TeamMember{})
	if res.Error != nil {
		return fmt.Errorf("failed to remove team member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	s.log.Infow("team member removed", "team_id", teamID, "employee_id", empID)
	return nil
}

// ListTeams retrieves all teams.
func (s *RBACService) ListTeams(ctx context.Context) ([]Team, error) {
	var teams []Team
	if err := s.db.WithContext(ctx).Order("name").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}
