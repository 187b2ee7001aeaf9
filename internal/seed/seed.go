// Package seed loads the stock roles and permissions and, optionally, a small
// demo organisation through the public rbac API.
package seed

import (
	"context"
	"errors"
	"fmt"

	rbac "github.com/bohemiyan/insights-rbac"
)

type permSpec struct {
	name string
	rt   rbac.ResourceType
	desc string
}

var permissions = []permSpec{
	{rbac.PermViewOwnTasks, rbac.ResourceTasks, "View tasks assigned to or created by self"},
	{rbac.PermViewTeamTasks, rbac.ResourceTasks, "View tasks of managed teams"},
	{rbac.PermAssignTasks, rbac.ResourceTasks, "Assign tasks to direct reports"},
	{rbac.PermViewOwnEmployee, rbac.ResourceEmployees, "View own employee record"},
	{rbac.PermViewTeamEmployees, rbac.ResourceEmployees, "View direct reports"},
	{rbac.PermViewAllEmployees, rbac.ResourceEmployees, "View every employee"},
	{rbac.PermViewOwnTranscripts, rbac.ResourceMeetings, "View meetings one spoke in"},
	{rbac.PermViewAllTranscripts, rbac.ResourceMeetings, "View every meeting"},
	{rbac.PermViewOwnPerformance, rbac.ResourcePerformance, "View own performance"},
	{rbac.PermViewAllPerformance, rbac.ResourcePerformance, "View everyone's performance"},
	{rbac.PermViewOwnRecommendations, rbac.ResourceRecommendations, "View own recommendations"},
	{rbac.PermViewAllRecommendations, rbac.ResourceRecommendations, "View everyone's recommendations"},
}

var rolePermissions = map[string][]string{
	rbac.RoleEmployee: {
		rbac.PermViewOwnTasks, rbac.PermViewOwnEmployee, rbac.PermViewOwnTranscripts,
		rbac.PermViewOwnPerformance, rbac.PermViewOwnRecommendations,
	},
	rbac.RoleManager: {
		rbac.PermViewOwnTasks, rbac.PermViewTeamTasks, rbac.PermAssignTasks,
		rbac.PermViewOwnEmployee, rbac.PermViewTeamEmployees, rbac.PermViewOwnTranscripts,
		rbac.PermViewOwnPerformance, rbac.PermViewOwnRecommendations,
	},
	rbac.RoleHR: {
		rbac.PermViewOwnTasks, rbac.PermViewAllEmployees, rbac.PermViewOwnEmployee,
		rbac.PermViewTeamEmployees, rbac.PermViewAllTranscripts, rbac.PermViewOwnTranscripts,
		rbac.PermViewAllPerformance, rbac.PermViewOwnPerformance,
		rbac.PermViewAllRecommendations, rbac.PermViewOwnRecommendations,
	},
}

var roleOrder = []string{rbac.RoleEmployee, rbac.RoleManager, rbac.RoleHR}

// Roles creates the stock permissions and roles. Rows that already exist are reused.
func Roles(ctx context.Context, svc *rbac.RBACService) error {
	permIDs := make(map[string]uint, len(permissions))
	for _, p := range permissions {
		perm, err := svc.GetPermissionByName(ctx, p.name, p.rt)
		if errors.Is(err, rbac.ErrNotFound) {
			perm, err = svc.CreatePermission(ctx, p.name, p.rt, p.desc)
		}
		if err != nil {
			return fmt.Errorf("permission %s: %w", p.name, err)
		}
		permIDs[p.name] = perm.ID
	}

	for _, name := range roleOrder {
		role, err := svc.GetRoleByName(ctx, name)
		if errors.Is(err, rbac.ErrNotFound) {
			role, err = svc.CreateRole(ctx, name, name+" role")
		}
		if err != nil {
			return fmt.Errorf("role %s: %w", name, err)
		}
		for _, perm := range rolePermissions[name] {
			if err := svc.GrantPermission(ctx, role.ID, permIDs[perm]); err != nil {
				return fmt.Errorf("grant %s to %s: %w", perm, name, err)
			}
		}
	}
	return nil
}

// Org is what Demo created, by name.
type Org struct {
	Employees map[string]uint
	Teams     map[string]uint
	MeetingID string
}

type person struct {
	name    string
	email   string
	manager string
	roles   []string
}

var people = []person{
	{name: "Dana", email: "dana@example.com", roles: []string{rbac.RoleEmployee, rbac.RoleHR}},
	{name: "Bob", email: "bob@example.com", roles: []string{rbac.RoleEmployee, rbac.RoleManager}},
	{name: "Alice", email: "alice@example.com", manager: "Bob", roles: []string{rbac.RoleEmployee}},
	{name: "Carol", email: "carol@example.com", manager: "Bob", roles: []string{rbac.RoleEmployee}},
	{name: "Erin", email: "erin@example.com", roles: []string{rbac.RoleEmployee}},
}

// Demo seeds roles plus a small organisation: an HR user, a manager with two
// reports, an unrelated employee, one team, a few tasks and one meeting.
func Demo(ctx context.Context, svc *rbac.RBACService) (*Org, error) {
	if err := Roles(ctx, svc); err != nil {
		return nil, err
	}

	org := &Org{Employees: map[string]uint{}, Teams: map[string]uint{}}
	for _, p := range people {
		emp := &rbac.Employee{Name: p.name, Email: p.email}
		if p.manager != "" {
			mgr := org.Employees[p.manager]
			emp.ManagerID = &mgr
		}
		if err := svc.CreateEmployee(ctx, emp); err != nil {
			return nil, fmt.Errorf("employee %s: %w", p.name, err)
		}
		org.Employees[p.name] = emp.ID
		if err := svc.AssignRolesByNames(ctx, emp.ID, p.roles); err != nil {
			return nil, fmt.Errorf("roles for %s: %w", p.name, err)
		}
	}

	team, err := svc.CreateTeam(ctx, "Platform")
	if err != nil {
		return nil, err
	}
	org.Teams[team.Name] = team.ID
	members := []struct {
		name    string
		manager bool
	}{{"Bob", true}, {"Alice", false}, {"Carol", false}}
	for _, m := range members {
		if err := svc.AddTeamMember(ctx, team.ID, org.Employees[m.name], m.manager); err != nil {
			return nil, err
		}
	}

	bob, alice, erin := org.Employees["Bob"], org.Employees["Alice"], org.Employees["Erin"]
	tasks := []struct {
		actor uint
		in    rbac.TaskInput
	}{
		{bob, rbac.TaskInput{Title: "Write onboarding guide", AssignedToID: alice, TeamID: &team.ID, Priority: "high"}},
		{bob, rbac.TaskInput{Title: "Quarterly planning", AssignedToID: bob}},
		{erin, rbac.TaskInput{Title: "Update expense report", AssignedToID: erin}},
	}
	for _, t := range tasks {
		if _, err := svc.CreateTask(ctx, t.actor, t.in); err != nil {
			return nil, fmt.Errorf("task %q: %w", t.in.Title, err)
		}
	}

	meeting, err := svc.CreateMeeting(ctx, "Platform weekly")
	if err != nil {
		return nil, err
	}
	org.MeetingID = meeting.ID
	turns := [][2]string{
		{"Bob", "Let's review the onboarding work."},
		{"Alice", "The first draft is ready for review."},
		{"Speaker 3", "I can help with the diagrams."},
	}
	for _, t := range turns {
		if _, err := svc.AddTranscript(ctx, meeting.ID, t[0], t[1]); err != nil {
			return nil, err
		}
	}

	// Analytics rows normally come from the transcript pipeline.
	skills := []rbac.EmployeeSkill{
		{MeetingID: meeting.ID, EmployeeName: "Bob", Role: "manager", OverallSentimentScore: 0.62},
		{MeetingID: meeting.ID, EmployeeName: "Alice", Role: "engineer", OverallSentimentScore: 0.48},
	}
	recs := []rbac.SkillRecommendation{
		{MeetingID: meeting.ID, Name: "Alice", SkillRecommendation: "Technical writing workshop"},
	}
	if err := svc.DB().WithContext(ctx).Create(&skills).Error; err != nil {
		return nil, fmt.Errorf("employee skills: %w", err)
	}
	if err := svc.DB().WithContext(ctx).Create(&recs).Error; err != nil {
		return nil, fmt.Errorf("skill recommendations: %w", err)
	}
	return org, nil
}
