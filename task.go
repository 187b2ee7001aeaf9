package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// TaskInput describes a task to create. The creator is always the acting employee.
type TaskInput struct {
	Title        string
	Description  string
	Status       string
	Priority     string
	Deadline     *time.Time
	AssignedToID uint
	TeamID       *uint
}

// TaskUpdate carries the fields to change. Nil fields are left as they are.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Status       *string
	Priority     *string
	Deadline     *time.Time
	AssignedToID *uint
	TeamID       *uint
}

// onlyStatus reports whether the update touches nothing but Status.
func (u TaskUpdate) onlyStatus() bool {
	return u.Title == nil && u.Description == nil && u.Priority == nil &&
		u.Deadline == nil && u.AssignedToID == nil && u.TeamID == nil
}

func (u TaskUpdate) columns() map[string]interface{} {
	cols := make(map[string]interface{})
	if u.Title != nil {
		cols["title"] = *u.Title
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.Priority != nil {
		cols["priority"] = *u.Priority
	}
	if u.Deadline != nil {
		cols["deadline"] = *u.Deadline
	}
	if u.AssignedToID != nil {
		cols["assigned_to_id"] = *u.AssignedToID
	}
	if u.TeamID != nil {
		cols["team_id"] = *u.TeamID
	}
	return cols
}

func (s *RBACService) findTask(ctx context.Context, id uint) (*Task, error) {
	if id == 0 {
		return nil, ErrNotFound
	}

	var task Task
	if err := s.db.WithContext(ctx).First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// taskAllowed: assignee, creator, flagged manager of the task's team, or, for views only,
// HR holding view_all_employees.
func (s *RBACService) taskAllowed(ctx context.Context, actorID uint, task *Task, action string, g *grantSet) (bool, error) {
	if task.AssignedToID == actorID || task.CreatedByID == actorID {
		return true, nil
	}
	if task.TeamID != nil {
		ok, err := s.IsTeamManager(ctx, actorID, *task.TeamID)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return action == ActionView && g.hasRoleAndPermission(RoleHR, PermViewAllEmployees, ResourceEmployees), nil
}

// CanViewTask decides whether the actor may perform action on the task. An empty action means "view".
func (s *RBACService) CanViewTask(ctx context.Context, actorID, taskID uint, action string) (bool, error) {
	if action == "" {
		action = ActionView
	}
	rid := idString(taskID)

	task, err := s.findTask(ctx, taskID)
	if err != nil {
		s.logAccess(ctx, actorID, ResourceTasks, rid, action, false)
		return false, err
	}

	ctx, g, err := s.decide(ctx, actorID)
	if err != nil {
		s.logAccess(ctx, actorID, ResourceTasks, rid, action, false)
		return false, err
	}

	allowed, err := s.taskAllowed(ctx, actorID, task, action, g)
	if err != nil {
		s.log.Errorw("task access check failed", "actor_id", actorID, "task_id", taskID, "error", err)
		s.logAccess(ctx, actorID, ResourceTasks, rid, action, false)
		return false, err
	}
	s.logAccess(ctx, actorID, ResourceTasks, rid, action, allowed)
	return allowed, nil
}

// ViewTask returns the task when the actor may see it.
func (s *RBACService) ViewTask(ctx context.Context, actorID, taskID uint) (*Task, error) {
	allowed, err := s.CanViewTask(ctx, actorID, taskID, ActionView)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}
	return s.findTask(ctx, taskID)
}

// taskScopeQuery builds the visible-task query from the actor's roles:
// hr sees everything, manager adds the teams they flag-manage, everyone sees
// tasks they are assigned to or created.
func (s *RBACService) taskScopeQuery(ctx context.Context, actorID uint, g *grantSet) (*gorm.DB, error) {
	query := s.db.WithContext(ctx).Model(&Task{})
	if g.hasRole(RoleHR) {
		return query, nil
	}

	if g.hasRole(RoleManager) {
		managed, err := s.ManagedTeams(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if len(managed) > 0 {
			return query.Where("assigned_to_id = ? OR created_by_id = ? OR team_id IN ?", actorID, actorID, managed), nil
		}
	}
	return query.Where("assigned_to_id = ? OR created_by_id = ?", actorID, actorID), nil
}

// FilterTasksForActor lists every task the actor may see. One access log row is
// written for the listing.
func (s *RBACService) FilterTasksForActor(ctx context.Context, actorID uint) ([]Task, error) {
	if _, err := s.findEmployee(ctx, actorID); err != nil {
		s.logAccess(ctx, actorID, ResourceTasks, BulkResourceID, ActionView, false)
		if errors.Is(err, ErrNotFound) {
			return []Task{}, ErrPermissionDenied
		}
		return []Task{}, err
	}

	ctx, g, err := s.decide(ctx, actorID)
	if err != nil {
		s.logAccess(ctx, actorID, ResourceTasks, BulkResourceID, ActionView, false)
		return []Task{}, err
	}

	query, err := s.taskScopeQuery(ctx, actorID, g)
	if err != nil {
		s.logAccess(ctx, actorID, ResourceTasks, BulkResourceID, ActionView, false)
		return []Task{}, err
	}

	tasks := []Task{}
	if err := query.Order("id").Find(&tasks).Error; err != nil {
		s.log.Errorw("failed to list tasks", "actor_id", actorID, "error", err)
		s.logAccess(ctx, actorID, ResourceTasks, BulkResourceID, ActionView, false)
		return []Task{}, err
	}

	s.logAccess(ctx, actorID, ResourceTasks, BulkResourceID, ActionView, true)
	return tasks, nil
}

// CreateTask creates a task on behalf of the actor. Self-assignment is always
// allowed; assigning to someone else needs the manager role, assign_tasks, and
// the assignee must report directly to the actor. A team, when given, must be one
// of the assignee's teams.
func (s *RBACService) CreateTask(ctx context.Context, actorID uint, in TaskInput) (*Task, error) {
	if in.Title == "" || in.AssignedToID == 0 {
		return nil, ErrInvalidInput
	}

	deny := func(err error) (*Task, error) {
		s.logAccess(ctx, actorID, ResourceTasks, BulkResourceID, ActionCreate, false)
		return nil, err
	}

	if err := s.requireActor(ctx, actorID); err != nil {
		return deny(err)
	}
	if err := s.checkAssignment(ctx, actorID, in.AssignedToID, in.TeamID); err != nil {
		return deny(err)
	}

	task := &Task{
		Title:        in.Title,
		Description:  in.Description,
		Status:       in.Status,
		Priority:     in.Priority,
		Deadline:     in.Deadline,
		AssignedToID: in.AssignedToID,
		CreatedByID:  actorID,
		TeamID:       in.TeamID,
	}
	if task.Status == "" {
		task.Status = "pending"
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}

	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return deny(fmt.Errorf("failed to create task: %w", err))
	}

	s.logAccess(ctx, actorID, ResourceTasks, idString(task.ID), ActionCreate, true)
	return task, nil
}

// UpdateTask applies changes to a task. The creator and the flagged manager of the
// task's team may change anything; the assignee may change only the status.
// A new assignee or team is held to the same rules as CreateTask.
func (s *RBACService) UpdateTask(ctx context.Context, actorID, taskID uint, upd TaskUpdate) (*Task, error) {
	rid := idString(taskID)
	cols := upd.columns()
	if len(cols) == 0 {
		return nil, ErrInvalidInput
	}

	deny := func(err error) (*Task, error) {
		s.logAccess(ctx, actorID, ResourceTasks, rid, ActionUpdate, false)
		return nil, err
	}

	if err := s.requireActor(ctx, actorID); err != nil {
		return deny(err)
	}
	task, err := s.findTask(ctx, taskID)
	if err != nil {
		return deny(err)
	}

	allowed := task.CreatedByID == actorID
	if !allowed && task.TeamID != nil {
		if allowed, err = s.IsTeamManager(ctx, actorID, *task.TeamID); err != nil {
			return deny(err)
		}
	}
	if !allowed && task.AssignedToID == actorID {
		if !upd.onlyStatus() {
			return deny(fmt.Errorf("assignees can only update task status: %w", ErrPermissionDenied))
		}
		allowed = true
	}
	if !allowed {
		return deny(ErrPermissionDenied)
	}

	if upd.AssignedToID != nil || upd.TeamID != nil {
		assignee, team := task.AssignedToID, task.TeamID
		if upd.AssignedToID != nil {
			assignee = *upd.AssignedToID
		}
		if upd.TeamID != nil {
			team = upd.TeamID
		}
		if assignee == task.AssignedToID {
			// Only a new assignee goes through the direct-report rules.
			err = s.checkTeam(ctx, assignee, team)
		} else {
			err = s.checkAssignment(ctx, actorID, assignee, team)
		}
		if err != nil {
			return deny(err)
		}
	}

	if err := s.db.WithContext(ctx).Model(task).Updates(cols).Error; err != nil {
		return deny(fmt.Errorf("failed to update task: %w", err))
	}

	s.logAccess(ctx, actorID, ResourceTasks, rid, ActionUpdate, true)
	return s.findTask(ctx, taskID)
}

// requireActor turns an unknown actor into a denial.
func (s *RBACService) requireActor(ctx context.Context, actorID uint) error {
	if _, err := s.findEmployee(ctx, actorID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("unknown actor %d: %w", actorID, ErrPermissionDenied)
		}
		return err
	}
	return nil
}

// checkAssignment enforces who may hand a task to assigneeID. Self-assignment is
// always allowed; anyone else must be a direct report of an actor holding the
// manager role and assign_tasks. A team, when given, must be one of the assignee's.
func (s *RBACService) checkAssignment(ctx context.Context, actorID, assigneeID uint, teamID *uint) error {
	if assigneeID != actorID {
		_, g, err := s.decide(ctx, actorID)
		if err != nil {
			return err
		}
		if !g.hasRole(RoleManager) || !g.hasPermission(PermAssignTasks, ResourceTasks) {
			s.log.Infow("task assignment denied", "actor_id", actorID, "assignee_id", assigneeID)
			return fmt.Errorf("assigning tasks to others: %w", ErrPermissionDenied)
		}

		assignee, err := s.findEmployee(ctx, assigneeID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if assignee == nil || assignee.ManagerID == nil || *assignee.ManagerID != actorID {
			return fmt.Errorf("tasks can only be assigned to direct reports: %w", ErrPermissionDenied)
		}
	}
	return s.checkTeam(ctx, assigneeID, teamID)
}

func (s *RBACService) checkTeam(ctx context.Context, assigneeID uint, teamID *uint) error {
	if teamID == nil {
		return nil
	}
	teams, err := s.EmployeeTeams(ctx, assigneeID)
	if err != nil {
		return err
	}
	if !containsID(teams, *teamID) {
		return fmt.Errorf("assignee is not on team %d: %w", *teamID, ErrInvalidInput)
	}
	return nil
}
