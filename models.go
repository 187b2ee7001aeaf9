package rbac

import (
	"time"

	"gorm.io/gorm"
)

// ResourceType names a class of protected records.
type ResourceType string

const (
	ResourceEmployees       ResourceType = "employees"
	ResourceTasks           ResourceType = "tasks"
	ResourceMeetings        ResourceType = "meetings"
	ResourcePerformance     ResourceType = "performance"
	ResourceRecommendations ResourceType = "recommendations"
)

// ResourceTypes lists every resource type a Permission may be bound to.
var ResourceTypes = []ResourceType{
	ResourceEmployees,
	ResourceTasks,
	ResourceMeetings,
	ResourcePerformance,
	ResourceRecommendations,
}

// Valid reports whether t is a known resource type.
func (t ResourceType) Valid() bool {
	for _, rt := range ResourceTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// Well-known role names.
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
)

// Well-known permission names.
const (
	PermViewOwnTasks           = "view_own_tasks"
	PermViewTeamTasks          = "view_team_tasks"
	PermAssignTasks            = "assign_tasks"
	PermViewOwnEmployee        = "view_own_employee"
	PermViewTeamEmployees      = "view_team_employees"
	PermViewAllEmployees       = "view_all_employees"
	PermViewOwnTranscripts     = "view_own_transcripts"
	PermViewAllTranscripts     = "view_all_transcripts"
	PermViewOwnPerformance     = "view_own_performance"
	PermViewAllPerformance     = "view_all_performance"
	PermViewOwnRecommendations = "view_own_recommendations"
	PermViewAllRecommendations = "view_all_recommendations"
)

// Employee is a person in the org chart. ManagerID points at the employee they report to.
type Employee struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	Email     string    `gorm:"index" json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Status    string    `json:"status"`
	ManagerID *uint     `gorm:"index" json:"manager_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role is a named bundle of permissions.
type Role struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;not null"`
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is a named action bound to exactly one resource type.
type Permission struct {
	ID           uint         `gorm:"primaryKey"`
	Name         string       `gorm:"uniqueIndex:idx_permission_name_resource;not null"`
	ResourceType ResourceType `gorm:"uniqueIndex:idx_permission_name_resource;not null"`
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRole maps an employee to a role.
type UserRole struct {
	EmployeeID uint `gorm:"primaryKey;autoIncrement:false"`
	RoleID     uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt  time.Time
}

// RolePermission grants a permission to every holder of a role.
type RolePermission struct {
	RoleID       uint `gorm:"primaryKey;autoIncrement:false"`
	PermissionID uint `gorm:"primaryKey;autoIncrement:false;index"`
	CreatedAt    time.Time
}

// Team is a group of employees.
type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TeamMember places an employee on a team. IsManager flags the team's manager(s)
// independently of the "manager" role.
type TeamMember struct {
	TeamID     uint `gorm:"primaryKey;autoIncrement:false"`
	EmployeeID uint `gorm:"primaryKey;autoIncrement:false;index"`
	IsManager  bool `gorm:"default:false"`
	CreatedAt  time.Time
}

// Task is a unit of work assigned to an employee.
type Task struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Title        string     `gorm:"not null" json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `gorm:"default:pending" json:"status"`
	Priority     string     `gorm:"default:medium" json:"priority"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	AssignedToID uint       `gorm:"index;not null" json:"assigned_to_id"`
	CreatedByID  uint       `gorm:"index;not null" json:"created_by_id"`
	TeamID       *uint      `gorm:"index" json:"team_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Meeting is a recorded meeting. ID is a UUID string.
type Meeting struct {
	ID          string              `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title       string              `json:"title"`
	CreatedAt   time.Time           `json:"created_at"`
	Transcripts []MeetingTranscript `gorm:"foreignKey:MeetingID;constraint:OnDelete:CASCADE" json:"transcripts,omitempty"`
}

// MeetingTranscript is one speaker turn. Name is the free-text speaker label,
// not a reference to Employee.
type MeetingTranscript struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	MeetingID string `gorm:"index;not null;type:varchar(64)" json:"meeting_id"`
	Name      string `gorm:"index;not null" json:"name"`
	Text      string `gorm:"type:text" json:"text"`
	Processed bool   `gorm:"default:false" json:"processed"`
}

// EmployeeSkill is the per-meeting sentiment/skill summary for a speaker.
type EmployeeSkill struct {
	ID                    uint   `gorm:"primaryKey"`
	MeetingID             string `gorm:"index;not null;type:varchar(64)"`
	EmployeeName          string `gorm:"index"`
	Role                  string
	OverallSentimentScore float64
}

// RollingSentiment holds the rolling sentiment series for a speaker in a meeting.
type RollingSentiment struct {
	ID               uint   `gorm:"primaryKey"`
	MeetingID        string `gorm:"uniqueIndex:idx_meeting_person;not null;type:varchar(64)"`
	Name             string `gorm:"uniqueIndex:idx_meeting_person;not null"`
	Role             string
	RollingSentiment string `gorm:"type:text"`
}

// SkillRecommendation is an LLM-derived skill suggestion for a speaker.
type SkillRecommendation struct {
	ID                  uint   `gorm:"primaryKey"`
	MeetingID           string `gorm:"index;not null;type:varchar(64)"`
	Name                string `gorm:"index"`
	SkillRecommendation string
}

// TaskRecommendation is an LLM-extracted task mentioned in a meeting.
type TaskRecommendation struct {
	ID         uint   `gorm:"primaryKey"`
	MeetingID  string `gorm:"index;not null;type:varchar(64)"`
	Task       string
	AssignedBy string
	AssignedTo string `gorm:"index"`
	Deadline   string
	Status     string
}

// AccessLog is the append-only audit trail of authorization decisions.
// ResourceID is "0" for decisions that do not target a single record.
type AccessLog struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	EmployeeID   uint         `gorm:"index;not null" json:"employee_id"`
	ResourceType ResourceType `gorm:"index;not null" json:"resource_type"`
	ResourceID   string       `gorm:"not null" json:"resource_id"`
	Action       string       `gorm:"not null" json:"action"`
	Timestamp    time.Time    `gorm:"index;not null" json:"timestamp"`
	Success      bool         `json:"success"`
}

// BeforeUpdate keeps audit rows write-once.
func (AccessLog) BeforeUpdate(*gorm.DB) error {
	return ErrAuditImmutable
}

// BeforeDelete keeps audit rows write-once.
func (AccessLog) BeforeDelete(*gorm.DB) error {
	return ErrAuditImmutable
}

// allModels is the AutoMigrate set.
func allModels() []interface{} {
	return []interface{}{
		&Employee{}, &Role{}, &Permission{}, &UserRole{}, &RolePermission{},
		&Team{}, &TeamMember{}, &Task{}, &Meeting{}, &MeetingTranscript{},
		&EmployeeSkill{}, &RollingSentiment{}, &SkillRecommendation{}, &TaskRecommendation{},
		&AccessLog{},
	}
}
