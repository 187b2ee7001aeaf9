package rbac

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Fixture ids. Bob manages Alice and Gus directly and flag-manages the Platform
// team (Bob, Alice, Hank). Jo reports to Alice. Dana is HR. Ivy holds
// view_all_employees through a non-HR role.
const (
	danaID  uint = 1
	bobID   uint = 2
	aliceID uint = 3
	erinID  uint = 5
	gusID   uint = 7
	hankID  uint = 8
	ivyID   uint = 9
	joID    uint = 10

	platformTeam uint = 1
	opsTeam      uint = 2
)

type fixture struct {
	svc      *RBACService
	db       *gorm.DB
	registry *prometheus.Registry
	roles    map[string]uint
	perms    map[string]uint
	meetings map[string]string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every connection to :memory: is a separate database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newTestService(t *testing.T, mutate ...func(*Config)) (*RBACService, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	cfg := Config{
		DB:          newTestDB(t),
		AutoMigrate: true,
		Logger:      zaptest.NewLogger(t).Sugar(),
		Metrics:     NewMetrics(reg),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	svc, err := NewRBACService(cfg)
	require.NoError(t, err)
	return svc, reg
}

var testRolePerms = map[string][]string{
	RoleEmployee: {PermViewOwnTasks, PermViewOwnEmployee, PermViewOwnTranscripts, PermViewOwnPerformance, PermViewOwnRecommendations},
	RoleManager:  {PermViewTeamTasks, PermAssignTasks, PermViewTeamEmployees},
	RoleHR:       {PermViewAllEmployees, PermViewAllTranscripts, PermViewAllPerformance, PermViewAllRecommendations},
	"auditor":    {PermViewAllEmployees},
}

var testPermTypes = map[string]ResourceType{
	PermViewOwnTasks:           ResourceTasks,
	PermViewTeamTasks:          ResourceTasks,
	PermAssignTasks:            ResourceTasks,
	PermViewOwnEmployee:        ResourceEmployees,
	PermViewTeamEmployees:      ResourceEmployees,
	PermViewAllEmployees:       ResourceEmployees,
	PermViewOwnTranscripts:     ResourceMeetings,
	PermViewAllTranscripts:     ResourceMeetings,
	PermViewOwnPerformance:     ResourcePerformance,
	PermViewAllPerformance:     ResourcePerformance,
	PermViewOwnRecommendations: ResourceRecommendations,
	PermViewAllRecommendations: ResourceRecommendations,
}

func newFixture(t *testing.T, mutate ...func(*Config)) *fixture {
	t.Helper()
	ctx := context.Background()
	svc, reg := newTestService(t, mutate...)
	f := &fixture{
		svc:      svc,
		db:       svc.DB(),
		registry: reg,
		roles:    map[string]uint{},
		perms:    map[string]uint{},
		meetings: map[string]string{},
	}

	for name, rt := range testPermTypes {
		p, err := svc.CreatePermission(ctx, name, rt, "")
		require.NoError(t, err)
		f.perms[name] = p.ID
	}
	for role, perms := range testRolePerms {
		ids := make([]uint, 0, len(perms))
		for _, p := range perms {
			ids = append(ids, f.perms[p])
		}
		r, err := svc.CreateRoleWithPermissions(ctx, role, "", ids)
		require.NoError(t, err)
		f.roles[role] = r.ID
	}

	people := []struct {
		id      uint
		name    string
		manager uint
		roles   []string
	}{
		{danaID, "Dana", 0, []string{RoleEmployee, RoleHR}},
		{bobID, "Bob", 0, []string{RoleEmployee, RoleManager}},
		{aliceID, "Alice", bobID, []string{RoleEmployee}},
		{erinID, "Erin", 0, []string{RoleEmployee}},
		{gusID, "Gus", bobID, []string{RoleEmployee}},
		{hankID, "Hank", 0, []string{RoleEmployee}},
		{ivyID, "Ivy", 0, []string{RoleEmployee, "auditor"}},
		{joID, "Jo", aliceID, []string{RoleEmployee}},
	}
	for _, p := range people {
		emp := &Employee{ID: p.id, Name: p.name, Email: p.name + "@example.com"}
		if p.manager != 0 {
			m := p.manager
			emp.ManagerID = &m
		}
		require.NoError(t, svc.CreateEmployee(ctx, emp))
		require.NoError(t, svc.AssignRolesByNames(ctx, p.id, p.roles))
	}

	require.NoError(t, f.db.Create(&Team{ID: platformTeam, Name: "Platform"}).Error)
	require.NoError(t, f.db.Create(&Team{ID: opsTeam, Name: "Ops"}).Error)
	require.NoError(t, svc.AddTeamMember(ctx, platformTeam, bobID, true))
	require.NoError(t, svc.AddTeamMember(ctx, platformTeam, aliceID, false))
	require.NoError(t, svc.AddTeamMember(ctx, platformTeam, hankID, false))
	// Erin flag-manages Ops without holding the manager role.
	require.NoError(t, svc.AddTeamMember(ctx, opsTeam, erinID, true))
	require.NoError(t, svc.AddTeamMember(ctx, opsTeam, gusID, false))

	team := platformTeam
	ops := opsTeam
	tasks := []Task{
		{ID: 1, Title: "Onboarding guide", AssignedToID: aliceID, CreatedByID: bobID, TeamID: &team},
		{ID: 2, Title: "Planning", AssignedToID: bobID, CreatedByID: bobID},
		{ID: 3, Title: "Expense report", AssignedToID: erinID, CreatedByID: erinID},
		{ID: 4, Title: "Benefits review", AssignedToID: erinID, CreatedByID: danaID},
		{ID: 5, Title: "Fix flaky test", AssignedToID: hankID, CreatedByID: hankID, TeamID: &team},
		{ID: 6, Title: "Private errand", AssignedToID: gusID, CreatedByID: gusID},
		{ID: 7, Title: "Rotate keys", AssignedToID: gusID, CreatedByID: gusID, TeamID: &ops},
	}
	require.NoError(t, f.db.Create(&tasks).Error)

	speakers := map[string][]string{
		"weekly":   {"Bob", "Alice"},
		"erin1on1": {"Erin"},
		"ops":      {"Gus", "Speaker 4"},
		"hank":     {"Hank"},
	}
	for key, names := range speakers {
		m, err := svc.CreateMeeting(ctx, key)
		require.NoError(t, err)
		f.meetings[key] = m.ID
		for _, n := range names {
			_, err := svc.AddTranscript(ctx, m.ID, n, "hello from "+n)
			require.NoError(t, err)
		}
	}

	skills := []EmployeeSkill{
		{ID: 1, MeetingID: f.meetings["weekly"], EmployeeName: "Alice", OverallSentimentScore: 0.5},
		{ID: 2, MeetingID: f.meetings["erin1on1"], EmployeeName: "Erin", OverallSentimentScore: 0.7},
		{ID: 3, MeetingID: f.meetings["hank"], EmployeeName: "Hank", OverallSentimentScore: 0.2},
		{ID: 4, MeetingID: f.meetings["ops"], EmployeeName: "Speaker 4", OverallSentimentScore: 0.9},
	}
	require.NoError(t, f.db.Create(&skills).Error)

	return f
}

// countLogs counts audit rows for an actor.
func (f *fixture) countLogs(t *testing.T, actorID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&AccessLog{}).Where("employee_id = ?", actorID).Count(&n).Error)
	return n
}

// lastLog returns the newest audit row.
func (f *fixture) lastLog(t *testing.T) AccessLog {
	t.Helper()
	var l AccessLog
	require.NoError(t, f.db.Order("id DESC").First(&l).Error)
	return l
}

func uintPtr(v uint) *uint { return &v }

func strPtr(v string) *string { return &v }

func timePtr(v time.Time) *time.Time { return &v }
