package rbac

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanViewMeeting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		actor   uint
		meeting string
		want    bool
	}{
		{"speaker", aliceID, "weekly", true},
		{"non-speaker", erinID, "weekly", false},
		{"hr with view_all_transcripts", danaID, "hank", true},
		{"manager of a speaker", bobID, "ops", true},
		{"team flag does not grant transcripts", bobID, "hank", false},
		{"flag manager without manager role", erinID, "ops", false},
		{"report cannot see manager-only meeting", gusID, "weekly", false},
		{"unknown actor", 999, "weekly", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := f.meetings[tt.meeting]
			got, err := f.svc.CanViewMeeting(ctx, tt.actor, id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			last := f.lastLog(t)
			assert.Equal(t, ResourceMeetings, last.ResourceType)
			assert.Equal(t, id, last.ResourceID)
			assert.Equal(t, tt.want, last.Success)
		})
	}
}

func TestCanViewMeeting_NotFound(t *testing.T) {
	f := newFixture(t)

	ok, err := f.svc.CanViewMeeting(context.Background(), danaID, "does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, ok)

	last := f.lastLog(t)
	assert.Equal(t, "does-not-exist", last.ResourceID)
	assert.False(t, last.Success)
}

func TestCanViewMeeting_UnidentifiedSpeakersCounted(t *testing.T) {
	f := newFixture(t)
	before := testutil.ToFloat64(f.svc.metrics.UnidentifiedSpeakers)

	_, err := f.svc.CanViewMeeting(context.Background(), bobID, f.meetings["ops"])
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(f.svc.metrics.UnidentifiedSpeakers))
}

func TestCanViewMeeting_UnidentifiedLabelGrantsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// "Speaker 4" looks like nobody. Hiring an employee by that name later
	// attributes the turn to them.
	ok, err := f.svc.CanViewMeeting(ctx, hankID, f.meetings["ops"])
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.svc.CreateEmployee(ctx, &Employee{ID: 42, Name: "Speaker 4"}))
	require.NoError(t, f.svc.AssignRolesByNames(ctx, 42, []string{RoleEmployee}))
	ok, err = f.svc.CanViewMeeting(ctx, 42, f.meetings["ops"])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestViewMeeting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.svc.ViewMeeting(ctx, aliceID, f.meetings["weekly"])
	require.NoError(t, err)
	require.Len(t, m.Transcripts, 2)
	assert.Equal(t, "Bob", m.Transcripts[0].Name)
	assert.Equal(t, "Alice", m.Transcripts[1].Name)

	_, err = f.svc.ViewMeeting(ctx, hankID, f.meetings["weekly"])
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestAddTranscript(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddTranscript(ctx, "missing", "Bob", "hi")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.AddTranscript(ctx, f.meetings["weekly"], "", "hi")
	assert.ErrorIs(t, err, ErrInvalidInput)

	turn, err := f.svc.AddTranscript(ctx, f.meetings["hank"], "Erin", "joining late")
	require.NoError(t, err)
	assert.NotZero(t, turn.ID)

	ok, err := f.svc.CanViewMeeting(ctx, erinID, f.meetings["hank"])
	require.NoError(t, err)
	assert.True(t, ok)
}
