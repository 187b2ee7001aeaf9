package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateMeeting registers a meeting under a fresh UUID.
func (s *RBACService) CreateMeeting(ctx context.Context, title string) (*Meeting, error) {
	meeting := &Meeting{ID: uuid.NewString(), Title: title}
	if err := s.db.WithContext(ctx).Create(meeting).Error; err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	s.log.Infow("meeting created", "meeting_id", meeting.ID)
	return meeting, nil
}

// AddTranscript appends one speaker turn to a meeting.
func (s *RBACService) AddTranscript(ctx context.Context, meetingID, speaker, text string) (*MeetingTranscript, error) {
	if meetingID == "" || speaker == "" {
		return nil, ErrInvalidInput
	}
	if _, err := s.findMeeting(ctx, meetingID, false); err != nil {
		return nil, err
	}

	turn := &MeetingTranscript{MeetingID: meetingID, Name: speaker, Text: text}
	if err := s.db.WithContext(ctx).Create(turn).Error; err != nil {
		return nil, fmt.Errorf("failed to add transcript: %w", err)
	}
	return turn, nil
}

func (s *RBACService) findMeeting(ctx context.Context, id string, withTranscripts bool) (*Meeting, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	query := s.db.WithContext(ctx)
	if withTranscripts {
		query = query.Preload("Transcripts", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
	}

	var meeting Meeting
	if err := query.Where("id = ?", id).First(&meeting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &meeting, nil
}

// meetingSpeakers resolves the distinct speaker labels of one meeting.
func (s *RBACService) meetingSpeakers(ctx context.Context, meetingID string) (SpeakerResolution, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&MeetingTranscript{}).
		Where("meeting_id = ?", meetingID).
		Distinct("name").
		Pluck("name", &names).Error; err != nil {
		return SpeakerResolution{}, err
	}
	return s.resolveSpeakers(ctx, names)
}

func (s *RBACService) resolveSpeakers(ctx context.Context, names []string) (SpeakerResolution, error) {
	res, err := s.speakers.ResolveSpeakers(ctx, names)
	if err != nil {
		return res, err
	}
	if n := len(res.Unidentified); n > 0 {
		s.metrics.UnidentifiedSpeakers.Add(float64(n))
		s.log.Debugw("unidentified speakers", "names", res.Unidentified)
	}
	return res, nil
}

// CanViewMeeting allows HR holding view_all_transcripts, any actor who spoke in the
// meeting, and manager-role holders one of whose direct reports spoke. Speakers are
// matched through the speaker resolver; unidentified labels grant nothing.
func (s *RBACService) CanViewMeeting(ctx context.Context, actorID uint, meetingID string) (bool, error) {
	if _, err := s.findMeeting(ctx, meetingID, false); err != nil {
		s.logAccess(ctx, actorID, ResourceMeetings, meetingID, ActionView, false)
		return false, err
	}

	allowed, err := s.meetingAllowed(ctx, actorID, meetingID)
	if err != nil {
		s.log.Errorw("meeting access check failed", "actor_id", actorID, "meeting_id", meetingID, "error", err)
		s.logAccess(ctx, actorID, ResourceMeetings, meetingID, ActionView, false)
		return false, err
	}
	s.logAccess(ctx, actorID, ResourceMeetings, meetingID, ActionView, allowed)
	return allowed, nil
}

func (s *RBACService) meetingAllowed(ctx context.Context, actorID uint, meetingID string) (bool, error) {
	ctx, g, err := s.decide(ctx, actorID)
	if err != nil {
		return false, err
	}
	if g.hasRoleAndPermission(RoleHR, PermViewAllTranscripts, ResourceMeetings) {
		return true, nil
	}
	if actorID == 0 {
		return false, nil
	}

	res, err := s.meetingSpeakers(ctx, meetingID)
	if err != nil {
		return false, err
	}
	spoke := res.EmployeeIDs()
	if _, ok := spoke[actorID]; ok {
		return true, nil
	}
	if !g.hasRole(RoleManager) {
		return false, nil
	}

	subs, err := s.GetSubordinateIDs(ctx, actorID)
	if err != nil {
		return false, err
	}
	for _, id := range subs {
		if _, ok := spoke[id]; ok {
			return true, nil
		}
	}
	return false, nil
}

// ViewMeeting returns the meeting with its transcript when the actor may see it.
func (s *RBACService) ViewMeeting(ctx context.Context, actorID uint, meetingID string) (*Meeting, error) {
	allowed, err := s.CanViewMeeting(ctx, actorID, meetingID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrPermissionDenied
	}
	return s.findMeeting(ctx, meetingID, true)
}
