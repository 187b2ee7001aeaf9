package rbac

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// StoreFetcher reads records straight from the relational store without any
// scoping. It stands in for an external query generator; its rows are trimmed
// by FilterResults like any other upstream output.
type StoreFetcher struct {
	db       *gorm.DB
	speakers SpeakerResolver
	limit    int
}

// NewStoreFetcher returns a fetcher over db. Analytics rows are attributed to
// employees through speakers; rows whose speaker is unidentified are skipped.
func NewStoreFetcher(db *gorm.DB, speakers SpeakerResolver) *StoreFetcher {
	return &StoreFetcher{db: db, speakers: speakers, limit: 500}
}

// Fetch implements Fetcher.
func (f *StoreFetcher) Fetch(ctx context.Context, req FetchRequest) (interface{}, error) {
	db := f.db.WithContext(ctx).Limit(f.limit).Order("id")

	switch req.Intent.ResourceType {
	case ResourceEmployees:
		var emps []Employee
		if err := db.Find(&emps).Error; err != nil {
			return nil, err
		}
		rows := make([]Record, len(emps))
		for i, e := range emps {
			rows[i] = Record{"id": e.ID, "name": e.Name, "email": e.Email, "status": e.Status, "manager_id": e.ManagerID}
		}
		return rows, nil

	case ResourceTasks:
		var tasks []Task
		if err := db.Find(&tasks).Error; err != nil {
			return nil, err
		}
		rows := make([]Record, len(tasks))
		for i, t := range tasks {
			rows[i] = Record{
				"id": t.ID, "title": t.Title, "status": t.Status, "priority": t.Priority, "deadline": t.Deadline,
				"assigned_to_id": t.AssignedToID, "created_by_id": t.CreatedByID, "team_id": t.TeamID,
			}
		}
		return rows, nil

	case ResourceMeetings:
		var meetings []Meeting
		if err := db.Preload("Transcripts").Find(&meetings).Error; err != nil {
			return nil, err
		}
		rows := make([]Record, len(meetings))
		for i, m := range meetings {
			names := make([]string, 0, len(m.Transcripts))
			for _, t := range m.Transcripts {
				names = append(names, t.Name)
			}
			rows[i] = Record{"id": m.ID, "title": m.Title, "created_at": m.CreatedAt, "speakers": dedupeStrings(names)}
		}
		return rows, nil

	case ResourcePerformance:
		var skills []EmployeeSkill
		if err := db.Find(&skills).Error; err != nil {
			return nil, err
		}
		names := make([]string, len(skills))
		for i, sk := range skills {
			names[i] = sk.EmployeeName
		}
		res, err := f.speakers.ResolveSpeakers(ctx, names)
		if err != nil {
			return nil, err
		}
		rows := make([]Record, 0, len(skills))
		for _, sk := range skills {
			empID, ok := res.Resolved[sk.EmployeeName]
			if !ok {
				continue
			}
			rows = append(rows, Record{
				"id": sk.ID, "employee_id": empID, "employee_name": sk.EmployeeName,
				"meeting_id": sk.MeetingID, "role": sk.Role, "overall_sentiment_score": sk.OverallSentimentScore,
			})
		}
		return rows, nil

	case ResourceRecommendations:
		var skills []SkillRecommendation
		if err := db.Find(&skills).Error; err != nil {
			return nil, err
		}
		var tasks []TaskRecommendation
		if err := f.db.WithContext(ctx).Limit(f.limit).Order("id").Find(&tasks).Error; err != nil {
			return nil, err
		}

		names := make([]string, 0, len(skills)+len(tasks))
		for _, sk := range skills {
			names = append(names, sk.Name)
		}
		for _, t := range tasks {
			names = append(names, t.AssignedTo)
		}
		res, err := f.speakers.ResolveSpeakers(ctx, names)
		if err != nil {
			return nil, err
		}

		rows := make([]Record, 0, len(names))
		for _, sk := range skills {
			if empID, ok := res.Resolved[sk.Name]; ok {
				rows = append(rows, Record{
					"id": sk.ID, "kind": "skill", "employee_id": empID, "name": sk.Name,
					"meeting_id": sk.MeetingID, "recommendation": sk.SkillRecommendation,
				})
			}
		}
		for _, t := range tasks {
			if empID, ok := res.Resolved[t.AssignedTo]; ok {
				rows = append(rows, Record{
					"id": t.ID, "kind": "task", "employee_id": empID, "name": t.AssignedTo,
					"meeting_id": t.MeetingID, "recommendation": t.Task, "deadline": t.Deadline, "status": t.Status,
				})
			}
		}
		return rows, nil

	default:
		return nil, fmt.Errorf("unsupported resource type %q: %w", req.Intent.ResourceType, ErrInvalidInput)
	}
}
