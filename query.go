package rbac

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Query response statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	msgUnclassified  = "Unable to understand query. Please try a different phrasing."
	msgQueryFailed   = "Your query could not be completed. Please try again later."
	msgPermissionFmt = "You don't have permission to %s %s"
)

// QueryResponse is what ProcessQuery hands back to the chat surface.
type QueryResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message"`
	Data    []Record `json:"data"`
}

// FetchRequest is passed to the record fetcher once a query is authorized.
// ActorID lets a fetcher narrow its own query; the result is filtered regardless.
type FetchRequest struct {
	Query   string
	ActorID uint
	Intent  Intent
}

// Fetcher retrieves raw rows for an authorized query. The return value is
// untrusted and goes through FilterResults before anyone sees it.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) (interface{}, error)
}

// ResponseFormatter turns filtered rows into the chat message.
type ResponseFormatter interface {
	FormatResponse(ctx context.Context, query string, rt ResourceType, rows []Record) (string, error)
}

func errorResponse(msg string) QueryResponse {
	return QueryResponse{Status: StatusError, Message: msg, Data: []Record{}}
}

// ProcessQuery classifies text, checks the actor's permission for the intent,
// fetches, filters and formats. The intent's permission only gates the query;
// rows are trimmed to the actor's scope for the resource type, so "my tasks"
// from an HR actor returns every task. It never returns a Go error: every
// failure is a structured error response with a message safe to show the actor.
func (s *RBACService) ProcessQuery(ctx context.Context, text string, actorID uint) QueryResponse {
	ctx, span := tracer.Start(ctx, "rbac.ProcessQuery")
	defer span.End()
	span.SetAttributes(attribute.Int64("rbac.actor_id", int64(actorID)))

	intent, ok := s.classifier.Classify(text)
	if !ok {
		s.metrics.Queries.WithLabelValues("unclassified").Inc()
		span.SetStatus(codes.Error, ErrUnclassifiedQuery.Error())
		return errorResponse(msgUnclassified)
	}
	rt := intent.ResourceType
	span.SetAttributes(attribute.String("rbac.resource_type", string(rt)), attribute.String("rbac.permission", intent.Permission))

	fail := func(stage string, err error) QueryResponse {
		s.log.Errorw("query failed", "stage", stage, "actor_id", actorID, "resource_type", rt, "query", text, "error", err)
		s.logAccess(ctx, actorID, rt, BulkResourceID, ActionView, false)
		s.metrics.Queries.WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, stage)
		return errorResponse(msgQueryFailed)
	}

	ctx, g, err := s.decide(ctx, actorID)
	if err != nil {
		return fail("authorize", err)
	}
	if !g.hasPermission(intent.Permission, rt) {
		s.log.Infow("query denied", "actor_id", actorID, "resource_type", rt, "permission", intent.Permission)
		s.logAccess(ctx, actorID, rt, BulkResourceID, ActionView, false)
		s.metrics.Queries.WithLabelValues("denied").Inc()
		span.SetStatus(codes.Error, ErrPermissionDenied.Error())
		return errorResponse(fmt.Sprintf(msgPermissionFmt, intent.Permission, rt))
	}

	raw, err := s.fetcher.Fetch(ctx, FetchRequest{Query: text, ActorID: actorID, Intent: intent})
	if err != nil {
		return fail("fetch", fmt.Errorf("%w: %v", ErrUpstreamFetch, err))
	}

	rows, err := s.FilterResults(ctx, raw, rt, actorID)
	if err != nil {
		return fail("filter", err)
	}

	s.logAccess(ctx, actorID, rt, BulkResourceID, ActionView, true)
	s.metrics.Queries.WithLabelValues(StatusSuccess).Inc()

	msg, err := s.formatter.FormatResponse(ctx, text, rt, rows)
	if err != nil || msg == "" {
		if err != nil {
			s.log.Warnw("response formatter failed", "actor_id", actorID, "error", err)
		}
		msg = fmt.Sprintf("Found %d results", len(rows))
	}
	return QueryResponse{Status: StatusSuccess, Message: msg, Data: rows}
}

// TemplateFormatter renders one line per row with a fixed template per resource type.
type TemplateFormatter struct{}

// FormatResponse implements ResponseFormatter.
func (TemplateFormatter) FormatResponse(_ context.Context, _ string, rt ResourceType, rows []Record) (string, error) {
	if len(rows) == 0 {
		return "No results found.", nil
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		var line string
		switch rt {
		case ResourceTasks:
			line = fmt.Sprintf("Task %s: %s (Status: %s, Priority: %s)", field(r, "id"), field(r, "title"), field(r, "status"), field(r, "priority"))
		case ResourceMeetings:
			line = fmt.Sprintf("Meeting %s: %s (Created: %s)", field(r, "id"), field(r, "title"), field(r, "created_at"))
		case ResourceEmployees:
			line = fmt.Sprintf("Employee %s: %s (Email: %s)", field(r, "id"), field(r, "name"), field(r, "email"))
		case ResourcePerformance:
			line = fmt.Sprintf("Employee %s: sentiment %s in meeting %s", field(r, "employee_id"), field(r, "overall_sentiment_score"), field(r, "meeting_id"))
		case ResourceRecommendations:
			line = fmt.Sprintf("Employee %s: %s", field(r, "employee_id"), field(r, "recommendation"))
		default:
			line = fmt.Sprintf("%v", r)
		}
		lines = append(lines, line)
	}
	return fmt.Sprintf("Found %d results\n%s", len(rows), strings.Join(lines, "\n")), nil
}

func field(r Record, key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return "-"
	}
	return cast.ToString(v)
}
