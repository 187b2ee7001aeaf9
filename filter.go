package rbac

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Record is one keyed row of an upstream result set.
type Record = map[string]interface{}

// ScopeFunc returns the identifiers, as strings, that actorID may see.
// The actor's grants are already pinned to ctx.
type ScopeFunc func(ctx context.Context, s *RBACService, actorID uint) ([]string, error)

// FilterRule tells the result filter which field identifies a row and how to
// compute the actor's scope over that field.
type FilterRule struct {
	KeyField string
	Scope    ScopeFunc
}

func defaultFilterRules() map[ResourceType]FilterRule {
	return map[ResourceType]FilterRule{
		ResourceEmployees:       {KeyField: "id", Scope: employeeScope},
		ResourceTasks:           {KeyField: "id", Scope: taskScope},
		ResourceMeetings:        {KeyField: "id", Scope: meetingScope},
		ResourcePerformance:     {KeyField: "employee_id", Scope: teamResourceScope(ResourcePerformance, PermViewAllPerformance)},
		ResourceRecommendations: {KeyField: "employee_id", Scope: teamResourceScope(ResourceRecommendations, PermViewAllRecommendations)},
	}
}

// RegisterFilterRule installs or replaces the rule for rt.
func (s *RBACService) RegisterFilterRule(rt ResourceType, rule FilterRule) error {
	if rt == "" || rule.KeyField == "" || rule.Scope == nil {
		return ErrInvalidInput
	}
	s.rulesMu.Lock()
	defer s.rulesMu.Unlock()
	s.filterRules[rt] = rule
	return nil
}

func (s *RBACService) filterRule(rt ResourceType) (FilterRule, bool) {
	s.rulesMu.RLock()
	defer s.rulesMu.RUnlock()
	rule, ok := s.filterRules[rt]
	return rule, ok
}

// FilterResults keeps only the rows of raw whose identifier lies in the actor's
// freshly computed scope for rt. raw may be a slice of records, a []interface{}
// of records, or a JSON array of objects. Anything else, or any row without a
// scalar identifier, rejects the whole set. A resource type without a rule
// yields ErrNoFilterRule. Every failure returns an empty, non-nil slice.
func (s *RBACService) FilterResults(ctx context.Context, raw interface{}, rt ResourceType, actorID uint) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "rbac.FilterResults")
	defer span.End()
	span.SetAttributes(attribute.String("rbac.resource_type", string(rt)), attribute.Int64("rbac.actor_id", int64(actorID)))

	fail := func(err error) ([]Record, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return []Record{}, err
	}

	rule, ok := s.filterRule(rt)
	if !ok {
		s.log.Errorw("no filter rule registered", "resource_type", rt, "actor_id", actorID)
		return fail(fmt.Errorf("%s: %w", rt, ErrNoFilterRule))
	}

	rows, err := normalizeRows(raw)
	if err != nil {
		s.metrics.MalformedResults.WithLabelValues(string(rt)).Inc()
		s.log.Errorw("rejected malformed result set", "resource_type", rt, "actor_id", actorID, "error", err)
		return fail(err)
	}

	keys := make([]string, len(rows))
	for i, row := range rows {
		key, ok := rowKey(row, rule.KeyField)
		if !ok {
			s.metrics.MalformedResults.WithLabelValues(string(rt)).Inc()
			s.log.Errorw("rejected result set with unkeyed row", "resource_type", rt, "actor_id", actorID, "row", i, "key_field", rule.KeyField)
			return fail(fmt.Errorf("row %d has no usable %q: %w", i, rule.KeyField, ErrMalformedResult))
		}
		keys[i] = key
	}

	scope, err := s.ResolveScope(ctx, actorID, rt)
	if err != nil {
		s.log.Errorw("scope resolution failed", "resource_type", rt, "actor_id", actorID, "error", err)
		return fail(err)
	}

	out := make([]Record, 0, len(rows))
	for i, row := range rows {
		if scope.Contains(keys[i]) {
			out = append(out, row)
		}
	}

	if dropped := len(rows) - len(out); dropped > 0 {
		s.metrics.FilteredRows.WithLabelValues(string(rt)).Add(float64(dropped))
		s.log.Infow("dropped out-of-scope rows", "resource_type", rt, "actor_id", actorID, "dropped", dropped, "kept", len(out))
	}
	span.SetAttributes(attribute.Int("rbac.rows_in", len(rows)), attribute.Int("rbac.rows_out", len(out)))
	return out, nil
}

// normalizeRows accepts only uniform sequences of keyed records.
func normalizeRows(raw interface{}) ([]Record, error) {
	switch v := raw.(type) {
	case []Record:
		for i, row := range v {
			if row == nil {
				return nil, fmt.Errorf("row %d is null: %w", i, ErrMalformedResult)
			}
		}
		return v, nil
	case []interface{}:
		rows := make([]Record, len(v))
		for i, item := range v {
			row, ok := item.(map[string]interface{})
			if !ok || row == nil {
				return nil, fmt.Errorf("row %d is %T, not a record: %w", i, item, ErrMalformedResult)
			}
			rows[i] = row
		}
		return rows, nil
	case json.RawMessage:
		return decodeRows(v)
	case []byte:
		return decodeRows(v)
	case string:
		return decodeRows([]byte(v))
	default:
		return nil, fmt.Errorf("result of type %T: %w", raw, ErrMalformedResult)
	}
}

func decodeRows(b []byte) ([]Record, error) {
	var items []interface{}
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, fmt.Errorf("not a JSON array: %v: %w", err, ErrMalformedResult)
	}
	if items == nil {
		return nil, fmt.Errorf("null result: %w", ErrMalformedResult)
	}
	return normalizeRows(items)
}

// rowKey extracts a scalar identifier and normalises it to a string, so 5, 5.0,
// "5" and uint(5) compare equal.
func rowKey(row Record, field string) (string, bool) {
	v, ok := row[field]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		if t != float64(int64(t)) {
			return "", false
		}
	case float32:
		if t != float32(int64(t)) {
			return "", false
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
	default:
		return "", false
	}
	key, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	return key, true
}

// employeeScope: HR with view_all_employees sees everyone, anyone else sees
// themselves and their direct reports.
func employeeScope(ctx context.Context, s *RBACService, actorID uint) ([]string, error) {
	g, err := s.loadGrants(ctx, actorID)
	if err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&Employee{})
	if !g.hasRoleAndPermission(RoleHR, PermViewAllEmployees, ResourceEmployees) {
		query = query.Where("id = ? OR manager_id = ?", actorID, actorID)
	}
	var ids []uint
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return uintsToStrings(ids), nil
}

func taskScope(ctx context.Context, s *RBACService, actorID uint) ([]string, error) {
	g, err := s.loadGrants(ctx, actorID)
	if err != nil {
		return nil, err
	}
	query, err := s.taskScopeQuery(ctx, actorID, g)
	if err != nil {
		return nil, err
	}
	var ids []uint
	if err := query.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return uintsToStrings(ids), nil
}

// meetingScope mirrors CanViewMeeting over every meeting at once.
func meetingScope(ctx context.Context, s *RBACService, actorID uint) ([]string, error) {
	g, err := s.loadGrants(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var ids []string
	if g.hasRoleAndPermission(RoleHR, PermViewAllTranscripts, ResourceMeetings) {
		if err := s.db.WithContext(ctx).Model(&Meeting{}).Pluck("id", &ids).Error; err != nil {
			return nil, err
		}
		return ids, nil
	}
	if actorID == 0 {
		return nil, nil
	}

	allowed := map[uint]struct{}{actorID: {}}
	if g.hasRole(RoleManager) {
		subs, err := s.GetSubordinateIDs(ctx, actorID)
		if err != nil {
			return nil, err
		}
		for _, id := range subs {
			allowed[id] = struct{}{}
		}
	}

	var names []string
	if err := s.db.WithContext(ctx).Model(&MeetingTranscript{}).Distinct("name").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	res, err := s.resolveSpeakers(ctx, names)
	if err != nil {
		return nil, err
	}

	var visible []string
	for name, id := range res.Resolved {
		if _, ok := allowed[id]; ok {
			visible = append(visible, name)
		}
	}
	if len(visible) == 0 {
		return nil, nil
	}

	if err := s.db.WithContext(ctx).Model(&MeetingTranscript{}).
		Where("name IN ?", visible).
		Distinct("meeting_id").
		Pluck("meeting_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// teamResourceScope covers per-employee analytics keyed by employee_id.
func teamResourceScope(rt ResourceType, allPerm string) ScopeFunc {
	return func(ctx context.Context, s *RBACService, actorID uint) ([]string, error) {
		g, err := s.loadGrants(ctx, actorID)
		if err != nil {
			return nil, err
		}

		var ids []uint
		if g.hasRoleAndPermission(RoleHR, allPerm, rt) {
			if err := s.db.WithContext(ctx).Model(&Employee{}).Pluck("id", &ids).Error; err != nil {
				return nil, err
			}
			return uintsToStrings(ids), nil
		}
		if actorID == 0 {
			return nil, nil
		}
		if ids, err = s.TeamScope(ctx, actorID); err != nil {
			return nil, err
		}
		return uintsToStrings(ids), nil
	}
}
