package rbac

import (
	"context"
	"fmt"
	"sort"
)

// AuthorizedScope is the set of record identifiers an actor may see for one
// resource type. It is always recomputed from the store, never taken from the
// request being filtered.
type AuthorizedScope struct {
	ResourceType ResourceType
	IDs          map[string]struct{}
}

func newAuthorizedScope(rt ResourceType, ids []string) *AuthorizedScope {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &AuthorizedScope{ResourceType: rt, IDs: set}
}

// Contains reports whether id is in scope.
func (a *AuthorizedScope) Contains(id string) bool {
	_, ok := a.IDs[id]
	return ok
}

// Len is the number of identifiers in scope.
func (a *AuthorizedScope) Len() int {
	return len(a.IDs)
}

// Sorted returns the identifiers in ascending string order.
func (a *AuthorizedScope) Sorted() []string {
	out := make([]string, 0, len(a.IDs))
	for id := range a.IDs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ResolveScope computes the actor's scope for rt using the registered filter rule.
func (s *RBACService) ResolveScope(ctx context.Context, actorID uint, rt ResourceType) (*AuthorizedScope, error) {
	rule, ok := s.filterRule(rt)
	if !ok {
		return nil, fmt.Errorf("%s: %w", rt, ErrNoFilterRule)
	}

	ctx, _, err := s.decide(ctx, actorID)
	if err != nil {
		return nil, err
	}
	ids, err := rule.Scope(ctx, s, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s scope: %w", rt, err)
	}
	return newAuthorizedScope(rt, ids), nil
}

func uintsToStrings(ids []uint) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = idString(id)
	}
	return out
}
