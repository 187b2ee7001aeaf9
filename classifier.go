package rbac

import "strings"

// Intent is the (resource type, permission) pair a query needs.
type Intent struct {
	ResourceType ResourceType `json:"resource_type"`
	Permission   string       `json:"permission"`
}

// IntentClassifier maps free text to an Intent. ok is false when nothing matched;
// callers must then reject the query rather than guess.
type IntentClassifier interface {
	Classify(text string) (intent Intent, ok bool)
}

type phraseRule struct {
	phrases    []string
	permission string
}

type intentRule struct {
	resource ResourceType
	triggers []string
	refine   []phraseRule
	fallback string
}

// KeywordClassifier is a rule-based classifier: the first rule whose trigger
// appears in the lower-cased text wins, then the first matching refinement
// picks the permission.
type KeywordClassifier struct {
	rules []intentRule
}

// NewKeywordClassifier returns the stock rule set.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{rules: []intentRule{
		{
			resource: ResourceTasks,
			triggers: []string{"task"},
			refine: []phraseRule{
				{phrases: []string{"my tasks"}, permission: PermViewOwnTasks},
				{phrases: []string{"team tasks"}, permission: PermViewTeamTasks},
				{phrases: []string{"create task", "add task", "assign task"}, permission: PermAssignTasks},
			},
			fallback: PermViewOwnTasks,
		},
		{
			resource: ResourceMeetings,
			triggers: []string{"meeting", "transcript"},
			fallback: PermViewOwnTranscripts,
		},
		{
			resource: ResourceEmployees,
			triggers: []string{"employee", "team members"},
			refine: []phraseRule{
				{phrases: []string{"all employees", "list employees"}, permission: PermViewAllEmployees},
				{phrases: []string{"my team", "team members"}, permission: PermViewTeamEmployees},
			},
			fallback: PermViewOwnEmployee,
		},
		{
			resource: ResourcePerformance,
			triggers: []string{"performance", "sentiment"},
			fallback: PermViewOwnPerformance,
		},
		{
			resource: ResourceRecommendations,
			triggers: []string{"recommendation", "skill"},
			fallback: PermViewOwnRecommendations,
		},
	}}
}

// Classify implements IntentClassifier.
func (c *KeywordClassifier) Classify(text string) (Intent, bool) {
	text = strings.ToLower(text)
	for _, rule := range c.rules {
		if !containsAny(text, rule.triggers) {
			continue
		}
		perm := rule.fallback
		for _, r := range rule.refine {
			if containsAny(text, r.phrases) {
				perm = r.permission
				break
			}
		}
		return Intent{ResourceType: rule.resource, Permission: perm}, true
	}
	return Intent{}, false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
