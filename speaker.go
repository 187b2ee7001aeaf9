package rbac

import (
	"context"
	"sort"

	"gorm.io/gorm"
)

// SpeakerResolution maps transcript speaker labels to employees.
// Labels that match no employee, or more than one, are listed as unidentified
// and never attributed to anybody.
type SpeakerResolution struct {
	Resolved     map[string]uint
	Unidentified []string
}

// EmployeeIDs returns the distinct resolved employee ids.
func (r SpeakerResolution) EmployeeIDs() map[uint]struct{} {
	ids := make(map[uint]struct{}, len(r.Resolved))
	for _, id := range r.Resolved {
		ids[id] = struct{}{}
	}
	return ids
}

// SpeakerResolver turns free-text speaker labels into employee ids.
type SpeakerResolver interface {
	ResolveSpeakers(ctx context.Context, names []string) (SpeakerResolution, error)
}

// ExactNameResolver matches labels to Employee.Name verbatim.
type ExactNameResolver struct {
	db *gorm.DB
}

// NewExactNameResolver returns a resolver backed by the employees table.
func NewExactNameResolver(db *gorm.DB) *ExactNameResolver {
	return &ExactNameResolver{db: db}
}

// ResolveSpeakers implements SpeakerResolver.
func (r *ExactNameResolver) ResolveSpeakers(ctx context.Context, names []string) (SpeakerResolution, error) {
	res := SpeakerResolution{Resolved: make(map[string]uint)}
	uniq := dedupeStrings(names)
	if len(uniq) == 0 {
		return res, nil
	}

	var rows []struct {
		ID   uint
		Name string
	}
	if err := r.db.WithContext(ctx).Model(&Employee{}).
		Select("id, name").
		Where("name IN ?", uniq).
		Scan(&rows).Error; err != nil {
		return res, err
	}

	matches := make(map[string][]uint, len(rows))
	for _, row := range rows {
		matches[row.Name] = append(matches[row.Name], row.ID)
	}
	for _, name := range uniq {
		if ids := matches[name]; len(ids) == 1 {
			res.Resolved[name] = ids[0]
			continue
		}
		res.Unidentified = append(res.Unidentified, name)
	}
	return res, nil
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
