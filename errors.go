package rbac

import "errors"

// Custom errors
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("resource not found")
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnclassifiedQuery means a free-text query matched no intent rule.
	ErrUnclassifiedQuery = errors.New("query not understood")
	// ErrUpstreamFetch wraps failures of the external record fetcher.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
	// ErrMalformedResult is returned when rows cannot be safely filtered.
	ErrMalformedResult = errors.New("malformed upstream result")
	// ErrNoFilterRule is a configuration error: the resource type has no registered filter rule.
	ErrNoFilterRule = errors.New("no filter rule registered for resource type")
	// ErrAuditImmutable is returned by the ORM hooks when an access log row is updated or deleted.
	ErrAuditImmutable = errors.New("access log rows are write-once")
)
