package rbac

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// BulkResourceID is logged for decisions that do not target one record.
const BulkResourceID = "0"

// logAccess appends exactly one AccessLog row for a decision. A failed insert is
// logged and counted but never changes the decision.
func (s *RBACService) logAccess(ctx context.Context, empID uint, rt ResourceType, resourceID, action string, success bool) {
	s.metrics.Decisions.WithLabelValues(string(rt), outcomeLabel(success)).Inc()

	entry := &AccessLog{
		EmployeeID:   empID,
		ResourceType: rt,
		ResourceID:   resourceID,
		Action:       action,
		Timestamp:    time.Now().UTC(),
		Success:      success,
	}
	// A cancelled request context must not drop the audit row.
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(entry).Error; err != nil {
		s.metrics.AuditWriteFailures.Inc()
		s.log.Warnw("failed to record access log",
			"employee_id", empID,
			"resource_type", rt,
			"resource_id", resourceID,
			"action", action,
			"success", success,
			"error", err,
		)
	}
}

// AccessLogFilter narrows ListAccessLogs. Zero values are ignored.
type AccessLogFilter struct {
	EmployeeID   *uint
	ResourceType ResourceType
	Action       string
	Success      *bool
	Since        *time.Time
	Until        *time.Time
	Limit        int
}

// ListAccessLogs retrieves audit rows, newest first.
func (s *RBACService) ListAccessLogs(ctx context.Context, f AccessLogFilter) ([]AccessLog, error) {
	query := s.db.WithContext(ctx).Model(&AccessLog{}).Order("timestamp DESC, id DESC")
	if f.EmployeeID != nil {
		query = query.Where("employee_id = ?", *f.EmployeeID)
	}
	if f.ResourceType != "" {
		query = query.Where("resource_type = ?", f.ResourceType)
	}
	if f.Action != "" {
		query = query.Where("action = ?", f.Action)
	}
	if f.Success != nil {
		query = query.Where("success = ?", *f.Success)
	}
	if f.Since != nil {
		query = query.Where("timestamp >= ?", *f.Since)
	}
	if f.Until != nil {
		query = query.Where("timestamp <= ?", *f.Until)
	}
	if f.Limit > 0 {
		query = query.Limit(f.Limit)
	}

	var logs []AccessLog
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// GetAccessLog retrieves an audit row by ID.
func (s *RBACService) GetAccessLog(ctx context.Context, id uint) (*AccessLog, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}

	var entry AccessLog
	if err := s.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}
