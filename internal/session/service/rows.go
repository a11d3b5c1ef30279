package service

import (
	"time"

	"travel-planner/backend/internal/session/domain"
	"travel-planner/backend/internal/store"
)

// rowFromSession maps the session to its storage row. Optional context fields
// are NULL when absent.
func rowFromSession(s *domain.UserSession) store.Row {
	deviceInfo := s.DeviceInfo
	if deviceInfo == nil {
		deviceInfo = map[string]any{}
	}
	locationInfo := s.LocationInfo
	if locationInfo == nil {
		locationInfo = map[string]any{}
	}
	var endedAt any
	if s.EndedAt != nil {
		endedAt = s.EndedAt.UTC()
	}
	return store.Row{
		"id":               s.ID,
		"user_id":          s.UserID,
		"session_token":    s.TokenHash,
		"ip_address":       nullable(s.IPAddress),
		"user_agent":       nullable(s.UserAgent),
		"device_info":      deviceInfo,
		"location_info":    locationInfo,
		"is_active":        s.IsActive,
		"created_at":       s.CreatedAt.UTC(),
		"expires_at":       s.ExpiresAt.UTC(),
		"last_activity_at": s.LastActivityAt.UTC(),
		"ended_at":         endedAt,
	}
}

// sessionFromRow rebuilds a session from a storage row.
func sessionFromRow(r store.Row) *domain.UserSession {
	s := &domain.UserSession{
		ID:             rowString(r, "id"),
		UserID:         rowString(r, "user_id"),
		TokenHash:      rowString(r, "session_token"),
		IPAddress:      rowString(r, "ip_address"),
		UserAgent:      rowString(r, "user_agent"),
		DeviceInfo:     rowMap(r, "device_info"),
		LocationInfo:   rowMap(r, "location_info"),
		IsActive:       rowBool(r, "is_active"),
		CreatedAt:      rowTime(r, "created_at"),
		ExpiresAt:      rowTime(r, "expires_at"),
		LastActivityAt: rowTime(r, "last_activity_at"),
	}
	if t, ok := r["ended_at"].(time.Time); ok {
		t = t.UTC()
		s.EndedAt = &t
	}
	return s
}

func rowString(r store.Row, column string) string {
	if v, ok := r[column].(string); ok {
		return v
	}
	return ""
}

func rowBool(r store.Row, column string) bool {
	if v, ok := r[column].(bool); ok {
		return v
	}
	return false
}

func rowTime(r store.Row, column string) time.Time {
	if v, ok := r[column].(time.Time); ok {
		return v.UTC()
	}
	return time.Time{}
}

func rowMap(r store.Row, column string) map[string]any {
	if v, ok := r[column].(map[string]any); ok {
		return v
	}
	return nil
}
