package api

import (
	"net/http"

	"github.com/imrysn/kmti-data-management/internal/database"
	"go.uber.org/zap"
)

// recordActivity appends one audit row for a mutating action. The write is
// best-effort: a failed audit insert is logged and never fails the request
// that triggered it.
func (s *Server) recordActivity(r *http.Request, userID int64, action, description string, resourceType string, resourceID *int64, metadata interface{}) {
	ip := r.RemoteAddr
	userAgent := r.UserAgent()

	params := database.LogActivityParams{
		UserID:      userID,
		Action:      action,
		Description: description,
		ResourceID:  resourceID,
		IPAddress:   &ip,
		Metadata:    metadata,
	}
	if resourceType != "" {
		params.ResourceType = &resourceType
	}
	if userAgent != "" {
		params.UserAgent = &userAgent
	}

	if err := s.store.LogActivity(r.Context(), params); err != nil {
		s.logger.Warn("failed to record activity",
			zap.String("action", action),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}
