package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/imrysn/kmti-data-management/internal/database"
	"github.com/imrysn/kmti-data-management/internal/models"
)

type ActivityListResponse struct {
	Logs        []models.ActivityLog `json:"logs"`
	TotalPages  int64                `json:"totalPages"`
	CurrentPage int                  `json:"currentPage"`
	Total       int64                `json:"total"`
}

type ActivityStatsResponse struct {
	Stats           []database.ActionCount `json:"stats"`
	TotalActivities int64                  `json:"totalActivities"`
	Period          string                 `json:"period"`
}

func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", raw)
}

// @Summary      List activity logs
// @Description  Admin only. Filterable by action, acting user and creation-date range; newest first.
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        page       query     int     false  "Page number (default 1)"
// @Param        limit      query     int     false  "Page size (default 20)"
// @Param        action     query     string  false  "Audit action"
// @Param        userId     query     int     false  "Acting user ID"
// @Param        startDate  query     string  false  "RFC 3339 or YYYY-MM-DD"
// @Param        endDate    query     string  false  "RFC 3339 or YYYY-MM-DD"
// @Success      200        {object}  ActivityListResponse
// @Failure      400        {object}  map[string]string
// @Failure      403        {object}  map[string]string
// @Router       /activity [get]
func (s *Server) ListActivityHandler(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := parsePagination(r, 20)
	query := r.URL.Query()

	var userID int64
	if raw := query.Get("userId"); raw != "" {
		parsed, ok := parseIDParam(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "Invalid 'userId' parameter")
			return
		}
		userID = parsed
	}

	startDate, err := parseDateParam(query.Get("startDate"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'startDate' parameter")
		return
	}
	endDate, err := parseDateParam(query.Get("endDate"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid 'endDate' parameter")
		return
	}

	params := database.ListActivityParams{
		Action:    query.Get("action"),
		UserID:    userID,
		StartDate: startDate,
		EndDate:   endDate,
		Limit:     limit,
		Offset:    offset,
	}

	logs, err := s.store.ListActivity(r.Context(), params)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	total, err := s.store.CountActivity(r.Context(), params)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ActivityListResponse{
		Logs:        logs,
		TotalPages:  totalPages(total, limit),
		CurrentPage: page,
		Total:       total,
	})
}

// @Summary      Activity statistics
// @Description  Admin only. Counts activities per action over a lookback window (default 30 days), most frequent first.
// @Tags         activity
// @Produce      json
// @Security     BearerAuth
// @Param        days  query     int  false  "Lookback window in days (default 30)"
// @Success      200   {object}  ActivityStatsResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /activity/stats [get]
func (s *Server) ActivityStatsHandler(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid 'days' parameter, must be a positive number")
			return
		}
		days = parsed
	}

	since := time.Now().AddDate(0, 0, -days)

	stats, total, err := s.store.GetActivityStats(r.Context(), since)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ActivityStatsResponse{
		Stats:           stats,
		TotalActivities: total,
		Period:          fmt.Sprintf("%d days", days),
	})
}
