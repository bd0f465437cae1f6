package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/imrysn/kmti-data-management/internal/models"
	"github.com/stretchr/testify/require"
)

func TestListActivity_AdminOnly(t *testing.T) {
	rr := doRequest(t, http.MethodGet, "/api/activity/", testUserToken, nil)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestListActivity_RecordsUploads(t *testing.T) {
	file := uploadTestFile(t, testUserToken, nil)

	rr := doRequest(t, http.MethodGet, "/api/activity/?action=upload&limit=100", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body ActivityListResponse
	decodeBody(t, rr, &body)
	require.NotEmpty(t, body.Logs)
	require.Equal(t, 1, body.CurrentPage)

	var found bool
	for _, entry := range body.Logs {
		require.Equal(t, models.ActionUpload, entry.Action)
		if entry.ResourceID != nil && *entry.ResourceID == file.ID {
			found = true
			require.Equal(t, testUser.ID, entry.UserID)
			require.Equal(t, testUser.Username, entry.Username)
			require.NotNil(t, entry.ResourceType)
			require.Equal(t, models.ResourceFile, *entry.ResourceType)
		}
	}
	require.True(t, found, "upload of file %d not in audit trail", file.ID)
}

func TestListActivity_NewestFirst(t *testing.T) {
	uploadTestFile(t, testUserToken, nil)
	uploadTestFile(t, testUserToken, nil)

	rr := doRequest(t, http.MethodGet, "/api/activity/?limit=50", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body ActivityListResponse
	decodeBody(t, rr, &body)
	require.GreaterOrEqual(t, len(body.Logs), 2)

	for i := 1; i < len(body.Logs); i++ {
		require.False(t, body.Logs[i-1].CreatedAt.Before(body.Logs[i].CreatedAt))
	}
}

func TestListActivity_FilterByUser(t *testing.T) {
	uploadTestFile(t, testUserToken, nil)

	rr := doRequest(t, http.MethodGet,
		fmt.Sprintf("/api/activity/?userId=%d&limit=100", testUser.ID), testAdminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body ActivityListResponse
	decodeBody(t, rr, &body)
	require.NotEmpty(t, body.Logs)
	for _, entry := range body.Logs {
		require.Equal(t, testUser.ID, entry.UserID)
	}
}

func TestListActivity_DateRange(t *testing.T) {
	future := time.Now().Add(24 * time.Hour).Format(time.RFC3339)

	rr := doRequest(t, http.MethodGet, "/api/activity/?startDate="+future, testAdminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body ActivityListResponse
	decodeBody(t, rr, &body)
	require.Empty(t, body.Logs)
	require.Zero(t, body.Total)
}

func TestListActivity_BadParams(t *testing.T) {
	rr := doRequest(t, http.MethodGet, "/api/activity/?userId=abc", testAdminToken, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, http.MethodGet, "/api/activity/?startDate=not-a-date", testAdminToken, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestActivityStats_Defaults(t *testing.T) {
	uploadTestFile(t, testUserToken, nil)

	rr := doRequest(t, http.MethodGet, "/api/activity/stats", testAdminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body ActivityStatsResponse
	decodeBody(t, rr, &body)
	require.Equal(t, "30 days", body.Period)
	require.Positive(t, body.TotalActivities)
	require.NotEmpty(t, body.Stats)

	var sum int64
	for i, entry := range body.Stats {
		sum += entry.Count
		if i > 0 {
			require.LessOrEqual(t, entry.Count, body.Stats[i-1].Count)
		}
	}
	require.Equal(t, body.TotalActivities, sum)
}

func fetchStatsTotal(t *testing.T, days int) int64 {
	t.Helper()

	rr := doRequest(t, http.MethodGet, fmt.Sprintf("/api/activity/stats?days=%d", days), testAdminToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body ActivityStatsResponse
	decodeBody(t, rr, &body)
	require.Equal(t, fmt.Sprintf("%d days", days), body.Period)
	return body.TotalActivities
}

func TestActivityStats_CustomWindow(t *testing.T) {
	before7 := fetchStatsTotal(t, 7)
	before30 := fetchStatsTotal(t, 30)

	// A row from ten days ago sits inside the 30-day window but outside the
	// 7-day one.
	_, err := testPool.Exec(context.Background(),
		`INSERT INTO activity_logs (user_id, action, description, created_at)
		 VALUES ($1, 'logout', 'backdated for window check', now() - interval '10 days')`,
		testUser.ID)
	require.NoError(t, err)

	require.Equal(t, before7, fetchStatsTotal(t, 7))
	require.Equal(t, before30+1, fetchStatsTotal(t, 30))
}

func TestActivityStats_InvalidWindow(t *testing.T) {
	rr := doRequest(t, http.MethodGet, "/api/activity/stats?days=zero", testAdminToken, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, http.MethodGet, "/api/activity/stats?days=-3", testAdminToken, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
