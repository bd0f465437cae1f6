package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/imrysn/kmti-data-management/internal/models"
)

type LogActivityParams struct {
	UserID       int64
	Action       string
	Description  string
	ResourceType *string
	ResourceID   *int64
	IPAddress    *string
	UserAgent    *string
	Metadata     interface{}
}

// LogActivity appends one audit row. Rows are never updated or deleted.
func (q *Queries) LogActivity(ctx context.Context, arg LogActivityParams) error {
	var metadata []byte
	if arg.Metadata != nil {
		var err error
		metadata, err = json.Marshal(arg.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal activity metadata: %w", err)
		}
	}

	query := `
		INSERT INTO activity_logs (
			user_id, action, description, resource_type, resource_id,
			ip_address, user_agent, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.db.Exec(ctx, query,
		arg.UserID,
		arg.Action,
		arg.Description,
		arg.ResourceType,
		arg.ResourceID,
		arg.IPAddress,
		arg.UserAgent,
		metadata,
	)
	return err
}

type ListActivityParams struct {
	Action    string
	UserID    int64
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

const activityListFilter = `
	($1 = '' OR l.action = $1)
	AND ($2 = 0 OR l.user_id = $2)
	AND ($3::timestamptz IS NULL OR l.created_at >= $3)
	AND ($4::timestamptz IS NULL OR l.created_at <= $4)
`

// ListActivity pages through audit rows newest-first, resolving the acting
// user's username and email. Rows whose user has since been deleted still
// appear, with a zero user id and blank identity.
func (q *Queries) ListActivity(ctx context.Context, arg ListActivityParams) ([]models.ActivityLog, error) {
	query := `
		SELECT
			l.id, COALESCE(l.user_id, 0), COALESCE(u.username, ''), COALESCE(u.email, ''),
			l.action, l.description,
			l.resource_type, l.resource_id, l.ip_address, l.user_agent,
			l.metadata, l.created_at
		FROM activity_logs l
		LEFT JOIN users u ON l.user_id = u.id
		WHERE ` + activityListFilter + `
		ORDER BY l.created_at DESC
		LIMIT $5 OFFSET $6
	`
	rows, err := q.db.Query(ctx, query, arg.Action, arg.UserID, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ActivityLog
	for rows.Next() {
		var entry models.ActivityLog
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.Username,
			&entry.Email,
			&entry.Action,
			&entry.Description,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.Metadata,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if logs == nil {
		return []models.ActivityLog{}, nil
	}

	return logs, nil
}

func (q *Queries) CountActivity(ctx context.Context, arg ListActivityParams) (int64, error) {
	query := `
		SELECT count(*)
		FROM activity_logs l
		WHERE ` + activityListFilter
	var total int64
	err := q.db.QueryRow(ctx, query, arg.Action, arg.UserID, arg.StartDate, arg.EndDate).Scan(&total)
	return total, err
}

type ActionCount struct {
	Action string `json:"action"`
	Count  int64  `json:"count"`
}

// GetActivityStats counts rows per action since the given instant, most
// frequent first.
func (q *Queries) GetActivityStats(ctx context.Context, since time.Time) ([]ActionCount, int64, error) {
	query := `
		SELECT action, count(*)
		FROM activity_logs
		WHERE created_at >= $1
		GROUP BY action
		ORDER BY count(*) DESC
	`
	rows, err := q.db.Query(ctx, query, since)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var stats []ActionCount
	var total int64
	for rows.Next() {
		var entry ActionCount
		if err := rows.Scan(&entry.Action, &entry.Count); err != nil {
			return nil, 0, err
		}
		stats = append(stats, entry)
		total += entry.Count
	}

	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	if stats == nil {
		stats = []ActionCount{}
	}

	return stats, total, nil
}
