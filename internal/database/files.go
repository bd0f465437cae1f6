package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/imrysn/kmti-data-management/internal/models"
	"github.com/jackc/pgx/v5"
)

const fileColumns = `
	f.id, f.filename, f.original_name, f.file_path, f.file_size, f.mime_type,
	f.uploaded_by, f.description, f.tags, f.version, f.project,
	f.is_active, f.download_count, f.created_at, f.updated_at,
	u.id, u.username, u.email
`

// Sort keys accepted by ListFiles, keyed by their JSON names.
var fileSortColumns = map[string]string{
	"createdAt":     "f.created_at",
	"originalName":  "f.original_name",
	"fileSize":      "f.file_size",
	"downloadCount": "f.download_count",
	"updatedAt":     "f.updated_at",
}

func scanFile(row pgx.Row) (*models.File, error) {
	var file models.File
	var uploader models.Uploader
	err := row.Scan(
		&file.ID,
		&file.Filename,
		&file.OriginalName,
		&file.FilePath,
		&file.FileSize,
		&file.MimeType,
		&file.UploadedBy,
		&file.Metadata.Description,
		&file.Metadata.Tags,
		&file.Metadata.Version,
		&file.Metadata.Project,
		&file.IsActive,
		&file.DownloadCount,
		&file.CreatedAt,
		&file.UpdatedAt,
		&uploader.ID,
		&uploader.Username,
		&uploader.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if file.Metadata.Tags == nil {
		file.Metadata.Tags = []string{}
	}
	file.Uploader = &uploader
	return &file, nil
}

type CreateFileParams struct {
	Filename     string
	OriginalName string
	FilePath     string
	FileSize     int64
	MimeType     string
	UploadedBy   int64
	Description  string
	Tags         []string
	Version      string
	Project      string
}

func (q *Queries) CreateFile(ctx context.Context, arg CreateFileParams) (*models.File, error) {
	if arg.Tags == nil {
		arg.Tags = []string{}
	}
	query := `
		WITH inserted AS (
			INSERT INTO files (
				filename, original_name, file_path, file_size, mime_type,
				uploaded_by, description, tags, version, project
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING *
		)
		SELECT ` + fileColumns + `
		FROM inserted f
		JOIN users u ON f.uploaded_by = u.id
	`
	row := q.db.QueryRow(ctx, query,
		arg.Filename,
		arg.OriginalName,
		arg.FilePath,
		arg.FileSize,
		arg.MimeType,
		arg.UploadedBy,
		arg.Description,
		arg.Tags,
		arg.Version,
		arg.Project,
	)

	file, err := scanFile(row)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, errors.New("insert returned no row")
	}
	return file, nil
}

// GetFileByID returns the file with its uploader resolved, or nil when the
// row is missing or soft-deleted.
func (q *Queries) GetFileByID(ctx context.Context, id int64) (*models.File, error) {
	query := `
		SELECT ` + fileColumns + `
		FROM files f
		JOIN users u ON f.uploaded_by = u.id
		WHERE f.id = $1 AND f.is_active = TRUE
	`
	return scanFile(q.db.QueryRow(ctx, query, id))
}

type ListFilesParams struct {
	// OwnerID scopes the listing to one uploader; zero lists all owners.
	OwnerID   int64
	Search    string
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

const fileListFilter = `
	f.is_active = TRUE
	AND ($1 = 0 OR f.uploaded_by = $1)
	AND ($2 = '' OR
		f.original_name ILIKE '%' || $2 || '%' OR
		f.description ILIKE '%' || $2 || '%' OR
		f.project ILIKE '%' || $2 || '%' OR
		array_to_string(f.tags, ' ') ILIKE '%' || $2 || '%')
`

// ListFiles pages through active files. Search is a case-insensitive
// substring match over name, description, project and tags; there is no
// relevance ranking.
func (q *Queries) ListFiles(ctx context.Context, arg ListFilesParams) ([]models.File, error) {
	sortColumn, ok := fileSortColumns[arg.SortBy]
	if !ok {
		sortColumn = "f.created_at"
	}
	direction := "DESC"
	if arg.SortOrder == "asc" {
		direction = "ASC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM files f
		JOIN users u ON f.uploaded_by = u.id
		WHERE %s
		ORDER BY %s %s
		LIMIT $3 OFFSET $4
	`, fileColumns, fileListFilter, sortColumn, direction)

	rows, err := q.db.Query(ctx, query, arg.OwnerID, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []models.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, *file)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if files == nil {
		return []models.File{}, nil
	}

	return files, nil
}

func (q *Queries) CountFiles(ctx context.Context, ownerID int64, search string) (int64, error) {
	query := `SELECT count(*) FROM files f WHERE ` + fileListFilter
	var total int64
	err := q.db.QueryRow(ctx, query, ownerID, search).Scan(&total)
	return total, err
}

type UpdateFileMetadataParams struct {
	ID          int64
	Description *string
	Tags        []string
	Version     *string
	Project     *string
}

// UpdateFileMetadata merges the supplied fields over the stored metadata;
// nil fields keep their previous value.
func (q *Queries) UpdateFileMetadata(ctx context.Context, arg UpdateFileMetadataParams) (*models.File, error) {
	query := `
		WITH updated AS (
			UPDATE files
			SET description = COALESCE($2, description),
				tags = COALESCE($3, tags),
				version = COALESCE($4, version),
				project = COALESCE($5, project),
				updated_at = now()
			WHERE id = $1 AND is_active = TRUE
			RETURNING *
		)
		SELECT ` + fileColumns + `
		FROM updated f
		JOIN users u ON f.uploaded_by = u.id
	`
	row := q.db.QueryRow(ctx, query, arg.ID, arg.Description, arg.Tags, arg.Version, arg.Project)
	return scanFile(row)
}

// SoftDeleteFile hides the file from every listing and download without
// touching the on-disk artifact.
func (q *Queries) SoftDeleteFile(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE files SET is_active = FALSE, updated_at = now() WHERE id = $1 AND is_active = TRUE`
	res, err := q.db.Exec(ctx, query, id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// BulkDeleteFiles soft-deletes every currently-active file in ids and
// returns how many rows changed. Already-inactive ids are not counted.
func (q *Queries) BulkDeleteFiles(ctx context.Context, ids []int64) (int64, error) {
	query := `UPDATE files SET is_active = FALSE, updated_at = now() WHERE id = ANY($1) AND is_active = TRUE`
	res, err := q.db.Exec(ctx, query, ids)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (q *Queries) IncrementDownloadCount(ctx context.Context, id int64) error {
	query := `UPDATE files SET download_count = download_count + 1 WHERE id = $1`
	_, err := q.db.Exec(ctx, query, id)
	return err
}
