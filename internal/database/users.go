package database

import (
	"context"
	"errors"
	"time"

	"github.com/imrysn/kmti-data-management/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateUser = errors.New("user with this email or username already exists")
	ErrUserHasFiles  = errors.New("user still owns files")
)

const userColumns = `
	id, username, email, password_hash, role, full_name,
	is_active, last_login, created_at, updated_at
`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.FullName,
		&user.IsActive,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Role         string
	FullName     *string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash, role, full_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	row := q.db.QueryRow(ctx, query, arg.Username, arg.Email, arg.PasswordHash, arg.Role, arg.FullName)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}

	return user, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q.db.QueryRow(ctx, query, id))
}

// GetUserByUsernameOrEmail matches either field exactly. Used by the
// registration duplicate check.
func (q *Queries) GetUserByUsernameOrEmail(ctx context.Context, username, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $2`
	return scanUser(q.db.QueryRow(ctx, query, username, email))
}

// GetActiveUserByLogin resolves the login identifier, which may be either a
// username or an email address. Inactive accounts are invisible here.
func (q *Queries) GetActiveUserByLogin(ctx context.Context, login string) (*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE (username = $1 OR email = $1) AND is_active = TRUE
	`
	return scanUser(q.db.QueryRow(ctx, query, login))
}

func (q *Queries) UpdateLastLogin(ctx context.Context, userID int64, at time.Time) error {
	query := `UPDATE users SET last_login = $1, updated_at = now() WHERE id = $2`
	_, err := q.db.Exec(ctx, query, at, userID)
	return err
}

type ListUsersParams struct {
	Search string
	Limit  int
	Offset int
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE $1 = '' OR username ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.db.Query(ctx, query, arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if users == nil {
		return []models.User{}, nil
	}

	return users, nil
}

func (q *Queries) CountUsers(ctx context.Context, search string) (int64, error) {
	query := `
		SELECT count(*) FROM users
		WHERE $1 = '' OR username ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
	`
	var total int64
	err := q.db.QueryRow(ctx, query, search).Scan(&total)
	return total, err
}

// OtherUserWithCredentialsExists reports whether a different user already
// holds the given username or email.
func (q *Queries) OtherUserWithCredentialsExists(ctx context.Context, excludeID int64, username, email string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM users WHERE id <> $1 AND (username = $2 OR email = $3)
		)
	`
	var exists bool
	err := q.db.QueryRow(ctx, query, excludeID, username, email).Scan(&exists)
	return exists, err
}

type UpdateUserParams struct {
	ID       int64
	Username string
	Email    string
	Role     string
	IsActive bool
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (*models.User, error) {
	query := `
		UPDATE users
		SET username = $2, email = $3, role = $4, is_active = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	row := q.db.QueryRow(ctx, query, arg.ID, arg.Username, arg.Email, arg.Role, arg.IsActive)

	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}

	return user, nil
}

func (q *Queries) DeleteUser(ctx context.Context, id int64) (bool, error) {
	query := `DELETE FROM users WHERE id = $1`
	res, err := q.db.Exec(ctx, query, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, ErrUserHasFiles
		}
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (q *Queries) UpdateUserPassword(ctx context.Context, userID int64, newPasswordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`
	_, err := q.db.Exec(ctx, query, newPasswordHash, userID)
	return err
}
