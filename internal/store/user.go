package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/zqadmin/ojadmin/types"
)

var userColumns = []string{"id", "username", "email", "name", "role", "is_active", "password_hash", "created_at", "updated_at"}

// UserRepository handles persistence for users.
type UserRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	return r.getBy(ctx, sq.Eq{"id": id})
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	return r.getBy(ctx, sq.Eq{"username": username})
}

func (r *UserRepository) getBy(ctx context.Context, where sq.Eq) (types.User, error) {
	query, args, err := r.builder.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return types.User{}, err
	}

	var user types.User
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Name,
		&user.Role,
		&user.IsActive,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query, args, err := r.builder.
		Insert("users").
		Columns("username", "email", "name", "role", "is_active", "password_hash", "created_at", "updated_at").
		Values(user.Username, user.Email, user.Name, user.Role, user.IsActive, user.PasswordHash, user.CreatedAt, user.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return types.User{}, err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&user.ID); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// SetRole changes the role of the named user.
func (r *UserRepository) SetRole(ctx context.Context, username, role string) error {
	return r.update(ctx, username, "role", role)
}

// SetActive enables or disables the named user.
func (r *UserRepository) SetActive(ctx context.Context, username string, active bool) error {
	return r.update(ctx, username, "is_active", active)
}

func (r *UserRepository) update(ctx context.Context, username, column string, value any) error {
	query, args, err := r.builder.
		Update("users").
		Set(column, value).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
