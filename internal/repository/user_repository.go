package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/kdelmo1/sano-server/internal/model"
	"github.com/kdelmo1/sano-server/internal/utils"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")
var ErrHandleExists = errors.New("handle already taken")

// Create inserts a user and returns its ID.  Emails are stored lowercased;
// handles keep their case but are unique case-insensitively at the schema.
func (r *UserRepo) Create(ctx context.Context, email, handle, password, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	handle = strings.TrimSpace(handle)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, handle, password_hash, role) VALUES (?,?,?,?)",
		email, handle, hash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			if strings.Contains(err.Error(), "handle") {
				return 0, ErrHandleExists
			}
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,handle,password_hash,role,is_active,created_at,updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.Handle, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,handle,password_hash,role,is_active,created_at,updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.Handle, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByHandle fetches a user by their public handle.  Returns
// ErrUserNotFound when no such handle exists.
func (r *UserRepo) GetByHandle(ctx context.Context, handle string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,handle,password_hash,role,is_active,created_at,updated_at FROM users WHERE handle=? LIMIT 1",
		strings.TrimSpace(handle)).Scan(&u.ID, &u.Email, &u.Handle, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrUserNotFound
	}
	return u, err
}
