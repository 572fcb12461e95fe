package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"forexhub/internal/user"
	"forexhub/pkg/db"
)

var ErrDuplicateUser = errors.New("email or phone number already registered")

type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (email, full_name, phone_number, password, is_superuser, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query, u.Email, u.FullName, u.PhoneNumber, u.Password, u.IsSuperuser).
		Scan(&u.ID, &u.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateUser
	}
	return err
}

// GetByEmail returns nil, nil when no user has that email.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	u := &user.User{}
	err := r.db.GetContext(ctx, u,
		`SELECT id, email, full_name, phone_number, password, is_superuser, created_at FROM users WHERE email = $1`,
		email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetByID returns nil, nil when the user does not exist.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u := &user.User{}
	err := r.db.GetContext(ctx, u,
		`SELECT id, email, full_name, phone_number, password, is_superuser, created_at FROM users WHERE id = $1`,
		id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}
