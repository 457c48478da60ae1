package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lalith-99/areachat/internal/models"
)

// UserStore reads company members from Postgres.
//
// Schema:
//
//	CREATE TABLE users (
//	    id            text PRIMARY KEY,
//	    company_id    text NOT NULL,
//	    name          text NOT NULL,
//	    email         text NOT NULL UNIQUE,
//	    role          text NOT NULL,
//	    password_hash text NOT NULL,
//	    created_at    timestamptz NOT NULL DEFAULT now()
//	);
type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, company_id, name, email, role, password_hash, created_at`

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return s.one(ctx, query, email)
}

func (s *UserStore) GetByID(ctx context.Context, id models.ID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.one(ctx, query, string(id))
}

func (s *UserStore) one(ctx context.Context, query string, arg any) (*models.User, error) {
	var (
		u         models.User
		id        string
		companyID string
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&id, &companyID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.ID = models.ID(id)
	u.CompanyID = models.ID(companyID)
	return &u, nil
}
