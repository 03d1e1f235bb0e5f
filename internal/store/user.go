package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/remembernow/agentd/internal/domain"
)

type UserStore struct {
	db *pgxpool.Pool
}

func NewUserStore(db *pgxpool.Pool) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO users (email) VALUES ($1)
		 RETURNING id, created_at, updated_at`,
		u.Email,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(ctx,
		`SELECT id, email, agent_id, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.AgentID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(ctx,
		`SELECT id, email, agent_id, created_at, updated_at
		 FROM users WHERE email = $1`,
		email,
	).Scan(&u.ID, &u.Email, &u.AgentID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *UserStore) List(ctx context.Context, opts domain.ListUsersOpts) ([]domain.User, int, error) {
	pattern := "%" + opts.Search + "%"

	var total int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM users WHERE ($1 = '' OR email ILIKE $2)`,
		opts.Search, pattern,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	offset := (opts.Page - 1) * opts.Limit
	rows, err := s.db.Query(ctx,
		`SELECT id, email, agent_id, created_at, updated_at
		 FROM users
		 WHERE ($1 = '' OR email ILIKE $2)
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		opts.Search, pattern, opts.Limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.AgentID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (s *UserStore) UpdateEmail(ctx context.Context, id int64, email string) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRow(ctx,
		`UPDATE users SET email = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING id, email, agent_id, created_at, updated_at`,
		id, email,
	).Scan(&u.ID, &u.Email, &u.AgentID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, err
	}
	return u, nil
}

func (s *UserStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) UpdateAgentID(ctx context.Context, id int64, agentID *string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET agent_id = $2, updated_at = now() WHERE id = $1`,
		id, agentID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimAgentID writes the linkage only when no agent is linked yet, making
// provisioning atomic across processes. Returns false when another writer
// already set a value, ErrNotFound when the user row is gone.
func (s *UserStore) ClaimAgentID(ctx context.Context, id int64, agentID string) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET agent_id = $2, updated_at = now()
		 WHERE id = $1 AND agent_id IS NULL`,
		id, agentID,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	// Distinguish "lost the race" from "user gone".
	var exists bool
	if err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}
