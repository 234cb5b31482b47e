package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists users.
type Repository interface {
	Create(ctx context.Context, user User) error
	FindByHandle(ctx context.Context, handle string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	UpdateDevice(ctx context.Context, id, deviceID string) error
	UpdateTokenVersion(ctx context.Context, id string, version int) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectUser = `SELECT id, handle, pin_hash, device_id, token_version, created_at, last_login FROM users`

// Create inserts a new user.
func (r *PostgresRepository) Create(ctx context.Context, user User) error {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO users (id, handle, pin_hash, device_id, token_version, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`, userID, user.Handle, user.PINHash, user.DeviceID, user.TokenVersion, user.CreatedAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrExists
	}
	return err
}

// FindByHandle fetches a user by handle.
func (r *PostgresRepository) FindByHandle(ctx context.Context, handle string) (User, error) {
	return scanUser(r.db.QueryRow(ctx, selectUser+` WHERE handle = $1`, handle))
}

// FindByID fetches a user by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return User{}, ErrNotFound
	}
	return scanUser(r.db.QueryRow(ctx, selectUser+` WHERE id = $1`, userID))
}

// UpdateDevice stores the user's bound device identifier.
func (r *PostgresRepository) UpdateDevice(ctx context.Context, id, deviceID string) error {
	return r.exec(ctx, `UPDATE users SET device_id = $1 WHERE id = $2`, id, deviceID)
}

// UpdateTokenVersion sets the version embedded in newly issued tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	return r.exec(ctx, `UPDATE users SET token_version = $1 WHERE id = $2`, id, version)
}

// TouchLogin records a successful login.
func (r *PostgresRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, id, at.UTC())
}

func (r *PostgresRepository) exec(ctx context.Context, query, id string, value any) error {
	userID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, query, value, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		lastLogin *time.Time
		user      User
	)
	if err := row.Scan(&id, &user.Handle, &user.PINHash, &user.DeviceID, &user.TokenVersion, &createdAt, &lastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.ID = id.String()
	user.CreatedAt = createdAt.UTC()
	if lastLogin != nil {
		t := lastLogin.UTC()
		user.LastLogin = &t
	}
	return user, nil
}
