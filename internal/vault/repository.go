package vault

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

// Repository persists vault records. Create and Update fail with
// ErrAlreadyExists when the owner already holds another vault; lookups fail
// with ErrNotFound.
type Repository interface {
	Create(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	GetByOwner(ctx context.Context, owner string) (Record, error)
	Update(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id string) error
}

// PostgresRepository stores vaults in PostgreSQL. Balances live in a
// NUMERIC(20,0) column so the full uint64 range round-trips.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a vault record.
func (r *PostgresRepository) Create(ctx context.Context, rec Record) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO vaults (id, owner, balance, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)`, id, rec.Owner, toNumeric(rec.Balance), rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	return mapWriteError(err)
}

// Get fetches a vault by identifier.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Record, error) {
	vaultID, err := uuid.Parse(id)
	if err != nil {
		return Record{}, ErrNotFound
	}
	return scanRecord(r.db.QueryRow(ctx, `SELECT id, owner, balance, created_at, updated_at
        FROM vaults WHERE id = $1`, vaultID))
}

// GetByOwner fetches the vault owned by owner.
func (r *PostgresRepository) GetByOwner(ctx context.Context, owner string) (Record, error) {
	return scanRecord(r.db.QueryRow(ctx, `SELECT id, owner, balance, created_at, updated_at
        FROM vaults WHERE owner = $1`, owner))
}

// Update writes balance and owner of an existing vault.
func (r *PostgresRepository) Update(ctx context.Context, rec Record) error {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `UPDATE vaults SET owner = $1, balance = $2, updated_at = $3 WHERE id = $4`,
		rec.Owner, toNumeric(rec.Balance), rec.UpdatedAt.UTC(), id)
	if err != nil {
		return mapWriteError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the vault.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	vaultID, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	cmd, err := r.db.Exec(ctx, `DELETE FROM vaults WHERE id = $1`, vaultID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		id        uuid.UUID
		rec       Record
		balance   decimal.Decimal
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &rec.Owner, &balance, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	amount, err := fromNumeric(balance)
	if err != nil {
		return Record{}, err
	}
	rec.ID = id.String()
	rec.Balance = amount
	rec.CreatedAt = createdAt.UTC()
	rec.UpdatedAt = updatedAt.UTC()
	return rec, nil
}

func toNumeric(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func fromNumeric(d decimal.Decimal) (uint64, error) {
	if d.IsNegative() || !d.IsInteger() {
		return 0, fmt.Errorf("stored balance %s is not a valid amount", d)
	}
	n := d.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("stored balance %s: %w", d, ErrOverflow)
	}
	return n.Uint64(), nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	return err
}
