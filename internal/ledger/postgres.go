package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// PostgresLedger persists ledger entries in PostgreSQL ensuring double-entry balance.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT a.id, COALESCE(SUM(e.amount), 0)
        FROM accounts a
        LEFT JOIN entries e ON e.account_id = a.id
        WHERE a.code = $1
        GROUP BY a.id`
	var (
		id      uuid.UUID
		balance int64
	)
	if err := l.db.QueryRow(ctx, query, code).Scan(&id, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return 0, err
	}
	return balance, nil
}

// Transfer records every leg of the posting inside one database transaction.
// Account rows are locked in code order so concurrent postings cannot deadlock.
func (l *PostgresLedger) Transfer(ctx context.Context, p Posting) (TransactionResult, error) {
	legs, codes, err := validateLegs(p)
	if err != nil {
		return TransactionResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransactionResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	ids := make(map[string]uuid.UUID, len(codes))
	for _, code := range codes {
		id, err := accountIDForCode(ctx, tx, code)
		if err != nil {
			return TransactionResult{}, err
		}
		ids[code] = id
	}

	const existingTxQuery = `SELECT id FROM transactions WHERE client_tx_id = $1 AND kind = $2`
	var existingTxID uuid.UUID
	if err := tx.QueryRow(ctx, existingTxQuery, p.ClientTxID, p.Kind).Scan(&existingTxID); err == nil {
		balances, balErr := balancesFor(ctx, tx, ids)
		if balErr != nil {
			return TransactionResult{}, balErr
		}
		return TransactionResult{TransactionID: existingTxID.String(), Balances: balances}, ErrDuplicateTransaction
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return TransactionResult{}, err
	}

	next, err := balancesFor(ctx, tx, ids)
	if err != nil {
		return TransactionResult{}, err
	}
	if err := applyLegs(next, legs); err != nil {
		return TransactionResult{}, err
	}

	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, client_tx_id, kind, status) VALUES ($1, $2, $3, $4)`,
		txID, p.ClientTxID, p.Kind, statusForKind(p.Kind)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return TransactionResult{}, ErrDuplicateTransaction
		}
		return TransactionResult{}, err
	}

	for _, leg := range legs {
		amount := int64(leg.Amount)
		if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`,
			uuid.New(), txID, ids[leg.From], -amount); err != nil {
			return TransactionResult{}, err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`,
			uuid.New(), txID, ids[leg.To], amount); err != nil {
			return TransactionResult{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return TransactionResult{}, err
	}

	return TransactionResult{TransactionID: txID.String(), Balances: next}, nil
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrAccountNotFound, code)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balancesFor(ctx context.Context, tx pgx.Tx, ids map[string]uuid.UUID) (map[string]int64, error) {
	out := make(map[string]int64, len(ids))
	for code, id := range ids {
		bal, err := balanceForAccount(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out[code] = bal
	}
	return out, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return balance, nil
}
