package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/congo-pay/vault_ledger/internal/audit"
	"github.com/congo-pay/vault_ledger/internal/fee"
	"github.com/congo-pay/vault_ledger/internal/ledger"
	"github.com/congo-pay/vault_ledger/internal/lock"
	"github.com/congo-pay/vault_ledger/internal/logging"
)

const reverseTimeout = 10 * time.Second

// Options holds the collaborators of a Service. Nil fields fall back to the
// 1% fee policy, an in-process lock, a logging audit sink and a silent logger.
type Options struct {
	Fees             fee.Policy
	Sink             audit.Sink
	Locker           lock.Locker
	Logger           *slog.Logger
	DefaultCollector string
}

// Service runs the vault state machine: every mutation is validated, backed by
// one atomic ledger posting, persisted, then reported to the audit sink.
type Service struct {
	repo             Repository
	ledger           ledger.Ledger
	fees             fee.Policy
	sink             audit.Sink
	locker           lock.Locker
	logger           *slog.Logger
	defaultCollector string
	now              func() time.Time
}

// NewService builds a vault service instance.
func NewService(repo Repository, ledger ledger.Ledger, opts Options) *Service {
	s := &Service{
		repo:             repo,
		ledger:           ledger,
		fees:             opts.Fees,
		sink:             opts.Sink,
		locker:           opts.Locker,
		logger:           opts.Logger,
		defaultCollector: strings.TrimSpace(opts.DefaultCollector),
		now:              func() time.Time { return time.Now().UTC() },
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.fees == nil {
		s.fees = fee.Default()
	}
	if s.sink == nil {
		s.sink = audit.NewLoggerSink(s.logger)
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	return s
}

// Init creates an empty vault owned by caller.
func (s *Service) Init(ctx context.Context, caller string) (Record, error) {
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return Record{}, ErrInvalidOwner
	}

	if _, err := s.repo.GetByOwner(ctx, caller); err == nil {
		return Record{}, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}

	now := s.now()
	rec := Record{
		ID:        uuid.NewString(),
		Owner:     caller,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.ledger.EnsureAccount(ctx, ledger.OwnerAccount(caller)); err != nil {
		return Record{}, fmt.Errorf("ensure owner account: %w", err)
	}
	if err := s.ledger.EnsureAccount(ctx, ledger.VaultAccount(rec.ID)); err != nil {
		return Record{}, fmt.Errorf("ensure vault account: %w", err)
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return Record{}, err
	}

	s.logger.Info("vault initialised", slog.String("vault_id", rec.ID), slog.String("owner", caller))
	return rec, nil
}

// Get returns a vault by identifier. Reads are open to any caller.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwner returns the vault owned by owner.
func (s *Service) GetByOwner(ctx context.Context, owner string) (Record, error) {
	return s.repo.GetByOwner(ctx, owner)
}

// Deposit moves amount from the caller's funds into the vault and a fee on
// top of it to the collector. The caller pays amount + fee; the vault balance
// grows by the full amount.
func (s *Service) Deposit(ctx context.Context, caller, vaultID string, in TransferInput) (Result, error) {
	res, event, err := s.deposit(ctx, caller, vaultID, in)
	if err != nil {
		return Result{}, err
	}
	s.emit(ctx, event)
	return res, nil
}

func (s *Service) deposit(ctx context.Context, caller, vaultID string, in TransferInput) (Result, audit.Event, error) {
	unlock, err := s.lockVault(ctx, vaultID)
	if err != nil {
		return Result{}, audit.Event{}, err
	}
	defer unlock()

	rec, err := s.owned(ctx, caller, vaultID)
	if err != nil {
		return Result{}, audit.Event{}, err
	}
	if err := checkAmount(in.Amount); err != nil {
		return Result{}, audit.Event{}, err
	}
	collector, err := s.collector(in.FeeCollector)
	if err != nil {
		return Result{}, audit.Event{}, err
	}

	feeAmount := s.fees.Fee(in.Amount)
	balance, err := checkedAdd(rec.Balance, in.Amount)
	if err != nil {
		return Result{}, audit.Event{}, err
	}

	posting := ledger.Posting{
		Kind:       ledger.KindDeposit,
		ClientTxID: clientTxID(in.ClientTxID),
		Legs: []ledger.Leg{
			{From: ledger.OwnerAccount(caller), To: ledger.CollectorAccount(collector), Amount: feeAmount},
			{From: ledger.OwnerAccount(caller), To: ledger.VaultAccount(rec.ID), Amount: in.Amount},
		},
	}
	txID, err := s.post(ctx, posting, collector)
	if err != nil {
		return Result{}, audit.Event{}, err
	}

	rec.Balance = balance
	rec.UpdatedAt = s.now()
	if err := s.persist(ctx, rec, posting, txID); err != nil {
		return Result{}, audit.Event{}, err
	}

	return Result{
		Record:        rec,
		Amount:        in.Amount,
		Fee:           feeAmount,
		Net:           fee.Net(s.fees, in.Amount),
		FeeCollector:  collector,
		TransactionID: txID,
	}, s.event(audit.KindDeposit, caller, rec.ID, in.Amount, feeAmount), nil
}

// Withdraw moves amount from the vault back to the caller. The vault must
// hold amount + fee, but the fee itself is paid from the caller's funds.
func (s *Service) Withdraw(ctx context.Context, caller, vaultID string, in TransferInput) (Result, error) {
	res, event, err := s.withdraw(ctx, caller, vaultID, in)
	if err != nil {
		return Result{}, err
	}
	s.emit(ctx, event)
	return res, nil
}

func (s *Service) withdraw(ctx context.Context, caller, vaultID string, in TransferInput) (Result, audit.Event, error) {
	unlock, err := s.lockVault(ctx, vaultID)
	if err != nil {
		return Result{}, audit.Event{}, err
	}
	defer unlock()

	rec, err := s.owned(ctx, caller, vaultID)
	if err != nil {
		return Result{}, audit.Event{}, err
	}
	if err := checkAmount(in.Amount); err != nil {
		return Result{}, audit.Event{}, err
	}
	collector, err := s.collector(in.FeeCollector)
	if err != nil {
		return Result{}, audit.Event{}, err
	}

	feeAmount := s.fees.Fee(in.Amount)
	total, err := checkedAdd(in.Amount, feeAmount)
	if err != nil {
		return Result{}, audit.Event{}, err
	}
	if err := assertBalance(rec, total); err != nil {
		return Result{}, audit.Event{}, err
	}
	balance, err := checkedSub(rec.Balance, in.Amount)
	if err != nil {
		return Result{}, audit.Event{}, err
	}

	posting := ledger.Posting{
		Kind:       ledger.KindWithdraw,
		ClientTxID: clientTxID(in.ClientTxID),
		Legs: []ledger.Leg{
			{From: ledger.OwnerAccount(caller), To: ledger.CollectorAccount(collector), Amount: feeAmount},
			{From: ledger.VaultAccount(rec.ID), To: ledger.OwnerAccount(caller), Amount: in.Amount},
		},
	}
	txID, err := s.post(ctx, posting, collector)
	if err != nil {
		return Result{}, audit.Event{}, err
	}

	rec.Balance = balance
	rec.UpdatedAt = s.now()
	if err := s.persist(ctx, rec, posting, txID); err != nil {
		return Result{}, audit.Event{}, err
	}

	return Result{
		Record:        rec,
		Amount:        in.Amount,
		Fee:           feeAmount,
		Net:           fee.Net(s.fees, in.Amount),
		FeeCollector:  collector,
		TransactionID: txID,
	}, s.event(audit.KindWithdraw, caller, rec.ID, in.Amount, feeAmount), nil
}

// Close returns any remaining balance to the caller and deletes the vault.
// If the delete fails the return posting is reversed and the vault is left
// as it was.
func (s *Service) Close(ctx context.Context, caller, vaultID string) (CloseResult, error) {
	out, event, err := s.close(ctx, caller, vaultID)
	if err != nil {
		return CloseResult{}, err
	}
	if event != nil {
		s.emit(ctx, *event)
	}
	return out, nil
}

func (s *Service) close(ctx context.Context, caller, vaultID string) (CloseResult, *audit.Event, error) {
	unlock, err := s.lockVault(ctx, vaultID)
	if err != nil {
		return CloseResult{}, nil, err
	}
	defer unlock()

	rec, err := s.owned(ctx, caller, vaultID)
	if err != nil {
		return CloseResult{}, nil, err
	}

	out := CloseResult{VaultID: rec.ID, Owner: rec.Owner}
	remaining := rec.Balance
	var (
		posting ledger.Posting
		event   *audit.Event
	)
	if remaining > 0 {
		posting = ledger.Posting{
			Kind:       ledger.KindClose,
			ClientTxID: uuid.NewString(),
			Legs: []ledger.Leg{
				{From: ledger.VaultAccount(rec.ID), To: ledger.OwnerAccount(caller), Amount: remaining},
			},
		}
		txID, err := s.post(ctx, posting, "")
		if err != nil {
			return CloseResult{}, nil, err
		}
		out.Returned = remaining
		out.TransactionID = txID
		e := s.event(audit.KindCloseVault, caller, rec.ID, remaining, 0)
		event = &e
	}

	if err := s.repo.Delete(ctx, rec.ID); err != nil {
		if out.TransactionID != "" {
			s.reverse(ctx, rec.ID, posting, out.TransactionID)
		}
		return CloseResult{}, nil, fmt.Errorf("delete vault %s: %w", rec.ID, err)
	}

	s.logger.Info("vault closed",
		slog.String("vault_id", rec.ID),
		slog.String("owner", caller),
		slog.Uint64("returned", remaining),
	)
	return out, event, nil
}

// TransferOwnership hands the vault to newOwner. The vault keeps its ID and
// balance; lookups by owner resolve to the new owner from then on.
func (s *Service) TransferOwnership(ctx context.Context, caller, vaultID, newOwner string) (Record, error) {
	newOwner = strings.TrimSpace(newOwner)

	unlock, err := s.lockVault(ctx, vaultID)
	if err != nil {
		return Record{}, err
	}
	defer unlock()

	rec, err := s.owned(ctx, caller, vaultID)
	if err != nil {
		return Record{}, err
	}
	if newOwner == "" || newOwner == caller {
		return Record{}, ErrInvalidOwner
	}

	if err := s.ledger.EnsureAccount(ctx, ledger.OwnerAccount(newOwner)); err != nil {
		return Record{}, fmt.Errorf("ensure owner account: %w", err)
	}

	rec.Owner = newOwner
	rec.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, rec); err != nil {
		return Record{}, err
	}

	s.logger.Info("vault ownership transferred",
		slog.String("vault_id", rec.ID),
		slog.String("from", caller),
		slog.String("to", newOwner),
	)
	return rec, nil
}

// owned loads the vault and checks the caller owns it before anything else
// is looked at.
func (s *Service) owned(ctx context.Context, caller, vaultID string) (Record, error) {
	rec, err := s.repo.Get(ctx, vaultID)
	if err != nil {
		return Record{}, err
	}
	if err := assertOwner(rec, caller); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (s *Service) collector(requested string) (string, error) {
	if c := strings.TrimSpace(requested); c != "" {
		return c, nil
	}
	if s.defaultCollector != "" {
		return s.defaultCollector, nil
	}
	return "", ErrMissingCollector
}

func (s *Service) lockVault(ctx context.Context, vaultID string) (func(), error) {
	unlock, err := s.locker.Lock(ctx, "vault:"+vaultID)
	if err != nil {
		return nil, fmt.Errorf("lock vault %s: %w", vaultID, err)
	}
	return unlock, nil
}

// post applies the posting; any ledger error is reported as ErrTransferFailed
// while still matching the ledger's own sentinel.
func (s *Service) post(ctx context.Context, p ledger.Posting, collector string) (string, error) {
	if collector != "" {
		if err := s.ledger.EnsureAccount(ctx, ledger.CollectorAccount(collector)); err != nil {
			return "", fmt.Errorf("%w: ensure collector account: %w", ErrTransferFailed, err)
		}
	}
	res, err := s.ledger.Transfer(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	return res.TransactionID, nil
}

// persist stores rec after its posting went through. If the store rejects the
// write the posting is reversed so funds and record stay in agreement.
func (s *Service) persist(ctx context.Context, rec Record, p ledger.Posting, txID string) error {
	err := s.repo.Update(ctx, rec)
	if err == nil {
		return nil
	}
	s.reverse(ctx, rec.ID, p, txID)
	return fmt.Errorf("update vault %s: %w", rec.ID, err)
}

// reverse undoes a committed posting. It runs detached from ctx: the request
// may already be cancelled, which is often why the store write failed.
func (s *Service) reverse(ctx context.Context, vaultID string, p ledger.Posting, txID string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reverseTimeout)
	defer cancel()
	if _, err := s.ledger.Transfer(rctx, ledger.Reverse(p, txID)); err != nil {
		s.logger.Error("reverse posting after failed vault write",
			slog.String("vault_id", vaultID),
			slog.String("transaction_id", txID),
			slog.Any("error", err),
		)
	}
}

func (s *Service) event(kind audit.Kind, initializer, vaultID string, amount, feeAmount uint64) audit.Event {
	return audit.Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		Initializer: initializer,
		VaultID:     vaultID,
		Amount:      amount,
		Fee:         feeAmount,
		OccurredAt:  s.now(),
	}
}

// emit runs after the vault lock is released so a slow sink never holds up
// other operations on the same vault.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if err := s.sink.Emit(ctx, event); err != nil {
		s.logger.Warn("emit vault event",
			slog.String("kind", string(event.Kind)),
			slog.String("vault_id", event.VaultID),
			slog.Any("error", err),
		)
	}
}

func clientTxID(id string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return uuid.NewString()
}
