package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/logger"
	"battery-rental-backend/internal/repository"
)

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetBalance(ctx context.Context, userID domain.UserID) (int64, error) {
	var balance int64
	query := `SELECT balance_cents FROM accounts WHERE user_id = $1`
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: user %d", domain.ErrAccountNotFound, userID)
	}
	return balance, err
}

// Debit charges the account once per reference. The account row is locked
// for the duration, so the reference check and the balance update cannot
// interleave with another debit for the same user.
func (r *accountRepository) Debit(ctx context.Context, userID domain.UserID, amountCents int64, reference string) error {
	logger.EnterMethod("accountRepository.Debit", "userID", userID, "amountCents", amountCents, "reference", reference)

	err := r.debit(ctx, userID, amountCents, reference)
	if err != nil {
		logger.ExitMethodWithError("accountRepository.Debit", err, "userID", userID, "reference", reference)
		return err
	}

	logger.ExitMethod("accountRepository.Debit", "userID", userID, "reference", reference)
	return nil
}

func (r *accountRepository) debit(ctx context.Context, userID domain.UserID, amountCents int64, reference string) error {
	if amountCents < 0 {
		return fmt.Errorf("%w: negative debit %d", domain.ErrInvalidArgument, amountCents)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance_cents FROM accounts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: user %d", domain.ErrAccountNotFound, userID)
	}
	if err != nil {
		return err
	}

	var prevUser domain.UserID
	var prevAmount int64
	err = tx.QueryRowContext(ctx, `SELECT user_id, amount_cents FROM account_debits WHERE reference = $1`, reference).Scan(&prevUser, &prevAmount)
	switch {
	case err == nil:
		if prevUser != userID || prevAmount != amountCents {
			return fmt.Errorf("%w: reference %s already used for user %d amount %d",
				domain.ErrInvalidArgument, reference, prevUser, prevAmount)
		}
		return tx.Commit()
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	if balance < amountCents {
		return fmt.Errorf("%w: balance %d, fee %d", domain.ErrInsufficientBalance, balance, amountCents)
	}

	_, err = tx.ExecContext(ctx, `UPDATE accounts SET balance_cents = balance_cents - $1 WHERE user_id = $2`, amountCents, userID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO account_debits (reference, user_id, amount_cents, charged_at) VALUES ($1, $2, $3, $4)`,
		reference, userID, amountCents, time.Now())
	if err != nil {
		return err
	}

	return tx.Commit()
}
