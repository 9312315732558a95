package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"battery-rental-backend/internal/domain"
	"battery-rental-backend/internal/repository"
)

// AccountRepository keeps balances in memory. It is exported so callers can
// seed balances, which the repository interface does not cover.
type AccountRepository struct {
	mu       sync.Mutex
	accounts map[domain.UserID]*domain.Account
	debits   map[string]domain.Debit
}

var _ repository.AccountRepository = (*AccountRepository)(nil)

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[domain.UserID]*domain.Account),
		debits:   make(map[string]domain.Debit),
	}
}

// SetBalance creates the account if needed and sets its balance.
func (r *AccountRepository) SetBalance(userID domain.UserID, balanceCents int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[userID]
	if !ok {
		acct = &domain.Account{UserID: userID, CreatedAt: time.Now()}
		r.accounts[userID] = acct
	}
	acct.BalanceCents = balanceCents
}

func (r *AccountRepository) GetBalance(ctx context.Context, userID domain.UserID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[userID]
	if !ok {
		return 0, fmt.Errorf("%w: user %d", domain.ErrAccountNotFound, userID)
	}
	return acct.BalanceCents, nil
}

func (r *AccountRepository) Debit(ctx context.Context, userID domain.UserID, amountCents int64, reference string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if amountCents < 0 {
		return fmt.Errorf("%w: negative debit %d", domain.ErrInvalidArgument, amountCents)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.debits[reference]; ok {
		if prev.UserID != userID || prev.AmountCents != amountCents {
			return fmt.Errorf("%w: reference %s already used for user %d amount %d",
				domain.ErrInvalidArgument, reference, prev.UserID, prev.AmountCents)
		}
		return nil
	}

	acct, ok := r.accounts[userID]
	if !ok {
		return fmt.Errorf("%w: user %d", domain.ErrAccountNotFound, userID)
	}
	if acct.BalanceCents < amountCents {
		return fmt.Errorf("%w: balance %d, fee %d", domain.ErrInsufficientBalance, acct.BalanceCents, amountCents)
	}
	acct.BalanceCents -= amountCents
	r.debits[reference] = domain.Debit{
		UserID:      userID,
		AmountCents: amountCents,
		Reference:   reference,
		ChargedAt:   time.Now(),
	}
	return nil
}

// Debits returns every recorded charge for the user.
func (r *AccountRepository) Debits(userID domain.UserID) []domain.Debit {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Debit
	for _, d := range r.debits {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out
}
