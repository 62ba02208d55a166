package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/paisa-play/paisa_play/internal/balance"
)

// Service manages the account lifecycle. Registration creates the balance
// store counters at zero; deletion is always soft while ledger entries
// reference the account.
type Service struct {
	repo     Repository
	balances balance.Store
}

// NewService creates a new account service.
func NewService(repo Repository, balances balance.Store) *Service {
	return &Service{repo: repo, balances: balances}
}

// Register creates a player account with both balances at zero.
func (s *Service) Register(ctx context.Context, creds Credentials, displayName string) (Account, error) {
	if len(creds.PIN) < 4 {
		return Account{}, errors.New("PIN must be at least 4 digits")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.PIN), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}

	acct := Account{
		ID:          uuid.NewString(),
		Phone:       creds.Phone,
		DisplayName: displayName,
		Role:        RoleUser,
		PINHash:     hash,
		DeviceID:    creds.DeviceID,
		Status:      StatusActive,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, acct); err != nil {
		return Account{}, err
	}
	if err := s.balances.EnsureAccount(ctx, acct.ID); err != nil {
		return Account{}, err
	}

	return acct, nil
}

// Authenticate verifies credentials and device binding.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Account, error) {
	acct, err := s.repo.FindByPhone(ctx, creds.Phone)
	if err != nil {
		return Account{}, err
	}
	if acct.Status != StatusActive {
		return Account{}, errors.New("account disabled")
	}

	if err := bcrypt.CompareHashAndPassword(acct.PINHash, []byte(creds.PIN)); err != nil {
		return Account{}, errors.New("invalid PIN")
	}

	if acct.DeviceID == "" {
		if creds.DeviceID == "" {
			return Account{}, errors.New("device binding required")
		}
		if err := s.repo.UpdateDevice(ctx, acct.ID, creds.DeviceID); err != nil {
			return Account{}, err
		}
		acct.DeviceID = creds.DeviceID
	} else if creds.DeviceID != "" && acct.DeviceID != creds.DeviceID {
		return Account{}, errors.New("device mismatch")
	}

	return acct, nil
}

// Get fetches an account profile.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// Deactivate soft-deletes the account.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}
