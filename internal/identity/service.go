package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPINLength = 4

// Service manages identity lifecycle.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Register creates a new identity and stores a hashed PIN.
func (s *Service) Register(ctx context.Context, creds Credentials) (User, error) {
	handle := strings.TrimSpace(creds.Handle)
	if handle == "" {
		return User{}, ErrInvalidHandle
	}
	if len(creds.PIN) < minPINLength {
		return User{}, fmt.Errorf("PIN must be at least %d digits", minPINLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.PIN), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:        uuid.New().String(),
		Handle:    handle,
		PINHash:   hash,
		DeviceID:  creds.DeviceID,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return User{}, err
	}

	return user, nil
}

// Authenticate verifies credentials and device binding. The first login
// with a device binds it.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
	user, err := s.repo.FindByHandle(ctx, strings.TrimSpace(creds.Handle))
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PINHash, []byte(creds.PIN)); err != nil {
		return User{}, ErrInvalidPIN
	}

	if user.DeviceID == "" {
		if creds.DeviceID == "" {
			return User{}, ErrDeviceRequired
		}
		if err := s.repo.UpdateDevice(ctx, user.ID, creds.DeviceID); err != nil {
			return User{}, err
		}
		user.DeviceID = creds.DeviceID
	} else if creds.DeviceID != "" && user.DeviceID != creds.DeviceID {
		return User{}, ErrDeviceMismatch
	}

	at := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, user.ID, at); err != nil {
		return User{}, err
	}
	user.LastLogin = &at

	return user, nil
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}
