package passenger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakh/busline/internal/domain"
	"github.com/ilyakh/busline/internal/repository"
	postgresrepo "github.com/ilyakh/busline/internal/repository/postgres"
	redisrepo "github.com/ilyakh/busline/internal/repository/redis"
	"github.com/ilyakh/busline/internal/token"
)

// Store is the passenger account storage.
type Store interface {
	Create(ctx context.Context, p domain.Passenger) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Passenger, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Passenger, error)
	PhoneExists(ctx context.Context, phone string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Role(ctx context.Context, id uuid.UUID) (string, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, patch postgresrepo.ProfilePatch) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	List(ctx context.Context) ([]domain.Passenger, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TicketStats aggregates a passenger's travel history.
type TicketStats interface {
	Stats(ctx context.Context, passengerID uuid.UUID) (*domain.PassengerStats, error)
}

type Config struct {
	BcryptCost int
}

type Service struct {
	store   Store
	stats   TicketStats
	tokens  *token.Manager
	limiter *redisrepo.SlidingWindowLimiter
	cfg     Config
}

func New(
	store Store,
	stats TicketStats,
	tokens *token.Manager,
	limiter *redisrepo.SlidingWindowLimiter,
	cfg Config,
) *Service {
	if cfg.BcryptCost <= 0 {
		cfg.BcryptCost = 10
	}

	return &Service{
		store:   store,
		stats:   stats,
		tokens:  tokens,
		limiter: limiter,
		cfg:     cfg,
	}
}

type SignupInput struct {
	LastName  string
	FirstName string
	Phone     string
	Password  string
}

// Signup registers a passenger account and returns a signed token for it.
// rlKey identifies the caller for rate limiting, usually the client IP.
//
// Returns:
//   - error: passenger.ErrPhoneTaken if the phone number is registered.
//   - error: passenger.ErrRateLimited if the caller is over the limit.
func (s *Service) Signup(ctx context.Context, in SignupInput, rlKey string) (string, error) {
	const op = "service.passenger.Signup"

	if err := s.rateLimit(ctx, "signup:"+rlKey); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	taken, err := s.store.PhoneExists(ctx, in.Phone)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}
	if taken {
		return "", fmt.Errorf("%s:%w", op, ErrPhoneTaken)
	}

	hash, err := hashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	p := domain.Passenger{
		ID:           uuid.New(),
		Role:         domain.RoleUser,
		LastName:     in.LastName,
		FirstName:    in.FirstName,
		PhoneNumber:  in.Phone,
		PasswordHash: hash,
	}

	if err := s.store.Create(ctx, p); err != nil {
		// Lost a race with a concurrent signup on the same phone.
		if errors.Is(err, repository.ErrConflict) {
			return "", fmt.Errorf("%s:%w", op, ErrPhoneTaken)
		}

		return "", fmt.Errorf("%s:%w", op, err)
	}

	signed, err := s.tokens.Issue(p.ID)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return signed, nil
}

// Login verifies credentials and returns a token plus the stored role. An
// unknown phone and a wrong password come back as the same error so the
// response does not reveal which part failed.
//
// Returns:
//   - error: passenger.ErrInvalidCredentials on any credential mismatch.
//   - error: passenger.ErrRateLimited if the caller is over the limit.
func (s *Service) Login(ctx context.Context, phone, password, rlKey string) (string, string, error) {
	const op = "service.passenger.Login"

	if err := s.rateLimit(ctx, "login:"+rlKey); err != nil {
		return "", "", fmt.Errorf("%s:%w", op, err)
	}

	p, err := s.store.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", "", fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
		}

		return "", "", fmt.Errorf("%s:%w", op, err)
	}

	if !verifyPassword(p.PasswordHash, password) {
		return "", "", fmt.Errorf("%s:%w", op, ErrInvalidCredentials)
	}

	signed, err := s.tokens.Issue(p.ID)
	if err != nil {
		return "", "", fmt.Errorf("%s:%w", op, err)
	}

	return signed, p.Role, nil
}

// Refresh re-issues a token for an authenticated passenger and returns
// their first name and role for the client session.
//
// Returns:
//   - error: passenger.ErrPassengerNotFound if the account is gone.
func (s *Service) Refresh(ctx context.Context, id uuid.UUID) (string, string, string, error) {
	const op = "service.passenger.Refresh"

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", "", "", fmt.Errorf("%s:%w", op, ErrPassengerNotFound)
		}

		return "", "", "", fmt.Errorf("%s:%w", op, err)
	}

	signed, err := s.tokens.Issue(p.ID)
	if err != nil {
		return "", "", "", fmt.Errorf("%s:%w", op, err)
	}

	return signed, p.FirstName, p.Role, nil
}

// Info returns the passenger's profile together with their travel stats.
//
// Returns:
//   - error: passenger.ErrPassengerNotFound if the account is gone.
func (s *Service) Info(ctx context.Context, id uuid.UUID) (*domain.Passenger, *domain.PassengerStats, error) {
	const op = "service.passenger.Info"

	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%s:%w", op, ErrPassengerNotFound)
		}

		return nil, nil, fmt.Errorf("%s:%w", op, err)
	}

	st, err := s.stats.Stats(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("%s:%w", op, err)
	}

	return p, st, nil
}

// ValidateData checks prospective contact details for uniqueness. Empty
// values are skipped.
//
// Returns:
//   - error: passenger.ErrPhoneTaken / passenger.ErrEmailTaken accordingly.
func (s *Service) ValidateData(ctx context.Context, phone, email string) error {
	const op = "service.passenger.ValidateData"

	if phone != "" {
		taken, err := s.store.PhoneExists(ctx, phone)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		if taken {
			return fmt.Errorf("%s:%w", op, ErrPhoneTaken)
		}
	}

	if email != "" {
		taken, err := s.store.EmailExists(ctx, email)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		if taken {
			return fmt.Errorf("%s:%w", op, ErrEmailTaken)
		}
	}

	return nil
}

// ProfileUpdate carries the fields a passenger may change about themselves.
// Phone is present only to be rejected: the phone number is the login
// identifier and never changes. A password change additionally requires
// CurrentPassword; a bearer token alone is not enough to swap the credential.
type ProfileUpdate struct {
	LastName        *string
	FirstName       *string
	MiddleName      *string
	Gender          *bool
	BirthDate       *time.Time
	DocumentNumber  *string
	Email           *string
	Phone           *string
	Password        *string
	CurrentPassword *string
}

// UpdateProfile patches the caller's profile.
//
// Returns:
//   - error: passenger.ErrPhoneImmutable if a phone change was attempted.
//   - error: passenger.ErrWrongPassword if a password change carries no
//     current password or the current password does not verify.
//   - error: passenger.ErrEmailTaken if the new email is registered.
//   - error: passenger.ErrPassengerNotFound if the account is gone.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileUpdate) error {
	const op = "service.passenger.UpdateProfile"

	if in.Phone != nil {
		return fmt.Errorf("%s:%w", op, ErrPhoneImmutable)
	}

	if in.Email != nil && *in.Email != "" {
		taken, err := s.store.EmailExists(ctx, *in.Email)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		if taken {
			return fmt.Errorf("%s:%w", op, ErrEmailTaken)
		}
	}

	if in.Password != nil {
		if in.CurrentPassword == nil {
			return fmt.Errorf("%s:%w", op, ErrWrongPassword)
		}

		p, err := s.store.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrPassengerNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}

		if !verifyPassword(p.PasswordHash, *in.CurrentPassword) {
			return fmt.Errorf("%s:%w", op, ErrWrongPassword)
		}

		hash, err := hashPassword(*in.Password, s.cfg.BcryptCost)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := s.store.UpdatePassword(ctx, id, hash); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%s:%w", op, ErrPassengerNotFound)
			}

			return fmt.Errorf("%s:%w", op, err)
		}
	}

	patch := postgresrepo.ProfilePatch{
		LastName:       in.LastName,
		FirstName:      in.FirstName,
		MiddleName:     in.MiddleName,
		Gender:         in.Gender,
		BirthDate:      in.BirthDate,
		DocumentNumber: in.DocumentNumber,
		Email:          in.Email,
	}

	if err := s.store.UpdateProfile(ctx, id, patch); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s:%w", op, ErrPassengerNotFound)
		case errors.Is(err, repository.ErrConflict):
			return fmt.Errorf("%s:%w", op, ErrEmailTaken)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// RoleOf returns the stored role for an authenticated passenger.
//
// Returns:
//   - error: passenger.ErrPassengerNotFound if the account is gone.
func (s *Service) RoleOf(ctx context.Context, id uuid.UUID) (string, error) {
	const op = "service.passenger.RoleOf"

	role, err := s.store.Role(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("%s:%w", op, ErrPassengerNotFound)
		}

		return "", fmt.Errorf("%s:%w", op, err)
	}

	return role, nil
}

// List returns every registered passenger. Admin-only at the transport layer.
func (s *Service) List(ctx context.Context) ([]domain.Passenger, error) {
	const op = "service.passenger.List"

	out, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Delete removes a passenger account.
//
// Returns:
//   - error: passenger.ErrPassengerNotFound if the account does not exist.
//   - error: passenger.ErrHasTickets if live tickets still reference it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	const op = "service.passenger.Delete"

	if err := s.store.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%s:%w", op, ErrPassengerNotFound)
		case errors.Is(err, repository.ErrReferenced):
			return fmt.Errorf("%s:%w", op, ErrHasTickets)
		}

		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

func (s *Service) rateLimit(ctx context.Context, key string) error {
	if s.limiter == nil {
		return nil
	}

	allowed, _, retryAfter, err := s.limiter.Allow(ctx, key)
	if err != nil {
		// The limiter is advisory: a broken Redis must not lock everyone out.
		return nil
	}
	if !allowed {
		return fmt.Errorf("%w, retry in %s", ErrRateLimited, retryAfter.Round(time.Second))
	}

	return nil
}
