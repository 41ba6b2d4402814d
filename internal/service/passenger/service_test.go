package passenger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ilyakh/busline/internal/domain"
	"github.com/ilyakh/busline/internal/repository"
	postgresrepo "github.com/ilyakh/busline/internal/repository/postgres"
	"github.com/ilyakh/busline/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeStore struct {
	byID    map[uuid.UUID]*domain.Passenger
	byPhone map[string]*domain.Passenger
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:    make(map[uuid.UUID]*domain.Passenger),
		byPhone: make(map[string]*domain.Passenger),
	}
}

func (f *fakeStore) Create(_ context.Context, p domain.Passenger) error {
	if _, ok := f.byPhone[p.PhoneNumber]; ok {
		return repository.ErrConflict
	}
	cp := p
	f.byID[p.ID] = &cp
	f.byPhone[p.PhoneNumber] = &cp
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Passenger, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) GetByPhone(_ context.Context, phone string) (*domain.Passenger, error) {
	p, ok := f.byPhone[phone]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) PhoneExists(_ context.Context, phone string) (bool, error) {
	_, ok := f.byPhone[phone]
	return ok, nil
}

func (f *fakeStore) EmailExists(_ context.Context, email string) (bool, error) {
	for _, p := range f.byID {
		if p.Email != nil && *p.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Role(_ context.Context, id uuid.UUID) (string, error) {
	p, ok := f.byID[id]
	if !ok {
		return "", repository.ErrNotFound
	}
	return p.Role, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, id uuid.UUID, patch postgresrepo.ProfilePatch) error {
	p, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if patch.LastName != nil {
		p.LastName = *patch.LastName
	}
	if patch.FirstName != nil {
		p.FirstName = *patch.FirstName
	}
	if patch.MiddleName != nil {
		p.MiddleName = patch.MiddleName
	}
	if patch.Gender != nil {
		p.Gender = patch.Gender
	}
	if patch.BirthDate != nil {
		p.BirthDate = patch.BirthDate
	}
	if patch.DocumentNumber != nil {
		p.DocumentNumber = patch.DocumentNumber
	}
	if patch.Email != nil {
		p.Email = patch.Email
	}
	return nil
}

func (f *fakeStore) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	p, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.PasswordHash = hash
	return nil
}

func (f *fakeStore) List(_ context.Context) ([]domain.Passenger, error) {
	var out []domain.Passenger
	for _, p := range f.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	p, ok := f.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(f.byPhone, p.PhoneNumber)
	delete(f.byID, id)
	return nil
}

type fakeStats struct {
	stats *domain.PassengerStats
}

func (f *fakeStats) Stats(_ context.Context, _ uuid.UUID) (*domain.PassengerStats, error) {
	if f.stats == nil {
		return &domain.PassengerStats{}, nil
	}
	return f.stats, nil
}

func newTestService() (*Service, *fakeStore) {
	store := newFakeStore()
	tokens := token.NewManager("test-secret", time.Hour)

	return New(store, &fakeStats{}, tokens, nil, Config{BcryptCost: bcrypt.MinCost}), store
}

func signup(t *testing.T, svc *Service, phone, password string) string {
	t.Helper()

	tok, err := svc.Signup(context.Background(), SignupInput{
		LastName:  "Ivanov",
		FirstName: "Ivan",
		Phone:     phone,
		Password:  password,
	}, "test")
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	return tok
}

func TestSignupDuplicatePhone(t *testing.T) {
	svc, _ := newTestService()

	signup(t, svc, "79990001111", "secret1")

	_, err := svc.Signup(context.Background(), SignupInput{
		LastName:  "Petrov",
		FirstName: "Petr",
		Phone:     "79990001111",
		Password:  "secret2",
	}, "test")
	assert.ErrorIs(t, err, ErrPhoneTaken)
}

func TestSignupStoresHashedPassword(t *testing.T) {
	svc, store := newTestService()

	signup(t, svc, "79990001111", "secret1")

	p := store.byPhone["79990001111"]
	require.NotNil(t, p)
	assert.Equal(t, domain.RoleUser, p.Role)
	assert.NotEqual(t, "secret1", p.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte("secret1")))
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	signup(t, svc, "79990001111", "secret1")

	tok, role, err := svc.Login(ctx, "79990001111", "secret1", "test")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, domain.RoleUser, role)

	// wrong password and unknown phone fail identically
	_, _, err = svc.Login(ctx, "79990001111", "wrong", "test")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "70000000000", "secret1", "test")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	signup(t, svc, "79990001111", "secret1")
	p := store.byPhone["79990001111"]

	tok, firstName, role, err := svc.Refresh(ctx, p.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, "Ivan", firstName)
	assert.Equal(t, domain.RoleUser, role)

	_, _, _, err = svc.Refresh(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrPassengerNotFound)
}

func TestUpdateProfileRejectsPhoneChange(t *testing.T) {
	svc, store := newTestService()

	signup(t, svc, "79990001111", "secret1")
	p := store.byPhone["79990001111"]

	newPhone := "79991112222"
	err := svc.UpdateProfile(context.Background(), p.ID, ProfileUpdate{Phone: &newPhone})
	assert.ErrorIs(t, err, ErrPhoneImmutable)
	assert.Equal(t, "79990001111", p.PhoneNumber)
}

func TestUpdateProfileFieldsAndPassword(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	signup(t, svc, "79990001111", "secret1")
	p := store.byPhone["79990001111"]

	doc := "AB123456"
	email := "ivan@example.com"
	newPassword := "secret2"
	currentPassword := "secret1"
	err := svc.UpdateProfile(ctx, p.ID, ProfileUpdate{
		DocumentNumber:  &doc,
		Email:           &email,
		Password:        &newPassword,
		CurrentPassword: &currentPassword,
	})
	require.NoError(t, err)

	require.NotNil(t, p.DocumentNumber)
	assert.Equal(t, doc, *p.DocumentNumber)
	require.NotNil(t, p.Email)
	assert.Equal(t, email, *p.Email)

	_, _, err = svc.Login(ctx, "79990001111", "secret2", "test")
	assert.NoError(t, err)
}

func TestUpdateProfilePasswordNeedsCurrentPassword(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	signup(t, svc, "79990001111", "secret1")
	p := store.byPhone["79990001111"]

	hijacked := "attacker-pass"

	// a bearer token alone must not be enough to replace the credential
	err := svc.UpdateProfile(ctx, p.ID, ProfileUpdate{Password: &hijacked})
	assert.ErrorIs(t, err, ErrWrongPassword)

	wrong := "not-secret1"
	err = svc.UpdateProfile(ctx, p.ID, ProfileUpdate{Password: &hijacked, CurrentPassword: &wrong})
	assert.ErrorIs(t, err, ErrWrongPassword)

	// the stored hash is untouched after both rejections
	_, _, err = svc.Login(ctx, "79990001111", "secret1", "test")
	assert.NoError(t, err)

	_, _, err = svc.Login(ctx, "79990001111", hijacked, "test")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfileEmailTaken(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	signup(t, svc, "79990001111", "secret1")
	signup(t, svc, "79990002222", "secret2")

	first := store.byPhone["79990001111"]
	second := store.byPhone["79990002222"]

	email := "taken@example.com"
	require.NoError(t, svc.UpdateProfile(ctx, first.ID, ProfileUpdate{Email: &email}))

	err := svc.UpdateProfile(ctx, second.ID, ProfileUpdate{Email: &email})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestValidateData(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	signup(t, svc, "79990001111", "secret1")
	p := store.byPhone["79990001111"]
	email := "ivan@example.com"
	p.Email = &email

	assert.NoError(t, svc.ValidateData(ctx, "70000000000", "free@example.com"))
	assert.ErrorIs(t, svc.ValidateData(ctx, "79990001111", ""), ErrPhoneTaken)
	assert.ErrorIs(t, svc.ValidateData(ctx, "", "ivan@example.com"), ErrEmailTaken)
}

func TestInfoReturnsStats(t *testing.T) {
	store := newFakeStore()
	tokens := token.NewManager("test-secret", time.Hour)
	stats := &fakeStats{stats: &domain.PassengerStats{
		TicketsAmount:      4,
		FavouriteCity:      "Kazan",
		FavouriteCityCount: 3,
	}}
	svc := New(store, stats, tokens, nil, Config{BcryptCost: bcrypt.MinCost})

	signup(t, svc, "79990001111", "secret1")
	p := store.byPhone["79990001111"]

	got, st, err := svc.Info(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, 4, st.TicketsAmount)
	assert.Equal(t, "Kazan", st.FavouriteCity)
	assert.Equal(t, 3, st.FavouriteCityCount)
}

func TestDelete(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	signup(t, svc, "79990001111", "secret1")
	p := store.byPhone["79990001111"]

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.ErrorIs(t, svc.Delete(ctx, p.ID), ErrPassengerNotFound)
}
