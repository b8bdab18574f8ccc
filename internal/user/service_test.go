package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/parkpro/service-core-go/internal/notify"
	"github.com/ovaphlow/parkpro/service-core-go/internal/user/entity"
	"github.com/ovaphlow/parkpro/service-core-go/internal/verification"
)

// memStore is a UserStore keyed by lower-cased email, like the citext column.
type memStore struct {
	mu       sync.Mutex
	byEmail  map[string]*entity.User
	err      error
	updErr   error
	onUpdate func()
}

func newMemStore() *memStore { return &memStore{byEmail: map[string]*entity.User{}} }

func (m *memStore) put(u *entity.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byEmail[strings.ToLower(u.Email)] = u
}

func (m *memStore) remove(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byEmail, strings.ToLower(email))
}

func (m *memStore) Create(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.byEmail[strings.ToLower(u.Email)]; ok {
		return &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
	}
	cp := *u
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.byEmail[strings.ToLower(u.Email)] = &cp
	return nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memStore) UpdatePassword(_ context.Context, id, hash string) error {
	if m.onUpdate != nil {
		m.onUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.updErr != nil {
		return m.updErr
	}
	for _, u := range m.byEmail {
		if u.ID == id {
			u.PasswordHash = &hash
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memStore) UpdateProfile(_ context.Context, id string, p entity.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byEmail {
		if u.ID == id {
			u.Name = p.Name
			if p.Phone != nil {
				u.Phone = p.Phone
			}
			if p.ProfileImage != nil {
				u.ProfileImage = p.ProfileImage
			}
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memStore) hashOf(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.byEmail[strings.ToLower(email)].PasswordHash
}

type fakeNotifier struct {
	mu     sync.Mutex
	msgs   []notify.Message
	reject bool
}

func (f *fakeNotifier) Enqueue(msg notify.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeNotifier) messages() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Message(nil), f.msgs...)
}

type seqIDs struct{ n int }

func (s *seqIDs) NewID() string {
	s.n++
	return fmt.Sprintf("%d", 1000+s.n)
}

type fixture struct {
	svc      *UserService
	store    *memStore
	codes    *verification.Registry
	clock    *clockwork.FakeClock
	notifier *fakeNotifier
	hasher   *BcryptHasher
}

func newFixture(t *testing.T, codes ...string) *fixture {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"1234"}
	}
	i := 0
	gen := func(int) (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
	f := &fixture{
		store:    newMemStore(),
		clock:    clockwork.NewFakeClock(),
		notifier: &fakeNotifier{},
		hasher:   NewBcryptHasher(bcrypt.MinCost, nil),
	}
	f.codes = verification.NewRegistry(verification.WithClock(f.clock), verification.WithGenerator(gen))
	f.svc = NewUserService(f.store, f.hasher, f.codes, f.notifier, &seqIDs{}, nil)
	return f
}

func (f *fixture) seed(t *testing.T, id, email, pw string) {
	t.Helper()
	u := &entity.User{ID: id, Name: "Alice", Email: email}
	if pw != "" {
		h, err := f.hasher.Hash(pw)
		require.NoError(t, err)
		u.PasswordHash = &h
	}
	f.store.put(u)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "1", "Alice@Example.com", "s3cret")
	f.seed(t, "2", "nopass@example.com", "")

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "success", email: "alice@example.com", password: "s3cret"},
		{name: "mixed case and spaces", email: "  ALICE@example.COM ", password: "s3cret"},
		{name: "wrong password", email: "alice@example.com", password: "nope", wantErr: ErrInvalidCredentials},
		{name: "unknown email", email: "bob@example.com", password: "s3cret", wantErr: ErrInvalidCredentials},
		{name: "user without password", email: "nopass@example.com", password: "", wantErr: ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := f.svc.Login(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, u)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "1", u.ID)
			assert.Nil(t, u.PasswordHash)
		})
	}
}

func TestLogin_StoreFailureIsNotCredentialError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection refused")
	f.store.err = boom

	_, err := f.svc.Login(context.Background(), "alice@example.com", "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, boom)
}

func TestLogin_RehashesWeakHash(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "1", "alice@example.com", "s3cret")

	stronger := NewBcryptHasher(bcrypt.MinCost+1, nil)
	svc := NewUserService(f.store, stronger, f.codes, f.notifier, &seqIDs{}, nil)

	_, err := svc.Login(context.Background(), "alice@example.com", "s3cret")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(f.store.hashOf("alice@example.com")))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestChangePassword(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")

		require.NoError(t, f.svc.ChangePassword(context.Background(), "Alice@example.com", "old", "new"))

		_, err := f.svc.Login(context.Background(), "alice@example.com", "new")
		require.NoError(t, err)
		_, err = f.svc.Login(context.Background(), "alice@example.com", "old")
		require.ErrorIs(t, err, ErrInvalidCredentials)

		msgs := f.notifier.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "alice@example.com", msgs[0].To)
		assert.Equal(t, "Your password was changed", msgs[0].Subject)
	})
	t.Run("wrong current password", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		before := f.store.hashOf("alice@example.com")

		err := f.svc.ChangePassword(context.Background(), "alice@example.com", "bad", "new")
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, before, f.store.hashOf("alice@example.com"))
		assert.Empty(t, f.notifier.messages())
	})
	t.Run("no stored password", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "")
		err := f.svc.ChangePassword(context.Background(), "alice@example.com", "", "new")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
	t.Run("unknown caller", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.ChangePassword(context.Background(), "ghost@example.com", "old", "new")
		require.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("empty new password", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		err := f.svc.ChangePassword(context.Background(), "alice@example.com", "old", "")
		require.ErrorIs(t, err, ErrInvalidPassword)
	})
}

func TestRequestRecovery(t *testing.T) {
	t.Run("issues and queues code", func(t *testing.T) {
		f := newFixture(t, "4821")
		f.seed(t, "1", "Alice@Example.com", "old")

		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))

		assert.True(t, f.codes.Validate("alice@example.com", "4821"))
		msgs := f.notifier.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "Alice@Example.com", msgs[0].To)
		assert.Equal(t, "Your Verification Code", msgs[0].Subject)
		assert.Contains(t, msgs[0].Body, "4821")
	})
	t.Run("unknown email issues nothing", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.RequestRecovery(context.Background(), "ghost@example.com")
		require.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 0, f.codes.Len())
		assert.Empty(t, f.notifier.messages())
	})
	t.Run("full queue does not fail the call", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		f.notifier.reject = true

		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))
		assert.True(t, f.codes.Validate("alice@example.com", "1234"))
	})
	t.Run("reissue replaces previous code", func(t *testing.T) {
		f := newFixture(t, "1111", "2222")
		f.seed(t, "1", "alice@example.com", "old")

		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))
		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))

		assert.False(t, f.codes.Validate("alice@example.com", "1111"))
		assert.True(t, f.codes.Validate("alice@example.com", "2222"))
	})
}

func TestCompleteRecovery(t *testing.T) {
	t.Run("success consumes code", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))

		require.NoError(t, f.svc.CompleteRecovery(context.Background(), "ALICE@example.com", "1234", "fresh"))

		_, err := f.svc.Login(context.Background(), "alice@example.com", "fresh")
		require.NoError(t, err)

		err = f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1234", "again")
		require.ErrorIs(t, err, ErrInvalidOrExpiredCode)

		msgs := f.notifier.messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "Your password was changed", msgs[1].Subject)
	})
	t.Run("wrong code keeps pending code", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))

		err := f.svc.CompleteRecovery(context.Background(), "alice@example.com", "9999", "fresh")
		require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
		require.NoError(t, f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1234", "fresh"))
	})
	t.Run("expired code", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))

		f.clock.Advance(verification.DefaultTTL + time.Second)
		err := f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1234", "fresh")
		require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	})
	t.Run("code valid at exact expiry", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))

		f.clock.Advance(verification.DefaultTTL)
		require.NoError(t, f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1234", "fresh"))
	})
	t.Run("no code issued", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		err := f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1234", "fresh")
		require.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	})
	t.Run("user removed after issuance keeps code", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))
		f.store.remove("alice@example.com")

		err := f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1234", "fresh")
		require.ErrorIs(t, err, ErrNotFound)
		assert.True(t, f.codes.Validate("alice@example.com", "1234"))
	})
	t.Run("invalid new password keeps code", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))

		err := f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1234", "")
		require.ErrorIs(t, err, ErrInvalidPassword)
		assert.True(t, f.codes.Validate("alice@example.com", "1234"))
	})
	t.Run("failed update keeps code", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "1", "alice@example.com", "old")
		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))
		boom := errors.New("connection reset")
		f.store.updErr = boom

		err := f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1234", "fresh")
		require.ErrorIs(t, err, boom)
		assert.True(t, f.codes.Validate("alice@example.com", "1234"))

		f.store.updErr = nil
		require.NoError(t, f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1234", "fresh"))
	})
	t.Run("code reissued mid-reset stays pending", func(t *testing.T) {
		f := newFixture(t, "1111", "2222")
		f.seed(t, "1", "alice@example.com", "old")
		require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))
		f.store.onUpdate = func() {
			_, err := f.codes.Issue("alice@example.com")
			assert.NoError(t, err)
		}

		require.NoError(t, f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1111", "fresh"))

		assert.True(t, f.codes.Validate("alice@example.com", "2222"))
		msgs := f.notifier.messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "Your password was changed", msgs[1].Subject)
	})
}

func TestCompleteRecovery_ConcurrentSameCode(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "1", "alice@example.com", "old")
	require.NoError(t, f.svc.RequestRecovery(context.Background(), "alice@example.com"))

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.svc.CompleteRecovery(context.Background(), "alice@example.com", "1234", fmt.Sprintf("fresh-%d", i))
		}()
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "code used twice")
			winner = i
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	}
	require.NotEqual(t, -1, winner)

	_, err := f.svc.Login(context.Background(), "alice@example.com", fmt.Sprintf("fresh-%d", winner))
	require.NoError(t, err)
	assert.Equal(t, 0, f.codes.Len())
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	phone := "+911234567890"

	u, err := f.svc.Create(context.Background(), CreateInput{Name: " Alice ", Email: " Alice@Example.com", Phone: &phone, Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, "1001", u.ID)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Nil(t, u.PasswordHash)

	_, err = f.svc.Login(context.Background(), "alice@example.com", "s3cret")
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), CreateInput{Name: "Dup", Email: "ALICE@example.com"})
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.Create(context.Background(), CreateInput{Name: "Nobody", Email: "not-an-email"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetAndUpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "1", "alice@example.com", "pw")

	u, err := f.svc.GetByID(context.Background(), "1")
	require.NoError(t, err)
	assert.Nil(t, u.PasswordHash)

	_, err = f.svc.GetByID(context.Background(), "2")
	require.ErrorIs(t, err, ErrNotFound)

	img := "https://cdn.example.com/a.png"
	require.NoError(t, f.svc.UpdateProfile(context.Background(), "ALICE@example.com", entity.ProfileUpdate{Name: "Alice B", ProfileImage: &img}))

	u, err = f.svc.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", u.Name)
	require.NotNil(t, u.ProfileImage)
	assert.Equal(t, img, *u.ProfileImage)
	assert.Nil(t, u.Phone)

	err = f.svc.UpdateProfile(context.Background(), "ghost@example.com", entity.ProfileUpdate{Name: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost, nil)

	a, err := h.Hash("pw")
	require.NoError(t, err)
	b, err := h.Hash("pw")
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "salted")
	assert.True(t, h.Verify(a, "pw"))
	assert.False(t, h.Verify(a, "PW"))
	assert.False(t, h.Verify("not-a-hash", "pw"))
	assert.False(t, h.NeedsRehash(a))
	assert.False(t, h.NeedsRehash("not-a-hash"))

	_, err = h.Hash("")
	require.ErrorIs(t, err, ErrInvalidPassword)
	_, err = h.Hash(strings.Repeat("x", 73))
	require.ErrorIs(t, err, ErrInvalidPassword)

	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(0, nil).Cost)
}
