package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"earnx/config"
	"earnx/internal/auth"
	"earnx/internal/domain"
	"earnx/internal/ledger"
	"earnx/internal/models"
	"earnx/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeUserStore struct {
	users     map[string]*models.User
	createErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(u *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) GetByID(id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserStore) GetByEmail(email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserStore) GetByGoogleID(googleID string) (*models.User, error) {
	for _, u := range f.users {
		if u.GoogleID != nil && *u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserStore) Update(u *models.User) error {
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserStore) Delete(id string) error {
	delete(f.users, id)
	return nil
}

// failingCreateStore refuses to create accounts.
type failingCreateStore struct {
	AccountStore
}

func (failingCreateStore) Create(context.Context, ledger.Account) (ledger.Account, error) {
	return ledger.Account{}, errors.New("accounts table unavailable")
}

type authHarness struct {
	svc      *AuthService
	users    *fakeUserStore
	accounts AccountStore
	audit    *recordingAudit
	cfg      *config.Config
}

func newAuthHarness(t *testing.T, accounts AccountStore) *authHarness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.JWT.AccessSecret = "test-access"
	cfg.JWT.RefreshSecret = "test-refresh"
	cfg.JWT.AccessExpiry = time.Minute
	cfg.JWT.RefreshExpiry = time.Hour

	log := logrus.New()
	log.SetOutput(io.Discard)
	ledgerSvc := NewLedgerService(ledger.NewEngine(ledger.DefaultRules()), accounts,
		NewTaskCatalog(decimal.NewFromInt(20), decimal.RequireFromString("0.15")), nil, nil, nil, 3, log)
	h := &authHarness{users: newFakeUserStore(), accounts: accounts, audit: &recordingAudit{}, cfg: cfg}
	h.svc = NewAuthService(cfg, h.users, ledgerSvc, h.audit, log)
	return h
}

func TestSignUp_CreatesIdentityAndAccount(t *testing.T) {
	h := newAuthHarness(t, repository.NewMemoryAccountStore())
	ctx := context.Background()

	sess, err := h.svc.SignUp(ctx, Actor{IP: "1.2.3.4"}, "Asha", " Asha@Example.com ", "9876543210", "secret1", "ref-7f3a")
	require.NoError(t, err)
	assert.True(t, sess.IsNew)
	assert.Equal(t, "asha@example.com", sess.User.Email)
	assert.Equal(t, "+919876543210", sess.User.Phone)
	assert.Equal(t, domain.RoleUser, sess.User.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(sess.User.PasswordHash), []byte("secret1")))

	claims, err := auth.ParseAccessToken(&h.cfg.JWT, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, claims.UserID)

	acct, err := h.accounts.Get(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "REF-7F3A", acct.UsedReferral)
	require.Len(t, acct.History, 1)
	assert.Equal(t, "Account created with referral REF-7F3A", acct.History[0].Note)

	require.Len(t, h.audit.logs, 1)
	assert.Equal(t, domain.AuditSignup, h.audit.logs[0].Action)
	assert.Equal(t, "1.2.3.4", h.audit.logs[0].IP)

	_, err = h.svc.SignUp(ctx, Actor{}, "Other", "asha@example.com", "9876543211", "secret2", "")
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestSignUp_Validation(t *testing.T) {
	h := newAuthHarness(t, repository.NewMemoryAccountStore())
	tests := []struct {
		name                          string
		uname, email, phone, password string
		want                          error
	}{
		{"missing name", "", "a@b.c", "9876543210", "secret1", ErrMissingFields},
		{"missing phone", "A", "a@b.c", "", "secret1", ErrMissingFields},
		{"short phone", "A", "a@b.c", "98765", "secret1", ErrInvalidPhone},
		{"prefixed phone", "A", "a@b.c", "+919876543210", "secret1", ErrInvalidPhone},
		{"weak password", "A", "a@b.c", "9876543210", "12345", ErrWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.SignUp(context.Background(), Actor{}, tt.uname, tt.email, tt.phone, tt.password, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, h.users.users)
}

func TestSignUp_RollsBackWhenAccountFails(t *testing.T) {
	h := newAuthHarness(t, failingCreateStore{AccountStore: repository.NewMemoryAccountStore()})
	_, err := h.svc.SignUp(context.Background(), Actor{}, "Asha", "asha@example.com", "9876543210", "secret1", "")
	require.Error(t, err)
	assert.Empty(t, h.users.users)
	assert.Empty(t, h.audit.logs)
}

func TestSignInAndRefresh(t *testing.T) {
	h := newAuthHarness(t, repository.NewMemoryAccountStore())
	ctx := context.Background()
	created, err := h.svc.SignUp(ctx, Actor{}, "Asha", "asha@example.com", "9876543210", "secret1", "")
	require.NoError(t, err)

	_, err = h.svc.SignIn(Actor{}, "asha@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = h.svc.SignIn(Actor{}, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	sess, err := h.svc.SignIn(Actor{}, "ASHA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, sess.User.ID)
	assert.False(t, sess.IsNew)

	refreshed, err := h.svc.Refresh(sess.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, refreshed.User.ID)

	_, err = h.svc.Refresh(sess.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = h.svc.AdminLogin(Actor{}, "asha@example.com", "secret1")
	assert.ErrorIs(t, err, ErrNotAdmin)

	h.svc.SignOut(Actor{UserID: created.User.ID})
	last := h.audit.logs[len(h.audit.logs)-1]
	assert.Equal(t, domain.AuditLogout, last.Action)
}

func TestAdminLogin(t *testing.T) {
	h := newAuthHarness(t, repository.NewMemoryAccountStore())
	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, h.users.Create(&models.User{
		ID: "admin-1", Name: "Ops", Email: "ops@earnx.app", PasswordHash: string(hash), Role: domain.RoleAdmin,
	}))

	sess, err := h.svc.AdminLogin(Actor{}, "ops@earnx.app", "admin-pass")
	require.NoError(t, err)
	claims, err := auth.ParseAccessToken(&h.cfg.JWT, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.Equal(t, domain.AuditAdminLogin, h.audit.logs[0].Action)
}

func TestLoginWithGoogle(t *testing.T) {
	h := newAuthHarness(t, repository.NewMemoryAccountStore())
	ctx := context.Background()

	first, err := h.svc.LoginWithGoogle(ctx, Actor{}, GoogleProfile{
		ID: "g-1", Email: "new@example.com", AvatarURL: "https://img/1.png", EmailVerified: true,
	}, "REF-0001")
	require.NoError(t, err)
	assert.True(t, first.IsNew)
	assert.Equal(t, "new", first.User.Name)
	acct, err := h.accounts.Get(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "REF-0001", acct.UsedReferral)

	again, err := h.svc.LoginWithGoogle(ctx, Actor{}, GoogleProfile{ID: "g-1", Email: "new@example.com", EmailVerified: true}, "")
	require.NoError(t, err)
	assert.False(t, again.IsNew)
	assert.Equal(t, first.User.ID, again.User.ID)

	signed, err := h.svc.SignUp(ctx, Actor{}, "Ravi", "ravi@example.com", "9123456789", "secret1", "")
	require.NoError(t, err)
	linked, err := h.svc.LoginWithGoogle(ctx, Actor{}, GoogleProfile{ID: "g-2", Email: "ravi@example.com", Name: "Ravi K", EmailVerified: true}, "")
	require.NoError(t, err)
	assert.False(t, linked.IsNew)
	assert.Equal(t, signed.User.ID, linked.User.ID)
	stored, err := h.users.GetByID(signed.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.GoogleID)
	assert.Equal(t, "g-2", *stored.GoogleID)
}

func TestLoginWithGoogle_UnverifiedEmailNeverLinks(t *testing.T) {
	h := newAuthHarness(t, repository.NewMemoryAccountStore())
	ctx := context.Background()
	signed, err := h.svc.SignUp(ctx, Actor{}, "Ravi", "ravi@example.com", "9123456789", "secret1", "")
	require.NoError(t, err)

	_, err = h.svc.LoginWithGoogle(ctx, Actor{}, GoogleProfile{ID: "g-evil", Email: "Ravi@example.com"}, "")
	assert.ErrorIs(t, err, ErrEmailUnverified)

	stored, err := h.users.GetByID(signed.User.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.GoogleID)
	_, err = h.users.GetByGoogleID("g-evil")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	fresh, err := h.svc.LoginWithGoogle(ctx, Actor{}, GoogleProfile{ID: "g-3", Email: "fresh@example.com"}, "")
	require.NoError(t, err)
	assert.True(t, fresh.IsNew)
}
