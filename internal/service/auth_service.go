package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"earnx/config"
	"earnx/internal/auth"
	"earnx/internal/domain"
	"earnx/internal/models"
	"earnx/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrEmailInUse         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidPhone       = errors.New("please enter a 10-digit phone number")
	ErrMissingFields      = errors.New("name, email, phone and password are required")
	ErrNotAdmin           = errors.New("admin access required")
	ErrEmailUnverified    = errors.New("google account email is not verified")
)

const (
	minPasswordLen = 6
	phonePrefix    = "+91"
)

var phonePattern = regexp.MustCompile(`^\d{10}$`)

// UserStore is the identity record store.
type UserStore interface {
	Create(u *models.User) error
	GetByID(id string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByGoogleID(googleID string) (*models.User, error)
	Update(u *models.User) error
	Delete(id string) error
}

var _ UserStore = (*repository.UserRepository)(nil)

// Session is what a successful sign-in hands back to the client.
type Session struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	IsNew        bool         `json:"is_new,omitempty"`
}

type AuthService struct {
	cfg      *config.Config
	users    UserStore
	accounts *LedgerService
	audit    AuditRecorder
	log      *logrus.Entry
}

func NewAuthService(cfg *config.Config, users UserStore, accounts *LedgerService, audit AuditRecorder, log *logrus.Logger) *AuthService {
	return &AuthService{
		cfg:      cfg,
		users:    users,
		accounts: accounts,
		audit:    audit,
		log:      log.WithField("component", "auth"),
	}
}

// SignUp creates the identity and its account. If the account cannot be
// opened the identity is removed again.
func (s *AuthService) SignUp(ctx context.Context, actor Actor, name, email, phone, password, referral string) (*Session, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	phone = strings.TrimSpace(phone)
	if name == "" || email == "" || phone == "" || password == "" {
		return nil, ErrMissingFields
	}
	if !phonePattern.MatchString(phone) {
		return nil, ErrInvalidPhone
	}
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	_, err := s.users.GetByEmail(email)
	if err == nil {
		return nil, ErrEmailInUse
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Phone:        phonePrefix + phone,
		PasswordHash: string(hash),
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailInUse
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	if _, err := s.accounts.Open(ctx, u.ID, u.Name, referral); err != nil {
		if derr := s.users.Delete(u.ID); derr != nil {
			s.log.WithError(derr).WithField("user_id", u.ID).Error("signup rollback failed")
		}
		return nil, err
	}
	actor.UserID = u.ID
	s.record(actor, domain.AuditSignup)
	s.log.WithField("user_id", u.ID).Info("user signed up")
	return s.issue(u, true)
}

func (s *AuthService) SignIn(actor Actor, email, password string) (*Session, error) {
	u, err := s.checkPassword(email, password)
	if err != nil {
		return nil, err
	}
	actor.UserID = u.ID
	s.record(actor, domain.AuditLogin)
	return s.issue(u, false)
}

// AdminLogin is SignIn restricted to the ADMIN role.
func (s *AuthService) AdminLogin(actor Actor, email, password string) (*Session, error) {
	u, err := s.checkPassword(email, password)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, ErrNotAdmin
	}
	actor.UserID = u.ID
	s.record(actor, domain.AuditAdminLogin)
	s.log.WithField("user_id", u.ID).Info("admin signed in")
	return s.issue(u, false)
}

// SignOut only records the event; tokens are stateless and expire on their own.
func (s *AuthService) SignOut(actor Actor) {
	s.record(actor, domain.AuditLogout)
}

func (s *AuthService) Refresh(refreshToken string) (*Session, error) {
	userID, err := auth.ParseRefreshToken(&s.cfg.JWT, refreshToken)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return s.issue(u, false)
}

// GoogleProfile is the identity Google vouches for.
type GoogleProfile struct {
	ID            string
	Email         string
	Name          string
	AvatarURL     string
	EmailVerified bool
}

// LoginWithGoogle finds the user by Google ID, links an existing email
// signup, or creates a new identity with its account. Linking requires a
// verified email. referral only applies to a newly created account.
func (s *AuthService) LoginWithGoogle(ctx context.Context, actor Actor, p GoogleProfile, referral string) (*Session, error) {
	email := normalizeEmail(p.Email)
	googleID, name, avatarURL := p.ID, p.Name, p.AvatarURL
	u, err := s.users.GetByGoogleID(googleID)
	if err == nil {
		actor.UserID = u.ID
		s.record(actor, domain.AuditGoogleLogin)
		return s.issue(u, false)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	gid := googleID
	if existing, err := s.users.GetByEmail(email); err == nil {
		if !p.EmailVerified {
			s.log.WithField("user_id", existing.ID).Warn("refused to link unverified google email")
			return nil, ErrEmailUnverified
		}
		existing.GoogleID = &gid
		if avatarURL != "" {
			existing.AvatarURL = avatarURL
		}
		if err := s.users.Update(existing); err != nil {
			return nil, fmt.Errorf("link google account: %w", err)
		}
		actor.UserID = existing.ID
		s.record(actor, domain.AuditGoogleLogin)
		return s.issue(existing, false)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if name == "" {
		name = strings.Split(email, "@")[0]
	}
	u = &models.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		GoogleID:  &gid,
		Role:      domain.RoleUser,
		AvatarURL: avatarURL,
	}
	if err := s.users.Create(u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if _, err := s.accounts.Open(ctx, u.ID, u.Name, referral); err != nil {
		if derr := s.users.Delete(u.ID); derr != nil {
			s.log.WithError(derr).WithField("user_id", u.ID).Error("google signup rollback failed")
		}
		return nil, err
	}
	actor.UserID = u.ID
	s.record(actor, domain.AuditGoogleLogin)
	return s.issue(u, true)
}

func (s *AuthService) checkPassword(email, password string) (*models.User, error) {
	u, err := s.users.GetByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *AuthService) issue(u *models.User, isNew bool) (*Session, error) {
	access, err := auth.GenerateAccessToken(&s.cfg.JWT, u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.GenerateRefreshToken(&s.cfg.JWT, u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, RefreshToken: refresh, IsNew: isNew}, nil
}

func (s *AuthService) record(actor Actor, action string) {
	if s.audit == nil {
		return
	}
	var userID *string
	if actor.UserID != "" {
		id := actor.UserID
		userID = &id
	}
	if err := s.audit.Create(&models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "user",
		ResourceID: actor.UserID,
		IP:         actor.IP,
		UserAgent:  actor.UserAgent,
	}); err != nil {
		s.log.WithError(err).WithField("action", action).Warn("audit write failed")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
