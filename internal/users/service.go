package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-builder/internal/shared/auth"
	"resume-builder/internal/usage"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Entitlements is the slice of the usage service accounts depend on.
type Entitlements interface {
	Get(ctx context.Context, userID string) (usage.Entitlement, error)
}

// RegisterInput carries a new account's credentials and profile.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// GoogleProfile is the identity returned by Google sign-in.
type GoogleProfile struct {
	Sub        string
	Email      string
	GivenName  string
	FamilyName string
	PictureURL string
}

type Service struct {
	Repo         Repo
	Entitlements Entitlements
	now          func() time.Time
}

func NewService(repo Repo, entitlements Entitlements) *Service {
	return &Service{Repo: repo, Entitlements: entitlements, now: time.Now}
}

// Register creates a password account on the free plan.
func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return User{}, fmt.Errorf("%w: email and password required", ErrValidation)
	}
	if !emailPattern.MatchString(email) {
		return User{}, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(in.Password) < auth.MinPasswordLength {
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, auth.MinPasswordLength)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	if err := s.provision(ctx, user.ID); err != nil {
		return User{}, err
	}
	return s.Repo.GetByID(ctx, user.ID)
}

// Authenticate verifies credentials and stamps the login time.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return User{}, fmt.Errorf("%w: email and password required", ErrValidation)
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if user.PasswordHash == "" {
		return User{}, ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	now := s.now().UTC()
	user.LastLoginAt = &now
	if err := s.Repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpsertFromGoogle links a Google identity to the account with the same
// email, creating a password-less account when none exists.
func (s *Service) UpsertFromGoogle(ctx context.Context, profile GoogleProfile) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	email := NormalizeEmail(profile.Email)
	if strings.TrimSpace(profile.Sub) == "" || email == "" {
		return User{}, fmt.Errorf("%w: google subject and email are required", ErrValidation)
	}
	now := s.now().UTC()

	existing, err := s.Repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		existing.GoogleSub = profile.Sub
		if profile.PictureURL != "" {
			existing.PictureURL = profile.PictureURL
		}
		if existing.FirstName == "" {
			existing.FirstName = profile.GivenName
		}
		if existing.LastName == "" {
			existing.LastName = profile.FamilyName
		}
		existing.LastLoginAt = &now
		if err := s.Repo.Update(ctx, existing); err != nil {
			return User{}, err
		}
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return User{}, err
	}

	user := User{
		ID:          uuid.NewString(),
		Email:       email,
		FirstName:   profile.GivenName,
		LastName:    profile.FamilyName,
		GoogleSub:   profile.Sub,
		PictureURL:  profile.PictureURL,
		LastLoginAt: &now,
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			// Lost a race with a concurrent sign-in for the same email.
			return s.Repo.GetByEmail(ctx, email)
		}
		return User{}, err
	}
	if err := s.provision(ctx, user.ID); err != nil {
		return User{}, err
	}
	return s.Repo.GetByID(ctx, user.ID)
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// Entitlement returns the account's current download allowance.
func (s *Service) Entitlement(ctx context.Context, userID string) (usage.Entitlement, error) {
	if s.Entitlements == nil {
		return usage.Entitlement{}, errors.New("entitlements not configured")
	}
	return s.Entitlements.Get(ctx, userID)
}

func (s *Service) provision(ctx context.Context, userID string) error {
	if s.Entitlements == nil {
		return nil
	}
	if _, err := s.Entitlements.Get(ctx, userID); err != nil {
		return fmt.Errorf("provision entitlement: %w", err)
	}
	return nil
}

func (s *Service) ready() error {
	if s == nil || s.Repo == nil {
		return errors.New("users service not configured")
	}
	return nil
}
