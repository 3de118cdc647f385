// Package authn provides username/password authentication.
package authn

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"standup/api/internal/auth"
	"standup/api/internal/store"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrSetupDone          = errors.New("setup already completed")
	ErrUsernameTaken      = errors.New("username already taken")
)

// WeakPasswordError carries the user-facing reason a password was rejected.
type WeakPasswordError struct {
	Reason string
}

func (e *WeakPasswordError) Error() string {
	return e.Reason
}

// commonPasswords is the deny list checked case-insensitively.
var commonPasswords = map[string]struct{}{
	"password": {}, "12345678": {}, "123456789": {}, "1234567890": {}, "qwerty123": {},
	"password1": {}, "iloveyou": {}, "sunshine1": {}, "princess1": {}, "football1": {},
	"abc12345": {}, "monkey123": {}, "shadow123": {}, "master123": {}, "dragon123": {},
	"qwertyui": {}, "trustno1": {}, "letmein1": {}, "baseball1": {}, "password123": {},
}

// UserStore is the persistence the auth flows need.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
	GetUserByID(ctx context.Context, id int64) (store.User, error)
	CountUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, u store.User) (int64, error)
	UpdateUserPassword(ctx context.Context, id int64, passwordHash string, mustChange bool) error
	UpdateLastLogin(ctx context.Context, id int64) error
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// ValidatePassword enforces the password policy: at least 8 characters and
// not on the common-password deny list.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return &WeakPasswordError{Reason: "Password must be at least 8 characters."}
	}
	if _, common := commonPasswords[strings.ToLower(password)]; common {
		return &WeakPasswordError{Reason: "That password is too common. Please choose a stronger one."}
	}
	return nil
}

// Setup creates the first account as an admin. It refuses once any user
// exists.
func (s *Service) Setup(ctx context.Context, username, password, displayName string) (store.User, error) {
	username = strings.TrimSpace(username)
	displayName = strings.TrimSpace(displayName)
	if username == "" || password == "" {
		return store.User{}, errors.New("username and password are required")
	}
	if displayName == "" {
		displayName = username
	}
	if err := ValidatePassword(password); err != nil {
		return store.User{}, err
	}

	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return store.User{}, err
	}
	if count > 0 {
		return store.User{}, ErrSetupDone
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         "admin",
		IsActive:     true,
		FeedToken:    auth.RandomToken("feed"),
	}
	id, err := s.store.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.User{}, ErrUsernameTaken
		}
		return store.User{}, err
	}
	user.ID = id
	return user, nil
}

// SignIn checks credentials and records the login time. The caller applies
// rate limiting before calling this.
func (s *Service) SignIn(ctx context.Context, username, password string) (store.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return store.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return store.User{}, ErrAccountDisabled
	}
	if err := s.store.UpdateLastLogin(ctx, user.ID); err != nil {
		return store.User{}, err
	}
	return user, nil
}

// ChangePassword sets a new password. The current password is verified
// unless the account is flagged must_change_password (forced rotation after
// an admin reset).
func (s *Service) ChangePassword(ctx context.Context, userID int64, currentPassword, newPassword string) error {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.MustChangePassword {
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
			return ErrInvalidCredentials
		}
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.store.UpdateUserPassword(ctx, userID, string(hash), false)
}

// ResetPassword issues a temporary password for a user and forces a change
// on next login. Returns the plaintext temporary password for the admin to
// hand over.
func (s *Service) ResetPassword(ctx context.Context, userID int64) (string, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return "", err
	}

	temp, err := tempPassword()
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(temp), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdateUserPassword(ctx, userID, string(hash), true); err != nil {
		return "", err
	}
	return temp, nil
}

// HashPassword is used by admin user creation.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func tempPassword() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate temp password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
