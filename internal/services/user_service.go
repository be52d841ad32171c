package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/AnshRaj112/fonoterapia-backend/internal/apperr"
	"github.com/AnshRaj112/fonoterapia-backend/internal/models"
	"github.com/AnshRaj112/fonoterapia-backend/pkg/utils"
)

// Credentials hashes and verifies passwords.
type Credentials interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) (bool, error)
}

// BcryptCredentials is the production Credentials.
type BcryptCredentials struct{}

func (BcryptCredentials) Hash(plaintext string) (string, error) { return utils.HashPassword(plaintext) }

func (BcryptCredentials) Verify(plaintext, hash string) (bool, error) {
	return utils.VerifyPassword(plaintext, hash)
}

type UserService struct {
	store UserStore
	creds Credentials

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(store UserStore, creds Credentials) *UserService {
	return &UserService{store: store, creds: creds}
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user. A taken email fails with KindConflict.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, apperr.New(apperr.KindValidation, "name, email and password are required")
	}
	if len(password) < utils.MinPasswordLength {
		return nil, apperr.New(apperr.KindValidation, "password must be at least 8 characters")
	}
	if len(password) > utils.MaxPasswordLength {
		return nil, apperr.New(apperr.KindValidation, "password must be at most 72 bytes")
	}
	if utf8.RuneCountInString(name) > models.MaxNameLength {
		return nil, apperr.New(apperr.KindValidation, "name must be at most 255 characters")
	}
	if utf8.RuneCountInString(email) > models.MaxEmailLength {
		return nil, apperr.New(apperr.KindValidation, "email must be at most 255 characters")
	}

	hash, err := s.creds.Hash(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.Wrap(apperr.KindValidation, "password must be at most 72 bytes", err)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnexpected, "failed to hash password", err)
	}

	user, err := s.store.CreateUser(ctx, name, email, hash)
	if err != nil {
		return nil, err
	}
	slog.Info("user registered", "user_id", user.ID)
	return user, nil
}

const invalidCredentials = "invalid email or password"

// Login verifies credentials. Unknown email and wrong password fail the
// same way so callers cannot probe which emails exist.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.New(apperr.KindValidation, "email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if apperr.Is(err, apperr.KindNotFound) {
		// Spend the same hashing time as a real check.
		_, _ = s.creds.Verify(password, s.dummy())
		return nil, apperr.New(apperr.KindUnauthorized, invalidCredentials)
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.creds.Verify(password, user.PasswordHash)
	if err != nil {
		slog.Warn("stored password hash could not be verified", "user_id", user.ID, "error", err)
	}
	if err != nil || !ok {
		return nil, apperr.New(apperr.KindUnauthorized, invalidCredentials)
	}
	return user, nil
}

func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.creds.Hash("timing-equalizer-password")
	})
	return s.dummyHash
}
