// Package authpw provides name/password credential handling for profiles.
package authpw

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"haven/api/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

// Postgres unique_violation, raised when two signups race past the
// existence check and both hit the UNIQUE constraint on the name.
const uniqueViolationCode = "23505"

var (
	// ErrNameTaken is returned by SignUp when the profile name already exists.
	ErrNameTaken = errors.New("name already registered")
	// ErrInvalidCredentials is returned by SignIn for an unknown name or a
	// wrong password; the two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid name or password")
)

// Hash produces a salted one-way digest of the password. The plaintext is
// never stored or logged.
func Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether password matches digest. bcrypt's comparison is
// constant-time; any mismatch or malformed digest yields false, never an
// error to the caller.
func Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// ProfileStore defines the storage interface for credential operations.
type ProfileStore interface {
	GetProfileByName(ctx context.Context, name string) (store.Profile, error)
	CreateProfile(ctx context.Context, p store.Profile) (store.Profile, error)
}

// Service provides signup and login against a ProfileStore.
type Service struct {
	store ProfileStore
}

func NewService(store ProfileStore) *Service {
	return &Service{store: store}
}

// SignUpRequest contains sign-up parameters.
type SignUpRequest struct {
	Name       string
	Password   string
	Profession string
	Bio        string
	Avatar     string
}

// SignUp creates a new profile. The name is the identity key and must be
// unique; it is immutable after creation.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.Profile, error) {
	if req.Name == "" || req.Password == "" {
		return store.Profile{}, errors.New("name and password are required")
	}

	if _, err := s.store.GetProfileByName(ctx, req.Name); err == nil {
		return store.Profile{}, ErrNameTaken
	} else if !errors.Is(err, sql.ErrNoRows) {
		return store.Profile{}, fmt.Errorf("lookup profile: %w", err)
	}

	digest, err := Hash(req.Password)
	if err != nil {
		return store.Profile{}, err
	}

	profile, err := s.store.CreateProfile(ctx, store.Profile{
		Name:         req.Name,
		PasswordHash: digest,
		Profession:   req.Profession,
		Bio:          req.Bio,
		Avatar:       req.Avatar,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return store.Profile{}, ErrNameTaken
		}
		return store.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return profile, nil
}

// SignIn authenticates a profile by name and password.
func (s *Service) SignIn(ctx context.Context, name, password string) (store.Profile, error) {
	if name == "" || password == "" {
		return store.Profile{}, ErrInvalidCredentials
	}

	profile, err := s.store.GetProfileByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Profile{}, ErrInvalidCredentials
		}
		return store.Profile{}, fmt.Errorf("lookup profile: %w", err)
	}

	if !Verify(password, profile.PasswordHash) {
		return store.Profile{}, ErrInvalidCredentials
	}
	return profile, nil
}
