// Package auth implements account registration and login for the REST
// surface. Passwords are hashed with Argon2id; issued bearer tokens are
// random and stored only as SHA-256 hashes.
//
// The realtime path does not consult this package: identity at the socket
// layer is self-asserted, a documented trust boundary of the chat core.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"tanktalk/internal/archive"
	"tanktalk/pkg/types"
)

var (
	ErrUsernameTaken      = errors.New("username is already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Service provides account operations backed by the archive store.
type Service struct {
	store    *archive.Store
	tokenTTL time.Duration
}

// NewService creates an auth service issuing tokens valid for tokenTTL.
func NewService(store *archive.Store, tokenTTL time.Duration) *Service {
	return &Service{store: store, tokenTTL: tokenTTL}
}

// HashPassword hashes a password with Argon2id.
func HashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
}

// GenerateToken generates a random bearer token (32 bytes, hex).
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return fmt.Sprintf("%x", b), nil
}

// HashToken hashes a raw token value with SHA-256 for storage.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", h[:])
}

// Register creates a new account.
func (s *Service) Register(ctx context.Context, username, password string, level types.Level) (*archive.User, error) {
	if !types.IsValidUsername(username) {
		return nil, types.ErrInvalidUsername
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if !level.IsValid() {
		level = types.LevelBeginner
	}

	existing, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("auth: generate salt: %w", err)
	}

	user := &archive.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: HashPassword(password, salt),
		Salt:         salt,
		Level:        level,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *archive.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return "", nil, ErrInvalidCredentials
	}

	hash := HashPassword(password, user.Salt)
	if subtle.ConstantTimeCompare(hash, user.PasswordHash) != 1 {
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateToken()
	if err != nil {
		return "", nil, err
	}
	if err := s.store.SaveToken(ctx, user.ID, HashToken(token), time.Now().Add(s.tokenTTL)); err != nil {
		return "", nil, fmt.Errorf("save token: %w", err)
	}
	return token, user, nil
}

// VerifyToken resolves a bearer token to its account.
func (s *Service) VerifyToken(ctx context.Context, token string) (*archive.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.store.GetUserByTokenHash(ctx, HashToken(token))
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}
