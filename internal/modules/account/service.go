// README: Registration, login and redis-backed opaque sessions.
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"kilap/internal/types"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrBadCredentials = errors.New("email or password incorrect")
	ErrBadSession     = errors.New("session invalid or expired")
	ErrBadInput       = errors.New("name, email and a password of 8+ characters are required")
)

type Service struct {
	store      *Store
	redis      *redis.Client
	sessionTTL time.Duration
}

func NewService(store *Store, redis *redis.Client, sessionTTL time.Duration) *Service {
	return &Service{store: store, redis: redis, sessionTTL: sessionTTL}
}

type RegisterCommand struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Role     Role
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*User, error) {
	cmd.Email = strings.ToLower(strings.TrimSpace(cmd.Email))
	if cmd.Name == "" || cmd.Email == "" || len(cmd.Password) < 8 {
		return nil, ErrBadInput
	}
	if cmd.Role == "" {
		cmd.Role = RoleCustomer
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:         cmd.Name,
		Email:        cmd.Email,
		Phone:        cmd.Phone,
		PasswordHash: string(hash),
		Role:         cmd.Role,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login verifies the password and mints an opaque session token. The token
// maps to "userID:role" in redis and expires server-side.
func (s *Service) Login(ctx context.Context, email, password string) (string, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", nil, ErrBadCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, ErrBadCredentials
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, err
	}
	token := hex.EncodeToString(buf)
	key := sessionKey(token)
	if err := s.redis.Set(ctx, key, fmt.Sprintf("%s:%s", u.ID, u.Role), s.sessionTTL).Err(); err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.redis.Del(ctx, sessionKey(token)).Err()
}

// Verify resolves a bearer token to its session. Used by the auth middleware.
func (s *Service) Verify(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrBadSession
	}
	val, err := s.redis.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrBadSession
	}
	if err != nil {
		return nil, err
	}
	id, role, ok := strings.Cut(val, ":")
	if !ok {
		return nil, ErrBadSession
	}
	return &Session{UserID: types.ID(id), Role: Role(role)}, nil
}

func (s *Service) GetByID(ctx context.Context, id types.ID) (*User, error) {
	return s.store.GetByID(ctx, id)
}

func sessionKey(token string) string {
	return "sessions:" + token
}
