// Package auth is a local mock login: accounts live in the same key-value
// store as the chat sessions and a JWT marks the signed-in browser. It gates
// the HTTP API for a single local user and is not an access control system.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"engiplex.com/aura-chat/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	KeyUsers       = "users"
	KeyUserSession = "user-session"

	minPasswordLength = 6
)

var (
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrPasswordTooShort   = errors.New("password must be at least 6 characters long")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("not signed in")
)

type user struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

type Service struct {
	mu     sync.Mutex
	kv     store.KV
	secret []byte
	now    func() time.Time
}

func NewService(kv store.KV, secret string) *Service {
	return &Service{kv: kv, secret: []byte(secret), now: time.Now}
}

// SignUp registers an account and signs it in.
func (s *Service) SignUp(email, password, confirm string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrEmailRequired
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.Email == email {
			return "", ErrEmailTaken
		}
	}

	hash, err := hashPassword(password)
	if err != nil {
		return "", err
	}
	users = append(users, user{Email: email, PasswordHash: hash})

	data, err := json.Marshal(users)
	if err != nil {
		return "", fmt.Errorf("failed to encode users: %w", err)
	}
	if err := s.kv.Set(KeyUsers, string(data)); err != nil {
		return "", fmt.Errorf("failed to save users: %w", err)
	}

	return s.startSession(email)
}

// SignIn checks the credentials and returns a fresh token.
func (s *Service) SignIn(email, password string) (string, error) {
	email = strings.TrimSpace(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers()
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.Email == email {
			if !checkPasswordHash(password, u.PasswordHash) {
				return "", ErrInvalidCredentials
			}
			return s.startSession(email)
		}
	}
	return "", ErrInvalidCredentials
}

func (s *Service) SignOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Remove(KeyUserSession); err != nil {
		return fmt.Errorf("failed to clear user session: %w", err)
	}
	return nil
}

// Authenticated returns the signed-in email when token is valid and belongs
// to the current user session.
func (s *Service) Authenticated(token string) (string, error) {
	email, err := ValidateJWT(s.secret, token)
	if err != nil {
		return "", ErrUnauthorized
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok, err := s.kv.Get(KeyUserSession)
	if err != nil {
		return "", fmt.Errorf("failed to read user session: %w", err)
	}
	if !ok || current != email {
		return "", ErrUnauthorized
	}
	return email, nil
}

func (s *Service) startSession(email string) (string, error) {
	token, err := GenerateJWT(s.secret, email, s.now())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	if err := s.kv.Set(KeyUserSession, email); err != nil {
		return "", fmt.Errorf("failed to save user session: %w", err)
	}
	return token, nil
}

func (s *Service) loadUsers() ([]user, error) {
	raw, ok, err := s.kv.Get(KeyUsers)
	if err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var users []user
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

func checkPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
