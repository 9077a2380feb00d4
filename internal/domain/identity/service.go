package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TokenIssuer signs session tokens; *auth.TokenIssuer satisfies it.
type TokenIssuer interface {
	Issue(userID, name string, roles ...string) (string, time.Time, error)
}

type Service struct {
	users  UserRepository
	tokens TokenIssuer
	cost   int
}

func NewService(users UserRepository, tokens TokenIssuer) *Service {
	return &Service{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

// Session is returned by a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Signup registers a patient account. Other roles are created by an
// administrator through CreateUser.
func (s *Service) Signup(ctx context.Context, name, username, password, confirm string) (*User, error) {
	if password != confirm {
		return nil, invalid("confirm_password", "does not match password")
	}
	return s.CreateUser(ctx, name, username, password, RolePatient)
}

// CreateUser stores a new account. Patient display names must be unique
// after NormalizeName, since patients only see records filed under their
// own name.
func (s *Service) CreateUser(ctx context.Context, name, username, password string, role Role) (*User, error) {
	name = strings.Join(strings.Fields(name), " ")
	username = NormalizeUsername(username)
	switch {
	case name == "":
		return nil, invalid("name", "is required")
	case username == "":
		return nil, invalid("username", "is required")
	case strings.ContainsAny(username, " \t"):
		return nil, invalid("username", "must not contain spaces")
	case len(password) < MinPasswordLength:
		return nil, invalid("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	parsed, err := ParseRole(string(role))
	if err != nil || role == "" {
		return nil, invalid("role", "is not a known role")
	}

	u := &User{Name: name, Username: username, Role: parsed}
	if parsed == RolePatient {
		key := NormalizeName(name)
		_, err = s.users.GetByPatientKey(ctx, key)
		switch {
		case err == nil:
			return nil, ErrPatientNameTaken
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
		u.PatientKey = &key
	}
	if err := u.SetPassword(password, s.cost); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks credentials and issues a session token. An unknown username
// and a wrong password report the same error.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	u, err := s.users.GetByUsername(ctx, NormalizeUsername(username))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	token, exp, err := s.tokens.Issue(strconv.FormatInt(u.ID, 10), u.Name, u.Role.AuthRole())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// LookupPatient finds the patient account registered under name.
func (s *Service) LookupPatient(ctx context.Context, name string) (int64, bool, error) {
	u, err := s.users.GetByPatientKey(ctx, NormalizeName(name))
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return u.ID, true, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// Dashboard picks the highest-privilege role among roles.
func (s *Service) Dashboard(userID, name string, roles []string) Dashboard {
	role := RolePatient
	rank := map[Role]int{RolePatient: 0, RoleStaff: 1, RoleDoctor: 2, RoleAdmin: 3}
	for _, r := range roles {
		if cand := RoleFromAuth(r); rank[cand] > rank[role] {
			role = cand
		}
	}
	return Dashboard{UserID: userID, Name: name, Role: role, Features: Features(role)}
}
