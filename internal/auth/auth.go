// Package auth is the user registry: credentials, roles and the staff
// records managed by administrators. It is a collaborator of the account
// ledger, not part of it.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Role is a closed set of authorization levels.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

// ParseRole validates a textual role.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// User is one registry record.
type User struct {
	Username string
	Password string
	Role     Role
}

// Record renders the user in its persisted form: username,password,role.
func (u *User) Record() string {
	return fmt.Sprintf("%s,%s,%s", u.Username, u.Password, u.Role)
}

// ParseUserRecord parses a single persisted user line.
func ParseUserRecord(line string) (*User, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed user record %q", line)
	}
	role, err := ParseRole(parts[2])
	if err != nil {
		return nil, fmt.Errorf("bad role in %q", line)
	}
	return &User{Username: parts[0], Password: parts[1], Role: role}, nil
}

var (
	// ErrInvalidCredentials marks a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists marks an attempt to register a taken username.
	ErrUserExists = errors.New("username already exists")
	// ErrUserNotFound marks a reference to an unknown user.
	ErrUserNotFound = errors.New("user not found")
)

// Store is the durable user registry.
type Store interface {
	Find(ctx context.Context, username string) (*User, error)
	Create(ctx context.Context, u *User) error
	ListByRole(ctx context.Context, role Role) ([]*User, error)
	// Delete removes the user matching both username and role; it never
	// removes a record holding a different role under the same name.
	Delete(ctx context.Context, username string, role Role) error
}

// Service wraps a Store with the registry's business rules.
type Service struct {
	store Store
}

// NewService wires the registry service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Authenticate resolves a username/password pair to its registry record.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	u, err := s.store.Find(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.Password != password {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// EnsureCustomer registers a customer record when the username is unknown.
// An existing record of any role is left untouched.
func (s *Service) EnsureCustomer(ctx context.Context, username, password string) error {
	_, err := s.store.Find(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	return s.store.Create(ctx, &User{Username: username, Password: password, Role: RoleCustomer})
}

// AddStaff registers a staff record. Usernames must be non-empty and
// non-numeric; passwords non-empty; duplicates are rejected.
func (s *Service) AddStaff(ctx context.Context, username, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return errors.New("username and password must not be empty")
	}
	if isNumeric(username) {
		return errors.New("username must not be numeric")
	}
	if _, err := s.store.Find(ctx, username); err == nil {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}
	return s.store.Create(ctx, &User{Username: username, Password: password, Role: RoleStaff})
}

// ListStaff returns all staff records.
func (s *Service) ListStaff(ctx context.Context) ([]*User, error) {
	return s.store.ListByRole(ctx, RoleStaff)
}

// RemoveStaff deletes a staff record. Admins and customers are never
// deleted through this path.
func (s *Service) RemoveStaff(ctx context.Context, username string) error {
	return s.store.Delete(ctx, username, RoleStaff)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
