package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"courseportal/internal/store"
	"courseportal/pkg/auth"
	"courseportal/pkg/domain"
)

// CreateUserInput carries the fields of an admin user registration.
type CreateUserInput struct {
	Email    string
	Name     string
	Role     domain.UserRole
	Password string
}

// Login verifies credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	var problems []string
	if err := auth.ValidateEmail(email); err != nil {
		problems = append(problems, err.Error())
	}
	if password == "" {
		problems = append(problems, "password is required")
	}
	if len(problems) > 0 {
		return domain.User{}, "", Validation(strings.Join(problems, ", "))
	}

	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("lookup user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Logout revokes the presented session token.
func (a *App) Logout(token string) error {
	return a.sessions.Revoke(token)
}

// Authenticate resolves a session token to its user. An invalid token
// yields session.ErrInvalidToken; a valid token whose subject no longer
// exists yields ErrUserNotFound.
func (a *App) Authenticate(token string) (domain.User, error) {
	userID, err := a.sessions.Verify(token)
	if err != nil {
		return domain.User{}, err
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// CreateUser registers a new account. Admin-only at the boundary.
func (a *App) CreateUser(in CreateUserInput) (domain.User, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	var problems []string
	if err := auth.ValidateEmail(in.Email); err != nil {
		problems = append(problems, err.Error())
	}
	if in.Name == "" {
		problems = append(problems, "name is required")
	}
	if !in.Role.Valid() {
		problems = append(problems, "role must be 'admin' or 'student'")
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return domain.User{}, Validation(strings.Join(problems, ", "))
	}

	exists, err := a.store.HasUserEmail(in.Email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailExists
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user, err := a.store.CreateUser(domain.User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         in.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.User{}, ErrEmailExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// EnsureAdmin seeds a bootstrap admin account when the user table is empty,
// so a fresh deployment has someone who can create the other accounts.
func (a *App) EnsureAdmin(email, name, password string) error {
	count, err := a.store.CountUsers()
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = a.CreateUser(CreateUserInput{
		Email:    email,
		Name:     name,
		Role:     domain.RoleAdmin,
		Password: password,
	})
	return err
}
