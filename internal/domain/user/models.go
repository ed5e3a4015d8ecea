package user

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"balancebook/internal/domain/currency"
	"balancebook/internal/shared/auth"
)

// Domain errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidInput       = errors.New("invalid input")
)

const minPasswordLength = 8

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	BaseCurrency string    `json:"baseCurrency"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type CreateUserParams struct {
	Email        string
	Name         string
	PasswordHash string
	BaseCurrency string
}

// RegisterParams is the input for password registration.
type RegisterParams struct {
	Email        string
	Password     string
	Name         string
	BaseCurrency string
}

// Validate normalises and validates the registration input
func (p *RegisterParams) Validate() error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Name = strings.TrimSpace(p.Name)
	if p.Email == "" || p.Password == "" || p.Name == "" {
		return errors.New("email, password, and name are required")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return errors.New("a valid email is required")
	}
	if len(p.Password) < minPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	if len(p.Password) > auth.MaxPasswordBytes {
		return auth.ErrPasswordTooLong
	}
	if p.BaseCurrency == "" {
		p.BaseCurrency = currency.USD
	}
	p.BaseCurrency = currency.NormalizeCode(p.BaseCurrency)
	return currency.ValidateCode(p.BaseCurrency)
}

type UpdateUserParams struct {
	Name         *string `json:"name"`
	BaseCurrency *string `json:"baseCurrency"`
}

// Validate validates the update parameters
func (p *UpdateUserParams) Validate() error {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return errors.New("name cannot be empty")
		}
		p.Name = &name
	}
	if p.BaseCurrency != nil {
		code := currency.NormalizeCode(*p.BaseCurrency)
		if err := currency.ValidateCode(code); err != nil {
			return err
		}
		p.BaseCurrency = &code
	}
	return nil
}
