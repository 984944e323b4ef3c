package domain

import (
	"context"
	"errors"
)

const (
	RoleDonor      = "donor"
	RoleFundraiser = "fundraiser"
)

type Service interface {
	Signup(ctx context.Context, req Request) (*Result, error)
}

type Request struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type Result struct {
	Username   string `json:"username"`
	ExternalID string `json:"external_id"`
	ProfileID  string `json:"profile_id"`
	Role       string `json:"role"`
}

// IdentityProvider owns login credentials.
type IdentityProvider interface {
	CreateAccount(ctx context.Context, email, password string, attrs map[string]string) (*Account, error)
	DeleteAccount(ctx context.Context, username string) error
}

type Account struct {
	Username   string
	ExternalID string
}

// ProfileStore owns the user profile matching an identity account.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p Profile) (string, error)
}

type Profile struct {
	ExternalID string
	Email      string
	FullName   string
	Role       string
}

// Provisioner prepares per-user resources once the account and profile exist.
type Provisioner interface {
	Provision(ctx context.Context, profileID, role string) error
}

var (
	ErrInvalidRequest = errors.New("invalid_signup_request")
	ErrInvalidRole    = errors.New("invalid_signup_role")
)
