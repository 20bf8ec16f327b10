package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("user_not_found")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrInactiveUser       = errors.New("inactive_user")
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type AuthService interface {
	Login(ctx context.Context, username, password string) (TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	// Authenticate validates an access token and returns the subject user.
	Authenticate(ctx context.Context, accessToken string) (User, error)
}

type Service interface {
	GetByID(ctx context.Context, id string) (User, error)
	List(ctx context.Context) ([]User, error)
}
