package service

import (
	"context"
	"strings"
	"time"

	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	Repo   domain.Repository
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	repo            domain.Repository
	jwtSecret       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func New(p Params) *Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("user.service"),
		repo:            p.Repo,
		jwtSecret:       []byte(p.Config.AuthJWTSecret),
		accessTokenTTL:  p.Config.AccessTokenTTL,
		refreshTokenTTL: p.Config.RefreshTokenTTL,
	}
}

func NewService(p Params) domain.Service { return New(p) }

func NewAuthService(p Params) domain.AuthService { return New(p) }

type tokenClaims struct {
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

func (s *Service) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	user, err := s.repo.FindByUsername(ctx, s.db, username)
	if err != nil {
		return domain.TokenPair{}, err
	}
	if user == nil {
		return domain.TokenPair{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return domain.TokenPair{}, domain.ErrInactiveUser
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.TokenPair{}, domain.ErrInvalidCredentials
	}

	return s.issueTokens(*user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	claims, err := s.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return domain.TokenPair{}, err
	}

	user, err := s.userFromClaims(ctx, claims)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return s.issueTokens(user)
}

func (s *Service) Authenticate(ctx context.Context, accessToken string) (domain.User, error) {
	claims, err := s.parseToken(accessToken, tokenTypeAccess)
	if err != nil {
		return domain.User{}, err
	}
	return s.userFromClaims(ctx, claims)
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.User, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return domain.User{}, domain.ErrNotFound
	}
	user, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrNotFound
	}
	return *user, nil
}

func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		users = append(users, *item)
	}
	return users, nil
}

func (s *Service) issueTokens(user domain.User) (domain.TokenPair, error) {
	access, err := s.signToken(user, tokenTypeAccess, s.accessTokenTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.signToken(user, tokenTypeRefresh, s.refreshTokenTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTokenTTL.Seconds()),
	}, nil
}

func (s *Service) signToken(user domain.User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		Username:  user.Username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func (s *Service) parseToken(raw, wantType string) (tokenClaims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return tokenClaims{}, domain.ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return tokenClaims{}, domain.ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) userFromClaims(ctx context.Context, claims tokenClaims) (domain.User, error) {
	id, err := snowflake.ParseString(claims.Subject)
	if err != nil || id == 0 {
		return domain.User{}, domain.ErrInvalidToken
	}
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.User{}, err
	}
	if user == nil {
		return domain.User{}, domain.ErrInvalidToken
	}
	if !user.IsActive {
		return domain.User{}, domain.ErrInactiveUser
	}
	return *user, nil
}

// HashPassword produces a bcrypt hash for seeding and account creation.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
