package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/soaringjerry/satisfacao/internal/config"
	"github.com/soaringjerry/satisfacao/internal/logger"
	"github.com/soaringjerry/satisfacao/internal/models"
)

type AuthStore interface {
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	UpdateUserPassword(ctx context.Context, id int64, hash []byte) error
}

// Claims carried by a session token.
type Claims struct {
	UID      int64       `json:"uid"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	store    AuthStore
	secret   []byte
	tokenTTL time.Duration
	cost     int
	now      func() time.Time
	log      *zap.Logger
}

type credentialsInput struct {
	Username string `validate:"required,max=64"`
	// bcrypt ignores bytes past 72
	Password string `validate:"required,max=72"`
}

func NewAuthService(store AuthStore, cfg config.AuthConfig, log *zap.Logger) *AuthService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AuthService{
		store:    store,
		secret:   []byte(cfg.TokenSecret),
		tokenTTL: ttl,
		cost:     cost,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Or(log).Named("auth"),
	}
}

// Authenticate returns the user when username matches exactly and password verifies against
// the stored hash. Wrong credentials yield (nil, nil); only store failures are errors.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if username == "" || password == "" {
		return nil, nil
	}
	u, err := s.store.FindUserByUsername(ctx, username)
	if models.IsCode(err, models.ErrorNotFound) {
		s.log.Info("login rejected", zap.String("username", username))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(password)); err != nil {
		s.log.Info("login rejected", zap.String("username", username))
		return nil, nil
	}
	return u, nil
}

func (s *AuthService) CreateUser(ctx context.Context, username, password string, role models.Role) (*models.User, error) {
	in := credentialsInput{Username: strings.TrimSpace(username), Password: password}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, models.NewValidationError(fmt.Sprintf("unknown role %q", role))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, err
	}
	u := &models.User{Username: in.Username, PassHash: hash, Role: role}
	if _, err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.Int64("id", u.ID), zap.String("username", u.Username), zap.String("role", string(role)))
	return u, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(u.PassHash, []byte(current)); err != nil {
		return models.NewValidationError("current password does not match")
	}
	if err := validateInput(credentialsInput{Username: u.Username, Password: next}); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, userID, hash)
}

// IssueToken signs a session token for u, valid for the configured TTL.
func (s *AuthService) IssueToken(u *models.User) (string, error) {
	if u == nil {
		return "", errors.New("nil user")
	}
	now := s.now()
	claims := Claims{
		UID:      u.ID,
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *AuthService) ParseToken(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, models.NewValidationError("invalid session token: " + err.Error())
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, models.NewValidationError("invalid session token")
}

// UserFromToken restores the signed-in user, failing when the account no longer exists.
func (s *AuthService) UserFromToken(ctx context.Context, tok string) (*models.User, error) {
	c, err := s.ParseToken(tok)
	if err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, c.UID)
}

func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
