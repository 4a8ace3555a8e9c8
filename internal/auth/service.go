package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/david/contract-ledger/internal/apperr"
	"github.com/david/contract-ledger/internal/config"
	"github.com/david/contract-ledger/internal/logger"
	"github.com/david/contract-ledger/internal/models"
)

var (
	ErrUserExists   = errors.New("operator already exists")
	ErrInvalidCreds = errors.New("invalid credentials")
)

// OperatorStore persists operator accounts. CreateOperator returns
// apperr.ErrConflict for a taken email and OperatorByEmail apperr.ErrNotFound
// for an unknown one.
type OperatorStore interface {
	CreateOperator(ctx context.Context, email, passwordHash string) (models.Operator, error)
	OperatorByEmail(ctx context.Context, email string) (models.Operator, error)
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Token    string          `json:"token"`
	Operator models.Operator `json:"operator"`
}

type Service struct {
	store  OperatorStore
	secret []byte
	ttl    time.Duration
}

// NewService signs tokens with cfg.JWTSecret. Without one, a random secret is
// generated, so tokens do not survive a restart.
func NewService(store OperatorStore, cfg config.AuthConfig, log *logger.Logger) (*Service, error) {
	secret := []byte(strings.TrimSpace(cfg.JWTSecret))
	if len(secret) == 0 {
		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("failed to generate JWT fallback secret: %w", err)
		}
		secret = []byte(base64.RawURLEncoding.EncodeToString(buf))
		if log != nil {
			log.Warn("JWT secret is not set; using ephemeral in-memory fallback secret")
		}
	}
	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{store: store, secret: secret, ttl: ttl}, nil
}

func (s *Service) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	email := normalizeEmail(req.Email)
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing failed: %w", err)
	}

	op, err := s.store.CreateOperator(ctx, email, string(hash))
	if errors.Is(err, apperr.ErrConflict) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, err
	}

	token, err := s.generateToken(op.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, Operator: op}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	op, err := s.store.OperatorByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCreds
	}

	token, err := s.generateToken(op.ID)
	if err != nil {
		return nil, err
	}

	// Clear hash before returning
	op.PasswordHash = ""
	return &AuthResponse{Token: token, Operator: op}, nil
}

const tokenIssuer = "contract-ledger"

func (s *Service) generateToken(operatorID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   operatorID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
