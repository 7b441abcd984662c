package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ukydev/road-vision/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingSecret      = errors.New("jwt secret is empty")
)

// DefaultTokenExpiry is used when no expiry is configured.
const DefaultTokenExpiry = 24 * time.Hour

// Service handles authentication operations
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration
	operators map[string]models.Operator
}

// NewService creates a new authentication service that accepts the given operators.
func NewService(secret string, tokenExp time.Duration, operators ...models.Operator) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if tokenExp <= 0 {
		tokenExp = DefaultTokenExpiry
	}

	s := &Service{
		jwtSecret: []byte(secret),
		tokenExp:  tokenExp,
		operators: make(map[string]models.Operator, len(operators)),
	}
	for _, op := range operators {
		if !models.IsValidRole(op.Role) {
			return nil, fmt.Errorf("operator %q: invalid role %q", op.Username, op.Role)
		}
		s.operators[op.Username] = op
	}
	return s, nil
}

// TokenExpiry returns how long issued tokens stay valid.
func (s *Service) TokenExpiry() time.Duration { return s.tokenExp }

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword checks if a password matches a hash
func (s *Service) CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Authenticate returns the operator matching username and password.
func (s *Service) Authenticate(username, password string) (*models.Operator, error) {
	op, ok := s.operators[username]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !s.CheckPassword(password, op.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &op, nil
}

// GenerateToken generates a JWT token for an operator
func (s *Service) GenerateToken(op *models.Operator) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.tokenExp)
	claims := jwt.MapClaims{
		"username": op.Username,
		"role":     string(op.Role),
		"exp":      expiresAt.Unix(),
		"iat":      now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	// Remove "Bearer " prefix if present
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	username, ok := claims["username"].(string)
	if !ok {
		return nil, ErrInvalidToken
	}

	roleStr, ok := claims["role"].(string)
	if !ok || !models.IsValidRole(models.Role(roleStr)) {
		return nil, ErrInvalidToken
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	return &models.Claims{
		Username: username,
		Role:     models.Role(roleStr),
		Exp:      int64(exp),
	}, nil
}

// ExtractTokenFromHeader extracts token from Authorization header
func (s *Service) ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}
