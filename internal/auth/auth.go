package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ukydev/vitarenta/internal/config"
	"github.com/ukydev/vitarenta/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is inactive")
)

// Token types carried in the "typ" claim.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Service handles authentication operations
type Service struct {
	jwtSecret  []byte
	tokenExp   time.Duration
	refreshExp time.Duration
	now        func() time.Time
}

// NewService creates a new authentication service
func NewService(cfg config.AuthConfig) (*Service, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	exp := cfg.AccessTTL
	if exp <= 0 {
		exp = 24 * time.Hour
	}
	refresh := cfg.RefreshTTL
	if refresh <= 0 {
		refresh = 7 * 24 * time.Hour
	}
	return &Service{
		jwtSecret:  []byte(cfg.JWTSecret),
		tokenExp:   exp,
		refreshExp: refresh,
		now:        time.Now,
	}, nil
}

// HashPassword hashes a password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
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

// GenerateToken generates an access token for a user
func (s *Service) GenerateToken(user *models.User) (string, error) {
	return s.sign(user, TokenAccess, s.tokenExp)
}

// GenerateRefreshToken generates a refresh token for a user. It is only
// accepted by ValidateRefreshToken.
func (s *Service) GenerateRefreshToken(user *models.User) (string, error) {
	return s.sign(user, TokenRefresh, s.refreshExp)
}

// GenerateTokenPair returns a fresh access and refresh token.
func (s *Service) GenerateTokenPair(user *models.User) (access, refresh string, err error) {
	if access, err = s.GenerateToken(user); err != nil {
		return "", "", err
	}
	if refresh, err = s.GenerateRefreshToken(user); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *Service) sign(user *models.User, typ string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": user.ID.Hex(),
		"email":   user.Email,
		"role":    string(user.Role),
		"typ":     typ,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}
	if user.AgenceID != "" {
		claims["agence_id"] = user.AgenceID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken validates an access token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*models.Claims, error) {
	return s.validate(tokenString, TokenAccess)
}

// ValidateRefreshToken validates a refresh token and returns the claims
func (s *Service) ValidateRefreshToken(tokenString string) (*models.Claims, error) {
	return s.validate(tokenString, TokenRefresh)
}

func (s *Service) validate(tokenString, typ string) (*models.Claims, error) {
	// Remove "Bearer " prefix if present
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))

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

	// Extract claims
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidToken
	}

	roleStr, ok := claims["role"].(string)
	if !ok || !models.IsValidRole(models.Role(roleStr)) {
		return nil, ErrInvalidToken
	}

	tokenType, _ := claims["typ"].(string)
	if tokenType != typ {
		return nil, ErrInvalidToken
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	agenceID, _ := claims["agence_id"].(string)

	return &models.Claims{
		UserID:   userID,
		Email:    email,
		Role:     models.Role(roleStr),
		AgenceID: agenceID,
		Type:     tokenType,
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

// ValidatePassword validates password strength
func (s *Service) ValidatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters long")
	}
	return nil
}

// ValidateEmail validates email format
func (s *Service) ValidateEmail(email string) error {
	at := strings.LastIndex(email, "@")
	if at < 1 || !strings.Contains(email[at+1:], ".") || strings.HasSuffix(email, ".") {
		return errors.New("invalid email format")
	}
	return nil
}
