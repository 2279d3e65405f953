package service

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"go-time-archive/internal/model"
	"go-time-archive/pkg/apierror"
)

const accessTokenType = "access"

// TokenService issues and checks the HS256 tokens guarding the admin API.
type TokenService struct {
	secret []byte
	clock  Clock
}

func NewTokenService(secret string, clock Clock) *TokenService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TokenService{secret: []byte(secret), clock: clock}
}

// Issue signs an admin access token for subject valid for ttl.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", apierror.New("BAD_REQUEST", "token subject is required", "subject", http.StatusBadRequest)
	}
	if ttl <= 0 {
		return "", apierror.New("BAD_REQUEST", "token ttl must be positive", ttl.String(), http.StatusBadRequest)
	}

	now := s.clock.Now().UTC()
	claims := model.AuthClaims{
		Role:      model.RoleAdmin,
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate parses tokenString and returns its claims when the signature,
// expiry and token type check out.
func (s *TokenService) Validate(tokenString string) (*model.AuthClaims, error) {
	claims := &model.AuthClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return nil, apierror.New("UNAUTHORIZED", "invalid token", "", http.StatusUnauthorized)
	}

	if claims.TokenType != accessTokenType {
		return nil, apierror.New("UNAUTHORIZED", "invalid token type", "", http.StatusUnauthorized)
	}
	if claims.Subject == "" {
		return nil, apierror.New("UNAUTHORIZED", "invalid token subject", "", http.StatusUnauthorized)
	}

	return claims, nil
}
