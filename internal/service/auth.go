package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/cyberwatch-india/backend/internal/config"
	"github.com/cyberwatch-india/backend/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// CollectorAuthService verifies the bearer tokens presented by scraper
// collectors on write endpoints. With no secret configured it is disabled
// and every request is let through.
type CollectorAuthService struct {
	jwtSecret []byte
}

type collectorClaims struct {
	Collector string `json:"collector"`
	jwt.RegisteredClaims
}

func NewCollectorAuthService(cfg config.CollectorConfig) *CollectorAuthService {
	return &CollectorAuthService{jwtSecret: []byte(strings.TrimSpace(cfg.JWTSecret))}
}

func (s *CollectorAuthService) Enabled() bool {
	return len(s.jwtSecret) > 0
}

func (s *CollectorAuthService) ParseToken(tokenStr string) (*model.CollectorClaims, error) {
	if !s.Enabled() {
		return nil, fmt.Errorf("%w: collector auth disabled", ErrUnauthorized)
	}
	claims := &collectorClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrUnauthorized
	}

	name := claims.Collector
	if name == "" {
		name = claims.Subject
	}
	if name == "" {
		return nil, ErrUnauthorized
	}

	return &model.CollectorClaims{
		Collector: name,
		Subject:   claims.Subject,
	}, nil
}

// IssueToken signs a collector token; used by operators provisioning scrapers.
func (s *CollectorAuthService) IssueToken(collector string, ttl time.Duration) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("%w: collector auth disabled", ErrUnauthorized)
	}
	now := time.Now()
	claims := collectorClaims{
		Collector: collector,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  collector,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
