package services

import (
	"errors"
	"time"

	"busussd/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

const RoleAdmin = "admin"

// IssueAdminToken mints an HS256 token accepted by the admin API.
func IssueAdminToken(secret []byte, subject string, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("admin secret is not configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": RoleAdmin,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// ParseAccessToken validates signature and expiry. Role checks are left to
// the route that needs them.
func ParseAccessToken(secret []byte, raw string) (domain.RequestContext, error) {
	var rc domain.RequestContext
	if len(secret) == 0 {
		return rc, errors.New("admin secret is not configured")
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return rc, err
	}
	rc.Subject, _ = claims["sub"].(string)
	rc.Role, _ = claims["role"].(string)
	if rc.Role == "" {
		return rc, errors.New("token carries no role")
	}
	return rc, nil
}
