package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smesmis/pos-checkout/pkg/config"
	"github.com/smesmis/pos-checkout/pkg/enums"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrTokenExpired = errors.New("token expired")
	ErrNoSubject    = errors.New("token has no subject")
)

var validMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// ParseAccessToken turns a backend-issued JWT into an Identity. With a secret
// configured the signature is verified; without one the token is decoded and
// only its expiry is checked, since the backend re-validates every call.
func ParseAccessToken(cfg config.JWTConfig, tokenString string, now time.Time) (*Identity, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &AccessTokenClaims{}
	if cfg.Secret != "" {
		opts := []jwt.ParserOption{
			jwt.WithValidMethods(validMethods),
			jwt.WithTimeFunc(func() time.Time { return now }),
		}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.Secret), nil
		}, opts...)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, ErrTokenExpired
			}
			return nil, fmt.Errorf("parse token: %w", err)
		}
	} else {
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("decode token: %w", err)
		}
		if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
			return nil, ErrTokenExpired
		}
	}

	return identityFromClaims(claims, tokenString)
}

func identityFromClaims(claims *AccessTokenClaims, token string) (*Identity, error) {
	userID := string(claims.UserID)
	if userID == "" {
		userID = strings.TrimSpace(claims.Subject)
	}
	if userID == "" {
		return nil, ErrNoSubject
	}
	username := claims.Username
	if username == "" {
		username = claims.Subject
	}

	roles := make([]enums.MemberRole, 0, len(claims.Roles))
	for _, raw := range claims.Roles {
		role, err := enums.ParseMemberRole(raw)
		if err != nil {
			continue
		}
		roles = append(roles, role)
	}

	return &Identity{
		UserID:   userID,
		Username: username,
		Roles:    roles,
		Token:    token,
	}, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
