package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const ClaimsKey ctxKey = 1

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

const issuer = "storefront-service"

type Keys struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	ttl        time.Duration
}

// Claims are the JWT claims issued at login. Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

func (c Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

func (c Claims) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// NewKeys parses PEM encoded RSA keys. A nil private key gives a Keys that can only validate.
func NewKeys(privatePEM, publicPEM []byte, ttl time.Duration) (*Keys, error) {
	if len(publicPEM) == 0 {
		return nil, errors.New("public key is required")
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	k := &Keys{publicKey: pub, ttl: ttl}
	if len(privatePEM) > 0 {
		k.privateKey, err = jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
	}
	if k.ttl <= 0 {
		k.ttl = 24 * time.Hour
	}
	return k, nil
}

// LoadKeys reads the key pair from disk.
func LoadKeys(privatePath, publicPath string, ttl time.Duration) (*Keys, error) {
	publicPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("reading public key: %w", err)
	}
	var privatePEM []byte
	if privatePath != "" {
		privatePEM, err = os.ReadFile(privatePath)
		if err != nil {
			return nil, fmt.Errorf("reading private key: %w", err)
		}
	}
	return NewKeys(privatePEM, publicPEM, ttl)
}

// GenerateToken signs an RS256 token for the user.
func (k *Keys) GenerateToken(userID string, roles []string) (string, error) {
	if k.privateKey == nil {
		return "", errors.New("private key not configured")
	}
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(k.ttl)),
		},
		Roles: roles,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(k.privateKey)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (k *Keys) ValidateToken(tokenStr string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		return k.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithIssuer(issuer))
	if err != nil {
		return Claims{}, fmt.Errorf("parsing token: %w", err)
	}
	if !token.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return Claims{}, errors.New("token subject is required")
	}
	return claims, nil
}
