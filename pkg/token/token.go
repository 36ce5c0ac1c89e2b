package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleType set owner role
type RoleType string

const (
	// RoleAdmin is the admin role
	RoleAdmin RoleType = "admin"
	// RoleUploader may ingest and delete own videos
	RoleUploader RoleType = "uploader"
	// RoleViewer read only
	RoleViewer RoleType = "viewer"
)

// Claims structure for custom claims in JWT
type Claims struct {
	OwnerID string `json:"owner_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Secret Key for JWT signing and validation
var (
	JWTSecret       = []byte("secure_secret_key")
	tokenExpiration = 60 * time.Minute
)

// SetSecret replaces the signing key; empty keeps the current one
func SetSecret(secret string) {
	if secret == "" {
		return
	}
	JWTSecret = []byte(secret)
}

// GenerateJWT generates a JWT token
func GenerateJWT(ownerID, role, issuer string) (string, error) {
	claims := Claims{
		OwnerID: ownerID,
		Role:    role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenExpiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JWTSecret)
}

// ParseJWT parses a JWT and extracts the Claims
func ParseJWT(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Check if the signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return JWTSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.OwnerID == "" {
		return nil, errors.New("token without owner")
	}

	return claims, nil
}

// BearerToken strips the "Bearer " prefix of an Authorization header
func BearerToken(header string) (string, bool) {
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	t := strings.TrimSpace(header[7:])
	return t, t != ""
}
