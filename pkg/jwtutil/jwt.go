// Package jwtutil issues and checks the bearer tokens of signed-in users.
// A token names the user and the organization whose records the user may touch.
package jwtutil

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mahalnishan/crm/pkg/config"
)

var (
	errNotInitialized = errors.New("jwtutil: signing key not configured")
	errInvalidToken   = errors.New("jwtutil: token rejected")
)

var settings *config.JWTConfig

// TenantClaims scopes a token to one user in one organization
type TenantClaims struct {
	Email      string `json:"email"`
	UserID     uint   `json:"user_id"`
	TenantID   uint   `json:"tenant_id,omitempty"`
	TenantName string `json:"tenant_name,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Initialize installs the signing key and token lifetime. Call once at startup.
func Initialize(cfg *config.JWTConfig) {
	settings = cfg
}

func GenerateToken(email string, userID, tenantID uint, tenantName, role string) (string, error) {
	if settings == nil {
		return "", errNotInitialized
	}

	issued := time.Now()
	lifetime := time.Duration(settings.ExpirationHours) * time.Hour
	claims := &TenantClaims{
		Email:      email,
		UserID:     userID,
		TenantID:   tenantID,
		TenantName: tenantName,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(lifetime)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(settings.SigningKey))
}

// ValidateToken accepts only HMAC-signed, unexpired tokens made with our key
func ValidateToken(raw string) (*TenantClaims, error) {
	if settings == nil {
		return nil, errNotInitialized
	}

	claims := &TenantClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, signingKey)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

func signingKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("jwtutil: signing method %v not allowed", token.Header["alg"])
	}
	return []byte(settings.SigningKey), nil
}
