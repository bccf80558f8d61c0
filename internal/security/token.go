// Package security issues bearer tokens and hashes passwords.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "workdesk"

var (
	ErrMissingSecret = errors.New("security: jwt secret is empty")
	ErrInvalidToken  = errors.New("security: invalid token")
)

// UserClaims identifies the actor behind a request.
type UserClaims struct {
	UserID   uint64 `json:"uid"`
	UserType string `json:"typ"`
	jwt.RegisteredClaims
}

// IssueUserToken signs an HS256 token for the user.
func IssueUserToken(secret string, userID uint64, userType string, expiry time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrMissingSecret
	}
	claims := UserClaims{
		UserID:   userID,
		UserType: userType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	signed, errSign := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign token: %w", errSign)
	}
	return signed, nil
}

// ParseUserToken validates the signature, issuer and expiry of token.
func ParseUserToken(secret, token string) (*UserClaims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	claims := &UserClaims{}
	parsed, errParse := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if errParse != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, errParse)
	}
	if !parsed.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, errHash := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errHash != nil {
		return "", fmt.Errorf("security: hash password: %w", errHash)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateRandomString returns n random bytes hex encoded.
func GenerateRandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, errRead := rand.Read(buf); errRead != nil {
		return "", fmt.Errorf("security: random: %w", errRead)
	}
	return hex.EncodeToString(buf), nil
}
