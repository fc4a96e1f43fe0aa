package security

import (
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is fixed; bumping it only affects newly stored hashes since the
// cost factor is embedded in each hash.
const bcryptCost = 10

// HashPassword generates a bcrypt hash from a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword checks if a hash matches a plaintext password.
// A mismatch is not an error; errors indicate a malformed hash.
func ComparePassword(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ErrWeakPassword is returned by CheckPasswordPolicy when the candidate
// password does not meet the minimum complexity requirements.
var ErrWeakPassword = errors.New("password must be at least 8 characters and contain an uppercase letter, a lowercase letter and a digit")

// CheckPasswordPolicy enforces the registration password policy:
// minimum 8 characters, at least one upper, one lower, one digit.
func CheckPasswordPolicy(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}

// --- JWT Claims & Logic ---

const tokenIssuer = "vaultguard"

// AccessClaims embeds the user id plus the verification/MFA flags so that
// middleware can make cheap authorization decisions without a user lookup.
type AccessClaims struct {
	UserID        string `json:"user_id"`
	EmailVerified bool   `json:"email_verified"`
	MFAEnabled    bool   `json:"mfa_enabled"`
	jwt.RegisteredClaims
}

// RefreshClaims binds a refresh token to exactly one server-side session.
type RefreshClaims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// GenerateAccessToken creates a short-lived JWT signed with the access secret.
func GenerateAccessToken(userID string, emailVerified, mfaEnabled bool, secret string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:        userID,
		EmailVerified: emailVerified,
		MFAEnabled:    mfaEnabled,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// GenerateRefreshToken creates a long-lived JWT binding user and session.
// The caller stores only a digest of the signed string, never the token itself.
func GenerateRefreshToken(userID, sessionID, secret string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAccessToken parses and validates an access JWT string.
func ValidateAccessToken(tokenString, secret string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := parseInto(tokenString, secret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ValidateRefreshToken parses and validates a refresh JWT string.
func ValidateRefreshToken(tokenString, secret string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := parseInto(tokenString, secret, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func parseInto(tokenString, secret string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
