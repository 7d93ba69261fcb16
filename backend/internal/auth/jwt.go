package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// tokenTTL matches the session length the frontend expects.
const tokenTTL = 7 * 24 * time.Hour

// jwtSecret is set once at startup via Init. config.Load guarantees the
// secret is present before the server starts accepting requests.
var jwtSecret []byte

// Claims defines the structure of the JWT payload
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// Init installs the signing secret. Must be called before any token is
// issued or verified.
func Init(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateJWT creates a new JWT carrying the user's id, email and role.
func GenerateJWT(userID uuid.UUID, email, role string) (string, error) {
	expirationTime := time.Now().Add(tokenTTL)

	claims := &Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "carteira",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtSecret)

	return tokenString, err
}

// ValidateJWT validates a JWT string and returns the claims if valid.
// Any failure (expired, malformed, wrong signature) comes back as an
// error; callers treat that as unauthenticated.
func ValidateJWT(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Ensure the signing method is HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err // Handles expiration, invalid signature, etc.
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
