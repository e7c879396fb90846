// Package testhelpers provides utilities for testing cobranzas-engine components.
package testhelpers

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestJWTSecret signs tokens produced by GenerateTestJWT.
const TestJWTSecret = "test-secret-do-not-use"

// GenerateTestJWT creates an HS256 session token with the same claim layout the
// login endpoint issues, valid for one hour.
func GenerateTestJWT(userID int64, username, role string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"usr":  username,
		"role": role,
		"iss":  "cobranzas-engine",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	if err != nil {
		panic(err)
	}
	return signed
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(userID int64, username, role string) string {
	return "Bearer " + GenerateTestJWT(userID, username, role)
}
