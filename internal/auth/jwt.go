package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bistro-pos/api/internal/enum"
)

// SessionCookie is the cookie the token is mirrored into so browser
// pages stay authenticated without managing a header themselves.
const SessionCookie = "session"

// Claims identify a staff member. Role is the typed numeric code, not
// a free-form string.
type Claims struct {
	EmployeeID int64     `json:"employee_id"`
	Username   string    `json:"username"`
	Role       enum.Role `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken issues a signed session token for one shift.
func GenerateToken(secret string, employeeID int64, username string, role enum.Role) (string, error) {
	claims := Claims{
		EmployeeID: employeeID,
		Username:   username,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken parses and verifies a session token.
func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("invalid role in token")
	}
	return claims, nil
}
