package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// Identity is the verified content of an access token.
type Identity struct {
	UserID   uint64
	Username string
	Role     string
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The token
// carries the subject (sub, the user id as a decimal string), username,
// role, expiration (exp) and issued at (iat).
func NewAccessToken(secret string, id Identity, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(id.UserID, 10),
		"username": id.Username,
		"role":     id.Role,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies the signature and expiry of raw and returns
// the identity it carries.
func ParseAccessToken(secret, raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return Identity{}, errors.New("invalid claims")
	}
	sub, _ := claims["sub"].(string)
	uid, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || uid == 0 {
		return Identity{}, errors.New("invalid subject")
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	return Identity{UserID: uid, Username: username, Role: role}, nil
}
