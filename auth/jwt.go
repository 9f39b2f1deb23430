package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"bookings/entity"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carry the identity asserted by the identity provider.
type Claims struct {
	Username    string      `json:"sub"`
	DisplayName string      `json:"name"`
	Email       string      `json:"email"`
	Phone       string      `json:"phone"`
	Role        entity.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c Claims) Actor() entity.Actor {
	return entity.Actor{
		Username:    c.Username,
		DisplayName: c.DisplayName,
		Email:       c.Email,
		Phone:       c.Phone,
		Role:        c.Role,
	}
}

type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) Authenticator {
	if secret == "" {
		panic("missing jwt secret")
	}

	return Authenticator{secret: []byte(secret)}
}

// IssueToken signs a token for the actor. The service itself only verifies tokens,
// issuing is used by bookingctl and tests.
func (a Authenticator) IssueToken(actor entity.Actor, ttl time.Duration) (string, error) {
	claims := Claims{
		Username:    actor.Username,
		DisplayName: actor.DisplayName,
		Email:       actor.Email,
		Phone:       actor.Phone,
		Role:        actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a Authenticator) ParseToken(tokenStr string) (entity.Actor, error) {
	t, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(t *jwt.Token) (interface{}, error) {
			return a.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return entity.Actor{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return entity.Actor{}, ErrInvalidToken
	}
	if c.Username == "" {
		return entity.Actor{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if !c.Role.Valid() {
		return entity.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, c.Role)
	}

	return c.Actor(), nil
}
