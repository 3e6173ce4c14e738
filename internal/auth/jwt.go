package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

type jwtAuthorizer struct {
	secret []byte
}

func (a jwtAuthorizer) Authorize(r *http.Request) error {
	cred := credentialFromRequest(r)
	if cred == "" {
		return ErrMissingCredentials
	}

	_, err := jwt.Parse(cred, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return fmt.Errorf("%w: token expired", ErrInvalidCredentials)
		}
		return ErrInvalidCredentials
	}
	return nil
}
