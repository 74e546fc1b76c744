package auth

import (
	"errors"
	"net/http"
)

// MultiAuthenticator tries several authenticators in order, typically
// the login session first and HTTP Basic second. An authenticator that
// finds no credentials (ErrUnauthenticated) passes to the next one;
// any other failure ends the attempt.
type MultiAuthenticator struct {
	authenticators []Authenticator
}

// NewMultiAuthenticator creates an authenticator over the given ones.
func NewMultiAuthenticator(
	authenticators ...Authenticator,
) *MultiAuthenticator {
	return &MultiAuthenticator{
		authenticators: authenticators,
	}
}

// Authenticate returns the first successful result.
func (a *MultiAuthenticator) Authenticate(
	r *http.Request,
) (*AuthInfo, error) {
	for _, authenticator := range a.authenticators {
		info, err := authenticator.Authenticate(r)
		if err == nil {
			return info, nil
		}

		if !errors.Is(err, ErrUnauthenticated) {
			return nil, err
		}
	}

	return nil, ErrUnauthenticated
}

// Method returns the authentication method type.
func (a *MultiAuthenticator) Method() AuthMethod {
	return AuthMethodMulti
}
