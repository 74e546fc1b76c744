package auth

import (
	"net/http"
)

// BasicAuthenticator authenticates scripted clients of the admin JSON
// endpoints with HTTP Basic authentication against the administrator
// credentials.
type BasicAuthenticator struct {
	creds *Credentials
}

// NewBasicAuthenticator creates a Basic authenticator for creds.
func NewBasicAuthenticator(creds *Credentials) *BasicAuthenticator {
	return &BasicAuthenticator{creds: creds}
}

// Authenticate extracts Basic auth credentials from the request and
// verifies them.
func (a *BasicAuthenticator) Authenticate(
	r *http.Request,
) (*AuthInfo, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, ErrUnauthenticated
	}

	if err := a.creds.Verify(username, password); err != nil {
		return nil, err
	}

	return &AuthInfo{
		Method:  AuthMethodBasic,
		Subject: username,
	}, nil
}

// Method returns the authentication method type.
func (a *BasicAuthenticator) Method() AuthMethod {
	return AuthMethodBasic
}
