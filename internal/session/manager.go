package session

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/safehome-site/internal/auth"
)

// DefaultCookieName is the name of the login cookie.
const DefaultCookieName = "safehome_session"

// DefaultTTL is the default session lifetime.
const DefaultTTL = 7 * 24 * time.Hour

// Session value keys.
const (
	keyUser    = "user"
	keyLoginAt = "login_at"
)

// Manager logs the administrator in and out and resolves the identity of
// requests. It implements auth.Authenticator.
type Manager struct {
	store  *Store
	creds  *auth.Credentials
	name   string
	logger *zap.Logger
}

// NewManager creates a Manager. ttl sets both the cookie and server-side
// lifetime; a non-positive ttl selects DefaultTTL.
func NewManager(store *Store, creds *auth.Credentials, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	store.MaxAge(int(ttl.Seconds()))
	return &Manager{
		store:  store,
		creds:  creds,
		name:   DefaultCookieName,
		logger: logger,
	}
}

// Login verifies the credentials and starts a fresh session. Any session
// the request already carried is discarded first.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, username, password string) error {
	if err := m.creds.Verify(username, password); err != nil {
		m.logger.Warn("login failed",
			zap.String("remote_addr", r.RemoteAddr),
		)
		return err
	}

	s, err := m.store.Get(r, m.name)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := m.store.Destroy(r.Context(), s.ID); err != nil {
		m.logger.Warn("failed to discard previous session", zap.Error(err))
	}

	s.ID = ""
	s.IsNew = true
	s.Values = map[interface{}]interface{}{
		keyUser:    m.creds.Username(),
		keyLoginAt: time.Now().Unix(),
	}
	s.Options.MaxAge = m.store.Options.MaxAge
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	m.logger.Info("administrator logged in",
		zap.String("user", m.creds.Username()),
		zap.String("remote_addr", r.RemoteAddr),
	)
	return nil
}

// Logout ends the session. It succeeds whether or not a session exists.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) error {
	s, err := m.store.Get(r, m.name)
	if err != nil {
		m.logger.Warn("logout with unreadable session", zap.Error(err))
	}
	if s == nil {
		return nil
	}

	s.Values = map[interface{}]interface{}{}
	s.Options.MaxAge = -1
	if err := s.Save(r, w); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Identity returns the logged-in user of the request.
func (m *Manager) Identity(r *http.Request) (string, bool) {
	s, err := m.store.Get(r, m.name)
	if err != nil || s.IsNew {
		return "", false
	}
	user, ok := s.Values[keyUser].(string)
	if !ok || user == "" {
		return "", false
	}
	return user, true
}

// Touch renews the lifetime of an authenticated session.
func (m *Manager) Touch(w http.ResponseWriter, r *http.Request) error {
	if _, ok := m.Identity(r); !ok {
		return nil
	}
	s, err := m.store.Get(r, m.name)
	if err != nil {
		return err
	}
	return s.Save(r, w)
}

// Authenticate implements auth.Authenticator.
func (m *Manager) Authenticate(r *http.Request) (*auth.AuthInfo, error) {
	user, ok := m.Identity(r)
	if !ok {
		return nil, auth.ErrUnauthenticated
	}
	return &auth.AuthInfo{Method: auth.AuthMethodSession, Subject: user}, nil
}

// Method implements auth.Authenticator.
func (m *Manager) Method() auth.AuthMethod {
	return auth.AuthMethodSession
}
