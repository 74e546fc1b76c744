package session

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Store implements sessions.Store. The cookie carries only a signed,
// opaque session id; values live in a Backend.
type Store struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options

	backend    Backend
	serializer securecookie.GobEncoder
}

// NewStore creates a Store over backend. keyPairs are securecookie
// hash/block key pairs, as for sessions.NewCookieStore.
func NewStore(backend Backend, keyPairs ...[]byte) *Store {
	return &Store{
		Codecs: securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{
			Path:     "/",
			MaxAge:   int((7 * 24 * time.Hour).Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		backend: backend,
	}
}

// MaxAge sets the cookie and server-side lifetime of new and saved sessions.
func (s *Store) MaxAge(age int) {
	s.Options.MaxAge = age
	for _, c := range s.Codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}

// Get returns the session cached for the request, loading it on first use.
func (s *Store) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns the stored session named by the request cookie, or a new
// empty session. A cookie that fails verification or points to an
// expired session yields a new session and no error.
func (s *Store) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, cookie.Value, &id, s.Codecs...); err != nil {
		return session, nil
	}

	entry, err := s.backend.Load(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return session, nil
	}
	if err != nil {
		return session, fmt.Errorf("load session: %w", err)
	}

	if err := s.serializer.Deserialize(entry.Data, &session.Values); err != nil {
		return session, nil
	}
	session.ID = id
	session.IsNew = false
	return session, nil
}

// Save persists the session and writes its cookie. A negative MaxAge
// deletes the session.
func (s *Store) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if err := s.backend.Delete(r.Context(), session.ID); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		session.ID = id
	}

	data, err := s.serializer.Serialize(session.Values)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	entry := Entry{
		Data:    data,
		Expires: time.Now().Add(time.Duration(session.Options.MaxAge) * time.Second),
	}
	if err := s.backend.Save(r.Context(), session.ID, entry); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("sign session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Destroy removes a session server-side without touching cookies.
func (s *Store) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.backend.Delete(ctx, id)
}

// Purge removes expired sessions from the backend.
func (s *Store) Purge(ctx context.Context, now time.Time) (int, error) {
	return s.backend.Purge(ctx, now)
}

func newID() (string, error) {
	key := securecookie.GenerateRandomKey(32)
	if key == nil {
		return "", errors.New("generate session id: random source unavailable")
	}
	return strings.ToLower(idEncoding.EncodeToString(key)), nil
}
