package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	SessionName = "cakeshop"

	// Session keys mirror the names the storefront used for its two bearer
	// tokens.
	KeyStaffToken  = "token"
	KeyClientToken = "token_client"
	keySessionID   = "sid"
)

type Role string

const (
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

func (r Role) key() string {
	if r == RoleStaff {
		return KeyStaffToken
	}
	return KeyClientToken
}

func (r Role) other() Role {
	if r == RoleStaff {
		return RoleCustomer
	}
	return RoleStaff
}

// Sessions stores the bearer tokens of the signed-in role in a cookie
// session. At most one role is active at a time; the last login wins.
type Sessions struct {
	store  sessions.Store
	logger apt.Logger
}

// NewSessions builds a cookie store from session.key and session.secure.
// Without a key a random one is generated, so sessions do not survive a
// restart.
func NewSessions(config *apt.Config, logger apt.Logger) (*Sessions, error) {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	key := []byte(config.GetStringOrDef("session.key", ""))
	if len(key) == 0 {
		logger.Info("session.key not configured, using an ephemeral key")
		key = securecookie.GenerateRandomKey(32)
	}

	store := sessions.NewCookieStore(key)
	store.Options.HttpOnly = true
	store.Options.Secure = config.GetStringOrDef("session.secure", "false") == "true"
	store.Options.SameSite = http.SameSiteLaxMode
	store.Options.Path = "/"
	store.Options.MaxAge = 7 * 24 * 3600

	return NewSessionsWithStore(store, logger), nil
}

func NewSessionsWithStore(store sessions.Store, logger apt.Logger) *Sessions {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &Sessions{store: store, logger: logger}
}

func (s *Sessions) session(r *http.Request) *sessions.Session {
	session, err := s.store.Get(r, SessionName)
	if err != nil {
		// An undecodable cookie yields a fresh session, which is what we want.
		s.logger.Debug("discarding invalid session cookie", "error", err)
	}
	return session
}

// Token returns the bearer token stored for role, or "".
func (s *Sessions) Token(r *http.Request, role Role) string {
	v, _ := s.session(r).Values[role.key()].(string)
	return v
}

// ActiveRole returns the role whose token is present. Staff wins if both are.
func (s *Sessions) ActiveRole(r *http.Request) (Role, string, bool) {
	if t := s.Token(r, RoleStaff); t != "" {
		return RoleStaff, t, true
	}
	if t := s.Token(r, RoleCustomer); t != "" {
		return RoleCustomer, t, true
	}
	return "", "", false
}

// Login stores token for role and drops the other role's token.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, role Role, token string) error {
	session := s.session(r)
	session.Values[role.key()] = token
	delete(session.Values, role.other().key())
	ensureID(session)
	return session.Save(r, w)
}

// Clear removes role's token.
func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request, role Role) error {
	session := s.session(r)
	delete(session.Values, role.key())
	return session.Save(r, w)
}

// Logout removes both tokens.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	session := s.session(r)
	delete(session.Values, KeyStaffToken)
	delete(session.Values, KeyClientToken)
	return session.Save(r, w)
}

// ID returns the stable identifier of the browser session, creating it on
// first use. Drafts are owned by this id.
func (s *Sessions) ID(w http.ResponseWriter, r *http.Request) (string, error) {
	session := s.session(r)
	if id, ok := session.Values[keySessionID].(string); ok && id != "" {
		return id, nil
	}
	id := ensureID(session)
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return id, nil
}

// Value reads an arbitrary session value.
func (s *Sessions) Value(r *http.Request, key string) (interface{}, bool) {
	v, ok := s.session(r).Values[key]
	return v, ok
}

// SetValue writes an arbitrary session value.
func (s *Sessions) SetValue(w http.ResponseWriter, r *http.Request, key string, v interface{}) error {
	session := s.session(r)
	session.Values[key] = v
	return session.Save(r, w)
}

func ensureID(session *sessions.Session) string {
	if id, ok := session.Values[keySessionID].(string); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	session.Values[keySessionID] = id
	return id
}

type ctxKey int

const (
	tokenKey ctxKey = iota
	roleKey
	sessionIDKey
)

func withIdentity(ctx context.Context, role Role, token, sid string) context.Context {
	ctx = context.WithValue(ctx, roleKey, role)
	ctx = context.WithValue(ctx, tokenKey, token)
	return context.WithValue(ctx, sessionIDKey, sid)
}

// TokenFrom returns the bearer token a guard placed on the context.
func TokenFrom(ctx context.Context) string {
	v, _ := ctx.Value(tokenKey).(string)
	return v
}

// RoleFrom returns the role a guard authorised.
func RoleFrom(ctx context.Context) Role {
	v, _ := ctx.Value(roleKey).(Role)
	return v
}

// SessionIDFrom returns the browser session id a guard placed on the context.
func SessionIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// WithIdentity is used by tests and tools that call guarded handlers directly.
func WithIdentity(ctx context.Context, role Role, token, sid string) context.Context {
	return withIdentity(ctx, role, token, sid)
}
