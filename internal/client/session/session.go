// Package session holds the signed-in user of the CLI. Observers are told
// about every change, and the session tokens are kept in the local metadata
// store so a later run can resume without asking for the password again.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/dmitrijs2005/bookly/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/bookly/internal/common"
	"github.com/dmitrijs2005/bookly/internal/logging"
	"github.com/dmitrijs2005/bookly/internal/models"
)

// Authenticator is the account half of the backend client.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	LoginWithGoogle(ctx context.Context, idToken string) (*models.User, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*models.User, error)

	Tokens() (access, refresh string)
	SetTokens(access, refresh string)
	OnTokens(fn func(access, refresh string))
}

// Observer receives the current user, or nil after logout.
type Observer func(user *models.User)

type Manager struct {
	auth  Authenticator
	store metadata.Repository
	log   logging.Logger

	mu        sync.Mutex
	current   *models.User
	observers map[int]Observer
	next      int
}

func NewManager(auth Authenticator, store metadata.Repository, log logging.Logger) *Manager {
	m := &Manager{
		auth:      auth,
		store:     store,
		log:       log.With("module", "session"),
		observers: make(map[int]Observer),
	}
	auth.OnTokens(m.saveTokens)
	return m
}

// Current returns a copy of the signed-in user, or nil.
func (m *Manager) Current() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// Observe calls fn with the current user right away and again after every
// change until the returned cancel is called.
func (m *Manager) Observe(fn Observer) (cancel func()) {
	m.mu.Lock()
	id := m.next
	m.next++
	m.observers[id] = fn
	m.mu.Unlock()

	fn(m.Current())

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) setCurrent(user *models.User) {
	m.mu.Lock()
	m.current = user
	observers := make([]Observer, 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	for _, fn := range observers {
		fn(m.Current())
	}
}

func (m *Manager) Login(ctx context.Context, email, password string) (*models.User, error) {
	user, err := m.auth.Login(ctx, email, password)
	if err != nil {
		m.log.Warn(ctx, "login failed", "error", err)
		return nil, authError(err, "Login failed. Please try again.")
	}
	m.signedIn(ctx, user)
	return user, nil
}

// Register creates an account and signs into it. The confirmation is
// checked before anything is sent.
func (m *Manager) Register(ctx context.Context, email, password, confirm string) (*models.User, error) {
	if password != confirm {
		return nil, common.Validation("Passwords do not match.")
	}
	user, err := m.auth.Register(ctx, email, password)
	if err != nil {
		m.log.Warn(ctx, "signup failed", "error", err)
		return nil, authError(err, "Signup failed. Please try again.")
	}
	m.signedIn(ctx, user)
	return user, nil
}

func (m *Manager) LoginWithGoogle(ctx context.Context, idToken string) (*models.User, error) {
	user, err := m.auth.LoginWithGoogle(ctx, idToken)
	if err != nil {
		m.log.Warn(ctx, "google login failed", "error", err)
		return nil, authError(err, "Google login failed.")
	}
	m.signedIn(ctx, user)
	return user, nil
}

// authError keeps validation messages from the server and replaces every
// other failure with msg.
func authError(err error, msg string) error {
	if errors.Is(err, common.ErrValidation) {
		return err
	}
	return &common.Error{Kind: common.ErrorUnauthorized, Message: msg, Cause: err}
}

func (m *Manager) signedIn(ctx context.Context, user *models.User) {
	if raw, err := json.Marshal(user); err == nil {
		if err := m.store.Set(ctx, metadata.KeyUser, string(raw)); err != nil {
			m.log.Warn(ctx, "failed to save user", "error", err)
		}
	}
	m.log.Info(ctx, "signed in", "user", user.ID)
	m.setCurrent(user)
}

// Logout ends the session locally even when the server cannot be reached.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.auth.Logout(ctx); err != nil {
		m.log.Warn(ctx, "server logout failed", "error", err)
	}
	if err := m.store.Delete(ctx, metadata.KeyUser, metadata.KeyAccessToken, metadata.KeyRefreshToken); err != nil {
		m.log.Warn(ctx, "failed to clear session", "error", err)
	}
	m.setCurrent(nil)
	return nil
}

// Restore resumes the session saved by an earlier run. It returns nil when
// there is none or the server no longer accepts it. When the server is
// unreachable the saved user is used as is.
func (m *Manager) Restore(ctx context.Context) (*models.User, error) {
	values, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	refresh := values[metadata.KeyRefreshToken]
	if refresh == "" {
		return nil, nil
	}
	m.auth.SetTokens(values[metadata.KeyAccessToken], refresh)

	user, err := m.auth.Me(ctx)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorUnauthorized):
		m.log.Info(ctx, "saved session expired")
		m.auth.SetTokens("", "")
		_ = m.store.Delete(ctx, metadata.KeyUser)
		return nil, nil
	default:
		m.log.Warn(ctx, "could not verify saved session", "error", err)
		var saved models.User
		if jerr := json.Unmarshal([]byte(values[metadata.KeyUser]), &saved); jerr != nil || saved.ID == "" {
			return nil, err
		}
		user = &saved
	}

	m.setCurrent(user)
	return user, nil
}

func (m *Manager) saveTokens(access, refresh string) {
	ctx := context.Background()
	var err error
	if refresh == "" {
		err = m.store.Delete(ctx, metadata.KeyAccessToken, metadata.KeyRefreshToken)
	} else {
		err = m.store.SetMany(ctx, map[string]string{
			metadata.KeyAccessToken:  access,
			metadata.KeyRefreshToken: refresh,
		})
	}
	if err != nil {
		m.log.Warn(ctx, "failed to save session tokens", "error", err)
	}
}
