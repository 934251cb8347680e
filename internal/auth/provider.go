// Package auth signs dashboard users in and out, notifies subscribers of
// session changes, issues API tokens and gates access on profile approval.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/bcrypt"

	"svinn/internal/cache"
	"svinn/internal/core"
	"svinn/internal/gateway"
)

// Password rules for accounts created through svinnctl.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
	BcryptCost        = 12
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrSessionNotFound    = errors.New("session not found")
)

// EventKind tells subscribers what happened to a session.
type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Session is one signed-in browser or API client.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IssuedAt    time.Time `json:"issued_at"`
}

// Event is delivered to every subscriber on sign-in and sign-out. Sessions
// that expire are reported as SignedOut.
type Event struct {
	Kind    EventKind
	Session Session
}

// Provider authenticates against the user store and owns the set of live
// sessions.
type Provider struct {
	users    gateway.UserStore
	sessions *cache.LRUCache[Session]
	policy   *bluemonday.Policy
	logger   *slog.Logger

	mu      sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewProvider creates a provider whose sessions live for maxAge after their
// last use. At most maxSessions are kept; the least recently used is
// signed out when the limit is reached.
func NewProvider(users gateway.UserStore, maxAge time.Duration, maxSessions int, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Provider{
		users:  users,
		policy: bluemonday.StrictPolicy(),
		logger: logger,
		subs:   make(map[int]func(Event)),
	}
	p.sessions = cache.NewLRUCache[Session](maxSessions, maxAge).
		WithSlidingTTL().
		OnEvict(func(_ string, s Session) {
			p.publish(Event{Kind: SignedOut, Session: s})
		})
	return p
}

// Sessions exposes the session table for periodic expiry.
func (p *Provider) Sessions() cache.Cleaner {
	return p.sessions
}

// SignInWithPassword checks the credentials and starts a session. Unknown
// emails and wrong passwords both return ErrInvalidCredentials.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	u, err := p.users.FindUserByEmail(ctx, email)
	if errors.Is(err, core.ErrUserNotFound) {
		p.logger.InfoContext(ctx, "Sign-in rejected", "reason", "unknown_email")
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if err := CheckPassword(password, u.PasswordHash); err != nil {
		p.logger.InfoContext(ctx, "Sign-in rejected", "reason", "bad_password", "user_id", u.ID)
		return Session{}, ErrInvalidCredentials
	}

	s := Session{
		ID:          uuid.NewString(),
		UserID:      u.ID,
		Email:       u.Email,
		DisplayName: p.SanitizeDisplayName(u.DisplayName, u.Email),
		IssuedAt:    time.Now().UTC(),
	}
	p.sessions.Set(s.ID, s)
	p.logger.InfoContext(ctx, "User signed in", "user_id", u.ID, "session_id", s.ID)
	p.publish(Event{Kind: SignedIn, Session: s})
	return s, nil
}

// Lookup returns the live session with the given id and extends its lifetime.
func (p *Provider) Lookup(sessionID string) (Session, bool) {
	if sessionID == "" {
		return Session{}, false
	}
	return p.sessions.Get(sessionID)
}

// SignOut ends the session. Subscribers receive SignedOut exactly once.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	if _, ok := p.sessions.Get(sessionID); !ok {
		return ErrSessionNotFound
	}
	p.sessions.Delete(sessionID)
	p.logger.InfoContext(ctx, "User signed out", "session_id", sessionID)
	return nil
}

// Subscribe registers handler for session events and returns a function
// that removes it. Handlers run synchronously on the goroutine that caused
// the event and must not call back into the provider's sign-in or sign-out.
func (p *Provider) Subscribe(handler func(Event)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = handler
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) publish(ev Event) {
	p.mu.Lock()
	handlers := make([]func(Event), 0, len(p.subs))
	for _, h := range p.subs {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}

// SanitizeDisplayName strips markup from a stored display name, falling
// back to the email's local part when nothing printable is left.
func (p *Provider) SanitizeDisplayName(name, email string) string {
	clean := strings.TrimSpace(p.policy.Sanitize(name))
	if clean != "" {
		return clean
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}

// HashPassword validates and hashes a password for storage.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a bcrypt hash.
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// ValidatePassword checks the length rules.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}
