package auth

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"svinn/internal/core"
	"svinn/internal/gateway/memory"
)

func newStoreWithUser(t *testing.T, approved bool) (*memory.Store, core.User) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hemligt-lösen"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := memory.New()
	u := core.User{
		ID:           "user-1",
		Email:        "Admin@Example.com",
		PasswordHash: string(hash),
		DisplayName:  "<b>Kökschef</b>",
		Approved:     approved,
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return store, u
}

func TestProvider_SignInWithPassword(t *testing.T) {
	store, _ := newStoreWithUser(t, true)
	p := NewProvider(store, time.Hour, 10, nil)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"valid credentials", " admin@example.com ", "hemligt-lösen", nil},
		{"wrong password", "admin@example.com", "fel", ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", "hemligt-lösen", ErrInvalidCredentials},
		{"empty fields", "", "", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := p.SignInWithPassword(context.Background(), tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("SignInWithPassword() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if s.ID == "" || s.UserID != "user-1" || s.Email != "admin@example.com" {
				t.Fatalf("session = %+v", s)
			}
			if s.DisplayName != "Kökschef" {
				t.Fatalf("DisplayName = %q, want markup stripped", s.DisplayName)
			}
			if _, ok := p.Lookup(s.ID); !ok {
				t.Fatalf("session not found after sign-in")
			}
		})
	}
}

func TestProvider_SubscribeAndSignOut(t *testing.T) {
	store, _ := newStoreWithUser(t, true)
	p := NewProvider(store, time.Hour, 10, nil)

	var signedIn, signedOut atomic.Int32
	unsubscribe := p.Subscribe(func(ev Event) {
		switch ev.Kind {
		case SignedIn:
			signedIn.Add(1)
		case SignedOut:
			signedOut.Add(1)
		}
	})

	s, err := p.SignInWithPassword(context.Background(), "admin@example.com", "hemligt-lösen")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if err := p.SignOut(context.Background(), s.ID); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if err := p.SignOut(context.Background(), s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second SignOut error = %v, want ErrSessionNotFound", err)
	}
	if signedIn.Load() != 1 || signedOut.Load() != 1 {
		t.Fatalf("events in=%d out=%d, want 1/1", signedIn.Load(), signedOut.Load())
	}
	if _, ok := p.Lookup(s.ID); ok {
		t.Fatalf("session still live after sign-out")
	}

	unsubscribe()
	unsubscribe()
	if _, err := p.SignInWithPassword(context.Background(), "admin@example.com", "hemligt-lösen"); err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	if signedIn.Load() != 1 {
		t.Fatalf("handler called after unsubscribe")
	}
}

func TestProvider_ExpiredSessionIsSignedOut(t *testing.T) {
	store, _ := newStoreWithUser(t, true)
	p := NewProvider(store, 20*time.Millisecond, 10, nil)

	var out atomic.Int32
	p.Subscribe(func(ev Event) {
		if ev.Kind == SignedOut {
			out.Add(1)
		}
	})

	s, err := p.SignInWithPassword(context.Background(), "admin@example.com", "hemligt-lösen")
	if err != nil {
		t.Fatalf("SignInWithPassword: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if n := p.Sessions().CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	if out.Load() != 1 {
		t.Fatalf("expired session did not emit SignedOut")
	}
	if _, ok := p.Lookup(s.ID); ok {
		t.Fatalf("expired session still live")
	}
}

func TestSanitizeDisplayName(t *testing.T) {
	p := NewProvider(memory.New(), time.Hour, 1, nil)
	tests := []struct {
		name, in, email, want string
	}{
		{"plain", "Anna", "anna@example.com", "Anna"},
		{"script removed", "<script>alert(1)</script>Anna", "anna@example.com", "Anna"},
		{"empty falls back to local part", "  ", "kok@example.com", "kok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.SanitizeDisplayName(tt.in, tt.email); got != tt.want {
				t.Fatalf("SanitizeDisplayName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("kort"); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("short password error = %v", err)
	}
	if err := ValidatePassword(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("long password error = %v", err)
	}
	if err := ValidatePassword("tillräckligt"); err != nil {
		t.Fatalf("valid password error = %v", err)
	}
}

func TestTokens_IssueVerify(t *testing.T) {
	secret := []byte(strings.Repeat("s", 32))
	tokens := NewTokens(secret, time.Hour)
	s := Session{ID: "sess", UserID: "user-1", Email: "admin@example.com"}

	raw, err := tokens.Issue(s)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := tokens.Verify(raw)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != "sess" || claims.Issuer != "svinn" {
		t.Fatalf("claims = %+v", claims)
	}

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokens([]byte(strings.Repeat("o", 32)), time.Hour)
		if _, err := other.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify with wrong secret error = %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		past := NewTokens(secret, time.Minute)
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		old, err := past.Issue(s)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		if _, err := tokens.Verify(old); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify expired token error = %v", err)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := tokens.Verify("not.a.token"); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify garbage error = %v", err)
		}
	})
}

type countingApprovals struct {
	approved bool
	err      error
	calls    atomic.Int32
}

func (c *countingApprovals) IsApproved(context.Context, string) (bool, error) {
	c.calls.Add(1)
	return c.approved, c.err
}

func TestApprovalGate(t *testing.T) {
	t.Run("approved answers are cached", func(t *testing.T) {
		r := &countingApprovals{approved: true}
		g := NewApprovalGate(r, time.Minute)
		for i := 0; i < 3; i++ {
			if err := g.Check(context.Background(), "u"); err != nil {
				t.Fatalf("Check: %v", err)
			}
		}
		if r.calls.Load() != 1 {
			t.Fatalf("lookups = %d, want 1", r.calls.Load())
		}
		g.Forget("u")
		_ = g.Check(context.Background(), "u")
		if r.calls.Load() != 2 {
			t.Fatalf("lookups after Forget = %d, want 2", r.calls.Load())
		}
	})

	t.Run("rejections are not cached", func(t *testing.T) {
		r := &countingApprovals{approved: false}
		g := NewApprovalGate(r, time.Minute)
		if err := g.Check(context.Background(), "u"); !errors.Is(err, ErrNotApproved) {
			t.Fatalf("Check error = %v, want ErrNotApproved", err)
		}
		r.approved = true
		if err := g.Check(context.Background(), "u"); err != nil {
			t.Fatalf("Check after approval: %v", err)
		}
	})

	t.Run("lookup failure rejects", func(t *testing.T) {
		r := &countingApprovals{err: core.ErrUserNotFound}
		g := NewApprovalGate(r, 0)
		err := g.Check(context.Background(), "u")
		if !errors.Is(err, ErrApprovalLookup) {
			t.Fatalf("Check error = %v, want ErrApprovalLookup", err)
		}
		if Message(err) != MsgNotApproved {
			t.Fatalf("Message = %q", Message(err))
		}
	})
}

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidCredentials, "Fel email eller lösenord"},
		{ErrNotApproved, "Ditt konto är inte godkänt ännu"},
		{errors.New("boom"), MsgSignInFailed},
	}
	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
