package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"svinn/internal/cache"
	"svinn/internal/gateway"
)

var (
	ErrNotApproved    = errors.New("account not approved")
	ErrApprovalLookup = errors.New("approval lookup failed")
)

// ApprovalGate answers whether a user may see the dashboard. Positive
// answers are cached for ttl; a rejection is never cached so a newly
// approved account gets in on its next attempt.
type ApprovalGate struct {
	reader   gateway.ApprovalReader
	approved *cache.LRUCache[bool]
	ttl      time.Duration
}

func NewApprovalGate(reader gateway.ApprovalReader, ttl time.Duration) *ApprovalGate {
	return &ApprovalGate{
		reader:   reader,
		approved: cache.NewLRUCache[bool](1024, ttl),
		ttl:      ttl,
	}
}

// Cache exposes the approval cache for periodic expiry.
func (g *ApprovalGate) Cache() cache.Cleaner {
	return g.approved
}

// Check returns nil when userID is approved, ErrNotApproved when the
// profile says no and ErrApprovalLookup when the question cannot be
// answered. Callers treat both errors as a rejection.
func (g *ApprovalGate) Check(ctx context.Context, userID string) error {
	if g.ttl > 0 {
		if ok, hit := g.approved.Get(userID); hit && ok {
			return nil
		}
	}

	ok, err := g.reader.IsApproved(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrApprovalLookup, err)
	}
	if !ok {
		g.approved.Delete(userID)
		return ErrNotApproved
	}
	if g.ttl > 0 {
		g.approved.Set(userID, true)
	}
	return nil
}

// Forget drops any cached answer for userID.
func (g *ApprovalGate) Forget(userID string) {
	g.approved.Delete(userID)
}
