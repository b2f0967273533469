package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lpg-service/internal/models"
)

type signupDraft struct {
	email     string
	secret    string
	profile   *models.Profile
	expiresAt time.Time
}

// maxSignupDrafts bounds the in-memory drafts; past it Begin evicts the
// draft closest to expiry.
const maxSignupDrafts = 10000

// SignupDrafts holds the two-step registration between its steps. Drafts
// live in memory only, expire after ttl and are dropped once completed.
type SignupDrafts struct {
	auth  *AuthService
	ttl   time.Duration
	limit int
	now   func() time.Time

	mu     sync.Mutex
	drafts map[string]*signupDraft
}

func NewSignupDrafts(authService *AuthService, ttl time.Duration) *SignupDrafts {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignupDrafts{
		auth:   authService,
		ttl:    ttl,
		limit:  maxSignupDrafts,
		now:    time.Now,
		drafts: make(map[string]*signupDraft),
	}
}

// Begin stores the credentials of the first step and returns the draft id.
func (d *SignupDrafts) Begin(email, secret string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := checkStruct(signUpInput{Email: email, Secret: secret}); err != nil {
		return "", err
	}

	id := uuid.NewString()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweepLocked()
	for len(d.drafts) >= d.limit {
		d.evictOldestLocked()
	}
	d.drafts[id] = &signupDraft{
		email:     email,
		secret:    secret,
		expiresAt: d.now().Add(d.ttl),
	}

	return id, nil
}

func (d *SignupDrafts) SetProfile(id string, profile models.Profile) error {
	profile.FullName = strings.TrimSpace(profile.FullName)
	profile.Phone = strings.TrimSpace(profile.Phone)
	profile.Address = strings.TrimSpace(profile.Address)
	if err := checkStruct(profile); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweepLocked()
	draft, err := d.getLocked(id)
	if err != nil {
		return err
	}
	draft.profile = &profile

	return nil
}

// Complete registers the account from a finished draft and discards it.
// A draft that fails to register is kept so the user can correct it.
func (d *SignupDrafts) Complete(ctx context.Context, id string) (*Session, error) {
	d.mu.Lock()
	d.sweepLocked()
	draft, err := d.getLocked(id)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	if draft.profile == nil {
		d.mu.Unlock()
		return nil, invalid("profile step is not finished")
	}
	email, secret, profile := draft.email, draft.secret, *draft.profile
	d.mu.Unlock()

	session, err := d.auth.SignUp(ctx, email, secret, profile)
	if err != nil {
		return nil, err
	}

	d.Reset(id)
	return session, nil
}

func (d *SignupDrafts) Reset(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.drafts, id)
}

func (d *SignupDrafts) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweepLocked()
	return len(d.drafts)
}

func (d *SignupDrafts) getLocked(id string) (*signupDraft, error) {
	draft, ok := d.drafts[id]
	if !ok {
		return nil, fmt.Errorf("%w: signup draft", ErrNotFound)
	}
	if d.now().After(draft.expiresAt) {
		delete(d.drafts, id)
		return nil, fmt.Errorf("%w: signup draft expired", ErrNotFound)
	}
	return draft, nil
}

func (d *SignupDrafts) sweepLocked() {
	now := d.now()
	for id, draft := range d.drafts {
		if now.After(draft.expiresAt) {
			delete(d.drafts, id)
		}
	}
}

func (d *SignupDrafts) evictOldestLocked() {
	var (
		oldest string
		at     time.Time
	)
	for id, draft := range d.drafts {
		if oldest == "" || draft.expiresAt.Before(at) {
			oldest, at = id, draft.expiresAt
		}
	}
	delete(d.drafts, oldest)
}
