package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// =========================================================================
// IN-MEMORY REPOSITORIES
// =========================================================================
//
// Each fake guards its map with a mutex because the resolver reads profile
// and links concurrently. Setting err makes every call fail with it, which
// stands in for an unreachable store.

type fakeUsernames struct {
	mu  sync.Mutex
	m   map[string]model.Reservation
	seq int
	err error
}

func newFakeUsernames() *fakeUsernames {
	return &fakeUsernames{m: make(map[string]model.Reservation)}
}

func (f *fakeUsernames) Reserve(_ context.Context, r *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.m[r.Username]; ok {
		return apperror.Conflict("username", r.Username)
	}
	f.seq++
	r.CreatedAt = time.Unix(int64(f.seq), 0)
	f.m[r.Username] = *r
	return nil
}

func (f *fakeUsernames) Lookup(_ context.Context, username string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.m[username]
	if !ok {
		return nil, apperror.NotFound("username", username)
	}
	return &r, nil
}

func (f *fakeUsernames) Release(_ context.Context, username, uid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	r, ok := f.m[username]
	if !ok || r.UID != uid {
		return apperror.NotFound("username", username)
	}
	delete(f.m, username)
	return nil
}

func (f *fakeUsernames) ListByUID(_ context.Context, uid string) ([]model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Reservation
	for _, r := range f.m {
		if r.UID == uid {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type fakeProfiles struct {
	mu  sync.Mutex
	m   map[string]model.Profile
	err error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{m: make(map[string]model.Profile)}
}

func (f *fakeProfiles) Create(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.m[p.UID]; ok {
		return apperror.AlreadyExists("profile", p.UID)
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	f.m[p.UID] = *p
	return nil
}

func (f *fakeProfiles) Get(_ context.Context, uid string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.m[uid]
	if !ok {
		return nil, apperror.NotFound("profile", uid)
	}
	return &p, nil
}

func (f *fakeProfiles) Update(_ context.Context, uid string, u model.ProfileUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	p, ok := f.m[uid]
	if !ok {
		return apperror.NotFound("profile", uid)
	}
	u.Apply(&p)
	f.m[uid] = p
	return nil
}

func (f *fakeProfiles) SetUsername(_ context.Context, uid, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	p, ok := f.m[uid]
	if !ok {
		return apperror.NotFound("profile", uid)
	}
	p.Username = username
	f.m[uid] = p
	return nil
}

type fakeLinks struct {
	mu  sync.Mutex
	m   map[string]model.Link
	seq int
	err error
}

func newFakeLinks() *fakeLinks {
	return &fakeLinks{m: make(map[string]model.Link)}
}

func (f *fakeLinks) Create(_ context.Context, l *model.Link) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.seq++
	l.ID = fmt.Sprintf("link-%03d", f.seq)
	l.CreatedAt = time.Now()
	f.m[l.ID] = *l
	return nil
}

func (f *fakeLinks) List(_ context.Context, uid string) ([]model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Link, 0)
	for _, l := range f.m {
		if l.UID == uid {
			out = append(out, l)
		}
	}
	// Map order is random; the service must sort.
	return out, nil
}

func (f *fakeLinks) Get(_ context.Context, uid, id string) (*model.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	l, ok := f.m[id]
	if !ok || l.UID != uid {
		return nil, apperror.NotFound("link", id)
	}
	return &l, nil
}

func (f *fakeLinks) Update(_ context.Context, uid, id string, u model.LinkUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	l, ok := f.m[id]
	if !ok || l.UID != uid {
		return apperror.NotFound("link", id)
	}
	u.Apply(&l)
	f.m[id] = l
	return nil
}

func (f *fakeLinks) Delete(_ context.Context, uid, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	l, ok := f.m[id]
	if !ok || l.UID != uid {
		return apperror.NotFound("link", id)
	}
	delete(f.m, id)
	return nil
}

func (f *fakeLinks) IncrementClicks(_ context.Context, uid, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	l, ok := f.m[id]
	if !ok || l.UID != uid {
		return apperror.NotFound("link", id)
	}
	l.Clicks++
	f.m[id] = l
	return nil
}

type fakeCredentials struct {
	mu sync.Mutex
	m  map[string]model.Credential
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{m: make(map[string]model.Credential)}
}

func (f *fakeCredentials) Create(_ context.Context, c *model.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.m[c.Email]; ok {
		return apperror.AlreadyExists("account", c.Email)
	}
	f.m[c.Email] = *c
	return nil
}

func (f *fakeCredentials) GetByEmail(_ context.Context, email string) (*model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.m[email]
	if !ok {
		return nil, apperror.NotFound("account", email)
	}
	return &c, nil
}

var (
	_ repository.UsernameRepository   = (*fakeUsernames)(nil)
	_ repository.ProfileRepository    = (*fakeProfiles)(nil)
	_ repository.LinkRepository       = (*fakeLinks)(nil)
	_ repository.CredentialRepository = (*fakeCredentials)(nil)
)

// =========================================================================
// WIRING
// =========================================================================

type testEnv struct {
	usernames   *fakeUsernames
	profiles    *fakeProfiles
	links       *fakeLinks
	credentials *fakeCredentials

	registry *Registry
	profile  *ProfileService
	link     *LinkService
	resolver *Resolver
	accounts *AccountService
	tokens   *auth.TokenService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := discardLogger()

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	e := &testEnv{
		usernames:   newFakeUsernames(),
		profiles:    newFakeProfiles(),
		links:       newFakeLinks(),
		credentials: newFakeCredentials(),
		tokens:      tokens,
	}
	e.registry = NewRegistry(e.usernames, logger)
	e.profile = NewProfileService(e.profiles, logger)
	e.link = NewLinkService(e.links, nil, logger)
	e.resolver = NewResolver(e.registry, e.profile, e.link, logger)
	e.accounts = NewAccountService(e.registry, e.profile, e.credentials,
		auth.NewPasswordServiceWithCost(bcrypt.MinCost), tokens, 10, logger)
	return e
}

func strPtr(s string) *string { return &s }
