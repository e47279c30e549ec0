package auth

import (
	"context"
	"errors"
	"sort"
)

// Provider names recorded on profiles.
const (
	ProviderPassword = "password"
	ProviderGitHub   = "github"
	ProviderGoogle   = "google"
)

// ErrProviderRejected marks an exchange the identity provider refused
// (bad or reused code). Anything else from Exchange is a transport failure.
var ErrProviderRejected = errors.New("auth: identity provider rejected the sign-in")

// Identity is what an identity provider tells us about a signed-in person.
// Only UID is guaranteed; the rest are hints for seeding a new profile.
type Identity struct {
	UID          string // stable, namespaced by provider: "github:583231"
	Provider     string
	Email        string
	DisplayName  string
	PhotoURL     string
	UsernameHint string // provider-side handle, if the provider has one
}

// IdentityProvider is one external OAuth sign-in method.
type IdentityProvider interface {
	Name() string
	// AuthURL is where the browser is sent to start the sign-in.
	AuthURL(state string) string
	// Exchange trades the callback code for the person's identity.
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// Providers indexes the configured identity providers by name.
type Providers map[string]IdentityProvider

// NewProviders indexes list by provider name.
func NewProviders(list ...IdentityProvider) Providers {
	ps := make(Providers, len(list))
	for _, p := range list {
		ps[p.Name()] = p
	}
	return ps
}

// Get returns the provider called name.
func (ps Providers) Get(name string) (IdentityProvider, bool) {
	p, ok := ps[name]
	return p, ok
}

// Names lists configured providers in sorted order.
func (ps Providers) Names() []string {
	names := make([]string, 0, len(ps))
	for n := range ps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
