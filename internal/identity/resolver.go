// Package identity maps an inbound request to a caller profile.
//
// The shipped resolver trusts a client-asserted username header with no
// cryptographic binding: any caller can claim any identity by setting the
// header. This is a known, documented limitation of the service, not a bug.
// The Resolver interface exists so a real authentication scheme can replace
// it later without touching the repositories or handlers.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"haven/api/internal/store"
)

// DefaultHeader is the header carrying the caller's profile name.
const DefaultHeader = "X-Username"

// ProfileLookup is the storage interface the resolver needs.
type ProfileLookup interface {
	GetProfileByName(ctx context.Context, name string) (store.Profile, error)
}

// Resolver resolves the caller's profile from request headers. A nil profile
// with a nil error means the caller is anonymous; an unknown claimed name is
// treated the same way, not as an error.
type Resolver interface {
	Resolve(ctx context.Context, headers http.Header) (*store.Profile, error)
}

// HeaderResolver reads the identity header and looks the profile up by name.
type HeaderResolver struct {
	header   string
	profiles ProfileLookup
}

func NewHeaderResolver(header string, profiles ProfileLookup) *HeaderResolver {
	if header == "" {
		header = DefaultHeader
	}
	return &HeaderResolver{header: header, profiles: profiles}
}

func (r *HeaderResolver) Resolve(ctx context.Context, headers http.Header) (*store.Profile, error) {
	name := strings.TrimSpace(headers.Get(r.header))
	if name == "" {
		return nil, nil
	}

	profile, err := r.profiles.GetProfileByName(ctx, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	return &profile, nil
}
