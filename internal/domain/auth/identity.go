// Package auth carries the typed request identity. Authentication is
// permissive: a missing or invalid token never rejects a request, it only
// yields an anonymous identity. Handlers that need a user or guest context
// state that requirement explicitly instead of probing optional fields.
package auth

import "context"

// Identity describes who a request acts as. At most one of UserID and
// GuestID is set; both empty means anonymous.
type Identity struct {
	UserID  string
	GuestID string
	Email   string
	Name    string
	Admin   bool
}

// Authenticated reports whether the identity belongs to a signed-in user.
func (id Identity) Authenticated() bool { return id.UserID != "" }

// Guest reports whether the identity is an anonymous cart owner.
func (id Identity) Guest() bool { return id.UserID == "" && id.GuestID != "" }

// Anonymous reports whether the request carries no identity at all.
func (id Identity) Anonymous() bool { return id.UserID == "" && id.GuestID == "" }

type identityKey struct{}

// WithIdentity returns a context carrying the given identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext extracts the request identity, anonymous if none was attached.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		return id
	}
	return Identity{}
}
