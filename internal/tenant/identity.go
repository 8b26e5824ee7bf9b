// Package tenant binds units of work to a single verified tenant identity.
//
// A unit of work runs inside one transaction on one pooled connection. Before the
// caller's function executes, the manager stores the identity in the transaction-local
// setting app.current_user_id; every row-level security policy reads that setting.
// The setting disappears when the transaction ends, and connections that could still
// carry it are destroyed instead of being returned to the pool.
package tenant

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrIdentityInvalid is returned when the ambient identity cannot be established.
	ErrIdentityInvalid = errors.New("tenant identity is invalid")
	// ErrNoTenant is returned by a Session that is not bound to a running unit of work.
	ErrNoTenant = errors.New("no tenant bound to session")
	// ErrNotFound covers both genuine absence and rows hidden or protected by policy.
	ErrNotFound = errors.New("record not found or access denied")
)

// Identity is the verified auth-provider user id on whose behalf a unit of work runs.
type Identity struct {
	id uuid.UUID
}

// ParseIdentity validates a raw identity. Only canonical UUIDs are accepted.
func ParseIdentity(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrIdentityInvalid
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return Identity{}, ErrIdentityInvalid
	}
	return Identity{id: id}, nil
}

// NewIdentity wraps an already-parsed id.
func NewIdentity(id uuid.UUID) Identity {
	return Identity{id: id}
}

// UUID returns the underlying id.
func (i Identity) UUID() uuid.UUID { return i.id }

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool { return i.id == uuid.Nil }

func (i Identity) String() string {
	if i.IsZero() {
		return ""
	}
	return i.id.String()
}
