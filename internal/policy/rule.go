// Package policy declares which rows a tenant may see or change, table by table.
//
// The same Rule values are rendered into PostgreSQL row-level security policies by
// the migrator and evaluated in Go by the in-memory store used in tests, so both
// stores enforce one rule set.
package policy

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies how a table's rows relate to a tenant.
type Kind int

const (
	// OwnerRecord rows are the tenant itself: visible where the identity column equals the ambient identity.
	OwnerRecord Kind = iota + 1
	// Owned rows carry an owner reference to the tenant's owner record.
	Owned
	// OwnedVia rows are owned through a parent row that is itself policy-filtered.
	OwnedVia
	// Shared rows are readable by everyone when public, writable only by the owner.
	Shared
	// Journal rows may be appended by the tenant they name and are otherwise invisible to tenants.
	Journal
)

func (k Kind) String() string {
	switch k {
	case OwnerRecord:
		return "owner_record"
	case Owned:
		return "owned"
	case OwnedVia:
		return "owned_via"
	case Shared:
		return "shared"
	case Journal:
		return "journal"
	default:
		return "unknown"
	}
}

// Rule is the declarative policy for one table.
type Rule struct {
	Table string
	Kind  Kind
	// Column holds the identity (OwnerRecord, Journal), the owner reference (Owned, Shared)
	// or the parent reference (OwnedVia).
	Column string
	// VisibilityColumn is the public flag of a Shared table.
	VisibilityColumn string
	// Parent is the policy-filtered table referenced by an OwnedVia rule.
	Parent string
}

// Validate reports rules that cannot be rendered.
func (r Rule) Validate() error {
	if !validName(r.Table) {
		return fmt.Errorf("policy: invalid table name %q", r.Table)
	}
	if !validName(r.Column) {
		return fmt.Errorf("policy: table %s: invalid column %q", r.Table, r.Column)
	}
	switch r.Kind {
	case OwnerRecord, Owned, Journal:
	case OwnedVia:
		if !validName(r.Parent) {
			return fmt.Errorf("policy: table %s: invalid parent %q", r.Table, r.Parent)
		}
	case Shared:
		if !validName(r.VisibilityColumn) {
			return fmt.Errorf("policy: table %s: invalid visibility column %q", r.Table, r.VisibilityColumn)
		}
	default:
		return fmt.Errorf("policy: table %s: unknown kind %d", r.Table, r.Kind)
	}
	return nil
}

// Actor is the ambient tenant as seen by policy evaluation. A zero Actor means
// the ambient setting is unset.
type Actor struct {
	Identity  uuid.UUID
	ProfileID uuid.UUID
}

// Bound reports whether an identity is set.
func (a Actor) Bound() bool { return a.Identity != uuid.Nil }

// Row carries the policy-relevant attributes of one row. For OwnedVia rows, Owner
// is the owner of the parent row, or uuid.Nil when the parent does not exist.
type Row struct {
	Identity uuid.UUID
	Owner    uuid.UUID
	Public   bool
}

// Visible reports whether the actor may read the row.
func (r Rule) Visible(a Actor, row Row) bool {
	if !a.Bound() {
		return false
	}
	switch r.Kind {
	case OwnerRecord:
		return row.Identity == a.Identity
	case Owned, OwnedVia:
		return a.ProfileID != uuid.Nil && row.Owner == a.ProfileID
	case Shared:
		return row.Public || (a.ProfileID != uuid.Nil && row.Owner == a.ProfileID)
	default:
		return false
	}
}

// Writable reports whether the actor may insert, update or delete the row.
func (r Rule) Writable(a Actor, row Row) bool {
	if !a.Bound() {
		return false
	}
	switch r.Kind {
	case OwnerRecord:
		return row.Identity == a.Identity
	case Owned, OwnedVia, Shared:
		return a.ProfileID != uuid.Nil && row.Owner == a.ProfileID
	case Journal:
		return row.Identity == a.Identity
	default:
		return false
	}
}

func validName(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	for i, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
