package models

import (
	"fmt"
	"strings"
	"time"
)

// Permission is one right conferred by a grant.
type Permission string

const (
	PermissionView     Permission = "VIEW"
	PermissionDownload Permission = "DOWNLOAD"
	PermissionEdit     Permission = "EDIT"
)

// ValidPermission reports whether p is a member of the known permission set.
func ValidPermission(p Permission) bool {
	switch p {
	case PermissionView, PermissionDownload, PermissionEdit:
		return true
	}
	return false
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]struct{}

func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Union merges other into a new set without mutating either operand.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s)+len(other))
	for p := range s {
		out[p] = struct{}{}
	}
	for p := range other {
		out[p] = struct{}{}
	}
	return out
}

// Slice returns the members in the canonical VIEW, DOWNLOAD, EDIT order.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for _, p := range []Permission{PermissionView, PermissionDownload, PermissionEdit} {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Encode renders the set as a comma-joined string in canonical order,
// the storage representation used by the grants table.
func (s PermissionSet) Encode() string {
	parts := make([]string, 0, len(s))
	for _, p := range s.Slice() {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ",")
}

// DecodePermissionSet parses the storage representation produced by Encode.
// Unknown members are rejected.
func DecodePermissionSet(encoded string) (PermissionSet, error) {
	s := make(PermissionSet)
	if encoded == "" {
		return s, nil
	}
	for _, part := range strings.Split(encoded, ",") {
		p := Permission(part)
		if !ValidPermission(p) {
			return nil, fmt.Errorf("unknown permission %q", part)
		}
		s[p] = struct{}{}
	}
	return s, nil
}

// ShareGrant is the access-control unit: it confers a permission set on
// exactly one target (user, email pending identity resolution, or group)
// for one file.
//
// A grant is "live" when it is not revoked, not expired, and its access
// count has not reached MaxAccessCount. Liveness is re-derived on every
// access, never cached.
type ShareGrant struct {
	ID     string
	FileID string

	// Exactly one of the three target fields is set at creation time.
	// RecipientID is additionally filled in by identity repair once an
	// email-targeted recipient registers.
	RecipientID    string
	RecipientEmail string
	GroupID        string

	Permissions PermissionSet

	ExpiresAt      *time.Time
	MaxAccessCount *int64
	AccessCount    int64
	PasswordHash   []byte

	Revoked   bool
	CreatedBy string
	CreatedAt time.Time
}

// Live evaluates grant liveness at the given instant. The quota check is
// "would this access exceed the ceiling": a grant at its ceiling is dead.
func (g *ShareGrant) Live(now time.Time) bool {
	if g.Revoked {
		return false
	}
	if g.ExpiresAt != nil && !now.Before(*g.ExpiresAt) {
		return false
	}
	if g.MaxAccessCount != nil && g.AccessCount >= *g.MaxAccessCount {
		return false
	}
	return true
}

// IdentityPending reports whether the grant targets an email whose account
// is not yet known.
func (g *ShareGrant) IdentityPending() bool {
	return g.RecipientEmail != "" && g.RecipientID == ""
}
