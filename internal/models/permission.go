package models

import (
	"sort"
	"strings"

	"github.com/hyperjump/ragindex/internal/apperr"
)

// PermissionPrefix namespaces permission flags inside chunk metadata.
const PermissionPrefix = "user:"

// Permission is a coarse access tag. Flags are advisory: they are stored and filtered on, never enforced.
type Permission string

const (
	PermissionEditor     Permission = "editor"
	PermissionOwner      Permission = "owner"
	PermissionAdmin      Permission = "admin"
	PermissionSuperadmin Permission = "superadmin"
	PermissionRoot       Permission = "root"
	PermissionSystem     Permission = "system"
	PermissionAnonymous  Permission = "anonymous"
)

// AllPermissions lists every known flag in declaration order.
var AllPermissions = []Permission{
	PermissionEditor,
	PermissionOwner,
	PermissionAdmin,
	PermissionSuperadmin,
	PermissionRoot,
	PermissionSystem,
	PermissionAnonymous,
}

// Key returns the metadata key for the flag, e.g. "user:editor".
func (p Permission) Key() string {
	return PermissionPrefix + string(p)
}

// Valid reports whether p is a known flag.
func (p Permission) Valid() bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePermission accepts a bare name ("owner") or a namespaced key ("user:owner").
func ParsePermission(s string) (Permission, error) {
	p := Permission(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), PermissionPrefix))
	if !p.Valid() {
		return "", apperr.InvalidArgument("unknown permission %q", s)
	}
	return p, nil
}

// Permissions is a set of flag values keyed by Permission.
type Permissions map[Permission]bool

// DefaultIngestPermissions is the overlay applied to ingested chunks: editor off, everything else on.
func DefaultIngestPermissions() Permissions {
	p := make(Permissions, len(AllPermissions))
	for _, perm := range AllPermissions {
		p[perm] = perm != PermissionEditor
	}
	return p
}

// ParsePermissions converts a name→bool map (as found in config files) into Permissions.
func ParsePermissions(raw map[string]bool) (Permissions, error) {
	out := make(Permissions, len(raw))
	for name, v := range raw {
		p, err := ParsePermission(name)
		if err != nil {
			return nil, err
		}
		out[p] = v
	}
	return out, nil
}

// Apply writes every flag into m under its namespaced key.
func (p Permissions) Apply(m Metadata) {
	for perm, v := range p {
		m[perm.Key()] = v
	}
}

// Sorted returns the flags in a stable order.
func (p Permissions) Sorted() []Permission {
	out := make([]Permission, 0, len(p))
	for perm := range p {
		out = append(out, perm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PermissionsFrom reads the flags present in m. Non-boolean values are ignored.
func PermissionsFrom(m Metadata) Permissions {
	out := make(Permissions)
	for _, perm := range AllPermissions {
		if v, ok := m[perm.Key()].(bool); ok {
			out[perm] = v
		}
	}
	return out
}
