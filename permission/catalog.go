package permission

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrTooManyPermissions is returned when the roles name more than
	// MaxPermissions distinct permissions.
	ErrTooManyPermissions = errors.New("permission limit exceeded")
	// ErrEmptyName is returned for an empty role or permission name.
	ErrEmptyName = errors.New("role and permission names cannot be empty")
)

// Catalog binds role names to permission masks.
//
// It is built once from configuration and never mutated, so reads need no
// locking. Permission bits are assigned in sorted name order, which keeps a
// mask stable across restarts with the same role table.
type Catalog struct {
	bits  map[string]int
	names []string
	roles map[string]Mask64
}

// NewCatalog builds a Catalog from a role → permission names table.
func NewCatalog(roles map[string][]string) (*Catalog, error) {
	seen := make(map[string]struct{})
	for role, perms := range roles {
		if role == "" {
			return nil, ErrEmptyName
		}
		for _, p := range perms {
			if p == "" {
				return nil, fmt.Errorf("role %q: %w", role, ErrEmptyName)
			}
			seen[p] = struct{}{}
		}
	}
	if len(seen) > MaxPermissions {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyPermissions, len(seen), MaxPermissions)
	}

	c := &Catalog{
		bits:  make(map[string]int, len(seen)),
		names: make([]string, 0, len(seen)),
		roles: make(map[string]Mask64, len(roles)),
	}
	for p := range seen {
		c.names = append(c.names, p)
	}
	sort.Strings(c.names)
	for bit, p := range c.names {
		c.bits[p] = bit
	}

	for role, perms := range roles {
		var m Mask64
		for _, p := range perms {
			m.Set(c.bits[p])
		}
		c.roles[role] = m
	}
	return c, nil
}

// HasRole reports whether role is defined.
func (c *Catalog) HasRole(role string) bool {
	_, ok := c.roles[role]
	return ok
}

// Mask unions the masks of roles. Unknown roles contribute nothing.
func (c *Catalog) Mask(roles ...string) Mask64 {
	var m Mask64
	for _, r := range roles {
		m = m.Union(c.roles[r])
	}
	return m
}

// Names expands m into permission names in bit order.
func (c *Catalog) Names(m Mask64) []string {
	var out []string
	for bit, name := range c.names {
		if m.Has(bit) {
			out = append(out, name)
		}
	}
	return out
}

// Resolve returns the permission names granted by roles.
func (c *Catalog) Resolve(roles ...string) []string {
	return c.Names(c.Mask(roles...))
}

// Allows reports whether any of roles grants perm.
func (c *Catalog) Allows(perm string, roles ...string) bool {
	bit, ok := c.bits[perm]
	if !ok {
		return false
	}
	return c.Mask(roles...).Has(bit)
}

// Permissions lists every known permission, sorted.
func (c *Catalog) Permissions() []string {
	return append([]string(nil), c.names...)
}
