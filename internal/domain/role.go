package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleGuest Role = "guest"
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Permission names a gate applied to a route.
type Permission string

const (
	PermView     Permission = "view"
	PermPost     Permission = "post"
	PermVote     Permission = "vote"
	PermModerate Permission = "moderate"
)

// capabilities maps every role to the permissions it holds. PermView is
// granted to anonymous callers separately (see CanAnonymous).
var capabilities = map[Role]map[Permission]struct{}{
	RoleGuest: {PermView: {}},
	RoleUser:  {PermView: {}, PermPost: {}, PermVote: {}},
	RoleAdmin: {PermView: {}, PermPost: {}, PermVote: {}, PermModerate: {}},
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

// Can reports whether r holds permission p. Unknown roles hold nothing.
func (r Role) Can(p Permission) bool {
	set, ok := capabilities[r]
	if !ok {
		return false
	}
	_, ok = set[p]
	return ok
}

// CanAnonymous reports whether an unauthenticated caller holds p.
func CanAnonymous(p Permission) bool { return p == PermView }

// ParseRole normalizes s and validates it against the role set.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}
