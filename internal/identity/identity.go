package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrInvalidToken    = errors.New("invalid_token")
	ErrInvalidRole     = errors.New("invalid_role")
)

// Role is the kind of account behind a request. Each principal has exactly
// one role.
type Role string

const (
	RoleClient       Role = "client"
	RoleEmployee     Role = "employee"
	RoleAdmin        Role = "admin"
	RoleCommissioner Role = "commissioner"
)

func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleClient, RoleEmployee, RoleAdmin, RoleCommissioner:
		return role, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) String() string {
	return string(r)
}

// Principal is the authenticated caller, resolved once per request.
type Principal struct {
	ID   snowflake.ID
	Role Role
}

func (p Principal) IsClient() bool {
	return p.Role == RoleClient
}

// Subject is the casbin subject for this principal.
func (p Principal) Subject() string {
	return p.Role.String() + ":" + p.ID.String()
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
