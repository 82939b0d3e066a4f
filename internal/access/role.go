package access

import (
	"fmt"
	"strings"

	"scrutin/internal/services"
)

// Role is the permission level of a session.
type Role string

const (
	PrecinctOperator Role = "precinct_operator"
	Supervisor       Role = "supervisor"
	Administrator    Role = "administrator"
)

// ParseRole accepts the configured spelling of a role.
func ParseRole(value string) (Role, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_")
	switch Role(normalized) {
	case PrecinctOperator, Supervisor, Administrator:
		return Role(normalized), nil
	case "operator":
		return PrecinctOperator, nil
	case "admin":
		return Administrator, nil
	default:
		return "", services.Wrap(services.ErrValidation, "access", "parse role", fmt.Sprintf("unknown role %q", value), nil)
	}
}

// Principal is the authenticated actor of a session.
type Principal struct {
	Actor    string
	Role     Role
	Precinct string
}

// Validate checks that operators are bound to a precinct.
func (p Principal) Validate() error {
	if strings.TrimSpace(p.Actor) == "" {
		return services.Wrap(services.ErrValidation, "access", "principal", "actor is required", nil)
	}
	switch p.Role {
	case PrecinctOperator:
		if strings.TrimSpace(p.Precinct) == "" {
			return services.Wrap(services.ErrValidation, "access", "principal", "precinct operator must be bound to a precinct", nil)
		}
	case Supervisor, Administrator:
	default:
		return services.Wrap(services.ErrValidation, "access", "principal", fmt.Sprintf("unknown role %q", p.Role), nil)
	}
	return nil
}

// ScopeKey identifies the visibility context for cache and coalescing keys.
func (p Principal) ScopeKey() string {
	if p.Role == PrecinctOperator {
		return string(p.Role) + ":" + p.Precinct
	}
	return string(p.Role)
}

// IsAdministrator reports whether p holds the administrator role.
func (p Principal) IsAdministrator() bool { return p.Role == Administrator }

// CanValidate reports whether p may countersign submitted records.
func (p Principal) CanValidate() bool { return p.Role == Supervisor || p.Role == Administrator }
