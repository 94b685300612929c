package rbac

import "strings"

// Action enumerates the fixed set of operations a permission can grant.
type Action string

const (
	// ActionView grants read access.
	ActionView Action = "view"
	// ActionInsert grants create access.
	ActionInsert Action = "insert"
	// ActionUpdate grants modify access.
	ActionUpdate Action = "update"
	// ActionDelete grants delete access.
	ActionDelete Action = "delete"
)

// Valid reports whether the action is part of the enumeration.
func (a Action) Valid() bool {
	switch a {
	case ActionView, ActionInsert, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// ScopeAny is the wildcard resource scope matching every requested scope.
const ScopeAny = "any"

// ScopeAssigned restricts a grant to resources assigned to the principal.
const ScopeAssigned = "assigned"

// Permission is an atomic capability: a (module, action, scope) triple.
type Permission struct {
	ID     int64  `json:"id"`
	Module string `json:"module"`
	Action Action `json:"action"`
	Scope  string `json:"scope"`
}

// Normalize lower-cases and trims the triple fields.
func (p Permission) Normalize() Permission {
	p.Module = strings.ToLower(strings.TrimSpace(p.Module))
	p.Action = Action(strings.ToLower(strings.TrimSpace(string(p.Action))))
	p.Scope = strings.ToLower(strings.TrimSpace(p.Scope))
	return p
}

// PermissionSet is a principal's resolved permission snapshot, loaded once
// at authentication time. All checks against it are pure and perform no I/O.
type PermissionSet []Permission

// Allows reports whether the set grants action on module for the requested
// resource scope. The scan is linear and fail-closed: an empty set denies
// everything, an unknown module/action denies, and a malformed record
// (missing module or action) is skipped rather than treated as an error.
// A permission whose scope is the "any" wildcard matches every requested
// scope.
func (s PermissionSet) Allows(module string, action Action, scope string) bool {
	for _, p := range s {
		if p.Module == "" || p.Action == "" {
			continue
		}
		if p.Module != module || p.Action != action {
			continue
		}
		if p.Scope == ScopeAny || p.Scope == scope {
			return true
		}
	}
	return false
}

// Grant returns the broadest resource scope the set grants for
// (module, action). The wildcard wins over any narrower scope; ok is false
// when nothing matches.
func (s PermissionSet) Grant(module string, action Action) (scope string, ok bool) {
	for _, p := range s {
		if p.Module == "" || p.Action == "" {
			continue
		}
		if p.Module != module || p.Action != action {
			continue
		}
		if p.Scope == ScopeAny {
			return ScopeAny, true
		}
		if !ok {
			scope, ok = p.Scope, true
		}
	}
	return scope, ok
}
