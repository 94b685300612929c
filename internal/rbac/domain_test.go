package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPermissionSetAllows(t *testing.T) {
	set := PermissionSet{
		{Module: "tasks", Action: ActionView, Scope: ScopeAssigned},
		{Module: "tasks", Action: ActionUpdate, Scope: ScopeAssigned},
		{Module: "locations", Action: ActionView, Scope: ScopeAny},
	}

	require.True(t, set.Allows("tasks", ActionView, ScopeAssigned))
	require.False(t, set.Allows("tasks", ActionView, ScopeAny))
	require.False(t, set.Allows("tasks", ActionDelete, ScopeAssigned))
	require.False(t, set.Allows("users", ActionView, ScopeAssigned))

	// Wildcard scope matches any requested scope.
	require.True(t, set.Allows("locations", ActionView, ScopeAny))
	require.True(t, set.Allows("locations", ActionView, ScopeAssigned))
	require.True(t, set.Allows("locations", ActionView, "department"))
}

func TestPermissionSetEmptyDeniesEverything(t *testing.T) {
	var set PermissionSet
	require.False(t, set.Allows("tasks", ActionView, ScopeAny))
	require.False(t, set.Allows("", "", ""))

	_, ok := set.Grant("tasks", ActionView)
	require.False(t, ok)
}

func TestPermissionSetSkipsMalformedRecords(t *testing.T) {
	set := PermissionSet{
		{Module: "", Action: ActionView, Scope: ScopeAny},
		{Module: "tasks", Action: "", Scope: ScopeAny},
		{Module: "tasks", Action: ActionView, Scope: ScopeAssigned},
	}

	require.False(t, set.Allows("", ActionView, ScopeAny))
	require.True(t, set.Allows("tasks", ActionView, ScopeAssigned))
	require.False(t, set.Allows("tasks", ActionView, ScopeAny))
}

func TestPermissionSetGrantPrefersWildcard(t *testing.T) {
	set := PermissionSet{
		{Module: "tasks", Action: ActionView, Scope: ScopeAssigned},
		{Module: "tasks", Action: ActionView, Scope: ScopeAny},
	}

	scope, ok := set.Grant("tasks", ActionView)
	require.True(t, ok)
	require.Equal(t, ScopeAny, scope)

	scope, ok = PermissionSet{{Module: "tasks", Action: ActionView, Scope: ScopeAssigned}}.Grant("tasks", ActionView)
	require.True(t, ok)
	require.Equal(t, ScopeAssigned, scope)
}

func TestPermissionNormalize(t *testing.T) {
	p := Permission{Module: "  Tasks ", Action: "VIEW", Scope: " Any "}.Normalize()
	require.Equal(t, "tasks", p.Module)
	require.Equal(t, ActionView, p.Action)
	require.Equal(t, ScopeAny, p.Scope)
}

func TestActionValid(t *testing.T) {
	require.True(t, ActionView.Valid())
	require.True(t, ActionDelete.Valid())
	require.False(t, Action("approve").Valid())
	require.False(t, Action("").Valid())
}
