// Package domain provides shared domain types for the Foreman build orchestrator.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import (
	"fmt"

	"gopkg.in/yaml.v3"

	foremanerrors "github.com/forgecrew/foreman/internal/errors"
)

// Role identifies a functional executor role. It is a closed enumeration so
// the agent registry can be a fixed-size table indexed by role, and the
// dispatch path never compares role name strings.
type Role int

// Executor roles. NumRoles is a sentinel for sizing role-indexed tables and
// is not a valid role itself.
const (
	RoleAPI Role = iota
	RoleModels
	RoleTest
	RoleRealtime
	RoleQuality
	RoleIntegration
	RoleSecurity

	NumRoles
)

// roleNames maps roles to their wire/CLI names. Order must match the
// constant block above.
var roleNames = [NumRoles]string{
	"api",
	"models",
	"test",
	"realtime",
	"quality",
	"integration",
	"security",
}

// String returns the lowercase role name.
// This implements fmt.Stringer for convenient logging and debugging.
func (r Role) String() string {
	if !r.IsValid() {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// IsValid checks if the role is a recognized value.
func (r Role) IsValid() bool {
	return r >= 0 && r < NumRoles
}

// ParseRole converts a role name to its Role value.
// Returns ErrInvalidRole for unknown names.
func ParseRole(name string) (Role, error) {
	for i, n := range roleNames {
		if n == name {
			return Role(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", foremanerrors.ErrInvalidRole, name)
}

// AllRoles returns every valid role in declaration order.
func AllRoles() []Role {
	roles := make([]Role, 0, NumRoles)
	for r := Role(0); r < NumRoles; r++ {
		roles = append(roles, r)
	}
	return roles
}

// MarshalText implements encoding.TextMarshaler so roles serialize as their
// names, including when used as JSON map keys.
func (r Role) MarshalText() ([]byte, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", foremanerrors.ErrInvalidRole, int(r))
	}
	return []byte(roleNames[r]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler so catalog files carry role names.
func (r Role) MarshalYAML() (interface{}, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", foremanerrors.ErrInvalidRole, int(r))
	}
	return roleNames[r], nil
}

// UnmarshalYAML implements yaml.Unmarshaler for catalog files.
func (r *Role) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	return r.UnmarshalText([]byte(name))
}
