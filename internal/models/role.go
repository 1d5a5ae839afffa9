package models

import (
	"encoding/json"

	"github.com/clintjedwards/gofer/internal/storage"
	"github.com/rs/zerolog/log"
)

type PermissionAction string

const (
	PermissionActionRead   PermissionAction = "READ"
	PermissionActionWrite  PermissionAction = "WRITE"
	PermissionActionDelete PermissionAction = "DELETE"
)

// A permission grants a set of actions over a set of resources. Resources are dotted
// paths like "namespaces.default.pipelines" and may use a trailing wildcard.
type Permission struct {
	Resources []string           `json:"resources" example:"[\"namespaces.default.pipelines\"]" doc:"The resources this permission applies to"`
	Actions   []PermissionAction `json:"actions" example:"[\"READ\"]" doc:"The actions allowed on the matched resources"`
}

// A role is a named set of permissions which can be attached to tokens.
type Role struct {
	ID          string       `json:"id" example:"operators" doc:"Unique identifier for the role"`
	Description string       `json:"description" doc:"Short description on what the role is used for"`
	Permissions []Permission `json:"permissions" doc:"The permission set granted by this role"`
	// System roles are created by Gofer itself and cannot be modified or removed.
	SystemRole bool `json:"system_role" example:"false" doc:"Whether the role is managed by Gofer itself"`
}

func NewRole(id, description string, permissions []Permission, systemRole bool) *Role {
	return &Role{
		ID:          id,
		Description: description,
		Permissions: permissions,
		SystemRole:  systemRole,
	}
}

func (r *Role) ToStorage() *storage.Role {
	permissions, err := json.Marshal(r.Permissions)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating to storage")
	}

	return &storage.Role{
		ID:          r.ID,
		Description: r.Description,
		Permissions: string(permissions),
		SystemRole:  r.SystemRole,
	}
}

func (r *Role) FromStorage(sr *storage.Role) {
	var permissions []Permission
	err := json.Unmarshal([]byte(sr.Permissions), &permissions)
	if err != nil {
		log.Fatal().Err(err).Msg("error in translating from storage")
	}

	r.ID = sr.ID
	r.Description = sr.Description
	r.Permissions = permissions
	r.SystemRole = sr.SystemRole
}
