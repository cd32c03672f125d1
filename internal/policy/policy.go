// Package policy decides which roles may perform which actions.
package policy

import "github.com/yamdb/yamdb-api/internal/models"

// RoleAnonymous is the role of a caller without a valid token.
const RoleAnonymous models.Role = "anonymous"

type Action string

const (
	CatalogRead       Action = "catalog.read"
	CatalogWrite      Action = "catalog.write"
	ContentRead       Action = "content.read"
	ContentCreate     Action = "content.create"
	ContentModify     Action = "content.modify"
	UsersManage       Action = "users.manage"
	ProfileRead       Action = "profile.read"
	ProfileUpdate     Action = "profile.update"
	ProfileChangeRole Action = "profile.change_role"
)

// rank orders roles; an unknown role ranks as anonymous.
func rank(role models.Role) int {
	switch role {
	case models.RoleUser:
		return 1
	case models.RoleModerator:
		return 2
	case models.RoleAdmin:
		return 3
	}
	return 0
}

// Allows reports whether role may perform action. isOwner is only consulted
// for actions on authored content.
func Allows(role models.Role, action Action, isOwner bool) bool {
	r := rank(role)
	switch action {
	case CatalogRead, ContentRead:
		return true
	case ContentCreate, ProfileRead, ProfileUpdate:
		return r >= rank(models.RoleUser)
	case ContentModify:
		if r >= rank(models.RoleModerator) {
			return true
		}
		return isOwner && r >= rank(models.RoleUser)
	case CatalogWrite, UsersManage:
		return r >= rank(models.RoleAdmin)
	case ProfileChangeRole:
		return false
	}
	return false
}

// Authenticated reports whether role belongs to a signed-in caller.
func Authenticated(role models.Role) bool {
	return rank(role) > 0
}
