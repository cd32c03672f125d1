package service

import (
	"github.com/google/uuid"
	"github.com/yamdb/yamdb-api/internal/models"
	"github.com/yamdb/yamdb-api/internal/policy"
)

// roleOf returns the policy role of a possibly anonymous actor.
func roleOf(actor *models.User) models.Role {
	if actor == nil {
		return policy.RoleAnonymous
	}
	return actor.EffectiveRole()
}

func idOf(actor *models.User) uuid.UUID {
	if actor == nil {
		return uuid.Nil
	}
	return actor.ID
}

// checkModify gates edits of authored content.
func checkModify(actor *models.User, isOwner bool) error {
	if actor == nil {
		return UnauthenticatedError("authentication required")
	}
	if !policy.Allows(roleOf(actor), policy.ContentModify, isOwner) {
		return PermissionError("you can only change your own content")
	}
	return nil
}
