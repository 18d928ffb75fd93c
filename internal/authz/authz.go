// Package authz answers "can the current identity do this" as pure
// predicates. The gate is advisory: the server re-validates every mutating
// call; these checks only exist so the client never offers an action the
// server would reject.
package authz

import "github.com/huddlehq/huddle/internal/session"

// Item carries the ownership fields relevant to permission checks.
type Item struct {
	MediaID     string
	OwnerUserID string
}

// CanDelete reports whether the identity may delete the item under the given
// team role.
//
// Admins and coaches manage all content in their teams. Everyone else may
// only delete what they own; items predating ownership tracking (no owner
// recorded) are never deletable by non-admins, protecting historical data.
func CanDelete(id session.Identity, item Item, teamRole session.Role) bool {
	if teamRole == session.RoleAdmin {
		return true
	}
	if id.Kind == session.Coach {
		return true
	}
	if item.OwnerUserID == "" {
		return false
	}
	return id.StableID() != "" && item.OwnerUserID == id.StableID()
}

// CanUpload reports whether the team role permits uploading.
func CanUpload(teamRole session.Role) bool {
	return teamRole == session.RoleUploader || teamRole == session.RoleAdmin
}
