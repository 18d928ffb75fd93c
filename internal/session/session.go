// Package session derives a single coherent identity and team context from
// the persisted credential slots. Resolution is a pure function over a store
// snapshot: no I/O, no failure modes. Expired tokens are indistinguishable
// from valid ones here; expiry only surfaces when an authenticated request
// fails, at which point the caller clears the owning group and re-resolves.
package session

import "github.com/huddlehq/huddle/internal/credstore"

// Kind discriminates the identity union.
type Kind int

const (
	Anonymous Kind = iota
	Parent
	Coach
)

func (k Kind) String() string {
	switch k {
	case Parent:
		return "parent"
	case Coach:
		return "coach"
	default:
		return "anonymous"
	}
}

// Role is a per-team permission level attached to an invite.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleUploader Role = "uploader"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a stored role string to a Role, defaulting to viewer for
// anything unrecognized. Degrading to the weakest role is the safe direction
// for an advisory gate.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUploader:
		return RoleUploader
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleViewer
	}
}

// Identity is the resolved "who am I". For Coach, UserToken and UserID are
// set. For Parent, SessionToken carries the invite token and UserID the
// parent's stable identifier when one is known.
type Identity struct {
	Kind         Kind
	SessionToken string
	UserToken    string
	UserID       string
	Role         Role
}

// TeamContext is the currently open team. TeamCode is only populated when
// the backend has told us (via /me); it is not a persisted slot.
type TeamContext struct {
	TeamID   string
	TeamName string
	TeamCode string
	Role     Role
}

// Resolve derives (Identity, TeamContext) from a credential snapshot.
//
// Precedence: a user token always wins. A coach who opens a team link must
// not be silently demoted to a parent of that team, so the coach identity is
// kept and the team slots only contribute context.
func Resolve(snap credstore.Snapshot) (Identity, *TeamContext) {
	switch {
	case snap.UserToken != "":
		id := Identity{
			Kind:      Coach,
			UserToken: snap.UserToken,
			UserID:    snap.UserID,
			Role:      RoleAdmin,
		}
		teamID := snap.CurrentTeamID
		if teamID == "" {
			teamID = snap.LastTeamID
		}
		if teamID == "" {
			// No team open: dashboard state.
			return id, nil
		}
		role := RoleAdmin
		if snap.CurrentTeamID != "" && snap.Role != "" {
			role = ParseRole(snap.Role)
		}
		return id, &TeamContext{
			TeamID:   teamID,
			TeamName: snap.TeamName,
			Role:     role,
		}

	case snap.InviteToken != "":
		role := ParseRole(snap.Role)
		id := Identity{
			Kind:         Parent,
			SessionToken: snap.InviteToken,
			UserID:       snap.UserID,
			Role:         role,
		}
		if snap.CurrentTeamID == "" {
			// Invite held but no team open: must join.
			return id, nil
		}
		return id, &TeamContext{
			TeamID:   snap.CurrentTeamID,
			TeamName: snap.TeamName,
			Role:     role,
		}

	default:
		// Stale team slots without a token are ignored, not erased; a
		// future token restore may make them meaningful again.
		return Identity{Kind: Anonymous}, nil
	}
}

// Token returns the bearer credential to authenticate API calls with, along
// with which header family it belongs to.
func (id Identity) Token() (value string, isUserToken bool) {
	if id.Kind == Coach {
		return id.UserToken, true
	}
	if id.Kind == Parent {
		return id.SessionToken, false
	}
	return "", false
}

// StableID is the identifier used for content-ownership checks: the coach's
// user id for coach sessions, the parent's user id when one was issued.
func (id Identity) StableID() string {
	return id.UserID
}
