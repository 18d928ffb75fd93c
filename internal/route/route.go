// Package route maps locations plus resolved session state to page states,
// and computes redirects without a server round trip. The original scattered
// this across per-page redirect checks; here it is one explicit table.
package route

import (
	"fmt"
	"strings"

	"github.com/huddlehq/huddle/internal/credstore"
	"github.com/huddlehq/huddle/internal/session"
)

// Page is one of the fixed set of page states.
type Page int

const (
	Public Page = iota
	Join
	CoachSignIn
	CoachVerify
	CoachDashboard
	CreateTeamFlow
	SetupKeyFlow
	TeamApp
)

func (p Page) String() string {
	switch p {
	case Join:
		return "join"
	case CoachSignIn:
		return "coach-signin"
	case CoachVerify:
		return "coach-verify"
	case CoachDashboard:
		return "coach-dashboard"
	case CreateTeamFlow:
		return "create-team"
	case SetupKeyFlow:
		return "setup-key"
	case TeamApp:
		return "team-app"
	default:
		return "public"
	}
}

// Resolution is the outcome of resolving one navigation event.
type Resolution struct {
	Page     Page
	Path     string // canonical path, differs from the requested one on redirect
	Identity session.Identity
	Team     *session.TeamContext
}

// Resolver turns paths into page states. It owns no state of its own; every
// resolution re-reads a fresh credential snapshot, so a route decision never
// observes a partially-updated store.
type Resolver struct {
	store *credstore.Store
}

func NewResolver(store *credstore.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve computes the page for path. Visiting /team/{id} records the team
// as current and last before resolving, which is what makes a shared team
// link "stick" for the next visit.
func (r *Resolver) Resolve(path string) (Resolution, error) {
	path = normalize(path)

	if teamID, ok := matchTeamPath(path); ok {
		if err := r.store.Set(credstore.SlotCurrentTeamID, teamID); err != nil {
			return Resolution{}, err
		}
		if err := r.store.Set(credstore.SlotLastTeamID, teamID); err != nil {
			return Resolution{}, err
		}
	}

	snap, err := r.store.Snapshot()
	if err != nil {
		// The resolver never fails upward: degrade to Public.
		return Resolution{Page: Public, Path: "/"}, nil
	}
	id, team := session.Resolve(snap)

	switch path {
	case "/join":
		return Resolution{Page: Join, Path: path, Identity: id, Team: team}, nil
	case "/coach/signin":
		return Resolution{Page: CoachSignIn, Path: path, Identity: id, Team: team}, nil
	case "/coach/verify":
		return Resolution{Page: CoachVerify, Path: path, Identity: id, Team: team}, nil
	case "/coach/dashboard":
		return Resolution{Page: CoachDashboard, Path: path, Identity: id, Team: team}, nil
	case "/coach/setup-key":
		return Resolution{Page: SetupKeyFlow, Path: path, Identity: id, Team: team}, nil
	case "/create-team":
		return Resolution{Page: CreateTeamFlow, Path: path, Identity: id, Team: team}, nil
	}

	if _, ok := matchTeamPath(path); ok {
		return Resolution{Page: TeamApp, Path: path, Identity: id, Team: team}, nil
	}

	if path == "/" {
		// Authenticated users are never dumped on the public landing page.
		if id.Kind != session.Anonymous {
			return r.homeResolution(id, team), nil
		}
		return Resolution{Page: Public, Path: "/", Identity: id}, nil
	}

	// Unknown path: fall back to the best page the session can support.
	if team != nil {
		return Resolution{Page: TeamApp, Path: "/team/" + team.TeamID, Identity: id, Team: team}, nil
	}
	if id.Kind == session.Coach {
		return Resolution{Page: CoachDashboard, Path: "/coach/dashboard", Identity: id}, nil
	}
	return Resolution{Page: Public, Path: "/", Identity: id}, nil
}

// homeResolution computes the canonical home for an authenticated session.
func (r *Resolver) homeResolution(id session.Identity, team *session.TeamContext) Resolution {
	switch {
	case id.Kind == session.Coach:
		return Resolution{Page: CoachDashboard, Path: "/coach/dashboard", Identity: id, Team: team}
	case id.Kind == session.Parent && team != nil:
		return Resolution{Page: TeamApp, Path: "/team/" + team.TeamID, Identity: id, Team: team}
	case id.Kind == session.Parent:
		return Resolution{Page: Join, Path: "/join", Identity: id}
	default:
		return Resolution{Page: Public, Path: "/", Identity: id}
	}
}

// HomePath returns the canonical home path for the current session.
func (r *Resolver) HomePath() string {
	snap, err := r.store.Snapshot()
	if err != nil {
		return "/"
	}
	id, team := session.Resolve(snap)
	return r.homeResolution(id, team).Path
}

// SignOut clears exactly the credential groups that are present, so clearing
// one identity never leaks into the other, and resolves to Public.
func (r *Resolver) SignOut() (Resolution, error) {
	hasParent, err := r.store.HasGroup(credstore.GroupParent)
	if err != nil {
		return Resolution{}, fmt.Errorf("signing out: %w", err)
	}
	hasCoach, err := r.store.HasGroup(credstore.GroupCoach)
	if err != nil {
		return Resolution{}, fmt.Errorf("signing out: %w", err)
	}

	if hasParent {
		if err := r.store.ClearGroup(credstore.GroupParent); err != nil {
			return Resolution{}, fmt.Errorf("signing out: %w", err)
		}
	}
	if hasCoach {
		if err := r.store.ClearGroup(credstore.GroupCoach); err != nil {
			return Resolution{}, fmt.Errorf("signing out: %w", err)
		}
	}

	return Resolution{Page: Public, Path: "/"}, nil
}

// SignOutGroup clears a single credential group, used when an auth failure
// invalidates one identity but the other may still be good.
func (r *Resolver) SignOutGroup(group credstore.Group) error {
	return r.store.ClearGroup(group)
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// matchTeamPath extracts the team id from /team/{id} paths.
func matchTeamPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/team/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}
