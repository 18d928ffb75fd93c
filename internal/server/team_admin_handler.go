package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/huddlehq/huddle/internal/audit"
)

// teamAdminHandler serves team management surfaces. Callers act through an
// admin invite on the open team, the same session shape the media surfaces
// use.
type teamAdminHandler struct {
	teams   TeamStore
	invites InviteStore
	users   UserStore
	auditor AuditRecorder
}

// adminSession returns the session when the caller holds an admin invite,
// writing the error response otherwise.
func (h *teamAdminHandler) adminSession(w http.ResponseWriter, r *http.Request) *Session {
	sess := sessionFromContext(r.Context())
	if sess == nil || sess.Invite == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "No team session")
		return nil
	}
	if sess.Invite.Role != "admin" {
		writeError(w, http.StatusForbidden, "forbidden", "Admin access required")
		return nil
	}
	return sess
}

type revokeInviteRequest struct {
	InviteToken string `json:"invite_token"`
}

// RevokeInvite invalidates one of the open team's invite tokens. The target
// stops authenticating immediately; the member can re-join for a fresh
// token.
func (h *teamAdminHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	sess := h.adminSession(w, r)
	if sess == nil {
		return
	}

	var req revokeInviteRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	req.InviteToken = strings.TrimSpace(req.InviteToken)
	if req.InviteToken == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "invite_token is required")
		return
	}

	target, err := h.invites.GetByToken(r.Context(), req.InviteToken)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Invite not found")
		return
	}
	if target.TeamID != sess.Invite.TeamID {
		writeError(w, http.StatusForbidden, "forbidden", "Cannot revoke an invite from another team")
		return
	}
	if target.RevokedAt != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invite already revoked")
		return
	}

	if err := h.invites.Revoke(r.Context(), target.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not revoke invite")
		return
	}

	h.auditor.Record(audit.Event{
		Actor: sess.ActorID(), Action: "invite.revoke",
		TeamID: sess.Invite.TeamID, Target: target.ID, Details: target.Role,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

type renameTeamRequest struct {
	TeamName string `json:"team_name"`
}

// RenameTeam updates the open team's display name.
func (h *teamAdminHandler) RenameTeam(w http.ResponseWriter, r *http.Request) {
	sess := h.adminSession(w, r)
	if sess == nil {
		return
	}
	teamID := chi.URLParam(r, "teamID")
	if teamID != sess.Invite.TeamID {
		writeError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
		return
	}

	var req renameTeamRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	req.TeamName = strings.TrimSpace(req.TeamName)
	if req.TeamName == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "team_name is required")
		return
	}

	team, err := h.teams.Rename(r.Context(), teamID, req.TeamName)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Team not found")
		return
	}

	h.auditor.Record(audit.Event{
		Actor: sess.ActorID(), Action: "team.rename",
		TeamID: team.ID, Details: team.Name,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"team_id":    team.ID,
		"team_name":  team.Name,
		"team_code":  team.TeamCode,
		"updated_at": team.UpdatedAt.Format(time.RFC3339),
	})
}

// DeleteTeam soft-deletes the open team and revokes every one of its
// invites. A coach carrying a user token must have redeemed the setup key
// first.
func (h *teamAdminHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	sess := h.adminSession(w, r)
	if sess == nil {
		return
	}
	teamID := chi.URLParam(r, "teamID")
	if teamID != sess.Invite.TeamID {
		writeError(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
		return
	}

	if userToken := r.Header.Get("x-user-token"); userToken != "" {
		user, err := h.users.GetByToken(r.Context(), userToken)
		if err == nil && !user.CoachVerified {
			writeError(w, http.StatusForbidden, "not_verified", "Verify your setup key before deleting teams")
			return
		}
	}

	team, err := h.teams.SoftDelete(r.Context(), teamID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Team not found")
		return
	}

	// The team is already gone; invite revocation failing only means its
	// tokens die on the team lookup instead.
	if err := h.invites.RevokeForTeam(r.Context(), team.ID); err != nil {
		slog.Warn("revoking invites for deleted team", "team_id", team.ID, "error", err)
	}

	h.auditor.Record(audit.Event{
		Actor: sess.ActorID(), Action: "team.delete",
		TeamID: team.ID, Details: team.Name,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"team_id":    team.ID,
		"deleted_at": team.DeletedAt.Format(time.RFC3339),
	})
}
