package server

import "net/http"

// meHandler describes the current session.
type meHandler struct{}

type mePayload struct {
	Team   *meTeam `json:"team,omitempty"`
	Invite *meRole `json:"invite,omitempty"`
	UserID string  `json:"user_id,omitempty"`
}

type meTeam struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	TeamCode string `json:"team_code,omitempty"`
}

type meRole struct {
	Role string `json:"role"`
}

// Me reports the caller's team and role as the backend resolved them, the
// endpoint the client uses to refresh its team context.
func (h *meHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "No session token")
		return
	}

	payload := mePayload{}
	if sess.Invite != nil && sess.Team != nil {
		payload.Team = &meTeam{
			TeamID:   sess.Team.ID,
			TeamName: sess.Team.Name,
			TeamCode: sess.Team.TeamCode,
		}
		payload.Invite = &meRole{Role: sess.Invite.Role}
		payload.UserID = sess.Invite.ID
	}
	if sess.User != nil {
		payload.UserID = sess.User.ID
	}
	if sess.CoachUserID != "" {
		payload.UserID = sess.CoachUserID
	}
	writeJSON(w, http.StatusOK, payload)
}
