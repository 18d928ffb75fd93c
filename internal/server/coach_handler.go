package server

import (
	"crypto/rand"
	"math/big"
	"net/http"
	"strings"

	"github.com/huddlehq/huddle/internal/audit"
)

// coachHandler serves the coach dashboard surfaces.
type coachHandler struct {
	teams   TeamStore
	invites InviteStore
	users   UserStore
	auditor AuditRecorder
}

type coachTeamPayload struct {
	TeamID      string `json:"team_id"`
	TeamName    string `json:"team_name"`
	Role        string `json:"role"`
	InviteToken string `json:"invite_token"`
}

// ListTeams returns the teams the coach administers, each with an invite
// token the client uses to open the team.
func (h *coachHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil || sess.User == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "No user token")
		return
	}

	teams, err := h.teams.ListForCoach(r.Context(), sess.User.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not list teams")
		return
	}

	payload := make([]coachTeamPayload, 0, len(teams))
	for _, team := range teams {
		role, err := h.teams.CoachRole(r.Context(), sess.User.ID, team.ID)
		if err != nil {
			role = "admin"
		}
		invite, err := h.invites.GetForMember(r.Context(), team.ID, sess.User.Email)
		if err != nil {
			invite, err = h.invites.Create(r.Context(), team.ID, sess.User.Email, role)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal", "Could not prepare team invite")
				return
			}
		}
		payload = append(payload, coachTeamPayload{
			TeamID:      team.ID,
			TeamName:    team.Name,
			Role:        role,
			InviteToken: invite.Token,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"teams":          payload,
		"coach_verified": sess.User.CoachVerified,
	})
}

type createTeamRequest struct {
	Name string `json:"name"`
}

// CreateTeam creates a team with a fresh join code. Only setup-key-verified
// coaches may create teams.
func (h *coachHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil || sess.User == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "No user token")
		return
	}
	if !sess.User.CoachVerified {
		writeError(w, http.StatusForbidden, "not_verified", "Verify your setup key before creating teams")
		return
	}

	var req createTeamRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Team name is required")
		return
	}

	team, err := h.teams.Create(r.Context(), req.Name, newTeamCode())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not create team")
		return
	}
	if err := h.teams.AddCoach(r.Context(), sess.User.ID, team.ID, "admin"); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not link coach to team")
		return
	}

	h.auditor.Record(audit.Event{
		Actor: sess.User.ID, Action: "team.create", TeamID: team.ID, Details: team.Name,
	})
	writeJSON(w, http.StatusCreated, map[string]string{
		"team_id":   team.ID,
		"team_name": team.Name,
		"team_code": team.TeamCode,
	})
}

// teamCodeAlphabet omits easily-confused characters.
const teamCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func newTeamCode() string {
	b := make([]byte, 6)
	for i := range b {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(teamCodeAlphabet))))
		b[i] = teamCodeAlphabet[n.Int64()]
	}
	return string(b)
}
