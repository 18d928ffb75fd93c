package server

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/store"
)

// authHandler serves the join and sign-in flows.
type authHandler struct {
	teams   TeamStore
	invites InviteStore
	users   UserStore
	codes   CodeStore
	mailer  Mailer
	auditor AuditRecorder

	// setupKeyHash is the bcrypt hash of the shared coach setup key.
	setupKeyHash string
}

type joinTeamRequest struct {
	Email    string `json:"email"`
	TeamCode string `json:"team_code"`
}

// JoinTeam starts the parent join flow: look up the team by code and email
// a verification code. The code never appears in the response.
func (h *authHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	var req joinTeamRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.TeamCode = strings.ToUpper(strings.TrimSpace(req.TeamCode))
	if req.Email == "" || req.TeamCode == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Email and team code are required")
		return
	}

	team, err := h.teams.GetByCode(r.Context(), req.TeamCode)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "No team with that code")
		return
	}

	code, err := h.codes.Issue(r.Context(), req.Email, store.CodePurposeParent, team.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not issue verification code")
		return
	}
	if err := h.mailer.SendCode(r.Context(), req.Email, code.Code, team.Name); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not send verification code")
		return
	}

	h.auditor.Record(audit.Event{
		Actor: "anonymous", Action: "auth.join_team", TeamID: team.ID, Details: req.Email,
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Verification code sent",
		"email":     req.Email,
		"team_name": team.Name,
	})
}

type verifyRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	TeamCode string `json:"team_code"`
}

// Verify redeems a parent verification code for an invite token. Returning
// members get their existing invite back, so the token stays stable across
// devices.
func (h *authHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Email and code are required")
		return
	}

	ac, err := h.codes.Consume(r.Context(), req.Email, req.Code, store.CodePurposeParent)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_code", "Verification code is not valid")
		return
	}
	team, err := h.teams.GetByID(r.Context(), ac.TeamID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "Team no longer exists")
		return
	}

	invite, err := h.invites.GetForMember(r.Context(), team.ID, req.Email)
	if err != nil {
		invite, err = h.invites.Create(r.Context(), team.ID, req.Email, "uploader")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", "Could not create invite")
			return
		}
	}

	h.auditor.Record(audit.Event{
		Actor: invite.ID, Action: "auth.verify", TeamID: team.ID,
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"session_token": invite.Token,
		"user_id":       invite.ID,
		"team_id":       team.ID,
		"team_name":     team.Name,
		"role":          invite.Role,
	})
}

type coachSignInRequest struct {
	Email string `json:"email"`
}

// CoachSignIn starts the coach magic-code flow. The response is identical
// whether or not the email is known.
func (h *authHandler) CoachSignIn(w http.ResponseWriter, r *http.Request) {
	var req coachSignInRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Email is required")
		return
	}

	code, err := h.codes.Issue(r.Context(), req.Email, store.CodePurposeCoach, "")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not issue verification code")
		return
	}
	if err := h.mailer.SendCode(r.Context(), req.Email, code.Code, ""); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not send verification code")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Verification code sent",
		"email":   req.Email,
	})
}

type verifyCoachRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// VerifyCoach redeems a coach code for a durable user token, creating the
// account on first sign-in.
func (h *authHandler) VerifyCoach(w http.ResponseWriter, r *http.Request) {
	var req verifyCoachRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Email and code are required")
		return
	}

	if _, err := h.codes.Consume(r.Context(), req.Email, req.Code, store.CodePurposeCoach); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_code", "Verification code is not valid")
		return
	}
	user, err := h.users.GetOrCreateByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not create account")
		return
	}

	h.auditor.Record(audit.Event{Actor: user.ID, Action: "auth.verify_coach"})
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":    user.ID,
		"user_token": user.UserToken,
		"email":      user.Email,
	})
}

type verifyAccessRequest struct {
	SetupKey string `json:"setup_key"`
}

// VerifyAccess redeems the shared setup key, unlocking team creation for
// the signed-in coach.
func (h *authHandler) VerifyAccess(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil || sess.User == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "No user token")
		return
	}

	var req verifyAccessRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	if h.setupKeyHash == "" {
		writeError(w, http.StatusForbidden, "forbidden", "Setup key verification is not enabled")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(h.setupKeyHash), []byte(req.SetupKey)); err != nil {
		writeError(w, http.StatusForbidden, "invalid_key", "Setup key is not valid")
		return
	}
	if err := h.users.MarkCoachVerified(r.Context(), sess.User.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not verify account")
		return
	}

	h.auditor.Record(audit.Event{Actor: sess.User.ID, Action: "auth.verify_access"})
	writeJSON(w, http.StatusOK, map[string]any{"coach_verified": true})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
