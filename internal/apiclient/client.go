// Package apiclient is the typed HTTP client for the huddle backend
// contract. It owns header selection (invite token vs user token), the
// error-envelope decode, and nothing else; caching and permission logic
// live above it.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// TokenSource supplies the credentials attached to each request. The media
// layer backs this with the credential store so a token refresh is picked up
// without rebuilding the client.
type TokenSource interface {
	Tokens() (inviteToken, userToken, coachUserID string)
}

// StaticTokens is a fixed TokenSource, used by tests and one-shot commands.
type StaticTokens struct {
	InviteToken string
	UserToken   string
	CoachUserID string
}

func (s StaticTokens) Tokens() (string, string, string) {
	return s.InviteToken, s.UserToken, s.CoachUserID
}

type authMode int

const (
	authNone authMode = iota
	authSession      // x-invite-token preferred, x-user-token as fallback
	authUser         // x-user-token required
)

// Client talks to one backend base URL.
type Client struct {
	baseURL string
	tokens  TokenSource
	httpc   *http.Client
}

// New creates a client. A nil httpc gets a default with a 30s timeout.
func New(baseURL string, tokens TokenSource, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Client{baseURL: baseURL, tokens: tokens, httpc: httpc}
}

// ListMedia fetches one page of the open team's media.
func (c *Client) ListMedia(ctx context.Context, cursor string, limit int) (*MediaPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page MediaPage
	if err := c.do(ctx, http.MethodGet, "/media", q, nil, &page, authSession); err != nil {
		return nil, err
	}
	return &page, nil
}

// PresignUpload negotiates the first phase of an upload.
func (c *Client) PresignUpload(ctx context.Context, in PresignUploadInput) (*PresignedUpload, error) {
	var out PresignedUpload
	if err := c.do(ctx, http.MethodPost, "/media/upload-url", nil, in, &out, authSession); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteUpload registers an uploaded object. When a coach is acting
// through a team invite, the coach's user id rides along so the upload
// stays attributable.
func (c *Client) CompleteUpload(ctx context.Context, in CompleteUploadInput) error {
	return c.do(ctx, http.MethodPost, "/media/complete", nil, in, nil, authSession)
}

// PresignDownload mints a short-lived signed URL for one media item.
func (c *Client) PresignDownload(ctx context.Context, mediaID string) (*PresignedDownload, error) {
	q := url.Values{"media_id": []string{mediaID}}
	var out PresignedDownload
	if err := c.do(ctx, http.MethodGet, "/media/download-url", q, nil, &out, authSession); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMedia removes a media item and its stored objects.
func (c *Client) DeleteMedia(ctx context.Context, mediaID string) error {
	q := url.Values{"media_id": []string{mediaID}}
	return c.do(ctx, http.MethodDelete, "/media", q, nil, nil, authSession)
}

// Me describes the current session's team and role.
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var out Me
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &out, authSession); err != nil {
		return nil, err
	}
	return &out, nil
}

// CoachTeams lists the teams the signed-in coach administers.
func (c *Client) CoachTeams(ctx context.Context) (*CoachTeams, error) {
	var out CoachTeams
	if err := c.do(ctx, http.MethodGet, "/coach/teams", nil, nil, &out, authUser); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateTeam creates a team with a fresh join code. Requires a setup-key
// verified coach account.
func (c *Client) CreateTeam(ctx context.Context, name string) (*CreatedTeam, error) {
	body := map[string]string{"name": name}
	var out CreatedTeam
	if err := c.do(ctx, http.MethodPost, "/coach/teams", nil, body, &out, authUser); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeInvite invalidates one of the open team's invite tokens. Requires
// an admin invite session.
func (c *Client) RevokeInvite(ctx context.Context, inviteToken string) error {
	body := map[string]string{"invite_token": inviteToken}
	return c.do(ctx, http.MethodPost, "/invites/revoke", nil, body, nil, authSession)
}

// RenameTeam changes the open team's display name.
func (c *Client) RenameTeam(ctx context.Context, teamID, name string) (*RenamedTeam, error) {
	body := map[string]string{"team_name": name}
	var out RenamedTeam
	if err := c.do(ctx, http.MethodPatch, "/teams/"+teamID, nil, body, &out, authSession); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTeam soft-deletes the open team and revokes all of its invites.
func (c *Client) DeleteTeam(ctx context.Context, teamID string) (*DeletedTeam, error) {
	var out DeletedTeam
	if err := c.do(ctx, http.MethodDelete, "/teams/"+teamID, nil, nil, &out, authSession); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyCoachAccess redeems the one-time setup key for the coach account.
func (c *Client) VerifyCoachAccess(ctx context.Context, setupKey string) error {
	body := map[string]string{"setup_key": setupKey}
	return c.do(ctx, http.MethodPost, "/coach/verify-access", nil, body, nil, authUser)
}

// JoinTeam starts the parent join flow; the verification code is emailed.
func (c *Client) JoinTeam(ctx context.Context, email, teamCode string) (*JoinResult, error) {
	body := map[string]string{"email": email, "team_code": teamCode}
	var out JoinResult
	if err := c.do(ctx, http.MethodPost, "/auth/join-team", nil, body, &out, authNone); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify redeems a parent verification code for a session token.
func (c *Client) Verify(ctx context.Context, email, code, teamCode string) (*VerifyResult, error) {
	body := map[string]string{"email": email, "code": code, "team_code": teamCode}
	var out VerifyResult
	if err := c.do(ctx, http.MethodPost, "/auth/verify", nil, body, &out, authNone); err != nil {
		return nil, err
	}
	return &out, nil
}

// CoachSignIn starts the coach magic-code flow.
func (c *Client) CoachSignIn(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/coach-signin", nil, body, nil, authNone)
}

// VerifyCoach redeems a coach verification code for a user token.
func (c *Client) VerifyCoach(ctx context.Context, email, code string) (*CoachVerifyResult, error) {
	body := map[string]string{"email": email, "code": code}
	var out CoachVerifyResult
	if err := c.do(ctx, http.MethodPost, "/auth/verify-coach", nil, body, &out, authNone); err != nil {
		return nil, err
	}
	return &out, nil
}

// PutObject uploads raw bytes to a presigned URL. The content type must be
// exactly the one negotiated at presign time; the object store rejects the
// PUT otherwise, and that rejection is surfaced, never papered over.
func (c *Client) PutObject(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if size > 0 {
		req.ContentLength = size
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		env := readEnvelope(resp.Body)
		return classify(resp.StatusCode, env)
	}
	return nil
}

// do runs one request and decodes either the success body into out or the
// error envelope into the taxonomy.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, mode authMode) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.attachAuth(req, mode); err != nil {
		return err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		env := readEnvelope(resp.Body)
		return classify(resp.StatusCode, env)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) attachAuth(req *http.Request, mode authMode) error {
	if mode == authNone {
		return nil
	}

	invite, user, coachUserID := "", "", ""
	if c.tokens != nil {
		invite, user, coachUserID = c.tokens.Tokens()
	}

	switch mode {
	case authUser:
		if user == "" {
			return &AuthError{StatusCode: 401, Message: "not signed in as a coach"}
		}
		req.Header.Set("x-user-token", user)
	case authSession:
		switch {
		case invite != "":
			req.Header.Set("x-invite-token", invite)
			// A coach acting through an invite stays attributable.
			if coachUserID != "" {
				req.Header.Set("x-coach-user-id", coachUserID)
			}
		case user != "":
			req.Header.Set("x-user-token", user)
		default:
			return &AuthError{StatusCode: 401, Message: "no session token"}
		}
	}
	return nil
}

func readEnvelope(r io.Reader) *errorEnvelope {
	data, err := io.ReadAll(io.LimitReader(r, 1<<16))
	if err != nil || len(data) == 0 {
		return nil
	}
	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	return &env
}
