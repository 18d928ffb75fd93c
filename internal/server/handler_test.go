package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/blob"
	"github.com/huddlehq/huddle/internal/metrics"
	"github.com/huddlehq/huddle/internal/ratelimit"
	"github.com/huddlehq/huddle/internal/store"
)

// In-memory fakes for the store interfaces.

type memTeams struct {
	mu     sync.Mutex
	teams  map[string]*store.Team
	coach  map[string]map[string]string // userID -> teamID -> role
	nextID int
}

func newMemTeams() *memTeams {
	return &memTeams{teams: map[string]*store.Team{}, coach: map[string]map[string]string{}}
}

func (m *memTeams) Create(ctx context.Context, name, teamCode string) (*store.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &store.Team{ID: fmt.Sprintf("T%d", m.nextID), Name: name, TeamCode: teamCode, CreatedAt: time.Now()}
	m.teams[t.ID] = t
	return t, nil
}

func (m *memTeams) GetByID(ctx context.Context, id string) (*store.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.teams[id]; ok && t.DeletedAt == nil {
		return t, nil
	}
	return nil, store.ErrNotFound
}

func (m *memTeams) GetByCode(ctx context.Context, teamCode string) (*store.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.teams {
		if t.TeamCode == teamCode && t.DeletedAt == nil {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memTeams) ListForCoach(ctx context.Context, userID string) ([]store.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Team
	for teamID := range m.coach[userID] {
		if t, ok := m.teams[teamID]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTeams) AddCoach(ctx context.Context, userID, teamID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.coach[userID] == nil {
		m.coach[userID] = map[string]string{}
	}
	m.coach[userID][teamID] = role
	return nil
}

func (m *memTeams) CoachRole(ctx context.Context, userID, teamID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if role, ok := m.coach[userID][teamID]; ok {
		return role, nil
	}
	return "", store.ErrNotFound
}

func (m *memTeams) Rename(ctx context.Context, id, name string) (*store.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok || t.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	now := time.Now()
	t.Name = name
	t.UpdatedAt = &now
	return t, nil
}

func (m *memTeams) SoftDelete(ctx context.Context, id string) (*store.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok || t.DeletedAt != nil {
		return nil, store.ErrNotFound
	}
	now := time.Now()
	t.DeletedAt = &now
	return t, nil
}

type memInvites struct {
	mu      sync.Mutex
	invites map[string]*store.Invite // by token
	nextID  int
}

func newMemInvites() *memInvites { return &memInvites{invites: map[string]*store.Invite{}} }

func (m *memInvites) Create(ctx context.Context, teamID, email, role string) (*store.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	in := &store.Invite{
		ID: fmt.Sprintf("I%d", m.nextID), TeamID: teamID,
		Token: fmt.Sprintf("tok-%d", m.nextID), Email: email, Role: role, CreatedAt: time.Now(),
	}
	m.invites[in.Token] = in
	return in, nil
}

func (m *memInvites) GetByToken(ctx context.Context, token string) (*store.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if in, ok := m.invites[token]; ok {
		return in, nil
	}
	return nil, store.ErrNotFound
}

func (m *memInvites) GetForMember(ctx context.Context, teamID, email string) (*store.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.invites {
		if in.TeamID == teamID && in.Email == email && in.RevokedAt == nil {
			return in, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memInvites) Revoke(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.invites {
		if in.ID == id && in.RevokedAt == nil {
			now := time.Now()
			in.RevokedAt = &now
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memInvites) RevokeForTeam(ctx context.Context, teamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, in := range m.invites {
		if in.TeamID == teamID && in.RevokedAt == nil {
			now := time.Now()
			in.RevokedAt = &now
		}
	}
	return nil
}

type memUsers struct {
	mu     sync.Mutex
	users  map[string]*store.User // by id
	nextID int
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*store.User{}} }

func (m *memUsers) GetOrCreateByEmail(ctx context.Context, email string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	m.nextID++
	u := &store.User{
		ID: fmt.Sprintf("U%d", m.nextID), Email: email,
		UserToken: fmt.Sprintf("ut-%d", m.nextID), CreatedAt: time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memUsers) GetByToken(ctx context.Context, userToken string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.UserToken == userToken {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (m *memUsers) MarkCoachVerified(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.CoachVerified = true
	return nil
}

type memCodes struct {
	mu    sync.Mutex
	codes map[string]*store.AuthCode // email|purpose
}

func newMemCodes() *memCodes { return &memCodes{codes: map[string]*store.AuthCode{}} }

func (m *memCodes) Issue(ctx context.Context, email, purpose, teamID string) (*store.AuthCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ac := &store.AuthCode{
		ID: "C1", Email: email, Code: "123456", Purpose: purpose, TeamID: teamID,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	m.codes[email+"|"+purpose] = ac
	return ac, nil
}

func (m *memCodes) Consume(ctx context.Context, email, code, purpose string) (*store.AuthCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ac, ok := m.codes[email+"|"+purpose]
	if !ok || ac.Code != code {
		return nil, store.ErrNotFound
	}
	delete(m.codes, email+"|"+purpose)
	return ac, nil
}

type memMedia struct {
	mu    sync.Mutex
	items map[string]*store.Media
}

func newMemMedia() *memMedia { return &memMedia{items: map[string]*store.Media{}} }

func (m *memMedia) Create(ctx context.Context, in store.Media) (*store.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in.CreatedAt = time.Now()
	m.items[in.ID] = &in
	return &in, nil
}

func (m *memMedia) GetByID(ctx context.Context, id string) (*store.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[id]; ok {
		return it, nil
	}
	return nil, store.ErrNotFound
}

func (m *memMedia) ListByTeam(ctx context.Context, teamID, cursor string, limit int) ([]store.Media, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Media
	for _, it := range m.items {
		if it.TeamID == teamID {
			out = append(out, *it)
		}
	}
	return out, "", nil
}

func (m *memMedia) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type nopAuditor struct{}

func (nopAuditor) Record(ev audit.Event) {}

type env struct {
	teams   *memTeams
	invites *memInvites
	users   *memUsers
	codes   *memCodes
	media   *memMedia
	handler http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	blobs, err := blob.NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("letmein"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	e := &env{
		teams:   newMemTeams(),
		invites: newMemInvites(),
		users:   newMemUsers(),
		codes:   newMemCodes(),
		media:   newMemMedia(),
	}
	e.handler = NewRouter(RouterDeps{
		Teams:          e.teams,
		Invites:        e.invites,
		Users:          e.users,
		Codes:          e.codes,
		Media:          e.media,
		BlobStore:      blobs,
		BlobHandler:    blob.NewHandler(blobs, blob.NewPresigner("s", "http://blob/blob", 15*time.Minute, nil), nil),
		Signer:         blob.NewPresigner("s", "http://blob/blob", 15*time.Minute, nil),
		Auditor:        nopAuditor{},
		Mailer:         LogMailer{},
		Limiter:        ratelimit.New(100, time.Minute),
		Metrics:        metrics.New(),
		SetupKeyHash:   string(hash),
		MaxUploadBytes: 1 << 20,
	})
	return e
}

func (e *env) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestJoinAndVerifyFlow(t *testing.T) {
	e := newEnv(t)
	team, _ := e.teams.Create(context.Background(), "Tigers", "TIGERS1")

	rec := e.do(t, "POST", "/auth/join-team",
		map[string]string{"email": "Parent@Example.com", "team_code": "tigers1"}, nil)
	if rec.Code != 200 {
		t.Fatalf("join status = %d: %s", rec.Code, rec.Body.String())
	}
	join := decode[map[string]string](t, rec)
	if join["team_name"] != "Tigers" {
		t.Errorf("team_name = %q", join["team_name"])
	}

	rec = e.do(t, "POST", "/auth/verify",
		map[string]string{"email": "parent@example.com", "code": "123456", "team_code": "TIGERS1"}, nil)
	if rec.Code != 200 {
		t.Fatalf("verify status = %d: %s", rec.Code, rec.Body.String())
	}
	v := decode[map[string]string](t, rec)
	if v["session_token"] == "" || v["team_id"] != team.ID || v["role"] != "uploader" {
		t.Errorf("verify payload = %v", v)
	}

	// Verifying again with a fresh code returns the same invite.
	e.do(t, "POST", "/auth/join-team",
		map[string]string{"email": "parent@example.com", "team_code": "TIGERS1"}, nil)
	rec = e.do(t, "POST", "/auth/verify",
		map[string]string{"email": "parent@example.com", "code": "123456", "team_code": "TIGERS1"}, nil)
	v2 := decode[map[string]string](t, rec)
	if v2["session_token"] != v["session_token"] {
		t.Error("returning member got a different invite token")
	}
}

func TestJoinUnknownTeamCode(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "POST", "/auth/join-team",
		map[string]string{"email": "p@example.com", "team_code": "NOPE"}, nil)
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	e := newEnv(t)
	e.teams.Create(context.Background(), "Tigers", "TIGERS1")
	e.do(t, "POST", "/auth/join-team",
		map[string]string{"email": "p@example.com", "team_code": "TIGERS1"}, nil)

	rec := e.do(t, "POST", "/auth/verify",
		map[string]string{"email": "p@example.com", "code": "999999", "team_code": "TIGERS1"}, nil)
	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	env := decode[errorEnvelope](t, rec)
	if env.Error.Code != "invalid_code" {
		t.Errorf("error code = %q", env.Error.Code)
	}
}

func TestCoachSignInAndVerify(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "POST", "/auth/coach-signin", map[string]string{"email": "coach@example.com"}, nil)
	if rec.Code != 200 {
		t.Fatalf("signin status = %d", rec.Code)
	}

	rec = e.do(t, "POST", "/auth/verify-coach",
		map[string]string{"email": "coach@example.com", "code": "123456"}, nil)
	if rec.Code != 200 {
		t.Fatalf("verify status = %d: %s", rec.Code, rec.Body.String())
	}
	v := decode[map[string]string](t, rec)
	if v["user_token"] == "" || v["user_id"] == "" {
		t.Errorf("payload = %v", v)
	}
}

func TestSetupKeyVerification(t *testing.T) {
	e := newEnv(t)
	user, _ := e.users.GetOrCreateByEmail(context.Background(), "coach@example.com")
	auth := map[string]string{"x-user-token": user.UserToken}

	rec := e.do(t, "POST", "/coach/verify-access", map[string]string{"setup_key": "wrong"}, auth)
	if rec.Code != 403 {
		t.Fatalf("wrong key status = %d, want 403", rec.Code)
	}

	rec = e.do(t, "POST", "/coach/verify-access", map[string]string{"setup_key": "letmein"}, auth)
	if rec.Code != 200 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	u, _ := e.users.GetByID(context.Background(), user.ID)
	if !u.CoachVerified {
		t.Error("coach_verified not set")
	}
}

func TestCreateTeamRequiresVerification(t *testing.T) {
	e := newEnv(t)
	user, _ := e.users.GetOrCreateByEmail(context.Background(), "coach@example.com")
	auth := map[string]string{"x-user-token": user.UserToken}

	rec := e.do(t, "POST", "/coach/teams", map[string]string{"name": "Sharks"}, auth)
	if rec.Code != 403 {
		t.Fatalf("unverified create status = %d, want 403", rec.Code)
	}

	e.users.MarkCoachVerified(context.Background(), user.ID)
	rec = e.do(t, "POST", "/coach/teams", map[string]string{"name": "Sharks"}, auth)
	if rec.Code != 201 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	v := decode[map[string]string](t, rec)
	if len(v["team_code"]) != 6 {
		t.Errorf("team_code = %q", v["team_code"])
	}
}

func TestCoachTeamsReturnsInviteTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user, _ := e.users.GetOrCreateByEmail(ctx, "coach@example.com")
	team, _ := e.teams.Create(ctx, "Tigers", "TIGERS1")
	e.teams.AddCoach(ctx, user.ID, team.ID, "admin")

	rec := e.do(t, "GET", "/coach/teams", nil, map[string]string{"x-user-token": user.UserToken})
	if rec.Code != 200 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	type teamEntry struct {
		TeamID      string `json:"team_id"`
		Role        string `json:"role"`
		InviteToken string `json:"invite_token"`
	}
	payload := decode[struct {
		Teams         []teamEntry `json:"teams"`
		CoachVerified bool        `json:"coach_verified"`
	}](t, rec)
	if len(payload.Teams) != 1 || payload.Teams[0].TeamID != team.ID {
		t.Fatalf("teams = %+v", payload.Teams)
	}
	if payload.Teams[0].InviteToken == "" || payload.Teams[0].Role != "admin" {
		t.Errorf("team entry = %+v", payload.Teams[0])
	}
}

func TestMediaRequiresSession(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, "GET", "/media", nil, nil)
	if rec.Code != 401 {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	rec = e.do(t, "GET", "/media", nil, map[string]string{"x-invite-token": "bogus"})
	if rec.Code != 401 {
		t.Fatalf("bogus token status = %d, want 401", rec.Code)
	}
}

func seedMember(t *testing.T, e *env, role string) (*store.Team, *store.Invite) {
	t.Helper()
	ctx := context.Background()
	team, _ := e.teams.Create(ctx, "Tigers", "TIGERS1")
	invite, err := e.invites.Create(ctx, team.ID, role+"@example.com", role)
	if err != nil {
		t.Fatalf("seeding invite: %v", err)
	}
	return team, invite
}

func TestPresignCompleteAndList(t *testing.T) {
	e := newEnv(t)
	team, invite := seedMember(t, e, "uploader")
	auth := map[string]string{"x-invite-token": invite.Token}

	rec := e.do(t, "POST", "/media/upload-url", map[string]any{
		"filename": "a.jpg", "content_type": "image/jpeg", "size_bytes": 100,
	}, auth)
	if rec.Code != 200 {
		t.Fatalf("presign status = %d: %s", rec.Code, rec.Body.String())
	}
	presigned := decode[struct {
		MediaID         string            `json:"media_id"`
		ObjectKey       string            `json:"object_key"`
		UploadURL       string            `json:"upload_url"`
		ExpiresIn       int64             `json:"expires_in"`
		RequiredHeaders map[string]string `json:"required_headers"`
	}](t, rec)
	if presigned.ObjectKey != "teams/"+team.ID+"/"+presigned.MediaID {
		t.Errorf("object key = %q", presigned.ObjectKey)
	}
	if presigned.RequiredHeaders["Content-Type"] != "image/jpeg" {
		t.Errorf("required headers = %v", presigned.RequiredHeaders)
	}
	if presigned.ExpiresIn != 900 {
		t.Errorf("expires_in = %d, want 900", presigned.ExpiresIn)
	}

	rec = e.do(t, "POST", "/media/complete", map[string]any{
		"media_id": presigned.MediaID, "object_key": presigned.ObjectKey,
		"filename": "a.jpg", "content_type": "image/jpeg", "size_bytes": 100,
		"album_name": "game-day",
	}, auth)
	if rec.Code != 200 {
		t.Fatalf("complete status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, "GET", "/media", nil, auth)
	if rec.Code != 200 {
		t.Fatalf("list status = %d", rec.Code)
	}
	page := decode[struct {
		Items []mediaItemPayload `json:"items"`
	}](t, rec)
	if len(page.Items) != 1 {
		t.Fatalf("items = %d", len(page.Items))
	}
	if page.Items[0].OwnerUserID != invite.ID {
		t.Errorf("owner = %q, want %q", page.Items[0].OwnerUserID, invite.ID)
	}
	if page.Items[0].AlbumName != "game-day" {
		t.Errorf("album = %q", page.Items[0].AlbumName)
	}
}

func TestPresignRejectsViewerAndBadTypes(t *testing.T) {
	e := newEnv(t)
	_, viewer := seedMember(t, e, "viewer")
	auth := map[string]string{"x-invite-token": viewer.Token}

	rec := e.do(t, "POST", "/media/upload-url", map[string]any{
		"filename": "a.jpg", "content_type": "image/jpeg", "size_bytes": 100,
	}, auth)
	if rec.Code != 403 {
		t.Fatalf("viewer presign status = %d, want 403", rec.Code)
	}

	e2 := newEnv(t)
	_, uploader := seedMember(t, e2, "uploader")
	auth = map[string]string{"x-invite-token": uploader.Token}

	rec = e2.do(t, "POST", "/media/upload-url", map[string]any{
		"filename": "a.gif", "content_type": "image/gif", "size_bytes": 100,
	}, auth)
	if rec.Code != 400 {
		t.Fatalf("gif presign status = %d, want 400", rec.Code)
	}

	rec = e2.do(t, "POST", "/media/upload-url", map[string]any{
		"filename": "big.mp4", "content_type": "video/mp4", "size_bytes": 2 << 20,
	}, auth)
	if rec.Code != 413 {
		t.Fatalf("oversize presign status = %d, want 413", rec.Code)
	}
}

func TestCompleteUsesCoachAttributionHeader(t *testing.T) {
	e := newEnv(t)
	team, invite := seedMember(t, e, "admin")
	auth := map[string]string{
		"x-invite-token":  invite.Token,
		"x-coach-user-id": "U-coach",
	}

	rec := e.do(t, "POST", "/media/complete", map[string]any{
		"media_id": "M1", "object_key": "teams/" + team.ID + "/M1",
		"filename": "a.jpg", "content_type": "image/jpeg", "size_bytes": 10,
	}, auth)
	if rec.Code != 200 {
		t.Fatalf("complete status = %d: %s", rec.Code, rec.Body.String())
	}
	m, err := e.media.GetByID(context.Background(), "M1")
	if err != nil {
		t.Fatalf("media row missing: %v", err)
	}
	if m.OwnerUserID != "U-coach" {
		t.Errorf("owner = %q, want the coach user id", m.OwnerUserID)
	}
}

func TestDownloadURLScopedToTeam(t *testing.T) {
	e := newEnv(t)
	team, invite := seedMember(t, e, "uploader")
	auth := map[string]string{"x-invite-token": invite.Token}
	e.media.Create(context.Background(), store.Media{
		ID: "M1", TeamID: team.ID, ObjectKey: "teams/" + team.ID + "/M1", ContentType: "image/jpeg",
	})
	e.media.Create(context.Background(), store.Media{
		ID: "M2", TeamID: "other-team", ObjectKey: "teams/other-team/M2", ContentType: "image/jpeg",
	})

	rec := e.do(t, "GET", "/media/download-url?media_id=M1", nil, auth)
	if rec.Code != 200 {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	v := decode[map[string]any](t, rec)
	if v["download_url"] == "" || v["expires_in"].(float64) != 900 {
		t.Errorf("payload = %v", v)
	}

	rec = e.do(t, "GET", "/media/download-url?media_id=M2", nil, auth)
	if rec.Code != 404 {
		t.Fatalf("cross-team status = %d, want 404", rec.Code)
	}
}

func TestDeletePermissions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	team, owner := seedMember(t, e, "uploader")
	other, _ := e.invites.Create(ctx, team.ID, "other@example.com", "uploader")
	admin, _ := e.invites.Create(ctx, team.ID, "admin@example.com", "admin")

	seed := func(id, ownerID string) {
		e.media.Create(ctx, store.Media{
			ID: id, TeamID: team.ID, ObjectKey: "teams/" + team.ID + "/" + id,
			ContentType: "image/jpeg", OwnerUserID: ownerID,
		})
	}
	seed("M-owned", owner.ID)
	seed("M-legacy", "")

	// A non-owner uploader cannot delete someone else's item.
	rec := e.do(t, "DELETE", "/media?media_id=M-owned", nil,
		map[string]string{"x-invite-token": other.Token})
	if rec.Code != 403 {
		t.Fatalf("non-owner delete = %d, want 403", rec.Code)
	}

	// The owner can.
	rec = e.do(t, "DELETE", "/media?media_id=M-owned", nil,
		map[string]string{"x-invite-token": owner.Token})
	if rec.Code != 200 {
		t.Fatalf("owner delete = %d: %s", rec.Code, rec.Body.String())
	}

	// Legacy items resist everyone but admins.
	rec = e.do(t, "DELETE", "/media?media_id=M-legacy", nil,
		map[string]string{"x-invite-token": owner.Token})
	if rec.Code != 403 {
		t.Fatalf("legacy delete by uploader = %d, want 403", rec.Code)
	}
	rec = e.do(t, "DELETE", "/media?media_id=M-legacy", nil,
		map[string]string{"x-invite-token": admin.Token})
	if rec.Code != 200 {
		t.Fatalf("legacy delete by admin = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRevokeInvite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	team, admin := seedMember(t, e, "admin")
	member, _ := e.invites.Create(ctx, team.ID, "member@example.com", "uploader")
	adminAuth := map[string]string{"x-invite-token": admin.Token}

	// The member's token works before revocation.
	if rec := e.do(t, "GET", "/me", nil, map[string]string{"x-invite-token": member.Token}); rec.Code != 200 {
		t.Fatalf("member /me before revoke = %d", rec.Code)
	}

	rec := e.do(t, "POST", "/invites/revoke",
		map[string]string{"invite_token": member.Token}, adminAuth)
	if rec.Code != 200 {
		t.Fatalf("revoke status = %d: %s", rec.Code, rec.Body.String())
	}

	// And stops working after.
	rec = e.do(t, "GET", "/me", nil, map[string]string{"x-invite-token": member.Token})
	if rec.Code != 401 {
		t.Fatalf("revoked member /me = %d, want 401", rec.Code)
	}

	// Revoking again is a validation failure, not a repeatable success.
	rec = e.do(t, "POST", "/invites/revoke",
		map[string]string{"invite_token": member.Token}, adminAuth)
	if rec.Code != 400 {
		t.Fatalf("double revoke = %d, want 400", rec.Code)
	}

	rec = e.do(t, "POST", "/invites/revoke", map[string]string{}, adminAuth)
	if rec.Code != 400 {
		t.Fatalf("missing invite_token = %d, want 400", rec.Code)
	}
	rec = e.do(t, "POST", "/invites/revoke",
		map[string]string{"invite_token": "no-such-token"}, adminAuth)
	if rec.Code != 404 {
		t.Fatalf("unknown invite = %d, want 404", rec.Code)
	}
}

func TestRevokeInviteRequiresAdminOnSameTeam(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	team, _ := seedMember(t, e, "admin")
	uploader, _ := e.invites.Create(ctx, team.ID, "up@example.com", "uploader")
	victim, _ := e.invites.Create(ctx, team.ID, "victim@example.com", "uploader")

	rec := e.do(t, "POST", "/invites/revoke",
		map[string]string{"invite_token": victim.Token},
		map[string]string{"x-invite-token": uploader.Token})
	if rec.Code != 403 {
		t.Fatalf("non-admin revoke = %d, want 403", rec.Code)
	}

	otherTeam, _ := e.teams.Create(ctx, "Sharks", "SHARKS1")
	otherAdmin, _ := e.invites.Create(ctx, otherTeam.ID, "oa@example.com", "admin")
	rec = e.do(t, "POST", "/invites/revoke",
		map[string]string{"invite_token": victim.Token},
		map[string]string{"x-invite-token": otherAdmin.Token})
	if rec.Code != 403 {
		t.Fatalf("cross-team revoke = %d, want 403", rec.Code)
	}

	// Neither attempt touched the invite.
	if rec := e.do(t, "GET", "/me", nil, map[string]string{"x-invite-token": victim.Token}); rec.Code != 200 {
		t.Errorf("victim /me = %d, want 200", rec.Code)
	}
}

func TestRenameTeam(t *testing.T) {
	e := newEnv(t)
	team, admin := seedMember(t, e, "admin")
	auth := map[string]string{"x-invite-token": admin.Token}

	rec := e.do(t, "PATCH", "/teams/"+team.ID,
		map[string]string{"team_name": "Tigers U12"}, auth)
	if rec.Code != 200 {
		t.Fatalf("rename status = %d: %s", rec.Code, rec.Body.String())
	}
	v := decode[map[string]string](t, rec)
	if v["team_name"] != "Tigers U12" || v["team_code"] != team.TeamCode || v["updated_at"] == "" {
		t.Errorf("rename payload = %v", v)
	}

	rec = e.do(t, "PATCH", "/teams/"+team.ID, map[string]string{"team_name": "  "}, auth)
	if rec.Code != 400 {
		t.Fatalf("blank name = %d, want 400", rec.Code)
	}
	rec = e.do(t, "PATCH", "/teams/some-other-team",
		map[string]string{"team_name": "Hijack"}, auth)
	if rec.Code != 403 {
		t.Fatalf("foreign team rename = %d, want 403", rec.Code)
	}

	e2 := newEnv(t)
	team2, uploader := seedMember(t, e2, "uploader")
	rec = e2.do(t, "PATCH", "/teams/"+team2.ID,
		map[string]string{"team_name": "Nope"},
		map[string]string{"x-invite-token": uploader.Token})
	if rec.Code != 403 {
		t.Fatalf("uploader rename = %d, want 403", rec.Code)
	}
}

func TestDeleteTeamRevokesAllInvites(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	team, admin := seedMember(t, e, "admin")
	member, _ := e.invites.Create(ctx, team.ID, "member@example.com", "uploader")

	rec := e.do(t, "DELETE", "/teams/"+team.ID, nil,
		map[string]string{"x-invite-token": admin.Token})
	if rec.Code != 200 {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	v := decode[map[string]string](t, rec)
	if v["team_id"] != team.ID || v["deleted_at"] == "" {
		t.Errorf("delete payload = %v", v)
	}

	// Every token on the team is dead, and the join code no longer resolves.
	for _, token := range []string{admin.Token, member.Token} {
		if rec := e.do(t, "GET", "/me", nil, map[string]string{"x-invite-token": token}); rec.Code != 401 {
			t.Errorf("token after delete = %d, want 401", rec.Code)
		}
	}
	rec = e.do(t, "POST", "/auth/join-team",
		map[string]string{"email": "late@example.com", "team_code": team.TeamCode}, nil)
	if rec.Code != 404 {
		t.Errorf("join deleted team = %d, want 404", rec.Code)
	}
}

func TestDeleteTeamRequiresVerifiedCoach(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	team, admin := seedMember(t, e, "admin")
	coach, _ := e.users.GetOrCreateByEmail(ctx, "coach@example.com")

	// A coach acting through the admin invite but not yet setup-key
	// verified cannot delete.
	headers := map[string]string{
		"x-invite-token": admin.Token,
		"x-user-token":   coach.UserToken,
	}
	rec := e.do(t, "DELETE", "/teams/"+team.ID, nil, headers)
	if rec.Code != 403 {
		t.Fatalf("unverified coach delete = %d, want 403", rec.Code)
	}

	e.users.MarkCoachVerified(ctx, coach.ID)
	rec = e.do(t, "DELETE", "/teams/"+team.ID, nil, headers)
	if rec.Code != 200 {
		t.Fatalf("verified coach delete = %d: %s", rec.Code, rec.Body.String())
	}

	// Deleting again finds nothing.
	rec = e.do(t, "DELETE", "/teams/"+team.ID, nil, headers)
	if rec.Code != 401 {
		t.Fatalf("delete after delete = %d, want 401", rec.Code)
	}
}

func TestMeReportsTeamAndRole(t *testing.T) {
	e := newEnv(t)
	team, invite := seedMember(t, e, "uploader")

	rec := e.do(t, "GET", "/me", nil, map[string]string{"x-invite-token": invite.Token})
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	me := decode[struct {
		Team struct {
			TeamID   string `json:"team_id"`
			TeamName string `json:"team_name"`
		} `json:"team"`
		Invite struct {
			Role string `json:"role"`
		} `json:"invite"`
		UserID string `json:"user_id"`
	}](t, rec)
	if me.Team.TeamID != team.ID || me.Invite.Role != "uploader" || me.UserID != invite.ID {
		t.Errorf("me = %+v", me)
	}
}

func TestPresignRateLimited(t *testing.T) {
	e := newEnv(t)
	_, invite := seedMember(t, e, "uploader")
	auth := map[string]string{"x-invite-token": invite.Token}

	// Swap in a tight limiter via a fresh router.
	e.handler = NewRouter(RouterDeps{
		Teams: e.teams, Invites: e.invites, Users: e.users, Codes: e.codes, Media: e.media,
		BlobStore:   mustBlobStore(t),
		BlobHandler: blob.NewHandler(mustBlobStore(t), blob.NewPresigner("s", "http://b/blob", time.Minute, nil), nil),
		Signer:      blob.NewPresigner("s", "http://b/blob", time.Minute, nil),
		Auditor:     nopAuditor{}, Mailer: LogMailer{},
		Limiter: ratelimit.New(1, time.Hour),
		Metrics: metrics.New(), MaxUploadBytes: 1 << 20,
	})

	body := map[string]any{"filename": "a.jpg", "content_type": "image/jpeg", "size_bytes": 10}
	if rec := e.do(t, "POST", "/media/upload-url", body, auth); rec.Code != 200 {
		t.Fatalf("first presign = %d", rec.Code)
	}
	if rec := e.do(t, "POST", "/media/upload-url", body, auth); rec.Code != 429 {
		t.Fatalf("second presign = %d, want 429", rec.Code)
	}
}

func mustBlobStore(t *testing.T) *blob.Store {
	t.Helper()
	s, err := blob.NewStore(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	return s
}
