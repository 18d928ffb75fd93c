package route

import (
	"path/filepath"
	"testing"

	"github.com/huddlehq/huddle/internal/credstore"
	"github.com/huddlehq/huddle/internal/session"
)

func testResolver(t *testing.T) (*Resolver, *credstore.Store) {
	t.Helper()
	store, err := credstore.Open(filepath.Join(t.TempDir(), "state.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewResolver(store), store
}

func set(t *testing.T, s *credstore.Store, slot credstore.Slot, v string) {
	t.Helper()
	if err := s.Set(slot, v); err != nil {
		t.Fatalf("Set(%s): %v", slot, err)
	}
}

func TestStaticPaths(t *testing.T) {
	r, _ := testResolver(t)

	tests := []struct {
		path string
		want Page
	}{
		{"/join", Join},
		{"/coach/signin", CoachSignIn},
		{"/coach/verify", CoachVerify},
		{"/coach/dashboard", CoachDashboard},
		{"/coach/setup-key", SetupKeyFlow},
		{"/create-team", CreateTeamFlow},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			res, err := r.Resolve(tt.path)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Page != tt.want {
				t.Errorf("Resolve(%s) = %v, want %v", tt.path, res.Page, tt.want)
			}
			if res.Path != tt.path {
				t.Errorf("static path should not redirect, got %s", res.Path)
			}
		})
	}
}

func TestTeamPathRecordsTeam(t *testing.T) {
	r, store := testResolver(t)
	set(t, store, credstore.SlotInviteToken, "it")

	res, err := r.Resolve("/team/T42")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Page != TeamApp {
		t.Errorf("expected TeamApp, got %v", res.Page)
	}
	if res.Team == nil || res.Team.TeamID != "T42" {
		t.Errorf("expected team context T42, got %+v", res.Team)
	}

	if v, _ := store.Get(credstore.SlotCurrentTeamID); v != "T42" {
		t.Errorf("current team slot should be T42, got %q", v)
	}
	if v, _ := store.Get(credstore.SlotLastTeamID); v != "T42" {
		t.Errorf("last team slot should be T42, got %q", v)
	}
}

func TestRootAnonymousStaysPublic(t *testing.T) {
	r, _ := testResolver(t)

	res, err := r.Resolve("/")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Page != Public {
		t.Errorf("expected Public, got %v", res.Page)
	}
}

func TestRootRedirects(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, s *credstore.Store)
		wantPage Page
		wantPath string
	}{
		{
			name:     "coach goes to dashboard",
			setup:    func(t *testing.T, s *credstore.Store) { set(t, s, credstore.SlotUserToken, "ut") },
			wantPage: CoachDashboard,
			wantPath: "/coach/dashboard",
		},
		{
			name: "coach with open team still goes to dashboard",
			setup: func(t *testing.T, s *credstore.Store) {
				set(t, s, credstore.SlotUserToken, "ut")
				set(t, s, credstore.SlotInviteToken, "it")
				set(t, s, credstore.SlotCurrentTeamID, "T1")
			},
			wantPage: CoachDashboard,
			wantPath: "/coach/dashboard",
		},
		{
			name: "parent with open team goes to team",
			setup: func(t *testing.T, s *credstore.Store) {
				set(t, s, credstore.SlotInviteToken, "it")
				set(t, s, credstore.SlotCurrentTeamID, "T7")
			},
			wantPage: TeamApp,
			wantPath: "/team/T7",
		},
		{
			name:     "parent without team goes to join",
			setup:    func(t *testing.T, s *credstore.Store) { set(t, s, credstore.SlotInviteToken, "it") },
			wantPage: Join,
			wantPath: "/join",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store := testResolver(t)
			tt.setup(t, store)

			res, err := r.Resolve("/")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Page != tt.wantPage {
				t.Errorf("expected page %v, got %v", tt.wantPage, res.Page)
			}
			if res.Path != tt.wantPath {
				t.Errorf("expected path %s, got %s", tt.wantPath, res.Path)
			}
		})
	}
}

func TestUnknownPathFallbacks(t *testing.T) {
	t.Run("team context resolvable", func(t *testing.T) {
		r, store := testResolver(t)
		set(t, store, credstore.SlotInviteToken, "it")
		set(t, store, credstore.SlotCurrentTeamID, "T3")

		res, _ := r.Resolve("/no/such/page")
		if res.Page != TeamApp || res.Path != "/team/T3" {
			t.Errorf("expected TeamApp /team/T3, got %v %s", res.Page, res.Path)
		}
	})

	t.Run("coach without team", func(t *testing.T) {
		r, store := testResolver(t)
		set(t, store, credstore.SlotUserToken, "ut")

		res, _ := r.Resolve("/no/such/page")
		if res.Page != CoachDashboard {
			t.Errorf("expected CoachDashboard, got %v", res.Page)
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		r, _ := testResolver(t)

		res, _ := r.Resolve("/no/such/page")
		if res.Page != Public {
			t.Errorf("expected Public, got %v", res.Page)
		}
	})
}

func TestSignOutParentOnly(t *testing.T) {
	r, store := testResolver(t)
	set(t, store, credstore.SlotInviteToken, "it")
	set(t, store, credstore.SlotCurrentTeamID, "T1")
	set(t, store, credstore.SlotRole, "viewer")

	res, err := r.SignOut()
	if err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if res.Page != Public {
		t.Errorf("expected Public after sign-out, got %v", res.Page)
	}

	snap, _ := store.Snapshot()
	if snap.InviteToken != "" || snap.CurrentTeamID != "" || snap.Role != "" {
		t.Errorf("parent group should be cleared, got %+v", snap)
	}
}

func TestSignOutLeavesOtherGroupUntouched(t *testing.T) {
	r, store := testResolver(t)
	// Only a parent session is active; a leftover coach slot must survive
	// only if its group was absent, so set both and verify both clear.
	set(t, store, credstore.SlotInviteToken, "it")
	set(t, store, credstore.SlotUserToken, "ut")

	if _, err := r.SignOut(); err != nil {
		t.Fatalf("SignOut: %v", err)
	}

	snap, _ := store.Snapshot()
	if snap.InviteToken != "" || snap.UserToken != "" {
		t.Errorf("both groups present, both should clear: %+v", snap)
	}
}

func TestSignOutGroup(t *testing.T) {
	r, store := testResolver(t)
	set(t, store, credstore.SlotInviteToken, "it")
	set(t, store, credstore.SlotUserToken, "ut")

	if err := r.SignOutGroup(credstore.GroupCoach); err != nil {
		t.Fatalf("SignOutGroup: %v", err)
	}

	snap, _ := store.Snapshot()
	if snap.UserToken != "" {
		t.Error("coach group should be cleared")
	}
	if snap.InviteToken != "it" {
		t.Error("parent group should survive a coach-only invalidation")
	}
}

func TestNavigatorNotifiesSubscribers(t *testing.T) {
	r, store := testResolver(t)
	set(t, store, credstore.SlotInviteToken, "it")

	nav, err := NewNavigator(r, "/")
	if err != nil {
		t.Fatalf("NewNavigator: %v", err)
	}
	if nav.Current().Page != Join {
		t.Fatalf("parent without team should start on Join, got %v", nav.Current().Page)
	}

	var seen []Page
	nav.Subscribe(func(res Resolution) { seen = append(seen, res.Page) })

	if _, err := nav.Go("/team/T1"); err != nil {
		t.Fatalf("Go: %v", err)
	}
	if _, err := nav.Go("/team/T1"); err != nil {
		t.Fatalf("Go repeat: %v", err)
	}

	if len(seen) != 1 || seen[0] != TeamApp {
		t.Errorf("expected one TeamApp notification, got %v", seen)
	}
}

func TestNavigatorSignOut(t *testing.T) {
	r, store := testResolver(t)
	set(t, store, credstore.SlotInviteToken, "it")
	set(t, store, credstore.SlotCurrentTeamID, "T1")

	nav, err := NewNavigator(r, "/")
	if err != nil {
		t.Fatalf("NewNavigator: %v", err)
	}

	var last Resolution
	nav.Subscribe(func(res Resolution) { last = res })

	res, err := nav.SignOut()
	if err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if res.Page != Public || last.Page != Public {
		t.Errorf("expected Public after sign-out, got %v / %v", res.Page, last.Page)
	}

	id, _ := session.Resolve(mustSnap(t, store))
	if id.Kind != session.Anonymous {
		t.Errorf("expected Anonymous after sign-out, got %v", id.Kind)
	}
}

func mustSnap(t *testing.T, s *credstore.Store) credstore.Snapshot {
	t.Helper()
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	return snap
}

func TestNormalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"/join/", "/join"},
		{"join", "/join"},
		{"/team/T1/", "/team/T1"},
	}
	for _, tt := range tests {
		if got := normalize(tt.in); got != tt.want {
			t.Errorf("normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatchTeamPath(t *testing.T) {
	tests := []struct {
		in   string
		id   string
		ok   bool
	}{
		{"/team/T1", "T1", true},
		{"/team/", "", false},
		{"/team", "", false},
		{"/team/T1/photos", "", false},
		{"/join", "", false},
	}
	for _, tt := range tests {
		id, ok := matchTeamPath(tt.in)
		if id != tt.id || ok != tt.ok {
			t.Errorf("matchTeamPath(%q) = (%q, %v), want (%q, %v)", tt.in, id, ok, tt.id, tt.ok)
		}
	}
}
