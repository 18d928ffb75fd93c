package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/huddlehq/huddle/internal/apiclient"
	"github.com/huddlehq/huddle/internal/authz"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/credstore"
	"github.com/huddlehq/huddle/internal/crypto"
	"github.com/huddlehq/huddle/internal/media"
	"github.com/huddlehq/huddle/internal/route"
	"github.com/huddlehq/huddle/internal/session"
)

// clientApp bundles the client-side stack a command needs: the credential
// store, the resolved session, the API client, and the route resolver.
type clientApp struct {
	cfg      *config.Config
	store    *credstore.Store
	api      *apiclient.Client
	resolver *route.Resolver
}

// credTokens backs the API client with the live credential store, so a token
// written by one command is visible to the next request without rebuilding
// the client.
type credTokens struct {
	store *credstore.Store
}

func (c credTokens) Tokens() (inviteToken, userToken, coachUserID string) {
	snap, err := c.store.Snapshot()
	if err != nil {
		return "", "", ""
	}
	return snap.InviteToken, snap.UserToken, snap.CoachUserID
}

func newClientApp() (*clientApp, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	var cipher *crypto.SlotCipher
	if cfg.Client.EncryptionKey != "" {
		cipher, err = crypto.NewSlotCipher(cfg.Client.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("loading encryption key: %w", err)
		}
	}

	store, err := credstore.Open(cfg.Client.StatePath, cipher)
	if err != nil {
		return nil, err
	}

	api := apiclient.New(cfg.Client.APIBaseURL, credTokens{store: store},
		&http.Client{Timeout: cfg.Client.RequestTimeout})

	return &clientApp{
		cfg:      cfg,
		store:    store,
		api:      api,
		resolver: route.NewResolver(store),
	}, nil
}

func (a *clientApp) Close() error {
	return a.store.Close()
}

// session resolves the current identity and team context from a fresh
// snapshot.
func (a *clientApp) session() (session.Identity, *session.TeamContext, error) {
	snap, err := a.store.Snapshot()
	if err != nil {
		return session.Identity{}, nil, err
	}
	id, team := session.Resolve(snap)
	return id, team, nil
}

// mediaService builds the media layer for the open team, wired to the local
// permission gate and the credential-invalidation hook.
func (a *clientApp) mediaService() (*media.Service, error) {
	id, team, err := a.session()
	if err != nil {
		return nil, err
	}
	if team == nil {
		return nil, fmt.Errorf("no team open; join a team or open one first")
	}

	svc := media.NewService(a.api, a.api, media.Options{
		URLCacheTTL:       a.cfg.Client.URLCacheTTL,
		PrefetchRadius:    a.cfg.Client.PrefetchRadius,
		MaxUploadBytes:    a.cfg.Blob.MaxUploadBytes,
		ThumbPollAttempts: a.cfg.Client.ThumbPollAttempts,
		ThumbPollInterval: a.cfg.Client.ThumbPollInterval,
		CanDelete: func(item authz.Item) bool {
			return authz.CanDelete(id, item, team.Role)
		},
		OnAuthError: func(err error) {
			a.invalidateCredentials()
		},
	})
	return svc, nil
}

// invalidateCredentials clears the credential group that authenticated the
// failing request. Invite auth wins request headers, so the parent group is
// the one a rejection implicates when an invite token is present.
func (a *clientApp) invalidateCredentials() {
	snap, err := a.store.Snapshot()
	if err != nil {
		return
	}
	group := credstore.GroupCoach
	if snap.InviteToken != "" {
		group = credstore.GroupParent
	}
	if err := a.store.ClearGroup(group); err != nil {
		slog.Warn("clearing rejected credentials", "group", string(group), "error", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Your %s session is no longer valid and has been cleared. Sign in again.\n", group)
}
