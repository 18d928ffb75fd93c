package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/huddlehq/huddle/internal/blob"
	"github.com/huddlehq/huddle/internal/metrics"
	"github.com/huddlehq/huddle/internal/ratelimit"
	"github.com/huddlehq/huddle/internal/ui"
)

// RouterDeps holds all dependencies for the backend router.
type RouterDeps struct {
	Teams   TeamStore
	Invites InviteStore
	Users   UserStore
	Codes   CodeStore
	Media   MediaStore

	BlobStore   *blob.Store
	BlobHandler *blob.Handler
	Signer      *blob.Presigner

	Auditor AuditRecorder
	Mailer  Mailer
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics

	SetupKeyHash   string
	MaxUploadBytes int64
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(slogRequestLogger)
	r.Use(metricsMiddleware(deps.Metrics))

	authH := &authHandler{
		teams:        deps.Teams,
		invites:      deps.Invites,
		users:        deps.Users,
		codes:        deps.Codes,
		mailer:       deps.Mailer,
		auditor:      deps.Auditor,
		setupKeyHash: deps.SetupKeyHash,
	}
	coachH := &coachHandler{
		teams:   deps.Teams,
		invites: deps.Invites,
		users:   deps.Users,
		auditor: deps.Auditor,
	}
	mediaH := &mediaHandler{
		media:    deps.Media,
		blobs:    deps.BlobStore,
		signer:   deps.Signer,
		auditor:  deps.Auditor,
		metrics:  deps.Metrics,
		maxBytes: deps.MaxUploadBytes,
	}
	teamAdminH := &teamAdminHandler{
		teams:   deps.Teams,
		invites: deps.Invites,
		users:   deps.Users,
		auditor: deps.Auditor,
	}
	meH := &meHandler{}

	sessionRequired := sessionAuth(deps.Invites, deps.Users, deps.Teams, deps.Metrics)
	userRequired := userAuth(deps.Users, deps.Metrics)

	// Health check.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Status page and metrics summary.
	r.Handle("/", ui.Handler())
	r.Get("/internal/metrics", deps.Metrics.Handler())

	// Presigned blob access. Signature-authenticated, not session-
	// authenticated.
	r.Route("/blob", deps.BlobHandler.Routes)

	// Sign-in flows.
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/join-team", authH.JoinTeam)
		ar.Post("/verify", authH.Verify)
		ar.Post("/coach-signin", authH.CoachSignIn)
		ar.Post("/verify-coach", authH.VerifyCoach)
	})

	// Session-authenticated surfaces.
	r.Group(func(sr chi.Router) {
		sr.Use(sessionRequired)

		sr.Get("/me", meH.Me)
		sr.Get("/media", mediaH.List)
		sr.Post("/media/complete", mediaH.CompleteUpload)
		sr.Delete("/media", mediaH.Delete)

		// Team administration, gated on an admin invite inside the
		// handlers.
		sr.Post("/invites/revoke", teamAdminH.RevokeInvite)
		sr.Patch("/teams/{teamID}", teamAdminH.RenameTeam)
		sr.Delete("/teams/{teamID}", teamAdminH.DeleteTeam)

		// Presign endpoints are the farmable ones; they get the limiter.
		sr.Group(func(pr chi.Router) {
			pr.Use(ratelimit.Middleware(deps.Limiter))
			pr.Post("/media/upload-url", mediaH.PresignUpload)
			pr.Get("/media/download-url", mediaH.PresignDownload)
		})
	})

	// Coach account surfaces.
	r.Group(func(cr chi.Router) {
		cr.Use(userRequired)

		cr.Get("/coach/teams", coachH.ListTeams)
		cr.Post("/coach/teams", coachH.CreateTeam)
		cr.Post("/coach/verify-access", authH.VerifyAccess)
	})

	return r
}
