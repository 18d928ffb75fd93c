package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/blob"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/metrics"
	"github.com/huddlehq/huddle/internal/ratelimit"
	"github.com/huddlehq/huddle/internal/server"
	"github.com/huddlehq/huddle/internal/store"
	"github.com/huddlehq/huddle/internal/thumbs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the huddle backend server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("connected to database")

	blobStore, err := blob.NewStore(cfg.Blob.Dir, cfg.Blob.MaxUploadBytes)
	if err != nil {
		return err
	}
	signer := blob.NewPresigner(cfg.Blob.SigningSecret, cfg.Server.PublicBaseURL+"/blob", cfg.Blob.URLTTL, nil)

	teamStore := store.NewTeamStore(pool)
	inviteStore := store.NewInviteStore(pool)
	userStore := store.NewUserStore(pool)
	codeStore := store.NewAuthCodeStore(pool)
	mediaStore := store.NewMediaStore(pool)

	m := metrics.New()
	m.RegisterDBPoolCollector(func() metrics.DBPoolStats {
		stat := pool.Stat()
		return metrics.DBPoolStats{
			TotalConns:        stat.TotalConns(),
			IdleConns:         stat.IdleConns(),
			AcquiredConns:     stat.AcquiredConns(),
			MaxConns:          stat.MaxConns(),
			AcquireCount:      stat.AcquireCount(),
			EmptyAcquireCount: stat.EmptyAcquireCount(),
			AcquireDuration:   stat.AcquireDuration(),
		}
	})

	auditStore := audit.NewStore(pool)
	collector := audit.NewCollector(auditStore, cfg.Audit.BatchSize, cfg.Audit.FlushInterval)
	collector.OnEvent = m.AuditEventsTotal.Inc
	collector.OnFlush = func(count int, err error) {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.AuditFlushesTotal.WithLabelValues(status).Inc()
	}
	go collector.Start(ctx)

	thumbWorker := thumbs.NewWorker(mediaStore, blobStore, logger, 10*time.Second)
	thumbWorker.OnGenerated = m.ThumbnailsGenerated.Inc
	go thumbWorker.Run(ctx)

	limiter := ratelimit.New(cfg.RateLimit.PresignPerWindow, cfg.RateLimit.Window)
	limiter.OnReject = m.RateLimitRejectionsTotal.Inc

	router := server.NewRouter(server.RouterDeps{
		Teams:          teamStore,
		Invites:        inviteStore,
		Users:          userStore,
		Codes:          codeStore,
		Media:          mediaStore,
		BlobStore:      blobStore,
		BlobHandler:    blob.NewHandler(blobStore, signer, logger),
		Signer:         signer,
		Auditor:        collector,
		Mailer:         server.LogMailer{Logger: logger},
		Limiter:        limiter,
		Metrics:        m,
		SetupKeyHash:   cfg.Server.SetupKeyHash,
		MaxUploadBytes: cfg.Blob.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	collector.Stop()

	return srv.Shutdown(shutdownCtx)
}
