package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a demo team, coach, and parent invite",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	teams := store.NewTeamStore(pool)
	invites := store.NewInviteStore(pool)
	users := store.NewUserStore(pool)

	const teamCode = "DEMO42"
	if _, err := teams.GetByCode(ctx, teamCode); err == nil {
		slog.Info("demo data already exists, skipping seed")
		return nil
	}

	team, err := teams.Create(ctx, "Demo Tigers", teamCode)
	if err != nil {
		return fmt.Errorf("creating demo team: %w", err)
	}

	coach, err := users.GetOrCreateByEmail(ctx, "coach@example.com")
	if err != nil {
		return fmt.Errorf("creating demo coach: %w", err)
	}
	if err := users.MarkCoachVerified(ctx, coach.ID); err != nil {
		return fmt.Errorf("verifying demo coach: %w", err)
	}
	if err := teams.AddCoach(ctx, coach.ID, team.ID, "admin"); err != nil {
		return fmt.Errorf("linking demo coach: %w", err)
	}

	parent, err := invites.Create(ctx, team.ID, "parent@example.com", "uploader")
	if err != nil {
		return fmt.Errorf("creating demo invite: %w", err)
	}

	slog.Info("seeded demo data", "team", team.Name, "team_id", team.ID)
	fmt.Printf("\n=== Demo Data Seeded ===\n")
	fmt.Printf("Team:          %s (code %s)\n", team.Name, team.TeamCode)
	fmt.Printf("Coach:         %s (token %s)\n", coach.Email, coach.UserToken)
	fmt.Printf("Parent invite: %s (token %s)\n", parent.Email, parent.Token)
	fmt.Printf("\nTry it:\n")
	fmt.Printf("  huddle join %s --email you@example.com\n", team.TeamCode)
	fmt.Printf("  huddle ls   (after verifying)\n")

	return nil
}
