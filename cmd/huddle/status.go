package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session and team",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	id, team, err := app.session()
	if err != nil {
		return err
	}

	fmt.Printf("Identity: %s\n", id.Kind)
	if id.Kind != session.Anonymous {
		fmt.Printf("Role:     %s\n", id.Role)
	}
	if team != nil {
		fmt.Printf("Team:     %s (%s), role %s\n", team.TeamName, team.TeamID, team.Role)
	} else {
		fmt.Println("Team:     none open")
	}
	fmt.Printf("Home:     %s\n", app.resolver.HomePath())

	// The local view can go stale; the backend's is authoritative.
	if id.Kind != session.Anonymous {
		me, err := app.api.Me(context.Background())
		if err != nil {
			fmt.Printf("Backend:  unreachable (%v)\n", err)
			return nil
		}
		if me.Team.TeamID != "" {
			fmt.Printf("Backend:  team %s, role %s\n", me.Team.TeamName, me.Invite.Role)
		} else {
			fmt.Println("Backend:  signed in, no team")
		}
	}
	return nil
}
