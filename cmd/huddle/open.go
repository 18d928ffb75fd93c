package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/credstore"
	"github.com/huddlehq/huddle/internal/route"
)

var openCmd = &cobra.Command{
	Use:   "open <team-id>",
	Short: "Open a team by id, as following a shared team link would",
	Args:  cobra.ExactArgs(1),
	RunE:  runOpen,
}

var signOutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out, clearing stored credentials",
	RunE:  runSignOut,
}

var signOutParent bool
var signOutCoach bool

func init() {
	signOutCmd.Flags().BoolVar(&signOutParent, "parent", false, "clear only the team session")
	signOutCmd.Flags().BoolVar(&signOutCoach, "coach", false, "clear only the coach account")
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(signOutCmd)
}

func runOpen(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.resolver.Resolve("/team/" + args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Page: %s (%s)\n", res.Page, res.Path)

	if res.Page != route.TeamApp {
		return nil
	}

	// Visiting the link recorded the team id; the backend fills in the
	// display context when the session can see the team.
	me, err := app.api.Me(context.Background())
	if err != nil {
		fmt.Println("Team recorded. Sign in to load its details.")
		return nil
	}
	if me.Team.TeamID == args[0] {
		if err := app.store.Set(credstore.SlotTeamName, me.Team.TeamName); err != nil {
			return err
		}
		if err := app.store.Set(credstore.SlotRole, me.Invite.Role); err != nil {
			return err
		}
		fmt.Printf("Opened %s as %s.\n", me.Team.TeamName, me.Invite.Role)
	}
	return nil
}

func runSignOut(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	switch {
	case signOutParent:
		if err := app.resolver.SignOutGroup(credstore.GroupParent); err != nil {
			return err
		}
		fmt.Println("Team session cleared.")
	case signOutCoach:
		if err := app.resolver.SignOutGroup(credstore.GroupCoach); err != nil {
			return err
		}
		fmt.Println("Coach account cleared.")
	default:
		if _, err := app.resolver.SignOut(); err != nil {
			return err
		}
		fmt.Println("Signed out.")
	}
	return nil
}
