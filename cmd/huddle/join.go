package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/credstore"
)

var joinEmail string

var joinCmd = &cobra.Command{
	Use:   "join <team-code>",
	Short: "Request a verification code to join a team",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <code>",
	Short: "Redeem an emailed verification code for a team session",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	joinCmd.Flags().StringVar(&joinEmail, "email", "", "email address to send the code to")
	joinCmd.MarkFlagRequired("email")
	verifyCmd.Flags().StringVar(&joinEmail, "email", "", "email address the code was sent to")
	verifyCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(joinCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.api.JoinTeam(context.Background(), joinEmail, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%s to %s for team %s.\n", res.Message, res.Email, res.TeamName)
	fmt.Printf("Run: huddle verify <code> --email %s\n", res.Email)
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.api.Verify(context.Background(), joinEmail, args[0], "")
	if err != nil {
		return err
	}

	// Persist the parent credential group; last_team_id too, so the next
	// start lands back on this team.
	sets := []struct {
		slot  credstore.Slot
		value string
	}{
		{credstore.SlotInviteToken, res.SessionToken},
		{credstore.SlotUserID, res.UserID},
		{credstore.SlotCurrentTeamID, res.TeamID},
		{credstore.SlotLastTeamID, res.TeamID},
		{credstore.SlotTeamName, res.TeamName},
		{credstore.SlotRole, res.Role},
	}
	for _, s := range sets {
		if err := app.store.Set(s.slot, s.value); err != nil {
			return err
		}
	}

	fmt.Printf("Signed in to %s as %s.\n", res.TeamName, res.Role)
	return nil
}
