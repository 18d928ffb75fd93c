package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/credstore"
)

var coachCmd = &cobra.Command{
	Use:   "coach",
	Short: "Coach account commands",
}

var coachSignInCmd = &cobra.Command{
	Use:   "signin <email>",
	Short: "Request a coach sign-in code",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoachSignIn,
}

var coachVerifyCmd = &cobra.Command{
	Use:   "verify <email> <code>",
	Short: "Redeem a coach sign-in code for an account token",
	Args:  cobra.ExactArgs(2),
	RunE:  runCoachVerify,
}

var coachTeamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List the teams you coach",
	RunE:  runCoachTeams,
}

var coachOpenCmd = &cobra.Command{
	Use:   "open <team-id>",
	Short: "Open one of your teams",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoachOpen,
}

var coachUnlockCmd = &cobra.Command{
	Use:   "unlock <setup-key>",
	Short: "Redeem the setup key to enable team creation",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoachUnlock,
}

var coachCreateTeamCmd = &cobra.Command{
	Use:   "create-team <name>",
	Short: "Create a team and get its join code",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoachCreateTeam,
}

var coachRevokeCmd = &cobra.Command{
	Use:   "revoke <invite-token>",
	Short: "Revoke a member's invite token on the open team",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoachRevoke,
}

var coachRenameTeamCmd = &cobra.Command{
	Use:   "rename-team <team-id> <new-name>",
	Short: "Rename the open team",
	Args:  cobra.ExactArgs(2),
	RunE:  runCoachRenameTeam,
}

var coachDeleteTeamCmd = &cobra.Command{
	Use:   "delete-team <team-id>",
	Short: "Delete the open team and revoke all of its invites",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoachDeleteTeam,
}

func init() {
	coachCmd.AddCommand(coachSignInCmd)
	coachCmd.AddCommand(coachVerifyCmd)
	coachCmd.AddCommand(coachTeamsCmd)
	coachCmd.AddCommand(coachOpenCmd)
	coachCmd.AddCommand(coachUnlockCmd)
	coachCmd.AddCommand(coachCreateTeamCmd)
	coachCmd.AddCommand(coachRevokeCmd)
	coachCmd.AddCommand(coachRenameTeamCmd)
	coachCmd.AddCommand(coachDeleteTeamCmd)
	rootCmd.AddCommand(coachCmd)
}

func runCoachSignIn(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.api.CoachSignIn(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Verification code sent to %s.\n", args[0])
	fmt.Printf("Run: huddle coach verify %s <code>\n", args[0])
	return nil
}

func runCoachVerify(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.api.VerifyCoach(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}

	if err := app.store.Set(credstore.SlotUserToken, res.UserToken); err != nil {
		return err
	}
	if err := app.store.Set(credstore.SlotUserID, res.UserID); err != nil {
		return err
	}

	fmt.Printf("Signed in as coach %s.\n", res.Email)
	return nil
}

func runCoachTeams(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.api.CoachTeams(context.Background())
	if err != nil {
		return err
	}

	if len(res.Teams) == 0 {
		fmt.Println("No teams yet.")
	}
	for _, t := range res.Teams {
		fmt.Printf("%-36s  %-24s  %s\n", t.TeamID, t.TeamName, t.Role)
	}
	if !res.CoachVerified {
		fmt.Println("\nTeam creation is locked. Run: huddle coach unlock <setup-key>")
	}
	return nil
}

func runCoachOpen(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.api.CoachTeams(context.Background())
	if err != nil {
		return err
	}

	for _, t := range res.Teams {
		if t.TeamID != args[0] {
			continue
		}
		snap, err := app.store.Snapshot()
		if err != nil {
			return err
		}
		// Opening a team as a coach installs the team's invite token for
		// session calls, while coach_user_id keeps actions attributed to
		// the coach account.
		sets := []struct {
			slot  credstore.Slot
			value string
		}{
			{credstore.SlotInviteToken, t.InviteToken},
			{credstore.SlotCurrentTeamID, t.TeamID},
			{credstore.SlotLastTeamID, t.TeamID},
			{credstore.SlotTeamName, t.TeamName},
			{credstore.SlotRole, t.Role},
			{credstore.SlotCoachUserID, snap.UserID},
		}
		for _, s := range sets {
			if err := app.store.Set(s.slot, s.value); err != nil {
				return err
			}
		}
		fmt.Printf("Opened %s as %s.\n", t.TeamName, t.Role)
		return nil
	}
	return fmt.Errorf("you do not coach a team with id %s", args[0])
}

func runCoachUnlock(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.api.VerifyCoachAccess(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Println("Setup key accepted. You can now create teams.")
	return nil
}

func runCoachCreateTeam(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	team, err := app.api.CreateTeam(context.Background(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Created %s. Share the join code: %s\n", team.TeamName, team.TeamCode)
	return nil
}

func runCoachRevoke(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.api.RevokeInvite(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Println("Invite revoked. The member can re-join for a fresh token.")
	return nil
}

func runCoachRenameTeam(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	team, err := app.api.RenameTeam(context.Background(), args[0], args[1])
	if err != nil {
		return err
	}
	if err := app.store.Set(credstore.SlotTeamName, team.TeamName); err != nil {
		return err
	}
	fmt.Printf("Renamed to %s (join code %s).\n", team.TeamName, team.TeamCode)
	return nil
}

func runCoachDeleteTeam(cmd *cobra.Command, args []string) error {
	app, err := newClientApp()
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.api.DeleteTeam(context.Background(), args[0])
	if err != nil {
		return err
	}

	// The open-team credentials just became invalid; drop them so the next
	// command starts from the coach dashboard instead of a dead session.
	snap, err := app.store.Snapshot()
	if err != nil {
		return err
	}
	if snap.CurrentTeamID == res.TeamID {
		if err := app.store.ClearGroup(credstore.GroupParent); err != nil {
			return err
		}
	}

	fmt.Printf("Deleted team %s. All of its invites are revoked.\n", res.TeamID)
	return nil
}
