package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/aretw0/minutes/pkg/domain"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored sessions",
	Long:  `List, inspect, and remove sessions in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List users with an active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		ids, err := app.Store().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No active sessions found.")
			return nil
		}
		fmt.Fprintln(out, "Active Sessions:")
		for _, id := range ids {
			state := "?"
			if s, err := app.Store().Load(cmd.Context(), id); err == nil {
				state = s.State.String()
			}
			fmt.Fprintf(out, "- %d (%s)\n", id, state)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <user-id>",
	Short: "Print the session of a user as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		s, err := app.Store().Load(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("loading session %d: %w", userID, err)
		}
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <user-id>...",
	Short: "Remove the sessions of one or more users",
	Args: func(cmd *cobra.Command, args []string) error {
		if all, _ := cmd.Flags().GetBool("all"); all {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var ids []int64
		if all, _ := cmd.Flags().GetBool("all"); all {
			if ids, err = app.Store().List(cmd.Context()); err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
		} else {
			for _, arg := range args {
				id, err := parseUserID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
		}

		var errs []error
		out := cmd.OutOrStdout()
		for _, id := range ids {
			if err := app.Sessions.Delete(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("removing %d: %w", id, err))
				continue
			}
			fmt.Fprintf(out, "Removed session %d\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	sessionRmCmd.Flags().Bool("all", false, "Remove every stored session")
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: user id %q", domain.ErrInvalidInput, s)
	}
	return id, nil
}
