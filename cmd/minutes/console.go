package main

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/minutes"
	"github.com/aretw0/minutes/pkg/adapters/console"
	"github.com/spf13/cobra"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Fill in a protocol interactively in the terminal",
	Long: `Starts a local chat with the bot. Lines starting with "/" are commands.

  /protocol            start a new protocol
  /voice <file>        send an audio file as the voice message
  /transcript <text>   send an already recognized transcript
  /cancel              discard the current protocol
  exit                 leave the console`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var opts []console.Option
		if cmd.Flags().Changed("user") {
			id, _ := cmd.Flags().GetInt64("user")
			opts = append(opts, console.WithUserID(id))
		}
		if cmd.Flags().Changed("out") {
			dir, _ := cmd.Flags().GetString("out")
			opts = append(opts, console.WithDocumentDir(dir))
		}
		opts = append(opts,
			console.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
			console.WithBanner(strings.TrimSpace(minutes.Version)),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		err = app.Console(opts...).Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().Int64("user", 0, "User id to speak as (defaults to console.user_id)")
	consoleCmd.Flags().String("out", "", "Directory for generated documents (defaults to console.document_dir)")
}
