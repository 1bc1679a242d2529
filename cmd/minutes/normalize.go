package main

import (
	"fmt"
	"io"

	"github.com/aretw0/minutes/pkg/normalizer"
	"github.com/spf13/cobra"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Turn a transcript read from stdin into a numbered list",
	Long: `Reads a raw transcript from stdin and prints the numbered list the bot
would show for it. Useful to tune the item keyword and ordinals.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		keyword, _ := cmd.Flags().GetString("keyword")
		ordinals, _ := cmd.Flags().GetStringSlice("ordinals")

		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return err
		}

		n := normalizer.New()
		if len(ordinals) > 0 {
			n = normalizer.New(normalizer.WithVocabulary(normalizer.Vocabulary{Ordinals: ordinals}))
		}
		fmt.Fprint(cmd.OutOrStdout(), n.Normalize(string(raw), keyword))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().StringP("keyword", "k", "question", "Item keyword that prefixes each spoken item")
	normalizeCmd.Flags().StringSlice("ordinals", nil, "Spoken ordinal tokens (defaults to English first..tenth and one..ten)")
}
