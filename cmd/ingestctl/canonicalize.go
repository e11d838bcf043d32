package main

import (
	"fmt"

	"job-ingest/internal/usecase/ingest"

	"github.com/spf13/cobra"
)

var canonicalHint string

var canonicalizeCmd = &cobra.Command{
	Use:   "canonicalize <url>",
	Short: "Print the deduplication key for a job URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := ingest.Canonicalize(args[0], canonicalHint)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	canonicalizeCmd.Flags().StringVar(&canonicalHint, "hint", "", "client-supplied canonical URL")
}
